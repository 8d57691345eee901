package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCitiesForDomain_KnownDomain(t *testing.T) {
	cities := citiesForDomain("yello.ae")
	assert.Contains(t, cities, "Dubai")
	assert.Contains(t, cities, "Sharjah")
}

func TestCitiesForDomain_UnknownDomainFallsBackToDefault(t *testing.T) {
	cities := citiesForDomain("some-other-directory.example")
	assert.Equal(t, defaultCities, cities)
}

func TestCitiesForDomain_AllTablesNonEmpty(t *testing.T) {
	for domain, cities := range commonCities {
		assert.NotEmpty(t, cities, "domain %s should have at least one fallback city", domain)
	}
}
