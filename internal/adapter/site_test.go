package adapter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range routes {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(body))
		})
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestSiteAdapter_Cities_FromBrowsePage(t *testing.T) {
	browseHTML := `<html><body>
		<a href="/location/dubai">Dubai 1,204</a>
		<a href="/location/sharjah">Sharjah 312</a>
		<a href="/not-a-city">ignore me</a>
	</body></html>`
	server := newTestServer(t, map[string]string{"/browse-business-cities": browseHTML})

	a := New("yello.ae", server.URL, 5*time.Second, false)
	cities, err := a.Cities()

	require.NoError(t, err)
	require.Len(t, cities, 2)
	assert.Equal(t, "Dubai", cities[0].Name)
	assert.Equal(t, 1204, cities[0].BusinessCount)
	assert.Equal(t, server.URL+"/location/dubai", cities[0].URL)
	assert.Equal(t, "Sharjah", cities[1].Name)
	assert.Equal(t, 312, cities[1].BusinessCount)
}

func TestSiteAdapter_Cities_FallsBackToHomepage(t *testing.T) {
	homepageHTML := `<html><body>
		<select name="location">
			<option>All</option>
			<option>Abu Dhabi</option>
		</select>
	</body></html>`
	server := newTestServer(t, map[string]string{
		"/browse-business-cities": `<html><body>no cities here</body></html>`,
		"/":                       homepageHTML,
	})

	a := New("yello.ae", server.URL, 5*time.Second, false)
	cities, err := a.Cities()

	require.NoError(t, err)
	require.Len(t, cities, 1)
	assert.Equal(t, "Abu Dhabi", cities[0].Name)
}

func TestSiteAdapter_Cities_FallsBackToHardcodedTable(t *testing.T) {
	server := newTestServer(t, map[string]string{
		"/browse-business-cities": `<html><body>empty</body></html>`,
		"/":                       `<html><body>no nav links</body></html>`,
	})

	a := New("yello.ae", server.URL, 5*time.Second, false)
	cities, err := a.Cities()

	require.NoError(t, err)
	require.NotEmpty(t, cities)
	assert.Equal(t, "Dubai", cities[0].Name)
}

func TestSiteAdapter_Listings_ParsesURLsAndNextPage(t *testing.T) {
	listingHTML := `<html><body>
		<div class="company"><h3><a href="/company/acme">Acme</a></h3></div>
		<div class="company"><h3><a href="/company/zenith">Zenith</a></h3></div>
		<a class="pages_arrow" rel="next" href="/location/dubai/2">Next</a>
	</body></html>`
	server := newTestServer(t, map[string]string{"/location/dubai": listingHTML})

	a := New("yello.ae", server.URL, 5*time.Second, false)
	urls, hasNext, err := a.Listings(server.URL+"/location/dubai", 1)

	require.NoError(t, err)
	assert.True(t, hasNext)
	require.Len(t, urls, 2)
	assert.Equal(t, server.URL+"/company/acme", urls[0])
	assert.Equal(t, server.URL+"/company/zenith", urls[1])
}

func TestSiteAdapter_Listings_LastPageHasNoNext(t *testing.T) {
	listingHTML := `<html><body>
		<div class="company"><h3><a href="/company/acme">Acme</a></h3></div>
	</body></html>`
	server := newTestServer(t, map[string]string{"/location/dubai/2": listingHTML})

	a := New("yello.ae", server.URL, 5*time.Second, false)
	urls, hasNext, err := a.Listings(server.URL+"/location/dubai", 2)

	require.NoError(t, err)
	assert.False(t, hasNext)
	require.Len(t, urls, 1)
}

func TestSiteAdapter_Details_ParsesCoreFields(t *testing.T) {
	detailHTML := `<html><body>
		<h1>Acme Trading LLC - Dubai</h1>
		<ul itemtype="http://schema.org/BreadcrumbList">
			<li><span itemprop="name">UAE</span></li>
			<li><span itemprop="name">Dubai</span></li>
			<li><span itemprop="name">Trading Companies</span></li>
		</ul>
		<div class="text" id="company_name">Acme Trading LLC</div>
		<div class="label">Phone</div>
		<div class="text"><a href="tel:+97141234567">+971 4 123 4567</a></div>
		<div class="weblinks"><a href="/redir/acme-trading">www.acmetrading.ae</a></div>
		<div id="company_address">123 Sheikh Zayed Road, Dubai</div>
		<div class="text desc">Leading trading company in the UAE.</div>
		<div class="tags"><a href="/category/trading">Trading</a><a href="/category/import-export">Import Export</a></div>
		<a href="https://maps.google.com/maps?daddr=25.2048,55.2708">Get Directions</a>
	</body></html>`
	server := newTestServer(t, map[string]string{"/company/acme-trading": detailHTML})

	a := New("yello.ae", server.URL, 5*time.Second, false)
	business, err := a.Details(server.URL + "/company/acme-trading")

	require.NoError(t, err)
	require.NotNil(t, business)
	assert.Equal(t, "yello.ae", business.Domain)
	assert.Equal(t, "Acme Trading LLC", business.Name)
	assert.Equal(t, "UAE", business.Country)
	assert.Equal(t, "Dubai", business.City)
	assert.Equal(t, "Trading Companies", business.Category)
	assert.Equal(t, "+971 4 123 4567", business.Phone)
	assert.Equal(t, "www.acmetrading.ae", business.Website)
	assert.Contains(t, business.Address, "Sheikh Zayed Road")
	assert.Equal(t, "Leading trading company in the UAE.", business.Description)
	assert.Equal(t, []string{"Trading", "Import Export"}, business.Tags)
	require.NotNil(t, business.Coordinates)
	assert.InDelta(t, 25.2048, business.Coordinates.Lat, 0.0001)
	assert.InDelta(t, 55.2708, business.Coordinates.Lng, 0.0001)
}

func TestSiteAdapter_Details_MissingFieldsLeftZeroValued(t *testing.T) {
	detailHTML := `<html><body><h1>Bare Listing</h1></body></html>`
	server := newTestServer(t, map[string]string{"/company/bare": detailHTML})

	a := New("yello.ae", server.URL, 5*time.Second, false)
	business, err := a.Details(server.URL + "/company/bare")

	require.NoError(t, err)
	assert.Equal(t, "Bare Listing", business.Name)
	assert.Equal(t, "", business.Phone)
	assert.Nil(t, business.Coordinates)
	assert.Empty(t, business.Tags)
}

func TestSiteAdapter_Details_UnexpectedStatusIsError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/company/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	a := New("yello.ae", server.URL, 5*time.Second, false)
	_, err := a.Details(server.URL + "/company/missing")
	assert.Error(t, err)
}
