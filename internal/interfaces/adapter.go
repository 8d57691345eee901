package interfaces

import "github.com/joshfom/yello-crawl/internal/models"

// City is one entry of Adapter.Cities's ordered result.
type City struct {
	Name          string
	URL           string
	BusinessCount int
}

// Adapter is the pure-I/O site adapter contract (spec §4.4). One instance
// is created per (base URL, HTTP client) pair; it holds no per-job state.
type Adapter interface {
	// Cities returns the ordered list of cities for the adapter's site,
	// using the discovery cascade documented on the implementation.
	Cities() ([]City, error)

	// Listings returns the absolute business URLs on the given page of a
	// city's listing, and whether a next page exists.
	Listings(cityURL string, page int) (urls []string, hasNext bool, err error)

	// Details fetches and parses a single business detail page. A field
	// that the selector cascade can't find is left zero-valued on the
	// returned Business; only a request-level failure returns an error.
	Details(url string) (*models.Business, error)
}
