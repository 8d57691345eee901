// Package adapter implements the Site Adapter component (spec §4.4): pure
// I/O against a single Yello-family business directory site, turning its
// HTML into the interfaces.Adapter contract. All network and HTML
// assumptions specific to the Yello site family live here; the scheduler
// never parses HTML itself.
package adapter

import (
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/joshfom/yello-crawl/internal/common"
	"github.com/joshfom/yello-crawl/internal/interfaces"
	"github.com/joshfom/yello-crawl/internal/models"
)

// SiteAdapter is the universal adapter for Yello-family directory sites:
// baseURL is the job's https://host root and canonicalDomain is the
// registry-canonicalized host used for the fallback city table.
type SiteAdapter struct {
	baseURL         string
	canonicalDomain string
	client          *http.Client
	userAgents      []string
	rotateUA        bool
}

var _ interfaces.Adapter = (*SiteAdapter)(nil)

// New constructs a SiteAdapter over baseURL with the given request timeout.
func New(canonicalDomain, baseURL string, requestTimeout time.Duration, rotateUA bool) *SiteAdapter {
	return &SiteAdapter{
		baseURL:         strings.TrimRight(baseURL, "/"),
		canonicalDomain: canonicalDomain,
		client:          &http.Client{Timeout: requestTimeout},
		userAgents:      common.DefaultUserAgents,
		rotateUA:        rotateUA,
	}
}

func (a *SiteAdapter) userAgent() string {
	if !a.rotateUA || len(a.userAgents) == 0 {
		if len(a.userAgents) > 0 {
			return a.userAgents[0]
		}
		return "Mozilla/5.0"
	}
	return a.userAgents[rand.Intn(len(a.userAgents))]
}

func (a *SiteAdapter) get(rawURL string) (*goquery.Document, int, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", a.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("parse html from %s: %w", rawURL, err)
	}
	return doc, resp.StatusCode, nil
}

var cityCountRe = regexp.MustCompile(`^([^0-9]+)\s*(\d[\d,]*)?$`)

// Cities implements interfaces.Adapter.Cities using the three-step cascade:
// the browse-business-cities endpoint, then homepage navigation selectors,
// then the hardcoded fallback table.
func (a *SiteAdapter) Cities() ([]interfaces.City, error) {
	if cities, err := a.citiesFromBrowsePage(); err == nil && len(cities) > 0 {
		return cities, nil
	}

	if cities, err := a.citiesFromHomepage(); err == nil && len(cities) > 0 {
		return cities, nil
	}

	return a.fallbackCities(), nil
}

func (a *SiteAdapter) citiesFromBrowsePage() ([]interfaces.City, error) {
	doc, status, err := a.get(a.baseURL + "/browse-business-cities")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || doc == nil {
		return nil, nil
	}

	var cities []interfaces.City
	doc.Find(`a[href*="/location/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		text := strings.TrimSpace(sel.Text())
		if !ok || text == "" || !strings.Contains(href, "/location/") {
			return
		}

		match := cityCountRe.FindStringSubmatch(text)
		if match == nil {
			return
		}
		name := strings.TrimSpace(match[1])
		count := 0
		if match[2] != "" {
			count, _ = strconv.Atoi(strings.ReplaceAll(match[2], ",", ""))
		}

		cities = append(cities, interfaces.City{Name: name, URL: a.resolve(href), BusinessCount: count})
	})
	return cities, nil
}

var homepageCitySelectors = []string{
	`a[href*="/location/"]`,
	`a[href*="/city/"]`,
	`select[name="location"] option`,
	`.location-link`,
}

func (a *SiteAdapter) citiesFromHomepage() ([]interfaces.City, error) {
	doc, status, err := a.get(a.baseURL)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || doc == nil {
		return nil, nil
	}

	for _, selector := range homepageCitySelectors {
		links := doc.Find(selector)
		if links.Length() == 0 {
			continue
		}

		var cities []interfaces.City
		links.EachWithBreak(func(i int, sel *goquery.Selection) bool {
			if i >= 50 {
				return false
			}
			name := strings.TrimSpace(sel.Text())
			var href string
			if goquery.NodeName(sel) == "option" {
				if name == "" || isPlaceholderOption(name) {
					return true
				}
				href = "/location/" + strings.ToLower(strings.ReplaceAll(name, " ", "-"))
			} else {
				href, _ = sel.Attr("href")
			}

			if href != "" && strings.Contains(href, "/location/") && name != "" {
				cities = append(cities, interfaces.City{Name: name, URL: a.resolve(href)})
			}
			return true
		})

		if len(cities) > 0 {
			return cities, nil
		}
	}
	return nil, nil
}

func isPlaceholderOption(name string) bool {
	switch strings.ToLower(name) {
	case "all", "select", "choose":
		return true
	default:
		return false
	}
}

func (a *SiteAdapter) fallbackCities() []interfaces.City {
	names := citiesForDomain(a.canonicalDomain)
	cities := make([]interfaces.City, 0, len(names))
	for _, name := range names {
		slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
		cities = append(cities, interfaces.City{Name: name, URL: a.baseURL + "/location/" + slug})
	}
	return cities
}

func (a *SiteAdapter) resolve(href string) string {
	base, err := url.Parse(a.baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// Listings implements interfaces.Adapter.Listings.
func (a *SiteAdapter) Listings(cityURL string, page int) ([]string, bool, error) {
	pageURL := cityURL
	if page > 1 {
		pageURL = fmt.Sprintf("%s/%d", strings.TrimRight(cityURL, "/"), page)
	}

	doc, status, err := a.get(pageURL)
	if err != nil {
		return nil, false, err
	}
	if status != http.StatusOK || doc == nil {
		return nil, false, fmt.Errorf("unexpected status %d fetching %s", status, pageURL)
	}

	var urls []string
	doc.Find(`div.company h3 a[href^="/company/"]`).Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			urls = append(urls, a.resolve(href))
		}
	})

	hasNext := doc.Find(`a.pages_arrow[rel="next"]`).Length() > 0
	return urls, hasNext, nil
}

var (
	breadcrumbSelector = `ul[itemtype*="BreadcrumbList"] li span[itemprop="name"]`
	daddrRe            = regexp.MustCompile(`daddr=([0-9.\-]+),([0-9.\-]+)`)
	establishedYearRe  = regexp.MustCompile(`(\d{4})`)
	reviewsCountRe     = regexp.MustCompile(`(\d+)\s+Reviews?`)
	addressLikeRe      = regexp.MustCompile(`(?i)\w+\s+(St|Street|Rd|Road|Ave|Avenue|Blvd|Boulevard|Al\s+\w+)`)
)

var addressSelectors = []string{
	"#company_address",
	"div.text.location #company_address",
	"div.info div.text.location #company_address",
	".address",
	".location_links",
	`div[id*="address"]`,
	"div.text.location div",
}

// Details implements interfaces.Adapter.Details using the same selector
// cascade as the reference scraper: every field is best-effort, only a
// request-level failure is a hard error.
func (a *SiteAdapter) Details(pageURL string) (*models.Business, error) {
	doc, status, err := a.get(pageURL)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || doc == nil {
		return nil, fmt.Errorf("unexpected status %d fetching %s", status, pageURL)
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())

	breadcrumb := doc.Find(breadcrumbSelector)
	country := breadcrumbAt(breadcrumb, 0)
	city := breadcrumbAt(breadcrumb, 1)
	category := breadcrumbAt(breadcrumb, 2)

	name := strings.TrimSpace(doc.Find("div.text#company_name, .company_header h3").First().Text())
	if name == "" {
		if idx := strings.Index(title, " - "); idx >= 0 {
			name = title[:idx]
		} else {
			name = title
		}
	}

	business := &models.Business{
		Domain:    a.canonicalDomain,
		PageURL:   pageURL,
		Title:     title,
		Name:      name,
		Country:   country,
		City:      city,
		Category:  category,
		ScrapedAt: time.Now(),
	}

	if coords := extractCoordinates(doc); coords != nil {
		business.Coordinates = coords
	}

	business.Phone = extractByLabel(doc, "Phone", "tel:")
	business.Mobile = extractByLabel(doc, "Mobile phone", "tel:")
	business.Fax = extractLabelText(doc, "Fax")

	if website := doc.Find(`div.weblinks a[href*="/redir/"]`).First(); website.Length() > 0 {
		business.Website = strings.TrimSpace(website.Text())
	}

	business.Address = extractAddress(doc)
	business.WorkingHours = extractWorkingHours(doc)

	if desc := doc.Find("div.text.desc, .company_description").First(); desc.Length() > 0 {
		business.Description = strings.TrimSpace(desc.Text())
	}

	doc.Find(`div.tags a[href^="/category/"]`).Each(func(_ int, sel *goquery.Selection) {
		if tag := strings.TrimSpace(sel.Text()); tag != "" {
			business.Tags = append(business.Tags, tag)
		}
	})

	if reviewsDiv := doc.Find(".company_reviews").First(); reviewsDiv.Length() > 0 {
		if rateText := strings.TrimSpace(reviewsDiv.Find(".rate").First().Text()); rateText != "" {
			if rating, err := strconv.ParseFloat(rateText, 64); err == nil {
				business.Rating = rating
			}
		}
		if match := reviewsCountRe.FindStringSubmatch(reviewsDiv.Text()); match != nil {
			business.ReviewsCount, _ = strconv.Atoi(match[1])
		}
	}

	if established := extractLabelText(doc, "Established"); established != "" {
		if match := establishedYearRe.FindStringSubmatch(established); match != nil {
			business.EstablishedYear, _ = strconv.Atoi(match[1])
		}
	}

	business.Employees = extractLabelText(doc, "Employees")

	return business, nil
}

func breadcrumbAt(sel *goquery.Selection, index int) string {
	if index >= sel.Length() {
		return ""
	}
	return strings.TrimSpace(sel.Eq(index).Text())
}

func extractCoordinates(doc *goquery.Document) *models.Coordinates {
	directions := doc.Find(`a[href*="maps.google.com"][href*="daddr="]`).First()
	if directions.Length() == 0 {
		directions = doc.Find(`.location_links a[href*="maps.google.com"]`).First()
	}
	if directions.Length() == 0 {
		return nil
	}

	href, ok := directions.Attr("href")
	if !ok {
		return nil
	}
	match := daddrRe.FindStringSubmatch(href)
	if match == nil {
		return nil
	}
	lat, errLat := strconv.ParseFloat(match[1], 64)
	lng, errLng := strconv.ParseFloat(match[2], 64)
	if errLat != nil || errLng != nil {
		return nil
	}
	return &models.Coordinates{Lat: lat, Lng: lng}
}

// extractByLabel finds the sibling "text" div following a "label" div whose
// text matches label, and returns the text of an anchor inside it whose
// href has the given prefix. Falls back to the first link on the page with
// that prefix.
func extractByLabel(doc *goquery.Document, label, hrefPrefix string) string {
	var result string
	doc.Find("div.label").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.TrimSpace(sel.Text()) != label {
			return true
		}
		text := sel.Next()
		if !text.HasClass("text") {
			return true
		}
		link := text.Find("a").FilterFunction(func(_ int, s *goquery.Selection) bool {
			href, _ := s.Attr("href")
			return strings.HasPrefix(href, hrefPrefix)
		}).First()
		if link.Length() > 0 {
			result = strings.TrimSpace(link.Text())
			return false
		}
		return true
	})
	if result != "" {
		return result
	}

	link := doc.Find("a").FilterFunction(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		return strings.HasPrefix(href, hrefPrefix)
	}).First()
	if link.Length() > 0 {
		return strings.TrimSpace(link.Text())
	}
	return ""
}

func extractLabelText(doc *goquery.Document, label string) string {
	var result string
	doc.Find("div.label").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.TrimSpace(sel.Text()) != label {
			return true
		}
		text := sel.Next()
		if text.HasClass("text") {
			result = strings.TrimSpace(text.Text())
			return false
		}
		return true
	})
	return result
}

func extractAddress(doc *goquery.Document) string {
	for _, selector := range addressSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		text := strings.Join(strings.Fields(sel.Text()), " ")
		lower := strings.ToLower(text)
		if len(text) > 5 && lower != "view map" && lower != "get directions" {
			return text
		}
	}

	var fallback string
	doc.Find("div").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if addressLikeRe.MatchString(sel.Text()) {
			fallback = strings.TrimSpace(sel.Text())
			return false
		}
		return true
	})
	return fallback
}

func extractWorkingHours(doc *goquery.Document) map[string]string {
	hoursList := doc.Find("#open_hours ul").First()
	if hoursList.Length() == 0 {
		return nil
	}

	hours := make(map[string]string)
	hoursList.Find("li").Each(func(_ int, li *goquery.Selection) {
		text := strings.TrimSpace(li.Text())
		parts := strings.SplitN(text, ":", 2)
		if len(parts) == 2 {
			day := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			if day != "" && value != "" {
				hours[day] = value
			}
		}
	})
	if len(hours) == 0 {
		return nil
	}
	return hours
}
