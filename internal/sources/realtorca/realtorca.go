// Package realtorca implements the Realtor.ca listing source. Realtor.ca
// serves its map view with the result set embedded in an inline script, so
// the adapter digs the JSON out of the page, with an HTML-card fallback and
// a headless-browser fallback for when the plain fetch is blocked.
package realtorca

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/pvnkmnk/rentFalcon/internal/sources"
	"github.com/pvnkmnk/rentFalcon/internal/sources/fetch"
	"github.com/pvnkmnk/rentFalcon/pkg/models"
	"github.com/pvnkmnk/rentFalcon/pkg/utils"
)

const (
	// SourceName identifies this adapter in registries and results.
	SourceName = "realtor_ca"

	siteURL     = "https://www.realtor.ca"
	mapURL      = siteURL + "/map"
	maxListings = 25

	// How long to let the map view hydrate when rendering in a browser.
	renderSettle = 5 * time.Second
)

// boundingBox is (latMin, latMax, lonMin, lonMax).
type boundingBox [4]float64

// cityBounds holds approximate bounding boxes for the major Canadian rental
// markets. Unknown locations fall back to Toronto.
var cityBounds = map[string]boundingBox{
	"toronto":          {43.581, 43.855, -79.639, -79.116},
	"ottawa":           {45.247, 45.535, -75.927, -75.247},
	"montreal":         {45.410, 45.704, -73.980, -73.475},
	"vancouver":        {49.198, 49.316, -123.224, -122.986},
	"calgary":          {50.842, 51.211, -114.310, -113.895},
	"edmonton":         {53.396, 53.711, -113.699, -113.297},
	"winnipeg":         {49.766, 49.978, -97.325, -97.065},
	"quebec":           {46.761, 46.862, -71.307, -71.155},
	"hamilton":         {43.200, 43.311, -79.987, -79.714},
	"kitchener":        {43.400, 43.510, -80.560, -80.420},
	"london":           {42.900, 43.050, -81.350, -81.150},
	"victoria":         {48.400, 48.500, -123.450, -123.300},
	"windsor":          {42.250, 42.350, -83.100, -82.900},
	"oshawa":           {43.850, 43.950, -78.950, -78.800},
	"saskatoon":        {52.050, 52.230, -106.750, -106.550},
	"regina":           {50.400, 50.500, -104.700, -104.500},
	"halifax":          {44.600, 44.700, -63.700, -63.500},
	"barrie":           {44.350, 44.450, -79.750, -79.600},
	"guelph":           {43.500, 43.600, -80.300, -80.150},
	"kingston":         {44.200, 44.300, -76.600, -76.450},
	"newmarket":        {43.990, 44.090, -79.530, -79.390},
	"aurora":           {43.930, 44.030, -79.530, -79.390},
	"richmond hill":    {43.820, 43.920, -79.510, -79.370},
	"east gwillimbury": {44.040, 44.140, -79.500, -79.360},
	"bradford":         {44.070, 44.170, -79.630, -79.490},
	"markham":          {43.810, 43.910, -79.410, -79.270},
	"vaughan":          {43.790, 43.890, -79.570, -79.430},
	"king city":        {43.880, 43.980, -79.600, -79.460},
}

var (
	initialStateRe = regexp.MustCompile(`(?s)window\.__INITIAL_STATE__\s*=\s*(\{.*?\});`)
	varAssignRe    = regexp.MustCompile(`(?s)var\s+\w+\s*=\s*(\{.*?\});`)
	bedroomsRe     = regexp.MustCompile(`(?i)(\d+)\s*(?:bed|br)`)
	bathroomsRe    = regexp.MustCompile(`(?i)(\d+)\s*(?:bath|ba)`)
)

// Adapter scrapes rental listings from Realtor.ca.
type Adapter struct {
	client     *fetch.Client
	useBrowser bool
	logger     *logrus.Entry
}

// New creates a Realtor.ca adapter. useBrowser enables the headless-browser
// fallback for blocked or empty plain fetches.
func New(opts fetch.Options, useBrowser bool) *Adapter {
	return &Adapter{
		client:     fetch.NewClient(SourceName, opts),
		useBrowser: useBrowser,
		logger:     utils.GetLogger().WithField("source", SourceName),
	}
}

func (a *Adapter) Identifier() string { return SourceName }

// Search fetches the map view for the request's location and extracts the
// embedded result set. A blocked or empty plain fetch falls back to a
// rendered page when the browser is enabled.
func (a *Adapter) Search(ctx context.Context, req models.SearchRequest) ([]models.Listing, error) {
	searchURL := a.buildSearchURL(req)
	a.logger.WithField("url", searchURL).Debug("Searching Realtor.ca")

	var html string
	body, err := a.client.Get(ctx, searchURL)
	if err != nil {
		if !a.useBrowser {
			return nil, err
		}
		a.logger.WithError(err).Warn("Plain fetch failed, trying headless browser")
		html, err = fetch.RenderPage(ctx, SourceName, searchURL, renderSettle)
		if err != nil {
			return nil, err
		}
	} else {
		html = string(body)
	}

	listings, err := a.parseListings(html)
	if err != nil {
		return nil, err
	}

	if len(listings) == 0 && a.useBrowser {
		a.logger.Info("No listings in static page, trying headless browser")
		rendered, renderErr := fetch.RenderPage(ctx, SourceName, searchURL, renderSettle)
		if renderErr == nil {
			if listings, err = a.parseListings(rendered); err != nil {
				return nil, err
			}
		}
	}

	listings = sources.FilterByPrice(listings, req.MinPrice, req.MaxPrice)
	a.logger.WithField("count", len(listings)).Info("Realtor.ca search complete")
	return listings, nil
}

func (a *Adapter) buildSearchURL(req models.SearchRequest) string {
	box := a.lookupBounds(req.Location)
	centerLat := (box[0] + box[1]) / 2
	centerLon := (box[2] + box[3]) / 2

	params := url.Values{}
	params.Set("ZoomLevel", "12")
	params.Set("Center", fmt.Sprintf("%.3f,%.3f", centerLat, centerLon))
	params.Set("LatitudeMax", fmt.Sprintf("%.3f", box[1]))
	params.Set("LongitudeMax", fmt.Sprintf("%.3f", box[3]))
	params.Set("LatitudeMin", fmt.Sprintf("%.3f", box[0]))
	params.Set("LongitudeMin", fmt.Sprintf("%.3f", box[2]))
	params.Set("Sort", "6-D") // newest first
	params.Set("PropertyTypeGroupID", "1")
	params.Set("PropertySearchTypeId", "1")
	params.Set("TransactionTypeId", "3") // for rent
	params.Set("Currency", "CAD")
	params.Set("RecordsPerPage", "50")

	if req.MinPrice != nil {
		params.Set("PriceMin", fmt.Sprintf("%.0f", *req.MinPrice))
	}
	if req.MaxPrice != nil {
		params.Set("PriceMax", fmt.Sprintf("%.0f", *req.MaxPrice))
	}

	return mapURL + "#" + params.Encode()
}

func (a *Adapter) lookupBounds(location string) boundingBox {
	key := strings.ToLower(strings.TrimSpace(location))
	if box, ok := cityBounds[key]; ok {
		return box
	}
	for city, box := range cityBounds {
		if strings.Contains(key, city) || strings.Contains(city, key) {
			return box
		}
	}
	a.logger.WithField("location", location).Warn("Unknown location, defaulting to Toronto")
	return cityBounds["toronto"]
}

func (a *Adapter) parseListings(html string) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, sources.NewParseError(SourceName, "invalid search page HTML")
	}

	var listings []models.Listing
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		lower := strings.ToLower(text)
		if !strings.Contains(lower, "listings") && !strings.Contains(lower, "results") {
			return true
		}

		match := initialStateRe.FindStringSubmatch(text)
		if match == nil {
			match = varAssignRe.FindStringSubmatch(text)
		}
		if match == nil {
			return true
		}

		var data any
		if err := json.Unmarshal([]byte(match[1]), &data); err != nil {
			a.logger.WithError(err).Debug("Could not parse embedded script JSON")
			return true
		}

		found := a.extractFromJSON(data)
		if len(found) > 0 {
			listings = append(listings, found...)
			a.logger.WithField("count", len(found)).Debug("Extracted listings from embedded JSON")
		}
		return true
	})

	if len(listings) == 0 {
		a.logger.Debug("Embedded JSON yielded nothing, parsing listing cards")
		listings = a.parseCards(doc)
	}

	if len(listings) > maxListings {
		listings = listings[:maxListings]
	}
	return listings, nil
}

// extractFromJSON walks the embedded state recursively, collecting every
// object that looks like a listing and descending into the containers the
// site nests them under.
func (a *Adapter) extractFromJSON(data any) []models.Listing {
	var listings []models.Listing

	switch v := data.(type) {
	case map[string]any:
		_, hasMls := v["MlsNumber"]
		_, hasPrice := v["Price"]
		if hasMls || hasPrice {
			if l, ok := a.parseJSONListing(v); ok {
				listings = append(listings, l)
			}
		}
		for key, value := range v {
			switch strings.ToLower(key) {
			case "results", "listings", "pins", "properties":
				listings = append(listings, a.extractFromJSON(value)...)
			}
		}
	case []any:
		for _, item := range v {
			listings = append(listings, a.extractFromJSON(item)...)
		}
	}

	return listings
}

func (a *Adapter) parseJSONListing(data map[string]any) (models.Listing, bool) {
	mls := stringField(data, "MlsNumber")
	if mls == "" {
		mls = stringField(data, "Id")
	}
	price := sources.ParsePrice(data["Price"])

	property, _ := data["Property"].(map[string]any)
	address, _ := property["Address"].(map[string]any)
	if address == nil {
		address, _ = data["Address"].(map[string]any)
	}

	addressText := stringField(address, "AddressText")
	city := stringField(address, "City")
	province := stringField(address, "Province")
	fullAddress := joinNonEmpty(", ", addressText, city, province)

	building, _ := data["Building"].(map[string]any)
	bedrooms := numberField(building, "Bedrooms", "BedroomsTotal")
	bathrooms := numberField(building, "BathroomTotal", "Bathrooms")

	propertyType := stringField(property, "Type")

	detailsURL := ""
	if rel := stringField(data, "RelativeDetailsURL"); rel != "" {
		detailsURL = siteURL + rel
	}
	if detailsURL == "" {
		return models.Listing{}, false
	}

	photo := photoPath(property)
	if photo == "" {
		photo = photoPath(data)
	}
	if photo != "" && !strings.HasPrefix(photo, "http") {
		photo = "https:" + photo
	}

	title := fmt.Sprintf("%s Bed, %s Bath %s in %s",
		orUnknown(bedrooms), orUnknown(bathrooms), propertyType, city)

	return models.Listing{
		Source:      SourceName,
		ExternalID:  mls,
		Title:       title,
		Price:       price,
		Location:    fullAddress,
		URL:         detailsURL,
		Description: propertyType,
		ImageURL:    photo,
		Bedrooms:    bedrooms,
		Bathrooms:   bathrooms,
		ScrapedAt:   time.Now().UTC(),
	}, true
}

// parseCards is the fallback for pages without usable embedded JSON: scrape
// the listing cards directly.
func (a *Adapter) parseCards(doc *goquery.Document) []models.Listing {
	var cards *goquery.Selection
	for _, selector := range []string{
		".listingCard",
		"[class*='listing-card']",
		"[class*='propertyCard']",
		".cardCon",
	} {
		cards = doc.Find(selector)
		if cards.Length() > 0 {
			a.logger.WithFields(logrus.Fields{
				"selector": selector,
				"count":    cards.Length(),
			}).Debug("Found listing cards")
			break
		}
	}
	if cards == nil || cards.Length() == 0 {
		return nil
	}

	var listings []models.Listing
	cards.EachWithBreak(func(i int, card *goquery.Selection) bool {
		if i >= maxListings {
			return false
		}

		priceText := strings.TrimSpace(card.Find(".listingCardPrice, [class*='price']").First().Text())
		address := strings.TrimSpace(card.Find(".listingCardAddress, [class*='address']").First().Text())
		if priceText == "" && address == "" {
			return true
		}

		detailsURL := ""
		if href, ok := card.Find("a[href*='/property-details']").First().Attr("href"); ok {
			detailsURL = siteURL + href
		}
		// Every emitted listing must carry a details URL.
		if detailsURL == "" {
			return true
		}
		image, _ := card.Find("img").First().Attr("src")

		text := card.Text()
		bedrooms := matchedNumber(bedroomsRe, text)
		bathrooms := matchedNumber(bathroomsRe, text)

		area := "Unknown"
		if address != "" {
			area = strings.SplitN(address, ",", 2)[0]
		}

		parts := strings.Split(detailsURL, "/")
		externalID := parts[len(parts)-1]

		listings = append(listings, models.Listing{
			Source:     SourceName,
			ExternalID: externalID,
			Title:      fmt.Sprintf("%s Bed Rental in %s", orUnknown(bedrooms), area),
			Price:      sources.ParsePriceString(priceText),
			Location:   address,
			URL:        detailsURL,
			ImageURL:   image,
			Bedrooms:   bedrooms,
			Bathrooms:  bathrooms,
			ScrapedAt:  time.Now().UTC(),
		})
		return true
	})

	return listings
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func numberField(m map[string]any, keys ...string) *float64 {
	if m == nil {
		return nil
	}
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			return &v
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

func photoPath(m map[string]any) string {
	if m == nil {
		return ""
	}
	photos, _ := m["Photo"].([]any)
	if len(photos) == 0 {
		return ""
	}
	first, _ := photos[0].(map[string]any)
	return stringField(first, "HighResPath")
}

func matchedNumber(re *regexp.Regexp, text string) *float64 {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &f
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func orUnknown(v *float64) string {
	if v == nil {
		return "?"
	}
	if *v == float64(int(*v)) {
		return strconv.Itoa(int(*v))
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}
