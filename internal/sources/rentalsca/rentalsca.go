// Package rentalsca implements the Rentals.ca listing source. The site is a
// client-rendered app, so the adapter probes its internal JSON endpoints
// first and falls back to rendering the search page in a headless browser.
package rentalsca

import (
	"context"
	"encoding/json"
	"fmt"
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
	SourceName = "rentals_ca"

	baseURL = "https://rentals.ca"

	// How long to let the listing grid hydrate when rendering in a browser.
	renderSettle = 2 * time.Second
)

// citySlugs maps known city names to their rentals.ca URL slugs. Anything
// else is slugified directly.
var citySlugs = map[string]string{
	"toronto":          "toronto",
	"ottawa":           "ottawa",
	"montreal":         "montreal",
	"vancouver":        "vancouver",
	"calgary":          "calgary",
	"edmonton":         "edmonton",
	"winnipeg":         "winnipeg",
	"quebec city":      "quebec-city",
	"hamilton":         "hamilton",
	"kitchener":        "kitchener",
	"london":           "london",
	"victoria":         "victoria",
	"halifax":          "halifax",
	"saskatoon":        "saskatoon",
	"regina":           "regina",
	"windsor":          "windsor",
	"oshawa":           "oshawa",
	"barrie":           "barrie",
	"kelowna":          "kelowna",
	"newmarket":        "newmarket",
	"aurora":           "aurora",
	"richmond hill":    "richmond-hill",
	"east gwillimbury": "east-gwillimbury",
	"bradford":         "bradford",
	"markham":          "markham",
	"vaughan":          "vaughan",
	"king city":        "king-city",
}

var numberRe = regexp.MustCompile(`\d+\.?\d*`)

// Adapter scrapes rental listings from Rentals.ca.
type Adapter struct {
	client     *fetch.Client
	useBrowser bool
	logger     *logrus.Entry
}

// New creates a Rentals.ca adapter. useBrowser enables the headless-browser
// fallback used when the API probe finds nothing.
func New(opts fetch.Options, useBrowser bool) *Adapter {
	return &Adapter{
		client:     fetch.NewClient(SourceName, opts),
		useBrowser: useBrowser,
		logger:     utils.GetLogger().WithField("source", SourceName),
	}
}

func (a *Adapter) Identifier() string { return SourceName }

// Search probes the site's JSON endpoints for the city and falls back to a
// rendered search page when they yield nothing.
func (a *Adapter) Search(ctx context.Context, req models.SearchRequest) ([]models.Listing, error) {
	slug := a.citySlug(req.Location)

	listings := a.tryAPI(ctx, slug)
	if len(listings) == 0 {
		if !a.useBrowser {
			return nil, sources.NewParseError(SourceName,
				"API probe found no listings and browser rendering is disabled")
		}
		searchURL := a.buildSearchURL(slug, req)
		a.logger.WithField("url", searchURL).Info("API probe empty, rendering search page")

		html, err := fetch.RenderPage(ctx, SourceName, searchURL, renderSettle)
		if err != nil {
			return nil, err
		}
		var parseErr error
		listings, parseErr = a.parseCards(html)
		if parseErr != nil {
			return nil, parseErr
		}
	}

	listings = sources.FilterByPrice(listings, req.MinPrice, req.MaxPrice)
	a.logger.WithField("count", len(listings)).Info("Rentals.ca search complete")
	return listings, nil
}

func (a *Adapter) citySlug(location string) string {
	key := strings.ToLower(strings.TrimSpace(location))
	if slug, ok := citySlugs[key]; ok {
		return slug
	}
	for city, slug := range citySlugs {
		if strings.Contains(key, city) || strings.Contains(city, key) {
			return slug
		}
	}
	slug := utils.Slugify(location)
	a.logger.WithFields(logrus.Fields{
		"location": location,
		"slug":     slug,
	}).Warn("Unknown city, using derived slug")
	return slug
}

func (a *Adapter) buildSearchURL(slug string, req models.SearchRequest) string {
	url := fmt.Sprintf("%s/%s", baseURL, slug)

	params := make([]string, 0, 2)
	if req.MinPrice != nil {
		params = append(params, fmt.Sprintf("price_min=%.0f", *req.MinPrice))
	}
	if req.MaxPrice != nil {
		params = append(params, fmt.Sprintf("price_max=%.0f", *req.MaxPrice))
	}
	if len(params) > 0 {
		url += "?" + strings.Join(params, "&")
	}
	return url
}

// tryAPI probes the endpoint shapes client-rendered listing apps commonly
// expose. Probe failures are expected and only logged at debug level.
func (a *Adapter) tryAPI(ctx context.Context, slug string) []models.Listing {
	endpoints := []string{
		fmt.Sprintf("%s/api/listings/%s", baseURL, slug),
		fmt.Sprintf("%s/api/search?city=%s", baseURL, slug),
	}

	for _, endpoint := range endpoints {
		a.logger.WithField("url", endpoint).Debug("Probing API endpoint")

		body, err := a.client.Get(ctx, endpoint)
		if err != nil {
			a.logger.WithError(err).Debug("API endpoint probe failed")
			continue
		}

		var data any
		if err := json.Unmarshal(body, &data); err != nil {
			continue
		}

		items := apiItems(data)
		if len(items) == 0 {
			continue
		}

		a.logger.WithField("url", endpoint).Info("Found working API endpoint")
		return a.fromAPIItems(items)
	}
	return nil
}

// apiItems digs the listing array out of the response shapes the probe can
// encounter: a bare array, or an object keyed listings/results, possibly
// nested under data.
func apiItems(data any) []any {
	if items, ok := data.([]any); ok {
		return items
	}

	obj, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range []string{"listings", "results"} {
		if items, ok := obj[key].([]any); ok {
			return items
		}
	}
	if nested, ok := obj["data"].(map[string]any); ok {
		for _, key := range []string{"listings", "results"} {
			if items, ok := nested[key].([]any); ok {
				return items
			}
		}
	}
	return nil
}

func (a *Adapter) fromAPIItems(items []any) []models.Listing {
	now := time.Now().UTC()
	listings := make([]models.Listing, 0, len(items))

	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		id := anyString(firstOf(item, "id", "listing_id"))
		title := anyString(firstOf(item, "title", "name"))
		if id == "" && title == "" {
			continue
		}

		listingURL := anyString(firstOf(item, "url", "link"))
		if strings.HasPrefix(listingURL, "/") {
			listingURL = baseURL + listingURL
		}
		if listingURL == "" {
			continue
		}

		l := models.Listing{
			Source:      SourceName,
			ExternalID:  id,
			Title:       title,
			Price:       sources.ParsePrice(firstOf(item, "price", "rent")),
			Location:    anyString(firstOf(item, "location", "address", "city")),
			URL:         listingURL,
			Description: anyString(item["description"]),
			ImageURL:    anyString(firstOf(item, "image", "photo")),
			Bedrooms:    anyNumber(firstOf(item, "bedrooms", "beds")),
			Bathrooms:   anyNumber(firstOf(item, "bathrooms", "baths")),
			SquareFeet:  anyInt(firstOf(item, "square_feet", "sqft")),
			ScrapedAt:   now,
		}
		if l.Title == "" {
			l.Title = buildTitle(l)
		}
		listings = append(listings, l)
	}
	return listings
}

// parseCards extracts listings from a rendered search page.
func (a *Adapter) parseCards(html string) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, sources.NewParseError(SourceName, "invalid rendered page HTML")
	}

	cards := doc.Find("div[class*='listing-card']")
	if cards.Length() == 0 {
		cards = doc.Find("div[data-listing]")
	}
	if cards.Length() == 0 {
		cards = doc.Find("article[class*='listing']")
	}
	a.logger.WithField("count", cards.Length()).Debug("Found listing cards")

	now := time.Now().UTC()
	var listings []models.Listing

	cards.Each(func(_ int, card *goquery.Selection) {
		id := firstAttr(card, "data-id", "data-listing-id", "id")
		title := strings.TrimSpace(card.Find("h2, h3, [class*='title']").First().Text())

		listingURL := ""
		if href, ok := card.Find("a[href]").First().Attr("href"); ok {
			if strings.HasPrefix(href, "/") {
				href = baseURL + href
			}
			listingURL = href
		}
		if listingURL == "" {
			return
		}

		img := card.Find("img").First()
		image := firstAttr(img, "src", "data-src")

		l := models.Listing{
			Source:     SourceName,
			ExternalID: id,
			Title:      title,
			Price:      sources.ParsePriceString(card.Find("[class*='price']").First().Text()),
			Location:   strings.TrimSpace(card.Find("[class*='location'], [class*='address']").First().Text()),
			URL:        listingURL,
			ImageURL:   image,
			Bedrooms:   textNumber(card.Find("[class*='bed']").First().Text()),
			Bathrooms:  textNumber(card.Find("[class*='bath']").First().Text()),
			ScrapedAt:  now,
		}
		if l.Title == "" {
			l.Title = buildTitle(l)
		}
		listings = append(listings, l)
	})

	return listings, nil
}

// buildTitle synthesizes a title for cards that do not carry one.
func buildTitle(l models.Listing) string {
	parts := make([]string, 0, 2)
	if l.Bedrooms != nil {
		parts = append(parts, fmt.Sprintf("%.0f Bedroom", *l.Bedrooms))
	}
	if l.Location != "" {
		parts = append(parts, "in "+l.Location)
	}
	if len(parts) == 0 {
		return "Rental Property"
	}
	return strings.Join(parts, " ")
}

func firstOf(m map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstAttr(s *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := s.Attr(name); ok && v != "" {
			return v
		}
	}
	return ""
}

func anyString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

func anyNumber(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		return textNumber(n)
	}
	return nil
}

func anyInt(v any) *int {
	if f := anyNumber(v); f != nil {
		i := int(*f)
		return &i
	}
	return nil
}

func textNumber(s string) *float64 {
	m := numberRe.FindString(s)
	if m == "" {
		return nil
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &f
}
