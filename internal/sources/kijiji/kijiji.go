// Package kijiji implements the Kijiji.ca listing source. Kijiji embeds its
// search results as a JSON-LD ItemList, so a single plain HTTP fetch plus a
// structured-data parse is enough.
package kijiji

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
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
	SourceName = "kijiji"

	// Apartments & condos category on kijiji.ca.
	baseURL     = "https://www.kijiji.ca/b-apartments-condos"
	maxListings = 25
)

// residenceTypes are the JSON-LD @type values that describe a rentable home.
var residenceTypes = map[string]bool{
	"SingleFamilyResidence": true,
	"Apartment":             true,
	"Residence":             true,
	"House":                 true,
}

// Adapter scrapes rental listings from Kijiji.ca.
type Adapter struct {
	client *fetch.Client
	logger *logrus.Entry
}

// New creates a Kijiji adapter with the given fetch options.
func New(opts fetch.Options) *Adapter {
	return &Adapter{
		client: fetch.NewClient(SourceName, opts),
		logger: utils.GetLogger().WithField("source", SourceName),
	}
}

func (a *Adapter) Identifier() string { return SourceName }

// Search fetches the Kijiji search page for the request and extracts its
// listings from the embedded JSON-LD.
func (a *Adapter) Search(ctx context.Context, req models.SearchRequest) ([]models.Listing, error) {
	url := a.buildSearchURL(req)
	a.logger.WithField("url", url).Debug("Searching Kijiji")

	body, err := a.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	listings, err := a.parseListings(body)
	if err != nil {
		return nil, err
	}

	listings = sources.FilterByPrice(listings, req.MinPrice, req.MaxPrice)
	a.logger.WithField("count", len(listings)).Info("Kijiji search complete")
	return listings, nil
}

// buildSearchURL produces a URL of the form
// /b-apartments-condos/{location}/k0c37?price={min}__{max}, where k0 means
// "all of the location" and c37 is the apartments-condos category.
func (a *Adapter) buildSearchURL(req models.SearchRequest) string {
	url := fmt.Sprintf("%s/%s/k0c37", baseURL, utils.Slugify(req.Location))

	if req.MinPrice != nil || req.MaxPrice != nil {
		minPart, maxPart := "", ""
		if req.MinPrice != nil {
			minPart = fmt.Sprintf("%.0f", *req.MinPrice)
		}
		if req.MaxPrice != nil {
			maxPart = fmt.Sprintf("%.0f", *req.MaxPrice)
		}
		url += fmt.Sprintf("?price=%s__%s", minPart, maxPart)
	}
	return url
}

// itemList mirrors the JSON-LD ItemList Kijiji embeds in its search pages.
// Fields whose shape varies across listings stay raw and are decoded
// leniently.
type itemList struct {
	Type            string `json:"@type"`
	ItemListElement []struct {
		Item struct {
			ID          string          `json:"@id"`
			Type        string          `json:"@type"`
			Name        string          `json:"name"`
			URL         string          `json:"url"`
			Description string          `json:"description"`
			Image       json.RawMessage `json:"image"`
			Address     json.RawMessage `json:"address"`
			Offers      json.RawMessage `json:"offers"`
		} `json:"item"`
	} `json:"itemListElement"`
}

func (a *Adapter) parseListings(body []byte) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, sources.NewParseError(SourceName, "invalid search page HTML")
	}

	script := doc.Find(`script[type="application/ld+json"]`).First()
	if script.Length() == 0 {
		return nil, sources.NewParseError(SourceName, "JSON-LD script tag not found")
	}

	var data itemList
	if err := json.Unmarshal([]byte(script.Text()), &data); err != nil {
		return nil, sources.NewParseError(SourceName, fmt.Sprintf("decode JSON-LD: %v", err))
	}
	if data.Type != "ItemList" {
		return nil, sources.NewParseError(SourceName, "JSON-LD data is not an ItemList")
	}

	now := time.Now().UTC()
	listings := make([]models.Listing, 0, len(data.ItemListElement))

	for _, entry := range data.ItemListElement {
		if len(listings) >= maxListings {
			break
		}
		item := entry.Item
		if !residenceTypes[item.Type] {
			continue
		}
		if item.Name == "" || item.URL == "" {
			continue
		}

		listings = append(listings, models.Listing{
			Source:      SourceName,
			ExternalID:  item.ID,
			Title:       item.Name,
			Price:       decodePrice(item.Offers),
			Location:    decodeAddress(item.Address),
			URL:         item.URL,
			Description: item.Description,
			ImageURL:    decodeImage(item.Image),
			ScrapedAt:   now,
		})
	}

	a.logger.WithField("count", len(listings)).Debug("Parsed JSON-LD listings")
	return listings, nil
}

// decodePrice handles offers as either a single Offer object or a list of
// them, with the price itself a number or a string.
func decodePrice(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}

	type offer struct {
		Type  string `json:"@type"`
		Price any    `json:"price"`
	}

	var single offer
	if err := json.Unmarshal(raw, &single); err == nil && single.Type == "Offer" {
		return sources.ParsePrice(single.Price)
	}

	var multiple []offer
	if err := json.Unmarshal(raw, &multiple); err == nil && len(multiple) > 0 {
		if multiple[0].Type == "Offer" {
			return sources.ParsePrice(multiple[0].Price)
		}
	}
	return nil
}

// decodeAddress handles address as either a plain string or a PostalAddress
// object, joining the present components.
func decodeAddress(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}

	var postal struct {
		StreetAddress   string `json:"streetAddress"`
		AddressLocality string `json:"addressLocality"`
		AddressRegion   string `json:"addressRegion"`
		PostalCode      string `json:"postalCode"`
	}
	if err := json.Unmarshal(raw, &postal); err != nil {
		return ""
	}

	parts := make([]string, 0, 4)
	for _, p := range []string{postal.StreetAddress, postal.AddressLocality, postal.AddressRegion, postal.PostalCode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// decodeImage handles image as a URL string, a list of URLs, or an
// ImageObject.
func decodeImage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}

	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.URL
	}
	return ""
}
