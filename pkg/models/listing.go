package models

import "time"

// Listing represents a single rental posting retrieved from one source.
// Listings are created by a source adapter during a run and never mutated
// afterwards; the pipeline only filters and groups them.
type Listing struct {
	Source      string     `json:"source" validate:"required"`
	ExternalID  string     `json:"external_id,omitempty"`
	Title       string     `json:"title"`
	Price       *float64   `json:"price"` // monthly, nil when the source did not expose one
	Location    string     `json:"location"`
	URL         string     `json:"url" validate:"required"`
	Description string     `json:"description,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	Bedrooms    *float64   `json:"bedrooms,omitempty"`
	Bathrooms   *float64   `json:"bathrooms,omitempty"`
	SquareFeet  *int       `json:"square_feet,omitempty"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
	ScrapedAt   time.Time  `json:"scraped_at"`
}

// Completeness counts the optional fields this listing has populated. The
// deduplicator keeps the most complete listing of a duplicate group.
func (l *Listing) Completeness() int {
	n := 0
	if l.Bedrooms != nil {
		n++
	}
	if l.Bathrooms != nil {
		n++
	}
	if l.SquareFeet != nil {
		n++
	}
	if l.Description != "" {
		n++
	}
	if l.ImageURL != "" {
		n++
	}
	if l.PostedAt != nil {
		n++
	}
	return n
}
