package models

// SearchRequest describes one aggregation query. It exists only for the
// duration of a single run.
type SearchRequest struct {
	Location string   `json:"location" query:"location" validate:"required"`
	MinPrice *float64 `json:"min_price,omitempty" query:"min_price" validate:"omitempty,gte=0"`
	MaxPrice *float64 `json:"max_price,omitempty" query:"max_price" validate:"omitempty,gte=0"`

	// Extra carries adapter-specific options; adapters ignore keys they
	// do not recognize.
	Extra map[string]string `json:"extra,omitempty"`
}
