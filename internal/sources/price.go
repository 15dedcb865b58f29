package sources

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pvnkmnk/rentFalcon/pkg/models"
)

var priceRe = regexp.MustCompile(`\d+\.?\d*`)

// ParsePrice extracts a numeric price from whatever a listing site handed
// back: a JSON number, or a string like "$1,850.00/month".
func ParsePrice(v any) *float64 {
	switch p := v.(type) {
	case nil:
		return nil
	case float64:
		return &p
	case int:
		f := float64(p)
		return &f
	case string:
		return ParsePriceString(p)
	}
	return nil
}

// ParsePriceString extracts the first number from a price string, ignoring
// currency symbols and thousands separators.
func ParsePriceString(s string) *float64 {
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	m := priceRe.FindString(strings.TrimSpace(s))
	if m == "" {
		return nil
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &f
}

// FilterByPrice keeps listings inside the requested price range. With no
// bounds set, everything passes, including listings without a price. Once
// either bound is set, unpriced listings are dropped since they cannot be
// checked against it.
func FilterByPrice(listings []models.Listing, minPrice, maxPrice *float64) []models.Listing {
	if minPrice == nil && maxPrice == nil {
		return listings
	}

	filtered := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if l.Price == nil {
			continue
		}
		if minPrice != nil && *l.Price < *minPrice {
			continue
		}
		if maxPrice != nil && *l.Price > *maxPrice {
			continue
		}
		filtered = append(filtered, l)
	}
	return filtered
}
