package coordinator

import (
	"sort"
	"time"

	"github.com/pvnkmnk/rentFalcon/pkg/models"
)

// assemble turns the dispatcher's per-source outcomes into the final
// result: aggregate in configured source order, dedup, sort by price, and
// compute statistics. Runs strictly after the join barrier, so nothing here
// races an adapter.
func (c *Coordinator) assemble(outcomes map[string]outcome, started time.Time) *models.SearchResult {
	aggregated := make([]models.Listing, 0)
	perSource := make(map[string]int)
	errors := make(map[string]string)

	// Configured order, not completion order, so two runs with identical
	// adapter outputs aggregate identically regardless of timing.
	for _, name := range c.enabled {
		o := outcomes[name]
		if o.err != nil {
			errors[name] = o.err.Error()
			continue
		}
		aggregated = append(aggregated, o.listings...)
		perSource[name] = len(o.listings)
	}

	unique, removed := c.dedup.Run(aggregated)
	sortByPrice(unique)

	return &models.SearchResult{
		Listings: unique,
		Stats: models.SearchStats{
			RawCount:          len(aggregated),
			UniqueCount:       len(unique),
			DuplicatesRemoved: removed,
			PerSourceCounts:   perSource,
			SucceededSources:  len(c.enabled) - len(errors),
			FailedSources:     len(errors),
			ExecutionTimeMs:   time.Since(started).Milliseconds(),
		},
		Errors:    errors,
		Timestamp: time.Now().UTC(),
	}
}

// sortByPrice orders listings by ascending price with unpriced listings
// last. The sort is stable so equal prices keep the deduplicator's order.
func sortByPrice(listings []models.Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		a, b := listings[i].Price, listings[j].Price
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
}
