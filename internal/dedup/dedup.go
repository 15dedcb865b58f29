// Package dedup collapses listings that describe the same physical rental
// posted on multiple sites. Duplicate detection is a symmetric pairwise
// predicate; groups are the connected components of the resulting graph, so
// duplication is transitive even when not every pair in a group matches
// directly.
package dedup

import (
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pvnkmnk/rentFalcon/pkg/models"
	"github.com/pvnkmnk/rentFalcon/pkg/utils"
)

const (
	// DefaultThreshold is the title similarity at or above which two
	// listings are considered the same posting.
	DefaultThreshold = 0.85

	// A weaker title match still counts when the locations agree strongly.
	titleWithLocationThreshold = 0.70
	locationThreshold          = 0.85

	// Price tolerance: 5% of the higher price, floored at $50. Listings
	// further apart than this are never duplicates.
	priceTolerancePct   = 0.05
	priceToleranceFloor = 50.0
)

// Deduplicator removes near-duplicate listings from an aggregated sequence.
type Deduplicator struct {
	threshold float64
	enabled   bool
	logger    *logrus.Entry
}

// New creates a Deduplicator with the given title similarity threshold.
func New(threshold float64, enabled bool) *Deduplicator {
	return &Deduplicator{
		threshold: threshold,
		enabled:   enabled,
		logger:    utils.GetLogger().WithField("component", "dedup"),
	}
}

// Run deduplicates the listings, returning the survivors in the input's
// order (each group is represented at its earliest member's position) and
// the number of listings removed. Disabled, it passes the input through.
func (d *Deduplicator) Run(listings []models.Listing) ([]models.Listing, int) {
	if !d.enabled || len(listings) < 2 {
		return listings, 0
	}

	uf := newUnionFind(len(listings))
	for i := 0; i < len(listings); i++ {
		for j := i + 1; j < len(listings); j++ {
			if d.isDuplicate(&listings[i], &listings[j]) {
				uf.union(i, j)
			}
		}
	}

	// For each component, keep the most complete member; ties go to the
	// earliest position.
	best := make(map[int]int)
	for i := range listings {
		root := uf.find(i)
		keep, seen := best[root]
		if !seen || listings[i].Completeness() > listings[keep].Completeness() {
			best[root] = i
		}
	}

	// Emit representatives at their group's earliest position.
	emitted := make(map[int]bool)
	out := make([]models.Listing, 0, len(best))
	for i := range listings {
		root := uf.find(i)
		if emitted[root] {
			continue
		}
		emitted[root] = true
		out = append(out, listings[best[root]])
	}

	removed := len(listings) - len(out)
	d.logger.WithFields(logrus.Fields{
		"input":   len(listings),
		"unique":  len(out),
		"removed": removed,
	}).Debug("Deduplication complete")
	return out, removed
}

// isDuplicate is the pairwise predicate. It is symmetric by construction:
// every step treats a and b identically, and Similarity orders its inputs
// canonically.
func (d *Deduplicator) isDuplicate(a, b *models.Listing) bool {
	// Same URL is always the same posting, even within one source.
	if a.URL != "" && a.URL == b.URL {
		return true
	}

	// Price gate: listings priced too far apart are never duplicates, no
	// matter how similar the text. Skipped when either price is unknown.
	if a.Price != nil && b.Price != nil {
		tolerance := math.Max(math.Max(*a.Price, *b.Price)*priceTolerancePct, priceToleranceFloor)
		if math.Abs(*a.Price-*b.Price) > tolerance {
			return false
		}
	}

	simTitle := Similarity(a.Title, b.Title)
	if simTitle >= d.threshold {
		return true
	}
	// The weaker title rule needs real locations on both sides: an unknown
	// location matching another unknown location means nothing.
	if simTitle >= titleWithLocationThreshold &&
		strings.TrimSpace(a.Location) != "" && strings.TrimSpace(b.Location) != "" {
		if Similarity(a.Location, b.Location) >= locationThreshold {
			return true
		}
	}
	return false
}

// unionFind is a disjoint-set forest with path compression and union by
// rank, used to turn pairwise matches into connected components.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(x, y int) {
	rx, ry := uf.find(x), uf.find(y)
	if rx == ry {
		return
	}
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
}
