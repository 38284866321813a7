// Package advisor produces supplier match suggestions for tenders.
//
// The shipped scorer is a deterministic stub: scores are derived from a hash
// of the tender and supplier IDs and the recommendations are canned strings.
// It exists so the API surface and its plumbing are real while the actual
// scoring model is developed elsewhere; do not treat its output as analysis.
package advisor

import (
	"context"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/tidwall/gjson"

	"github.com/tendera/backoffice-gateway/internal/remote"
)

// Match is one scored supplier suggestion for a tender.
type Match struct {
	SupplierID   string  `json:"supplierId"`
	SupplierName string  `json:"supplierName"`
	Score        float64 `json:"score"`
	Reason       string  `json:"reason"`
}

// Scorer suggests suppliers for a tender.
type Scorer interface {
	// TenderMatches returns supplier matches for tenderID, best first.
	TenderMatches(ctx context.Context, tenderID string) ([]Match, error)
}

// DefaultLimit caps the number of matches a stub scorer returns.
const DefaultLimit = 5

var cannedReasons = []string{
	"Completed similar contracts in this category",
	"Competitive pricing on recent comparable tenders",
	"High delivery reliability over the last 12 months",
	"Certified for the required product classes",
	"Short lead times for this item group",
}

// StubScorer is a placeholder Scorer. It fetches the supplier list from the
// upstream and assigns each supplier a stable pseudo-score, so repeated calls
// for the same tender return the same ranking.
type StubScorer struct {
	client remote.Client
	limit  int
}

// StubOption configures a StubScorer.
type StubOption func(*StubScorer)

// WithLimit caps the number of returned matches.
func WithLimit(n int) StubOption {
	return func(s *StubScorer) {
		if n > 0 {
			s.limit = n
		}
	}
}

// NewStubScorer creates the placeholder scorer over the upstream client.
func NewStubScorer(client remote.Client, opts ...StubOption) *StubScorer {
	s := &StubScorer{client: client, limit: DefaultLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TenderMatches implements Scorer with deterministic placeholder scores.
func (s *StubScorer) TenderMatches(ctx context.Context, tenderID string) ([]Match, error) {
	if tenderID == "" {
		return nil, fmt.Errorf("tender id cannot be empty")
	}

	data, err := s.client.Call(ctx, "suppliers", "query", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load suppliers: %w", err)
	}

	var matches []Match
	gjson.ParseBytes(data).ForEach(func(_, supplier gjson.Result) bool {
		id := supplier.Get("id").String()
		if id == "" {
			return true
		}
		score := stubScore(tenderID, id)
		matches = append(matches, Match{
			SupplierID:   id,
			SupplierName: supplier.Get("name").String(),
			Score:        score,
			Reason:       cannedReasons[int(score*1000)%len(cannedReasons)],
		})
		return true
	})

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].SupplierID < matches[j].SupplierID
	})

	if len(matches) > s.limit {
		matches = matches[:s.limit]
	}
	return matches, nil
}

// stubScore maps a (tender, supplier) pair to a stable value in [0.5, 1.0).
// The range is shifted up so the placeholder output looks like a shortlist
// rather than a verdict.
func stubScore(tenderID, supplierID string) float64 {
	h := xxhash.Sum64String(tenderID + "\x00" + supplierID)
	return 0.5 + float64(h%5000)/10000
}
