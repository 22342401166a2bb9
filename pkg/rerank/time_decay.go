package rerank

import (
	"math"
	"sort"
	"time"

	"github.com/tunogya/seqprep/pkg/store/milvus"
)

// WeightFunc maps the age of a hit in days to a weight
type WeightFunc func(ageDays float64) float64

// Exponential decays weights as exp(-lambda * age)
func Exponential(lambda float64) WeightFunc {
	return func(ageDays float64) float64 {
		return math.Exp(-lambda * ageDays)
	}
}

// Segments assigns a flat weight per age bucket
type Segments struct {
	RecentDays   float64 `yaml:"recent_days"`
	MediumDays   float64 `yaml:"medium_days"`
	RecentWeight float64 `yaml:"recent_weight"` // age <= RecentDays
	MediumWeight float64 `yaml:"medium_weight"` // RecentDays < age <= MediumDays
	OldWeight    float64 `yaml:"old_weight"`
}

// DefaultSegments favors the last month, then the last year
func DefaultSegments() Segments {
	return Segments{
		RecentDays:   30,
		MediumDays:   365,
		RecentWeight: 1.0,
		MediumWeight: 0.7,
		OldWeight:    0.4,
	}
}

// Weight implements WeightFunc
func (s Segments) Weight(ageDays float64) float64 {
	switch {
	case ageDays <= s.RecentDays:
		return s.RecentWeight
	case ageDays <= s.MediumDays:
		return s.MediumWeight
	default:
		return s.OldWeight
	}
}

// DefaultLambda halves a hit's weight after roughly 70 days
const DefaultLambda = 0.01

// RankedResult is a search hit with its reranked score
type RankedResult struct {
	milvus.SearchResult
	Similarity float64
	TimeWeight float64
	FinalScore float64
}

// Reranker reorders analog windows by similarity weighted by recency
type Reranker struct {
	weight WeightFunc
}

// NewReranker creates a reranker; a nil weight uses Exponential(DefaultLambda)
func NewReranker(weight WeightFunc) *Reranker {
	if weight == nil {
		weight = Exponential(DefaultLambda)
	}
	return &Reranker{weight: weight}
}

// Rerank scores each hit as similarity x weight(age), where age is measured
// from the hit's target time to ref and clamped at zero. Best first; ties
// keep search order.
func (r *Reranker) Rerank(results []milvus.SearchResult, ref time.Time) []RankedResult {
	ranked := make([]RankedResult, len(results))
	for i, hit := range results {
		age := math.Max(ref.Sub(hit.TEnd).Hours()/24, 0)
		w := r.weight(age)
		sim := hit.Similarity()
		ranked[i] = RankedResult{
			SearchResult: hit,
			Similarity:   sim,
			TimeWeight:   w,
			FinalScore:   sim * w,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})
	return ranked
}

// TopN returns the n best hits after reranking
func (r *Reranker) TopN(results []milvus.SearchResult, ref time.Time, n int) []RankedResult {
	ranked := r.Rerank(results, ref)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// FilterByMinScore keeps hits whose final score reaches minScore
func FilterByMinScore(results []RankedResult, minScore float64) []RankedResult {
	var kept []RankedResult
	for _, r := range results {
		if r.FinalScore >= minScore {
			kept = append(kept, r)
		}
	}
	return kept
}
