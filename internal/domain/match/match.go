// Package match selects the catalog entry whose stored feature vector is
// closest to a query vector.
package match

import (
	"github.com/kailas-cloud/pictura/internal/domain/feature"
	"github.com/kailas-cloud/pictura/internal/domain/painting"
)

// Result is the outcome of a matching pass: either a match carrying the
// winning painting, or no match carrying the best score observed.
type Result struct {
	painting painting.Painting
	score    float64
	matched  bool
}

// NoMatch creates a rejected result with the closest score observed.
func NoMatch(score float64) Result { return Result{score: score} }

// Matched creates a positive result.
func Matched(p painting.Painting, score float64) Result {
	return Result{painting: p, score: score, matched: true}
}

// IsMatch reports whether a candidate cleared the threshold.
func (r Result) IsMatch() bool { return r.matched }

// Painting returns the matched painting. Zero value when IsMatch is false.
func (r Result) Painting() painting.Painting { return r.painting }

// Score returns the winning similarity, or the best rejected score.
func (r Result) Score() float64 { return r.score }

// Best scores every candidate that has a feature vector against query and
// returns the highest-scoring one when its score is strictly greater than threshold.
// Equal scores keep the earliest candidate. Candidates are read, never retained.
func Best(query feature.Vector, candidates []painting.Painting, threshold float64) Result {
	bestIdx := -1
	var bestScore float64

	for i := range candidates {
		if !candidates[i].HasFeatures() {
			continue
		}
		s := feature.Cosine(query, candidates[i].Features())
		if bestIdx < 0 || s > bestScore {
			bestIdx = i
			bestScore = s
		}
	}

	if bestIdx < 0 {
		return NoMatch(0)
	}
	if bestScore > threshold {
		return Matched(candidates[bestIdx], bestScore)
	}
	return NoMatch(bestScore)
}
