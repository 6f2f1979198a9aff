// Package relevance computes the composite recall score: a weighted
// blend of semantic similarity, recency, decayed importance, and
// access frequency, with an optional session-match boost. Every
// function here is pure — no shared state, safe to call from any
// number of goroutines.
package relevance

import (
	"math"
	"sort"
	"time"
)

// Weights controls the relative contribution of each scoring
// component. They need not sum to 1; the engine normalises by their
// sum.
type Weights struct {
	Semantic   float64
	Recency    float64
	Importance float64
	Frequency  float64
}

// DefaultWeights mirrors the engine's documented defaults.
var DefaultWeights = Weights{Semantic: 0.5, Recency: 0.2, Importance: 0.2, Frequency: 0.1}

const (
	// RecencyHorizonDays is D_recency in the recency component.
	RecencyHorizonDays = 30.0
	// FrequencyCap is C_max in the frequency component.
	FrequencyCap = 100.0
	// DefaultSessionBoost is the multiplicative bump applied to
	// candidates whose session_id matches the recall request's.
	DefaultSessionBoost = 1.25
)

// Candidate is the minimal set of fields the relevance engine needs
// to score a stored memory against a query.
type Candidate struct {
	ID          string
	Importance  float64
	DecayRate   float64
	AccessCount int64
	UpdatedAt   time.Time
	SessionID   string

	// Embedding is the candidate's stored vector, or nil if absent.
	Embedding []float32
}

// Scored pairs a candidate with its final composite score.
type Scored struct {
	Candidate Candidate
	Score     float64
}

// DecayedImportance applies time-decay to a stored importance value.
// DecayRate == 0 means pinned: the stored value passes through
// unchanged.
func DecayedImportance(storedImportance, decayRate float64, deltaDays float64) float64 {
	if decayRate == 0 {
		return storedImportance
	}
	return storedImportance * math.Exp(-decayRate*deltaDays)
}

// CosineSimilarity returns the cosine similarity of two vectors, or 0
// if they differ in length, are empty, or either is the zero vector.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Score computes the composite relevance score for one candidate.
// queryEmbedding may be nil (no embedding available); now is injected
// for testability.
func Score(c Candidate, queryEmbedding []float32, weights Weights, now time.Time) float64 {
	deltaDays := now.Sub(c.UpdatedAt).Hours() / 24

	semantic := 0.0
	if queryEmbedding != nil && c.Embedding != nil {
		semantic = (CosineSimilarity(queryEmbedding, c.Embedding) + 1) / 2
	}

	recency := math.Exp(-deltaDays / RecencyHorizonDays)
	importance := DecayedImportance(c.Importance, c.DecayRate, deltaDays)
	frequency := math.Min(float64(c.AccessCount)/FrequencyCap, 1.0)

	totalWeight := weights.Semantic + weights.Recency + weights.Importance + weights.Frequency
	if totalWeight <= 0 {
		totalWeight = 1
	}

	weighted := weights.Semantic*semantic +
		weights.Recency*recency +
		weights.Importance*importance +
		weights.Frequency*frequency

	return weighted / totalWeight
}

// Rank scores every candidate, applies the session boost and the
// min-relevance cutoff, sorts descending (tie-break: more recent
// UpdatedAt, then lexicographic id), and truncates to k. k <= 0 means
// unbounded.
func Rank(candidates []Candidate, queryEmbedding []float32, weights Weights, sessionID string, sessionBoost float64, minRelevance float64, k int, now time.Time) []Scored {
	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		s := Score(c, queryEmbedding, weights, now)
		if sessionID != "" && c.SessionID == sessionID {
			s *= sessionBoost
		}
		if s < minRelevance {
			continue
		}
		scored = append(scored, Scored{Candidate: c, Score: s})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if !scored[i].Candidate.UpdatedAt.Equal(scored[j].Candidate.UpdatedAt) {
			return scored[i].Candidate.UpdatedAt.After(scored[j].Candidate.UpdatedAt)
		}
		return scored[i].Candidate.ID < scored[j].Candidate.ID
	})

	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
