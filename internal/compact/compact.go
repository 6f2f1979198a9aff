// Package compact implements similarity-based deduplication: finding
// memories that contradict (or affirm) a new one, and merging pairs of
// near-duplicate memories into one. It uses cosine similarity over
// embeddings when available and falls back to Jaccard similarity over
// tokenised text otherwise, in the style of the teacher's sqlitevec
// cosine implementation blended with a hybrid lexical/semantic scorer.
package compact

import (
	"context"
	"strings"

	"github.com/sparkvibe-io/memorymesh/internal/merrors"
	"github.com/sparkvibe-io/memorymesh/internal/relevance"
	"github.com/sparkvibe-io/memorymesh/internal/store"
)

const (
	// DefaultContradictThreshold is the cosine similarity above which
	// a stored memory is considered a candidate contradiction.
	DefaultContradictThreshold = 0.75

	// DefaultMergeThreshold is the similarity above which a candidate
	// pair is merged during compaction.
	DefaultMergeThreshold = 0.85

	// ChunkSize bounds how many candidate pairs a single compaction
	// pass evaluates before checking for cancellation.
	ChunkSize = 256
)

// Contradiction pairs a stored memory with its similarity to a new one.
type Contradiction struct {
	Memory     store.Memory
	Similarity float64
}

// FindContradictions returns every memory in candidates whose
// similarity to (text, embedding) is at or above threshold, sorted by
// similarity descending. text is used for the Jaccard fallback when
// embedding is absent or a candidate has no embedding of its own.
func FindContradictions(text string, embedding []float32, candidates []store.Memory, threshold float64) []Contradiction {
	var found []Contradiction
	for _, c := range candidates {
		sim := similarity(text, embedding, c)
		if sim >= threshold {
			found = append(found, Contradiction{Memory: c, Similarity: sim})
		}
	}

	for i := 1; i < len(found); i++ {
		for j := i; j > 0 && found[j].Similarity > found[j-1].Similarity; j-- {
			found[j], found[j-1] = found[j-1], found[j]
		}
	}
	return found
}

func similarity(text string, embedding []float32, candidate store.Memory) float64 {
	if len(embedding) > 0 && len(candidate.Embedding) > 0 {
		return relevance.CosineSimilarity(embedding, candidate.Embedding)
	}
	return jaccard(tokenize(text), tokenize(candidate.Text))
}

func tokenize(text string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, field := range strings.Fields(strings.ToLower(text)) {
		tokens[field] = struct{}{}
	}
	return tokens
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Result summarizes one compaction pass.
type Result struct {
	MergedCount int
	DeletedIDs  []string
	KeptIDs     []string
}

// Compact scans candidates for pairs at or above threshold and merges
// each pair into the higher-importance memory, summing access counts
// and unioning metadata (kept memory's value wins on key conflicts).
// It is internally chunked: ctx is checked between chunks of
// ChunkSize candidate pairs so a caller can cancel a long pass.
//
// Compact does not itself talk to a Store: callers pass the candidate
// set and apply the returned deletions/updates, so the same merge
// logic serves both a real store and a dry run.
func Compact(ctx context.Context, candidates []store.Memory, threshold float64) (Result, []store.Memory, error) {
	merged := make(map[string]store.Memory, len(candidates))
	for _, c := range candidates {
		merged[c.ID] = c
	}
	deleted := map[string]bool{}

	var result Result

	pairsChecked := 0
	for i := 0; i < len(candidates); i++ {
		a := candidates[i]
		if deleted[a.ID] {
			continue
		}
		for j := i + 1; j < len(candidates); j++ {
			b := candidates[j]
			if deleted[b.ID] {
				continue
			}

			pairsChecked++
			if pairsChecked%ChunkSize == 0 {
				if err := ctx.Err(); err != nil {
					return result, snapshot(merged, deleted), merrors.New(merrors.Cancelled, "compact.Compact", "compaction cancelled after %d pairs: %s", pairsChecked, err)
				}
			}

			sim := similarity(a.Text, a.Embedding, b)
			if sim < threshold {
				continue
			}

			keep, drop := chooseKeep(merged[a.ID], merged[b.ID])
			combined := mergeInto(keep, drop)
			merged[keep.ID] = combined
			deleted[drop.ID] = true
			result.MergedCount++
			result.DeletedIDs = append(result.DeletedIDs, drop.ID)

			if keep.ID == a.ID {
				a = combined
				continue
			}
			// a itself was absorbed into b; it no longer exists as a
			// distinct candidate, so stop comparing it further.
			break
		}
	}

	for id := range merged {
		if !deleted[id] {
			result.KeptIDs = append(result.KeptIDs, id)
		}
	}

	return result, snapshot(merged, deleted), nil
}

func snapshot(merged map[string]store.Memory, deleted map[string]bool) []store.Memory {
	out := make([]store.Memory, 0, len(merged))
	for id, m := range merged {
		if !deleted[id] {
			out = append(out, m)
		}
	}
	return out
}

// chooseKeep picks the surviving memory: higher importance wins, ties
// broken by higher AccessCount, then more recent UpdatedAt.
func chooseKeep(a, b store.Memory) (keep, drop store.Memory) {
	if a.Importance != b.Importance {
		if a.Importance > b.Importance {
			return a, b
		}
		return b, a
	}
	if a.AccessCount != b.AccessCount {
		if a.AccessCount > b.AccessCount {
			return a, b
		}
		return b, a
	}
	if a.UpdatedAt.After(b.UpdatedAt) {
		return a, b
	}
	return b, a
}

func mergeInto(keep, drop store.Memory) store.Memory {
	keep.AccessCount += drop.AccessCount

	if keep.Metadata == nil && len(drop.Metadata) > 0 {
		keep.Metadata = map[string]any{}
	}
	for k, v := range drop.Metadata {
		if _, exists := keep.Metadata[k]; !exists {
			keep.Metadata[k] = v
		}
	}
	return keep
}
