package memorymesh

import (
	"time"

	"github.com/sparkvibe-io/memorymesh/internal/classify"
	"github.com/sparkvibe-io/memorymesh/internal/store"
)

// Scope names which store a memory belongs to. It is a capability the
// orchestrator tags onto a Memory when returning it, not a column
// stored in the row itself — each row lives in exactly one store
// file.
type Scope string

const (
	ScopeProject Scope = Scope(classify.ScopeProject)
	ScopeGlobal  Scope = Scope(classify.ScopeGlobal)
)

// Category is one of the nine fixed semantic tags; each routes to a
// fixed Scope (see CategoryScope).
type Category string

const (
	CategoryPreference     Category = Category(classify.CategoryPreference)
	CategoryGuardrail      Category = Category(classify.CategoryGuardrail)
	CategoryMistake        Category = Category(classify.CategoryMistake)
	CategoryPersonality    Category = Category(classify.CategoryPersonality)
	CategoryQuestion       Category = Category(classify.CategoryQuestion)
	CategoryDecision       Category = Category(classify.CategoryDecision)
	CategoryPattern        Category = Category(classify.CategoryPattern)
	CategoryContext        Category = Category(classify.CategoryContext)
	CategorySessionSummary Category = Category(classify.CategorySessionSummary)
)

// CategoryScope returns the fixed scope a category routes to.
func CategoryScope(c Category) Scope {
	return Scope(classify.CategoryScope(classify.Category(c)))
}

// Memory is a durable record returned to callers. It is always a deep
// copy: mutating Metadata or Embedding never propagates back to
// storage.
type Memory struct {
	ID          string
	Text        string
	Metadata    map[string]any
	Embedding   []float32
	SessionID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	AccessCount uint64
	Importance  float64
	DecayRate   float64
	Scope       Scope
}

// fromStore builds a deep-copied public Memory from an internal store
// row, tagging it with the scope of the store it came from.
func fromStore(m store.Memory, scope Scope) Memory {
	var metadata map[string]any
	if m.Metadata != nil {
		metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			metadata[k] = v
		}
	}

	var embedding []float32
	if m.Embedding != nil {
		embedding = make([]float32, len(m.Embedding))
		copy(embedding, m.Embedding)
	}

	return Memory{
		ID:          m.ID,
		Text:        m.Text,
		Metadata:    metadata,
		Embedding:   embedding,
		SessionID:   m.SessionID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		AccessCount: m.AccessCount,
		Importance:  m.Importance,
		DecayRate:   m.DecayRate,
		Scope:       scope,
	}
}

// TimeRange bounds a Recall or Compact pass by CreatedAt.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// UpdateFields carries a partial Update. A nil pointer leaves the
// corresponding field untouched; ClearEmbedding explicitly drops an
// existing embedding.
type UpdateFields struct {
	Text           *string
	Importance     *float64
	DecayRate      *float64
	Metadata       map[string]any
	Embedding      []float32
	ClearEmbedding bool

	// UpdatedAt overrides the timestamp normally stamped at update
	// time, letting a caller backdate a row or leave it unchanged.
	UpdatedAt *time.Time
}

func (f UpdateFields) toStore() store.UpdateFields {
	return store.UpdateFields{
		Text:           f.Text,
		Importance:     f.Importance,
		DecayRate:      f.DecayRate,
		Metadata:       f.Metadata,
		Embedding:      f.Embedding,
		ClearEmbedding: f.ClearEmbedding,
		UpdatedAt:      f.UpdatedAt,
	}
}
