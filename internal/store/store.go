// Package store implements the persistent, migration-versioned
// storage layer shared uniformly by the project and global memory
// stores. There is exactly one Store implementation: encryption, when
// configured, is composed underneath it rather than forked into a
// separate backend.
package store

import (
	"context"
	"regexp"
	"time"
)

// Memory is the durable record. Embedding is nil when no provider
// produced one.
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
}

// MetadataKeyPattern is the identifier shape a metadata filter key
// must match. Enforced at the filter boundary before any SQL is
// constructed from caller input.
var MetadataKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// UpdateFields carries a partial update. A nil pointer leaves the
// corresponding column untouched; ClearEmbedding explicitly drops an
// existing embedding (distinct from "leave as-is").
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

// TimeRange bounds a scan or filter by CreatedAt.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Filter narrows a SearchFiltered scan. All fields are optional; a nil
// or zero field means "no constraint on this dimension".
type Filter struct {
	MinImportance  *float64
	CreatedRange   *TimeRange
	MetadataFilter map[string]string
}

// Store is the uniform CRUD+scan contract backing both the project
// and global memory stores.
type Store interface {
	Insert(ctx context.Context, m Memory) (string, error)
	Get(ctx context.Context, id string) (Memory, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteAll(ctx context.Context) (int, error)
	UpdateFields(ctx context.Context, id string, fields UpdateFields) error
	UpdateAccess(ctx context.Context, id string) error
	ScanWithEmbeddings(ctx context.Context, limit int) ([]Memory, error)
	SearchByText(ctx context.Context, substring string, limit int) ([]Memory, error)
	SearchFiltered(ctx context.Context, filter Filter, limit int) ([]Memory, error)
	Count(ctx context.Context) (int, error)
	TimeRange(ctx context.Context) (oldest, newest time.Time, err error)
	List(ctx context.Context, limit, offset int) ([]Memory, error)
	Close() error
}
