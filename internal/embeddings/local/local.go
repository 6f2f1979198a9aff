// Package local implements an in-process, deterministic embedding
// provider. It never leaves the host process, so it is the preferred
// default when privacy matters more than semantic fidelity: no
// network call, no model weights to ship, identical output for
// identical input across restarts.
//
// The projection is a classic hashing trick: each lowercased token is
// hashed into one of Dimension buckets, contributing a signed unit to
// that bucket (sign taken from a second hash so opposite tokens don't
// always cancel), then the vector is L2-normalised. It is not a
// learned embedding and makes no claim to capture meaning beyond
// shared-vocabulary overlap, but it is enough to support cosine-based
// recall and compaction without an external dependency.
package local

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

var errNotDigits = errors.New("local: expected a positive integer")

const defaultDimension = 256

// Provider is the local hashing-trick embedder.
type Provider struct {
	dimension int
	mu        sync.Mutex
}

// New constructs a local Provider. Recognized options: "dimension"
// (parsed as an integer; falls back to 256 on empty or bad input).
func New(options map[string]string) (*Provider, error) {
	dim := defaultDimension
	if v, ok := options["dimension"]; ok && v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			dim = n
		}
	}
	return &Provider{dimension: dim}, nil
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errNotDigits
		}
		n = n*10 + int(r-'0')
	}
	if n <= 0 {
		return 0, errNotDigits
	}
	return n, nil
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, bool, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, false, nil
	}

	p.mu.Lock()
	dim := p.dimension
	p.mu.Unlock()

	vec := make([]float32, dim)
	for _, tok := range tokens {
		idx, sign := hashToken(tok, dim)
		vec[idx] += sign
	}
	normalize(vec)
	return vec, true, nil
}

func (p *Provider) Dimension() int { return p.dimension }

func (p *Provider) Name() string { return "local" }

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return fields
}

func hashToken(tok string, dim int) (int, float32) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tok))
	bucket := h.Sum32()

	g := fnv.New32a()
	_, _ = g.Write([]byte(tok))
	_, _ = g.Write([]byte{'#'})
	sign := g.Sum32()

	idx := int(bucket % uint32(dim))
	if sign%2 == 0 {
		return idx, 1.0
	}
	return idx, -1.0
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}
