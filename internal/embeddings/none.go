package embeddings

import "context"

// NoneProvider always reports unavailable. It is the default in
// server-style deployments where no embedding model is configured.
type NoneProvider struct{}

// NewNone constructs a NoneProvider. It accepts no options.
func NewNone(map[string]string) (Provider, error) {
	return &NoneProvider{}, nil
}

func (p *NoneProvider) Embed(ctx context.Context, text string) ([]float32, bool, error) {
	return nil, false, nil
}

func (p *NoneProvider) Dimension() int { return 0 }

func (p *NoneProvider) Name() string { return "none" }
