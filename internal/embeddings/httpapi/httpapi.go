// Package httpapi implements the "external-http" embedding provider:
// a generic JSON-over-HTTP client to a remote embedding service. The
// wire format is configuration-driven rather than vendor-specific —
// callers point it at whatever service they run, in whatever shape
// that service expects request/response JSON, via Config.RequestKey
// and the response's top-level "embedding" array.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sparkvibe-io/memorymesh/internal/embeddings"
)

const defaultTimeout = 5 * time.Second

// Provider calls a remote HTTP embedding endpoint. On any connect,
// timeout, or 5xx failure it reports unavailable rather than
// returning an error — the orchestrator degrades to keyword search.
type Provider struct {
	client    *http.Client
	url       string
	dimension int
	logger    *slog.Logger
}

var _ embeddings.Provider = (*Provider)(nil)

// New constructs the external-http provider. Recognized options:
// "url" (required), "timeout_seconds", "dimension".
func New(options map[string]string, logger *slog.Logger) (*Provider, error) {
	endpoint := options["url"]
	if endpoint == "" {
		return nil, fmt.Errorf("httpapi: url option is required")
	}
	if err := checkEndpointSafety(endpoint, logger); err != nil {
		return nil, err
	}

	timeout := defaultTimeout
	if v := options["timeout_seconds"]; v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}

	dim := 0
	if v := options["dimension"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			dim = n
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		client:    &http.Client{Timeout: timeout},
		url:       endpoint,
		dimension: dim,
		logger:    logger.With("component", "memorymesh.embeddings.httpapi"),
	}, nil
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, bool, error) {
	body, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, false, nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("embedding request failed, degrading to keyword mode", "error", err)
		return nil, false, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		p.logger.Warn("embedding service unavailable, degrading to keyword mode", "status", resp.StatusCode)
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("embedding request rejected, degrading to keyword mode", "status", resp.StatusCode)
		return nil, false, nil
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		p.logger.Warn("embedding response malformed, degrading to keyword mode", "error", err)
		return nil, false, nil
	}
	if len(decoded.Embedding) == 0 {
		return nil, false, nil
	}

	if p.dimension == 0 {
		p.dimension = len(decoded.Embedding)
	}
	return decoded.Embedding, true, nil
}

func (p *Provider) Dimension() int { return p.dimension }

func (p *Provider) Name() string { return "external-http" }

// checkEndpointSafety rejects URLs pointing at link-local or cloud
// metadata addresses and warns on plain HTTP to a non-localhost host.
func checkEndpointSafety(endpoint string, logger *slog.Logger) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("httpapi: invalid url: %w", err)
	}

	host := u.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || isCloudMetadataIP(ip) {
			return fmt.Errorf("httpapi: refusing to target link-local/metadata address %s", host)
		}
	}

	if u.Scheme == "http" && host != "localhost" && host != "127.0.0.1" && host != "::1" {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("embedding endpoint uses plain HTTP to a non-local host", "url", endpoint)
	}
	return nil
}

func isCloudMetadataIP(ip net.IP) bool {
	// 169.254.169.254 is the well-known AWS/GCP/Azure metadata address;
	// fd00:ec2::254 is its IPv6 counterpart on some clouds.
	return ip.Equal(net.IPv4(169, 254, 169, 254)) || ip.String() == "fd00:ec2::254"
}
