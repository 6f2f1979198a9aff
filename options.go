package memorymesh

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures optional Orchestrator construction-time
// dependencies that don't belong in the YAML-serialisable Config:
// a structured logger and a Prometheus registerer.
type Option func(*openOptions)

type openOptions struct {
	logger   *slog.Logger
	registry prometheus.Registerer
}

// WithLogger injects a structured logger for diagnostic events
// (embedding degradation, auto-compaction, missing project store).
// Defaults to slog.Default() when omitted.
func WithLogger(logger *slog.Logger) Option {
	return func(o *openOptions) { o.logger = logger }
}

// WithRegisterer registers the orchestrator's operation counters
// against reg instead of Prometheus's global default registry. Pass
// prometheus.NewRegistry() for test isolation.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *openOptions) { o.registry = reg }
}
