// Package memorymesh is an embeddable persistent-memory engine for
// LLM applications. It accepts free-form text memories with optional
// metadata, stores them durably across a project-scoped and a
// global-scoped SQLite file, and retrieves them later by
// natural-language query ranked by a composite relevance function.
//
// A typical embedding:
//
//	mesh, err := memorymesh.New()
//	defer mesh.Close()
//	id, err := mesh.Remember(ctx, "the user prefers dark mode", memorymesh.RememberOptions{AutoCategorize: true})
//	hits, err := mesh.Recall(ctx, "what does the user prefer?", memorymesh.RecallOptions{})
package memorymesh

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/sparkvibe-io/memorymesh/internal/crypto"
	"github.com/sparkvibe-io/memorymesh/internal/embeddings"
	"github.com/sparkvibe-io/memorymesh/internal/embeddings/httpapi"
	"github.com/sparkvibe-io/memorymesh/internal/embeddings/local"
	"github.com/sparkvibe-io/memorymesh/internal/merrors"
	"github.com/sparkvibe-io/memorymesh/internal/relevance"
	"github.com/sparkvibe-io/memorymesh/internal/store"
	"github.com/sparkvibe-io/memorymesh/internal/telemetry"
)

// rootMarkers are the filesystem entries that mark a project root,
// checked in the order a walk-up search encounters them.
var rootMarkers = []string{".git", "pyproject.toml", "Cargo.toml", "go.mod", "package.json", ".hg", ".memorymesh"}

// Orchestrator is the public façade over the dual-store memory
// engine. A zero value is not usable; construct one via New or Open.
type Orchestrator struct {
	mu sync.Mutex

	projectStore *store.SQLiteStore
	globalStore  *store.SQLiteStore

	embeddingProvider embeddings.Provider
	weights           relevance.Weights
	sessionBoost      float64

	compactInterval    int
	writesSinceCompact int

	log     *slog.Logger
	metrics *telemetry.Metrics

	ctx    context.Context
	cancel context.CancelFunc
}

// New opens an Orchestrator using documented library-mode defaults: no
// project store configured beyond auto-detection, embedding provider
// "local" (the documented library-mode default — config files loaded
// via LoadConfig keep "none", the documented server-mode default), the
// default relevance weights, auto-compaction every 50 writes. This is
// the library-mode convenience entrypoint; call Open directly for
// explicit configuration.
func New(opts ...Option) (*Orchestrator, error) {
	cfg := DefaultConfig()
	cfg.Embeddings.Provider = "local"
	return Open(cfg, opts...)
}

// Open constructs an Orchestrator from cfg: resolves the project
// root, opens the global store (required) and, when a project root
// resolves, the project store, builds the configured embedding
// provider, and wires the relevance engine and telemetry. opts
// injects the optional logger and Prometheus registerer named in the
// orchestrator's construction-time dependencies.
func Open(cfg Config, opts ...Option) (*Orchestrator, error) {
	options := openOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "memorymesh")

	registry := embeddings.NewRegistry()
	registry.Register("none", embeddings.NewNone)
	registry.Register("local", func(options map[string]string) (embeddings.Provider, error) {
		return local.New(options)
	})
	registry.Register("external-http", func(options map[string]string) (embeddings.Provider, error) {
		return httpapi.New(options, logger)
	})

	providerName := cfg.Embeddings.Provider
	if providerName == "" {
		providerName = "none"
	}
	provider, err := registry.Build(providerName, stringifyOptions(cfg.Embeddings.Options))
	if err != nil {
		return nil, merrors.Wrap(merrors.InvalidArgument, "memorymesh.Open", err)
	}

	globalPath := cfg.GlobalPath
	if globalPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, merrors.Wrap(merrors.IoError, "memorymesh.Open", err)
		}
		globalPath = filepath.Join(home, ".memorymesh", "global.db")
	}
	globalStore, err := openStoreWithPassphrase(globalPath, cfg.EncryptionPassphrase, logger)
	if err != nil {
		return nil, merrors.Wrap(merrors.IoError, "memorymesh.Open", fmt.Errorf("open global store: %w", err))
	}

	var projectStore *store.SQLiteStore
	if root, tried, ok := resolveProjectRoot(cfg.ProjectPath); ok {
		projectPath := filepath.Join(root, ".memorymesh", "memories.db")
		projectStore, err = openStoreWithPassphrase(projectPath, cfg.EncryptionPassphrase, logger)
		if err != nil {
			globalStore.Close()
			return nil, merrors.Wrap(merrors.IoError, "memorymesh.Open", fmt.Errorf("open project store: %w", err))
		}
	} else {
		logger.Debug("no project root resolved; project-scope operations will fail", "tried", tried)
	}

	weights := relevance.Weights{
		Semantic:   cfg.Relevance.SemanticWeight,
		Recency:    cfg.Relevance.RecencyWeight,
		Importance: cfg.Relevance.ImportanceWeight,
		Frequency:  cfg.Relevance.FrequencyWeight,
	}
	if weights == (relevance.Weights{}) {
		weights = relevance.DefaultWeights
	}
	sessionBoost := cfg.Relevance.SessionBoost
	if sessionBoost == 0 {
		sessionBoost = relevance.DefaultSessionBoost
	}

	compactInterval := cfg.CompactInterval

	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		projectStore:      projectStore,
		globalStore:       globalStore,
		embeddingProvider: provider,
		weights:           weights,
		sessionBoost:      sessionBoost,
		compactInterval:   compactInterval,
		log:               logger,
		metrics:           telemetry.New(options.registry),
		ctx:               ctx,
		cancel:            cancel,
	}, nil
}

// Close flushes and closes both stores' database handles, cancels any
// in-flight auto-compaction, and releases the embedding provider.
// Failing to call Close does not corrupt data (the WAL journal
// commits on write) but may delay OS file-handle release.
func (o *Orchestrator) Close() error {
	o.cancel()

	var firstErr error
	if o.projectStore != nil {
		if err := o.projectStore.Close(); err != nil {
			firstErr = err
		}
	}
	if err := o.globalStore.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// openStoreWithPassphrase opens the store at path. When passphrase is
// non-empty, it first opens the file unencrypted to read or mint the
// persisted salt record, then reopens with a derived cipher — the
// salt itself is never encrypted, only the input to key derivation.
func openStoreWithPassphrase(path, passphrase string, logger *slog.Logger) (*store.SQLiteStore, error) {
	if passphrase == "" {
		return store.Open(store.Config{Path: path, Logger: logger})
	}

	bootstrap, err := store.Open(store.Config{Path: path, Logger: logger})
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	salt, ok, err := bootstrap.Salt(ctx)
	if err != nil {
		bootstrap.Close()
		return nil, err
	}
	if !ok {
		salt, err = crypto.NewSalt()
		if err != nil {
			bootstrap.Close()
			return nil, merrors.Wrap(merrors.EncryptionError, "memorymesh.Open", err)
		}
		if err := bootstrap.SetSalt(ctx, salt); err != nil {
			bootstrap.Close()
			return nil, err
		}
	}
	if err := bootstrap.Close(); err != nil {
		return nil, err
	}

	cipher := crypto.New(crypto.DeriveKey(passphrase, salt))
	return store.Open(store.Config{Path: path, Cipher: cipher, Logger: logger})
}

// resolveProjectRoot implements the detection order from §6:
// explicit path, MEMORYMESH_PROJECT_ROOT, walk-up for a root marker.
// ok is false when none of those resolve; tried lists every directory
// inspected, for diagnostics.
func resolveProjectRoot(explicit string) (root string, tried []string, ok bool) {
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return "", []string{explicit}, false
		}
		return abs, nil, true
	}
	if env := os.Getenv("MEMORYMESH_PROJECT_ROOT"); env != "" {
		abs, err := filepath.Abs(env)
		if err != nil {
			return "", []string{env}, false
		}
		return abs, nil, true
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", nil, false
	}

	dir := cwd
	for {
		tried = append(tried, dir)
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, tried, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", tried, false
		}
		dir = parent
	}
}

func stringifyOptions(options map[string]any) map[string]string {
	if len(options) == 0 {
		return nil
	}
	out := make(map[string]string, len(options))
	for k, v := range options {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
