package memorymesh

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/sparkvibe-io/memorymesh/internal/classify"
	"github.com/sparkvibe-io/memorymesh/internal/compact"
	"github.com/sparkvibe-io/memorymesh/internal/merrors"
	"github.com/sparkvibe-io/memorymesh/internal/privacy"
	"github.com/sparkvibe-io/memorymesh/internal/relevance"
	"github.com/sparkvibe-io/memorymesh/internal/store"
)

// Conflict policies accepted by RememberOptions.OnConflict.
const (
	OnConflictKeepBoth = "keep_both"
	OnConflictUpdate   = "update"
	OnConflictSkip     = "skip"
)

// RememberOptions controls how Remember classifies, scores, guards,
// and routes a new memory.
type RememberOptions struct {
	Metadata       map[string]any
	Importance     *float64
	DecayRate      *float64
	Scope          Scope
	AutoImportance bool
	SessionID      string
	Category       Category
	AutoCategorize bool
	Pin            bool
	Redact         bool

	// OnConflict controls contradiction handling: "keep_both"
	// (default), "update", or "skip".
	OnConflict string
}

// Remember stores text as a new memory (or, under OnConflict="update",
// overwrites a contradicting one) and returns its id. An empty id
// with a nil error means OnConflict="skip" discarded a duplicate.
func (o *Orchestrator) Remember(ctx context.Context, text string, opts RememberOptions) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", merrors.New(merrors.InvalidArgument, "Remember", "text must not be empty")
	}

	category := opts.Category
	autoImportance := opts.AutoImportance
	if opts.AutoCategorize {
		category = Category(classify.AutoCategory(text))
		autoImportance = true
	}

	scope := opts.Scope
	if category != "" {
		scope = CategoryScope(category)
	} else if scope == "" {
		scope = Scope(classify.InferSubject(text))
	}
	if scope == "" {
		scope = o.defaultScope()
	}

	targetStore, err := o.storeFor(scope)
	if err != nil {
		return "", err
	}

	importance := 0.5
	decayRate := 0.1
	if opts.Importance != nil {
		importance = *opts.Importance
	}
	if opts.DecayRate != nil {
		decayRate = *opts.DecayRate
	}
	if autoImportance {
		importance = classify.Importance(text)
	}
	if opts.Pin {
		importance = 1.0
		decayRate = 0.0
	}

	metadata := make(map[string]any, len(opts.Metadata)+1)
	for k, v := range opts.Metadata {
		metadata[k] = v
	}
	if category != "" {
		metadata["category"] = string(category)
	}

	finalText := text
	if secrets := privacy.Detect(text); len(secrets) > 0 {
		if opts.Redact {
			finalText = privacy.Redact(text)
		} else {
			metadata["has_secrets_warning"] = true
			types := make([]string, len(secrets))
			for i, s := range secrets {
				types[i] = string(s)
			}
			metadata["detected_secret_types"] = types
		}
	}

	var embedding []float32
	if o.embeddingProvider != nil {
		vector, ok, embedErr := o.embeddingProvider.Embed(ctx, finalText)
		if embedErr == nil && ok {
			embedding = vector
		} else {
			o.metrics.RecordEmbeddingDegraded(o.embeddingProvider.Name())
			o.log.Warn("embedding unavailable, degrading to keyword mode", "provider", o.embeddingProvider.Name())
		}
	}

	onConflict := opts.OnConflict
	if onConflict == "" {
		onConflict = OnConflictKeepBoth
	}

	if len(embedding) > 0 {
		existing, scanErr := targetStore.ScanWithEmbeddings(ctx, 0)
		if scanErr != nil {
			return "", scanErr
		}
		contradictions := compact.FindContradictions(finalText, embedding, existing, compact.DefaultContradictThreshold)
		if len(contradictions) > 0 {
			switch onConflict {
			case OnConflictSkip:
				return "", nil
			case OnConflictUpdate:
				top := contradictions[0].Memory
				fields := store.UpdateFields{Text: &finalText, Importance: &importance, Embedding: embedding}
				if err := targetStore.UpdateFields(ctx, top.ID, fields); err != nil {
					return "", err
				}
				return top.ID, nil
			default:
				metadata["has_contradiction"] = true
			}
		}
	}

	m := store.Memory{
		Text:       finalText,
		Metadata:   metadata,
		Embedding:  embedding,
		SessionID:  opts.SessionID,
		Importance: importance,
		DecayRate:  decayRate,
	}

	start := time.Now()
	id, err := targetStore.Insert(ctx, m)
	o.metrics.RecordStoreOp("insert", time.Since(start).Seconds(), err)
	if err != nil {
		return "", err
	}

	o.maybeAutoCompact(scope)
	return id, nil
}

// RecallOptions narrows and ranks a Recall call. K nil means the
// documented default of 5; a pointer to 0 means "return nothing",
// matching the explicit boundary behaviour in the ranking contract.
type RecallOptions struct {
	K              *int
	MinRelevance   float64
	Scope          Scope
	SessionID      string
	Category       Category
	MinImportance  *float64
	TimeRange      *TimeRange
	MetadataFilter map[string]string
}

// Recall ranks stored memories against query by composite relevance
// and returns the top K. Returned memories are deep copies; each
// returned memory's AccessCount is bumped by one as a side effect.
func (o *Orchestrator) Recall(ctx context.Context, query string, opts RecallOptions) ([]Memory, error) {
	k := 5
	if opts.K != nil {
		k = *opts.K
	}
	if k == 0 {
		return []Memory{}, nil
	}

	stores := o.storesForScope(opts.Scope)
	if len(stores) == 0 {
		return nil, merrors.New(merrors.NoProjectStore, "Recall", "no project store configured")
	}

	var queryEmbedding []float32
	if o.embeddingProvider != nil {
		vector, ok, err := o.embeddingProvider.Embed(ctx, query)
		if err == nil && ok {
			queryEmbedding = vector
		} else {
			o.metrics.RecordEmbeddingDegraded(o.embeddingProvider.Name())
		}
	}

	hasFilters := opts.MinImportance != nil || opts.TimeRange != nil || len(opts.MetadataFilter) > 0

	type located struct {
		scope Scope
		mem   store.Memory
	}

	seen := make(map[string]bool)
	index := make(map[string]located)
	var relCandidates []relevance.Candidate

	for scope, st := range stores {
		var rows []store.Memory
		var err error

		if hasFilters {
			filter := store.Filter{MinImportance: opts.MinImportance, MetadataFilter: opts.MetadataFilter}
			if opts.TimeRange != nil {
				filter.CreatedRange = &store.TimeRange{From: opts.TimeRange.From, To: opts.TimeRange.To}
			}
			rows, err = st.SearchFiltered(ctx, filter, 0)
		} else {
			var vectorRows, textRows []store.Memory
			if queryEmbedding != nil {
				if vectorRows, err = st.ScanWithEmbeddings(ctx, 0); err != nil {
					return nil, err
				}
			}
			if textRows, err = searchByTokens(ctx, st, query); err != nil {
				return nil, err
			}
			rows = append(vectorRows, textRows...)
		}
		if err != nil {
			return nil, err
		}

		for _, m := range rows {
			if seen[m.ID] {
				continue
			}
			if opts.Category != "" {
				cat, _ := m.Metadata["category"].(string)
				if cat != string(opts.Category) {
					continue
				}
			}
			seen[m.ID] = true
			index[m.ID] = located{scope: scope, mem: m}
			relCandidates = append(relCandidates, relevance.Candidate{
				ID:          m.ID,
				Importance:  m.Importance,
				DecayRate:   m.DecayRate,
				AccessCount: int64(m.AccessCount),
				UpdatedAt:   m.UpdatedAt,
				SessionID:   m.SessionID,
				Embedding:   m.Embedding,
			})
		}
	}

	now := time.Now().UTC()
	ranked := relevance.Rank(relCandidates, queryEmbedding, o.weights, opts.SessionID, o.sessionBoost, opts.MinRelevance, k, now)

	out := make([]Memory, 0, len(ranked))
	for _, scored := range ranked {
		loc := index[scored.Candidate.ID]
		st := stores[loc.scope]
		if err := st.UpdateAccess(ctx, loc.mem.ID); err != nil && merrors.CodeOf(err) != merrors.NotFound {
			o.log.Warn("recall update-access failed", "id", loc.mem.ID, "error", err)
		}
		loc.mem.AccessCount++
		loc.mem.UpdatedAt = now
		out = append(out, fromStore(loc.mem, loc.scope))
	}

	o.metrics.RecordRecall(len(out))
	return out, nil
}

// searchByTokens runs SearchByText once per word of query and unions
// the results, deduplicated by ID. A LIKE scan of the raw query string
// only matches stored text containing it verbatim as a substring; a
// natural-language query rarely does, so the keyword fallback matches
// on shared words instead.
func searchByTokens(ctx context.Context, st store.Store, query string) ([]store.Memory, error) {
	seen := make(map[string]bool)
	var out []store.Memory
	for _, token := range queryTokens(query) {
		rows, err := st.SearchByText(ctx, token, 0)
		if err != nil {
			return nil, err
		}
		for _, m := range rows {
			if !seen[m.ID] {
				seen[m.ID] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// queryTokens splits query on whitespace and strips leading/trailing
// punctuation from each word, dropping anything left empty.
func queryTokens(query string) []string {
	fields := strings.Fields(query)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		trimmed := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if trimmed != "" {
			tokens = append(tokens, trimmed)
		}
	}
	return tokens
}

// Forget deletes the memory with id from whichever store contains it,
// checking the project store first. It reports whether a row existed.
func (o *Orchestrator) Forget(ctx context.Context, id string) (bool, error) {
	if o.projectStore != nil {
		ok, err := o.projectStore.Delete(ctx, id)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return o.globalStore.Delete(ctx, id)
}

// ForgetAll deletes every memory in the given scope. An empty scope
// defaults to project — wiping the global store always requires an
// explicit ScopeGlobal argument, a deliberate safety measure against
// accidentally erasing user-wide memories.
func (o *Orchestrator) ForgetAll(ctx context.Context, scope Scope) (int, error) {
	if scope == "" {
		scope = ScopeProject
	}
	st, err := o.storeFor(scope)
	if err != nil {
		return 0, err
	}
	return st.DeleteAll(ctx)
}

// Get returns the memory with id, checking the project store first.
func (o *Orchestrator) Get(ctx context.Context, id string) (Memory, error) {
	if o.projectStore != nil {
		m, err := o.projectStore.Get(ctx, id)
		if err == nil {
			return fromStore(m, ScopeProject), nil
		}
		if merrors.CodeOf(err) != merrors.NotFound {
			return Memory{}, err
		}
	}
	m, err := o.globalStore.Get(ctx, id)
	if err != nil {
		return Memory{}, err
	}
	return fromStore(m, ScopeGlobal), nil
}

// List returns up to limit memories from scope, most recently updated
// first, starting at offset. An empty scope lists the project store
// (when configured) followed by the global store.
func (o *Orchestrator) List(ctx context.Context, scope Scope, limit, offset int) ([]Memory, error) {
	var out []Memory
	for s, st := range o.storesForScope(scope) {
		rows, err := st.List(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		for _, m := range rows {
			out = append(out, fromStore(m, s))
		}
	}
	return out, nil
}

// Count returns the number of memories in scope. An empty scope sums
// both stores.
func (o *Orchestrator) Count(ctx context.Context, scope Scope) (int, error) {
	total := 0
	for _, st := range o.storesForScope(scope) {
		n, err := st.Count(ctx)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// GetTimeRange returns the oldest and newest CreatedAt across scope.
// An empty scope spans both stores.
func (o *Orchestrator) GetTimeRange(ctx context.Context, scope Scope) (time.Time, time.Time, error) {
	var oldest, newest time.Time
	for _, st := range o.storesForScope(scope) {
		from, to, err := st.TimeRange(ctx)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if from.IsZero() {
			continue
		}
		if oldest.IsZero() || from.Before(oldest) {
			oldest = from
		}
		if to.After(newest) {
			newest = to
		}
	}
	return oldest, newest, nil
}

// Update applies a partial update to the memory with id, checking the
// project store first.
func (o *Orchestrator) Update(ctx context.Context, id string, fields UpdateFields) error {
	if o.projectStore != nil {
		if _, err := o.projectStore.Get(ctx, id); err == nil {
			return o.projectStore.UpdateFields(ctx, id, fields.toStore())
		} else if merrors.CodeOf(err) != merrors.NotFound {
			return err
		}
	}
	return o.globalStore.UpdateFields(ctx, id, fields.toStore())
}

// GetSession returns every memory tagged with sessionID, across both
// stores, most recently updated first.
func (o *Orchestrator) GetSession(ctx context.Context, sessionID string) ([]Memory, error) {
	var out []Memory
	for scope, st := range o.storesForScope("") {
		rows, err := st.List(ctx, 0, 0)
		if err != nil {
			return nil, err
		}
		for _, m := range rows {
			if m.SessionID == sessionID {
				out = append(out, fromStore(m, scope))
			}
		}
	}
	return out, nil
}

// ListSessions returns every distinct non-empty session id across
// both stores.
func (o *Orchestrator) ListSessions(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, st := range o.storesForScope("") {
		rows, err := st.List(ctx, 0, 0)
		if err != nil {
			return nil, err
		}
		for _, m := range rows {
			if m.SessionID == "" || seen[m.SessionID] {
				continue
			}
			seen[m.SessionID] = true
			out = append(out, m.SessionID)
		}
	}
	return out, nil
}

// SessionStartResult is the bundle of context a caller typically wants
// at the start of a new session, grouped by category.
type SessionStartResult struct {
	UserProfile     []string
	Guardrails      []string
	CommonMistakes  []string
	CommonQuestions []string
	ProjectContext  []string
	LastSession     []string
	Warnings        []string
}

const sessionStartSectionLimit = 20

// SessionStart gathers the standing context a host application
// typically primes a new session with: the user's preferences and
// guardrails from the global store, and the current project's
// context and last session summary from the project store, when one
// is configured.
func (o *Orchestrator) SessionStart(ctx context.Context) (SessionStartResult, error) {
	var result SessionStartResult

	globalSection := func(category Category) ([]string, error) {
		return o.textsByCategory(ctx, o.globalStore, category)
	}

	var err error
	if result.UserProfile, err = globalSection(CategoryPreference); err != nil {
		return result, err
	}
	if result.Guardrails, err = globalSection(CategoryGuardrail); err != nil {
		return result, err
	}
	if result.CommonMistakes, err = globalSection(CategoryMistake); err != nil {
		return result, err
	}
	if result.CommonQuestions, err = globalSection(CategoryQuestion); err != nil {
		return result, err
	}

	if o.projectStore == nil {
		result.Warnings = append(result.Warnings, "no project store configured; project_context and last_session are unavailable")
		return result, nil
	}

	if result.ProjectContext, err = o.textsByCategory(ctx, o.projectStore, CategoryContext); err != nil {
		return result, err
	}
	if result.LastSession, err = o.textsByCategory(ctx, o.projectStore, CategorySessionSummary); err != nil {
		return result, err
	}
	return result, nil
}

func (o *Orchestrator) textsByCategory(ctx context.Context, st store.Store, category Category) ([]string, error) {
	name := string(category)
	rows, err := st.SearchFiltered(ctx, store.Filter{MetadataFilter: map[string]string{"category": name}}, sessionStartSectionLimit)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(rows))
	for i, m := range rows {
		texts[i] = m.Text
	}
	return texts, nil
}

// Compact merges similar-or-duplicate memories within scope: pairs
// above threshold (default 0.85) are merged, keeping the higher-
// importance memory. dryRun computes and returns the result without
// mutating the store.
func (o *Orchestrator) Compact(ctx context.Context, scope Scope, threshold float64, dryRun bool) (compact.Result, error) {
	if threshold <= 0 {
		threshold = compact.DefaultMergeThreshold
	}
	st, err := o.storeFor(scope)
	if err != nil {
		return compact.Result{}, err
	}

	candidates, err := st.List(ctx, 0, 0)
	if err != nil {
		return compact.Result{}, err
	}

	result, survivors, err := compact.Compact(ctx, candidates, threshold)
	if err != nil {
		return compact.Result{}, err
	}
	if dryRun {
		return result, nil
	}

	for _, id := range result.DeletedIDs {
		if _, err := st.Delete(ctx, id); err != nil {
			return result, err
		}
	}
	for _, survivor := range survivors {
		if err := st.UpdateFields(ctx, survivor.ID, store.UpdateFields{Metadata: survivor.Metadata}); err != nil {
			return result, err
		}
	}

	o.metrics.RecordCompaction("manual", result.MergedCount)
	return result, nil
}

// maybeAutoCompact increments the write counter and, once it reaches
// compactInterval, launches an asynchronous compaction pass over
// scope. A compactInterval of 0 disables auto-compaction entirely.
func (o *Orchestrator) maybeAutoCompact(scope Scope) {
	if o.compactInterval <= 0 {
		return
	}

	o.mu.Lock()
	o.writesSinceCompact++
	trigger := o.writesSinceCompact >= o.compactInterval
	if trigger {
		o.writesSinceCompact = 0
	}
	o.mu.Unlock()

	if !trigger {
		return
	}

	go func() {
		select {
		case <-o.ctx.Done():
			return
		default:
		}
		if _, err := o.Compact(o.ctx, scope, compact.DefaultMergeThreshold, false); err != nil {
			o.log.Warn("auto-compaction failed", "scope", scope, "error", err)
		} else {
			o.metrics.RecordCompaction("auto", 0)
		}
	}()
}

// storeFor resolves scope to a concrete Store, failing with
// NoProjectStore when project scope is requested but unconfigured.
func (o *Orchestrator) storeFor(scope Scope) (store.Store, error) {
	switch scope {
	case ScopeProject:
		if o.projectStore == nil {
			return nil, merrors.New(merrors.NoProjectStore, "memorymesh", "no project store configured")
		}
		return o.projectStore, nil
	case ScopeGlobal:
		return o.globalStore, nil
	default:
		return o.storeFor(o.defaultScope())
	}
}

// storesForScope returns the set of stores matching scope: both when
// scope is empty, otherwise just the requested one (if configured).
func (o *Orchestrator) storesForScope(scope Scope) map[Scope]store.Store {
	result := make(map[Scope]store.Store, 2)
	if scope == "" || scope == ScopeProject {
		if o.projectStore != nil {
			result[ScopeProject] = o.projectStore
		}
	}
	if scope == "" || scope == ScopeGlobal {
		result[ScopeGlobal] = o.globalStore
	}
	return result
}

// defaultScope implements the last step of the scope-resolution
// precedence: project when a project store exists, else global.
func (o *Orchestrator) defaultScope() Scope {
	if o.projectStore != nil {
		return ScopeProject
	}
	return ScopeGlobal
}
