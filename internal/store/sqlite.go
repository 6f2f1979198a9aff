package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sparkvibe-io/memorymesh/internal/crypto"
	"github.com/sparkvibe-io/memorymesh/internal/merrors"
)

const (
	// MaxTextLength is the largest accepted Text length, in runes.
	MaxTextLength = 100_000

	// MaxMetadataBytes is the largest accepted serialised Metadata size.
	MaxMetadataBytes = 10_000

	// DefaultRowCap bounds the number of rows a single store file holds.
	DefaultRowCap = 100_000

	// DefaultScanLimit bounds ScanWithEmbeddings against OOM.
	DefaultScanLimit = 10_000
)

// Config configures a SQLite-backed Store.
type Config struct {
	// Path to the database file. Parent directories are created with
	// mode 0700; the file itself is set to mode 0600.
	Path string

	// Dimension is the expected embedding length. Zero means
	// "unconstrained until the first embedding is inserted", after
	// which it is pinned to that length.
	Dimension int

	// Cipher, if non-nil, encrypts Text and Metadata at rest.
	Cipher *crypto.Cipher

	// RowCap overrides DefaultRowCap when non-zero.
	RowCap int

	Logger *slog.Logger
}

// SQLiteStore is the sole Store implementation.
type SQLiteStore struct {
	db        *sql.DB
	dimension int
	cipher    *crypto.Cipher
	rowCap    int
	log       *slog.Logger
}

// Open prepares the containing directory, opens the database under
// WAL, runs migrations, and returns a ready Store.
func Open(cfg Config) (*SQLiteStore, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "memorymesh.store")

	path, err := resolvePath(cfg.Path)
	if err != nil {
		return nil, merrors.Wrap(merrors.IoError, "store.Open", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, merrors.Wrap(merrors.IoError, "store.Open", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, merrors.Wrap(merrors.IoError, "store.Open", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, merrors.Wrap(merrors.IoError, "store.Open", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, merrors.Wrap(merrors.IoError, "store.Open", err)
	}

	if err := os.Chmod(path, 0o600); err != nil && !os.IsNotExist(err) {
		db.Close()
		return nil, merrors.Wrap(merrors.IoError, "store.Open", err)
	}

	rowCap := cfg.RowCap
	if rowCap <= 0 {
		rowCap = DefaultRowCap
	}

	s := &SQLiteStore{
		db:        db,
		dimension: cfg.Dimension,
		cipher:    cfg.Cipher,
		rowCap:    rowCap,
		log:       logger,
	}

	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// resolvePath resolves path through Abs and, for an existing parent,
// EvalSymlinks, to defeat symlink-based path traversal. ":memory:" is
// passed through unchanged for in-process tests.
func resolvePath(path string) (string, error) {
	if path == "" || path == ":memory:" {
		return ":memory:", nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(abs)
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		abs = filepath.Join(resolved, filepath.Base(abs))
	}
	return abs, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)
	`); err != nil {
		return merrors.Wrap(merrors.IoError, "store.ensureSchema", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	migrations, err := loadMigrations()
	if err != nil {
		return merrors.Wrap(merrors.IoError, "store.ensureSchema", err)
	}

	known := make(map[string]bool, len(migrations))
	for _, m := range migrations {
		known[m.ID] = true
	}
	for id := range applied {
		if !known[id] {
			return merrors.New(merrors.SchemaMismatch, "store.ensureSchema", "database has migration %q this build does not recognize; it was likely written by a newer version", id)
		}
	}

	for _, m := range migrations {
		if applied[m.ID] {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return merrors.Wrap(merrors.IoError, "store.ensureSchema", err)
		}

		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			rollback(tx)
			return merrors.Wrap(merrors.IoError, "store.ensureSchema", fmt.Errorf("apply %s: %w", m.ID, err))
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (id, applied_at) VALUES (?, ?)`, m.ID, time.Now().UTC()); err != nil {
			rollback(tx)
			return merrors.Wrap(merrors.IoError, "store.ensureSchema", fmt.Errorf("record %s: %w", m.ID, err))
		}
		if err := tx.Commit(); err != nil {
			return merrors.Wrap(merrors.IoError, "store.ensureSchema", fmt.Errorf("commit %s: %w", m.ID, err))
		}
		s.log.Info("applied migration", "id", m.ID)
	}

	return nil
}

func (s *SQLiteStore) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM schema_migrations`)
	if err != nil {
		return nil, merrors.Wrap(merrors.IoError, "store.appliedMigrations", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, merrors.Wrap(merrors.IoError, "store.appliedMigrations", err)
		}
		applied[id] = true
	}
	return applied, rows.Err()
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		_ = err
	}
}

// Insert validates and writes m, assigning an ID if unset.
func (s *SQLiteStore) Insert(ctx context.Context, m Memory) (string, error) {
	if err := s.validate(&m); err != nil {
		return "", err
	}

	count, err := s.Count(ctx)
	if err != nil {
		return "", err
	}
	if count >= s.rowCap {
		return "", merrors.New(merrors.CapacityExceeded, "store.Insert", "store at row cap %d", s.rowCap)
	}

	if m.ID == "" {
		m.ID = strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}

	textField, metaField, err := s.encodeFields(m.Text, m.Metadata)
	if err != nil {
		return "", err
	}
	embeddingBlob := encodeEmbedding(m.Embedding)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (id, text, metadata_json, embedding_blob, session_id, created_at, updated_at, access_count, importance, decay_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, textField, metaField, embeddingBlob, nullableString(m.SessionID), m.CreatedAt, m.UpdatedAt, m.AccessCount, m.Importance, m.DecayRate)
	if err != nil {
		return "", merrors.Wrap(merrors.IoError, "store.Insert", err)
	}

	if len(m.Embedding) > 0 && s.dimension == 0 {
		s.dimension = len(m.Embedding)
	}

	return m.ID, nil
}

func (s *SQLiteStore) validate(m *Memory) error {
	if len([]rune(m.Text)) == 0 {
		return merrors.New(merrors.InvalidArgument, "store.Insert", "text must not be empty")
	}
	if len([]rune(m.Text)) > MaxTextLength {
		return merrors.New(merrors.InvalidArgument, "store.Insert", "text exceeds %d chars", MaxTextLength)
	}
	if m.Importance < 0 || m.Importance > 1 {
		return merrors.New(merrors.InvalidArgument, "store.Insert", "importance must be in [0,1]")
	}
	if m.DecayRate < 0 {
		return merrors.New(merrors.InvalidArgument, "store.Insert", "decay_rate must be >= 0")
	}
	if len(m.Metadata) > 0 {
		raw, err := json.Marshal(m.Metadata)
		if err != nil {
			return merrors.Wrap(merrors.InvalidArgument, "store.Insert", err)
		}
		if len(raw) > MaxMetadataBytes {
			return merrors.New(merrors.InvalidArgument, "store.Insert", "metadata exceeds %d bytes", MaxMetadataBytes)
		}
	}
	for _, f := range m.Embedding {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return merrors.New(merrors.InvalidArgument, "store.Insert", "embedding contains NaN/Infinity")
		}
	}
	if s.dimension != 0 && len(m.Embedding) != 0 && len(m.Embedding) != s.dimension {
		return merrors.New(merrors.InvalidArgument, "store.Insert", "embedding dimension %d does not match store dimension %d", len(m.Embedding), s.dimension)
	}
	return nil
}

func (s *SQLiteStore) encodeFields(text string, metadata map[string]any) (string, string, error) {
	metaJSON := "{}"
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return "", "", merrors.Wrap(merrors.InvalidArgument, "store.encodeFields", err)
		}
		metaJSON = string(raw)
	}

	if s.cipher == nil {
		return text, metaJSON, nil
	}

	encText, err := s.cipher.Encrypt([]byte(text))
	if err != nil {
		return "", "", err
	}
	encMeta, err := s.cipher.Encrypt([]byte(metaJSON))
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(encText), base64.StdEncoding.EncodeToString(encMeta), nil
}

func (s *SQLiteStore) decodeFields(textField, metaField string) (string, map[string]any, error) {
	text := textField
	metaJSON := metaField

	if s.cipher != nil {
		rawText, err := base64.StdEncoding.DecodeString(textField)
		if err != nil {
			return "", nil, merrors.Wrap(merrors.EncryptionError, "store.decodeFields", err)
		}
		plain, err := s.cipher.Decrypt(rawText)
		if err != nil {
			return "", nil, err
		}
		text = string(plain)

		rawMeta, err := base64.StdEncoding.DecodeString(metaField)
		if err != nil {
			return "", nil, merrors.Wrap(merrors.EncryptionError, "store.decodeFields", err)
		}
		plainMeta, err := s.cipher.Decrypt(rawMeta)
		if err != nil {
			return "", nil, err
		}
		metaJSON = string(plainMeta)
	}

	var metadata map[string]any
	if metaJSON != "" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &metadata); err != nil {
			return "", nil, merrors.Wrap(merrors.IoError, "store.decodeFields", err)
		}
	}
	return text, metadata, nil
}

// Get returns the memory with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Memory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, text, metadata_json, embedding_blob, session_id, created_at, updated_at, access_count, importance, decay_rate
		FROM memories WHERE id = ?
	`, id)
	return s.scanOne(row)
}

func (s *SQLiteStore) scanOne(row *sql.Row) (Memory, error) {
	var m Memory
	var textField, metaField string
	var embeddingBlob []byte
	var sessionID sql.NullString

	err := row.Scan(&m.ID, &textField, &metaField, &embeddingBlob, &sessionID, &m.CreatedAt, &m.UpdatedAt, &m.AccessCount, &m.Importance, &m.DecayRate)
	if errors.Is(err, sql.ErrNoRows) {
		return Memory{}, merrors.New(merrors.NotFound, "store.Get", "memory not found")
	}
	if err != nil {
		return Memory{}, merrors.Wrap(merrors.IoError, "store.Get", err)
	}

	text, metadata, err := s.decodeFields(textField, metaField)
	if err != nil {
		return Memory{}, err
	}
	m.Text = text
	m.Metadata = metadata
	m.SessionID = sessionID.String
	m.Embedding = decodeEmbedding(embeddingBlob)
	return m, nil
}

// Delete removes the memory with the given ID, reporting whether it
// existed.
func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, merrors.Wrap(merrors.IoError, "store.Delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, merrors.Wrap(merrors.IoError, "store.Delete", err)
	}
	return n > 0, nil
}

// DeleteAll removes every memory in the store, returning the count.
func (s *SQLiteStore) DeleteAll(ctx context.Context) (int, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories`); err != nil {
		return 0, merrors.Wrap(merrors.IoError, "store.DeleteAll", err)
	}
	return count, nil
}

// UpdateFields applies a partial update. ID and CreatedAt are immutable.
func (s *SQLiteStore) UpdateFields(ctx context.Context, id string, fields UpdateFields) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if fields.Text != nil {
		existing.Text = *fields.Text
	}
	if fields.Importance != nil {
		existing.Importance = *fields.Importance
	}
	if fields.DecayRate != nil {
		existing.DecayRate = *fields.DecayRate
	}
	if fields.Metadata != nil {
		existing.Metadata = fields.Metadata
	}
	if fields.ClearEmbedding {
		existing.Embedding = nil
	} else if fields.Embedding != nil {
		existing.Embedding = fields.Embedding
	}
	if fields.UpdatedAt != nil {
		existing.UpdatedAt = *fields.UpdatedAt
	} else {
		existing.UpdatedAt = time.Now().UTC()
	}

	if err := s.validate(&existing); err != nil {
		return err
	}

	textField, metaField, err := s.encodeFields(existing.Text, existing.Metadata)
	if err != nil {
		return err
	}
	embeddingBlob := encodeEmbedding(existing.Embedding)

	_, err = s.db.ExecContext(ctx, `
		UPDATE memories SET text = ?, metadata_json = ?, embedding_blob = ?, importance = ?, decay_rate = ?, updated_at = ?
		WHERE id = ?
	`, textField, metaField, embeddingBlob, existing.Importance, existing.DecayRate, existing.UpdatedAt, id)
	if err != nil {
		return merrors.Wrap(merrors.IoError, "store.UpdateFields", err)
	}
	return nil
}

// UpdateAccess bumps access_count and updated_at.
func (s *SQLiteStore) UpdateAccess(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET access_count = access_count + 1, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return merrors.Wrap(merrors.IoError, "store.UpdateAccess", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return merrors.Wrap(merrors.IoError, "store.UpdateAccess", err)
	}
	if n == 0 {
		return merrors.New(merrors.NotFound, "store.UpdateAccess", "memory not found")
	}
	return nil
}

// ScanWithEmbeddings returns rows that carry an embedding, newest
// first, bounded to DefaultScanLimit unless limit is smaller.
func (s *SQLiteStore) ScanWithEmbeddings(ctx context.Context, limit int) ([]Memory, error) {
	limit = boundedLimit(limit, DefaultScanLimit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, metadata_json, embedding_blob, session_id, created_at, updated_at, access_count, importance, decay_rate
		FROM memories WHERE embedding_blob IS NOT NULL ORDER BY updated_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, merrors.Wrap(merrors.IoError, "store.ScanWithEmbeddings", err)
	}
	defer rows.Close()
	return s.scanAll(rows)
}

// SearchByText performs a case-insensitive substring match over Text,
// escaping LIKE wildcards in substring, ranked by UpdatedAt DESC.
func (s *SQLiteStore) SearchByText(ctx context.Context, substring string, limit int) ([]Memory, error) {
	if s.cipher != nil {
		return s.searchByTextEncrypted(ctx, substring, limit)
	}

	limit = boundedLimit(limit, DefaultScanLimit)
	pattern := "%" + escapeLike(substring) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, metadata_json, embedding_blob, session_id, created_at, updated_at, access_count, importance, decay_rate
		FROM memories WHERE text LIKE ? ESCAPE '\' COLLATE NOCASE ORDER BY updated_at DESC LIMIT ?
	`, pattern, limit)
	if err != nil {
		return nil, merrors.Wrap(merrors.IoError, "store.SearchByText", err)
	}
	defer rows.Close()
	return s.scanAll(rows)
}

// searchByTextEncrypted falls back to decrypt-then-match since an
// encrypted text column cannot be searched by SQL LIKE.
func (s *SQLiteStore) searchByTextEncrypted(ctx context.Context, substring string, limit int) ([]Memory, error) {
	limit = boundedLimit(limit, DefaultScanLimit)
	all, err := s.List(ctx, s.rowCap, 0)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(substring)
	matched := make([]Memory, 0, limit)
	for _, m := range all {
		if strings.Contains(strings.ToLower(m.Text), needle) {
			matched = append(matched, m)
			if len(matched) >= limit {
				break
			}
		}
	}
	return matched, nil
}

// SearchFiltered pre-filters candidates before ranking. Metadata
// filter keys must match MetadataKeyPattern; a violation is rejected
// before any SQL is built.
func (s *SQLiteStore) SearchFiltered(ctx context.Context, filter Filter, limit int) ([]Memory, error) {
	limit = boundedLimit(limit, DefaultScanLimit)

	query := `SELECT id, text, metadata_json, embedding_blob, session_id, created_at, updated_at, access_count, importance, decay_rate FROM memories WHERE 1=1`
	var args []any

	if filter.MinImportance != nil {
		query += " AND importance >= ?"
		args = append(args, *filter.MinImportance)
	}
	if filter.CreatedRange != nil {
		query += " AND created_at >= ? AND created_at <= ?"
		args = append(args, filter.CreatedRange.From, filter.CreatedRange.To)
	}

	if len(filter.MetadataFilter) > 0 && s.cipher == nil {
		for key, value := range filter.MetadataFilter {
			if !MetadataKeyPattern.MatchString(key) {
				return nil, merrors.New(merrors.InvalidArgument, "store.SearchFiltered", "metadata filter key %q is not a valid identifier", key)
			}
			query += " AND json_extract(metadata_json, ?) = ?"
			args = append(args, "$."+key, value)
		}
	}

	query += " ORDER BY updated_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, merrors.Wrap(merrors.IoError, "store.SearchFiltered", err)
	}
	defer rows.Close()
	results, err := s.scanAll(rows)
	if err != nil {
		return nil, err
	}

	if len(filter.MetadataFilter) > 0 && s.cipher != nil {
		results = filterByMetadataInMemory(results, filter.MetadataFilter)
	}
	return results, nil
}

func filterByMetadataInMemory(memories []Memory, want map[string]string) []Memory {
	out := make([]Memory, 0, len(memories))
	for _, m := range memories {
		match := true
		for key, value := range want {
			v, ok := m.Metadata[key]
			if !ok || fmt.Sprintf("%v", v) != value {
				match = false
				break
			}
		}
		if match {
			out = append(out, m)
		}
	}
	return out
}

// Count returns the number of rows in the store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&count); err != nil {
		return 0, merrors.Wrap(merrors.IoError, "store.Count", err)
	}
	return count, nil
}

// TimeRange returns the oldest and newest CreatedAt in the store.
func (s *SQLiteStore) TimeRange(ctx context.Context) (time.Time, time.Time, error) {
	var oldest, newest time.Time
	err := s.db.QueryRowContext(ctx, `SELECT MIN(created_at), MAX(created_at) FROM memories`).Scan(&oldest, &newest)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, time.Time{}, merrors.Wrap(merrors.IoError, "store.TimeRange", err)
	}
	return oldest, newest, nil
}

// List returns memories ordered by updated_at desc, paginated.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]Memory, error) {
	limit = boundedLimit(limit, DefaultScanLimit)
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, metadata_json, embedding_blob, session_id, created_at, updated_at, access_count, importance, decay_rate
		FROM memories ORDER BY updated_at DESC LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, merrors.Wrap(merrors.IoError, "store.List", err)
	}
	defer rows.Close()
	return s.scanAll(rows)
}

func (s *SQLiteStore) scanAll(rows *sql.Rows) ([]Memory, error) {
	var out []Memory
	for rows.Next() {
		var m Memory
		var textField, metaField string
		var embeddingBlob []byte
		var sessionID sql.NullString

		if err := rows.Scan(&m.ID, &textField, &metaField, &embeddingBlob, &sessionID, &m.CreatedAt, &m.UpdatedAt, &m.AccessCount, &m.Importance, &m.DecayRate); err != nil {
			return nil, merrors.Wrap(merrors.IoError, "store.scanAll", err)
		}
		text, metadata, err := s.decodeFields(textField, metaField)
		if err != nil {
			return nil, err
		}
		m.Text = text
		m.Metadata = metadata
		m.SessionID = sessionID.String
		m.Embedding = decodeEmbedding(embeddingBlob)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Salt returns the store's persisted encryption salt, if one has been
// recorded. The salt itself is never encrypted: it is the input to
// key derivation, not data at rest.
func (s *SQLiteStore) Salt(ctx context.Context) ([]byte, bool, error) {
	var salt []byte
	err := s.db.QueryRowContext(ctx, `SELECT salt_blob FROM mesh_salt WHERE id = 1`).Scan(&salt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, merrors.Wrap(merrors.IoError, "store.Salt", err)
	}
	return salt, true, nil
}

// SetSalt persists salt as the store's single salt record. Calling it
// twice overwrites the prior value; callers are responsible for only
// doing so once per store file, on first encrypted open.
func (s *SQLiteStore) SetSalt(ctx context.Context, salt []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO mesh_salt (id, salt_blob) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET salt_blob = excluded.salt_blob`, salt)
	if err != nil {
		return merrors.Wrap(merrors.IoError, "store.SetSalt", err)
	}
	return nil
}

func boundedLimit(limit, cap int) int {
	if limit <= 0 || limit > cap {
		return cap
	}
	return limit
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func escapeLike(s string) string {
	r := make([]rune, 0, len(s))
	for _, c := range s {
		switch c {
		case '\\', '%', '_':
			r = append(r, '\\')
		}
		r = append(r, c)
	}
	return string(r)
}

func encodeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	data := make([]byte, len(embedding)*4)
	for i, f := range embedding {
		bits := math.Float32bits(f)
		data[i*4] = byte(bits)
		data[i*4+1] = byte(bits >> 8)
		data[i*4+2] = byte(bits >> 16)
		data[i*4+3] = byte(bits >> 24)
	}
	return data
}

func decodeEmbedding(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		embedding[i] = math.Float32frombits(bits)
	}
	return embedding
}
