package credential

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// dbTimeout bounds every statement. Stores are local, so anything slower
// than this is a stuck lock, not a slow query.
const dbTimeout = 5 * time.Second

const (
	sqlLoadCredential = `SELECT access_token, token_type, refresh_token, expiry, scopes
		FROM credentials WHERE name = ?`
	sqlUpsertCredential = `INSERT INTO credentials
		(name, access_token, token_type, refresh_token, expiry, scopes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			access_token = excluded.access_token,
			token_type = excluded.token_type,
			refresh_token = excluded.refresh_token,
			expiry = excluded.expiry,
			scopes = excluded.scopes,
			updated_at = excluded.updated_at`
	sqlExistsCredential = `SELECT 1 FROM credentials WHERE name = ?`
	sqlDeleteCredential = `DELETE FROM credentials WHERE name = ?`
	sqlLoadMeta         = `SELECT meta FROM credentials WHERE name = ?`
	sqlUpdateMeta       = `UPDATE credentials SET meta = ?, updated_at = ? WHERE name = ?`
)

// DB is a SQLite database holding one credential row per client identity.
type DB struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

// OpenDB opens (creating if needed) the credential database at path and
// applies pending migrations.
func OpenDB(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), DirPerms); err != nil {
		return nil, fmt.Errorf("credential: creating directory for %s: %w", path, err)
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("credential: opening database %s: %w", path, err)
	}

	// Sole-writer pattern: only one connection writes at a time.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := os.Chmod(path, FilePerms); err != nil {
		logger.Warn("could not restrict credential database permissions",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}

	logger.Debug("credential database ready", slog.String("path", path))

	return &DB{db: db, logger: logger, nowFunc: time.Now}, nil
}

// runMigrations applies all pending schema migrations using the goose v3
// Provider API (no global state).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("credential: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("credential: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("credential: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Slot returns the Store for one client identity.
func (d *DB) Slot(name string) *SQLiteStore {
	return &SQLiteStore{db: d, name: name}
}

// SQLiteStore is a Store backed by one row of the credentials table.
type SQLiteStore struct {
	db   *DB
	name string
}

// Load reads the credential row. Missing rows, query failures and malformed
// scope lists are all reported as absent.
func (s *SQLiteStore) Load() (*Credential, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	var (
		cred      Credential
		expiry    int64
		scopesRaw string
	)

	err := s.db.db.QueryRowContext(ctx, sqlLoadCredential, s.name).Scan(
		&cred.AccessToken, &cred.TokenType, &cred.RefreshToken, &expiry, &scopesRaw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}

	if err != nil {
		s.db.logger.Warn("ignoring unreadable credential row",
			slog.String("name", s.name),
			slog.String("error", err.Error()),
		)

		return nil, false
	}

	if err := json.Unmarshal([]byte(scopesRaw), &cred.Scopes); err != nil {
		s.db.logger.Warn("ignoring credential row with malformed scopes",
			slog.String("name", s.name),
			slog.String("error", err.Error()),
		)

		return nil, false
	}

	if expiry != 0 {
		cred.Expiry = time.Unix(0, expiry)
	}

	return &cred, true
}

// Save upserts the credential row. Metadata is left untouched.
func (s *SQLiteStore) Save(cred *Credential) error {
	if cred == nil {
		return errors.New("credential: refusing to save nil credential")
	}

	scopes := cred.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	scopesRaw, err := json.Marshal(scopes)
	if err != nil {
		return fmt.Errorf("credential: encoding scopes: %w", err)
	}

	var expiry int64
	if !cred.Expiry.IsZero() {
		expiry = cred.Expiry.UnixNano()
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("credential: beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, sqlUpsertCredential,
		s.name, cred.AccessToken, cred.TokenType, cred.RefreshToken,
		expiry, string(scopesRaw), s.db.nowFunc().UnixNano(),
	); err != nil {
		return fmt.Errorf("credential: saving %s: %w", s.name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("credential: committing %s: %w", s.name, err)
	}

	return nil
}

// Exists reports whether a row is present for this slot.
func (s *SQLiteStore) Exists() bool {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	var one int

	return s.db.db.QueryRowContext(ctx, sqlExistsCredential, s.name).Scan(&one) == nil
}

// Remove deletes the row. Missing row is not an error.
func (s *SQLiteStore) Remove() error {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	if _, err := s.db.db.ExecContext(ctx, sqlDeleteCredential, s.name); err != nil {
		return fmt.Errorf("credential: removing %s: %w", s.name, err)
	}

	return nil
}

// LoadMeta reads the cached metadata. Returns nil if the row does not exist.
func (s *SQLiteStore) LoadMeta() (map[string]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	var raw string

	err := s.db.db.QueryRowContext(ctx, sqlLoadMeta, s.name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("credential: reading metadata for %s: %w", s.name, err)
	}

	var meta map[string]string
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("credential: decoding metadata for %s: %w", s.name, err)
	}

	return meta, nil
}

// SaveMeta merges meta into the stored metadata (new keys win). The row must
// already exist.
func (s *SQLiteStore) SaveMeta(meta map[string]string) error {
	existing, err := s.LoadMeta()
	if err != nil {
		return err
	}

	if existing == nil && !s.Exists() {
		return fmt.Errorf("no credential stored for %s", s.name)
	}

	if existing == nil {
		existing = make(map[string]string, len(meta))
	}

	maps.Copy(existing, meta)

	raw, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("credential: encoding metadata: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	if _, err := s.db.db.ExecContext(ctx, sqlUpdateMeta, string(raw), s.db.nowFunc().UnixNano(), s.name); err != nil {
		return fmt.Errorf("credential: saving metadata for %s: %w", s.name, err)
	}

	return nil
}
