package drivers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/creastat/chat"
	"github.com/creastat/chat/transcript"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLiteStore implements transcript.Store on a local SQLite database.
// All turns are kept on disk; limits are applied when reading.
type SQLiteStore struct {
	db     *sql.DB
	limits transcript.Limits
}

// SQLiteDSNForFile builds a DSN for a database file with WAL and a busy timeout.
func SQLiteDSNForFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("sqlite transcript store: empty path")
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path), nil
}

// NewSQLiteStore opens the database and migrates the schema.
func NewSQLiteStore(dsn string, limits transcript.Limits) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite transcript store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite transcript store: open")
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, limits: limits}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			conv_id TEXT NOT NULL PRIMARY KEY,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS turns (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			conv_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content_json TEXT NOT NULL,
			token_count INTEGER NOT NULL DEFAULT 0,
			created_at_ms INTEGER NOT NULL,
			FOREIGN KEY (conv_id) REFERENCES conversations(conv_id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS turns_by_conv ON turns(conv_id, seq);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite transcript store: migrate")
		}
	}
	return nil
}

// Create implements transcript.Store.
func (s *SQLiteStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations(conv_id, created_at_ms) VALUES (?, ?)`,
		id, time.Now().UnixMilli())
	if err != nil {
		return "", errors.Wrap(err, "sqlite transcript store: create")
	}
	return id, nil
}

// Exists implements transcript.Store.
func (s *SQLiteStore) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM conversations WHERE conv_id = ?`, id).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "sqlite transcript store: exists")
	}
	return n > 0, nil
}

// Append implements transcript.Store.
func (s *SQLiteStore) Append(ctx context.Context, id string, turn chat.Turn) error {
	content, err := json.Marshal(turn.Content)
	if err != nil {
		return errors.Wrap(err, "sqlite transcript store: marshal content")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlite transcript store: begin")
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversations(conv_id, created_at_ms) VALUES (?, ?)`,
		id, now); err != nil {
		return errors.Wrap(err, "sqlite transcript store: ensure conversation")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO turns(conv_id, role, content_json, token_count, created_at_ms) VALUES (?, ?, ?, ?, ?)`,
		id, string(turn.Role), string(content), turn.TokenCount, now); err != nil {
		return errors.Wrap(err, "sqlite transcript store: insert turn")
	}
	return errors.Wrap(tx.Commit(), "sqlite transcript store: commit")
}

// Get implements transcript.Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) ([]chat.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content_json, token_count FROM turns WHERE conv_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite transcript store: query turns")
	}
	defer func() { _ = rows.Close() }()

	turns := []chat.Turn{}
	for rows.Next() {
		var (
			role        string
			contentJSON string
			t           chat.Turn
		)
		if err := rows.Scan(&role, &contentJSON, &t.TokenCount); err != nil {
			return nil, errors.Wrap(err, "sqlite transcript store: scan turn")
		}
		if err := json.Unmarshal([]byte(contentJSON), &t.Content); err != nil {
			return nil, errors.Wrap(err, "sqlite transcript store: unmarshal content")
		}
		t.Role = chat.Role(role)
		if !t.Role.Valid() {
			return nil, errors.Wrapf(chat.ErrUnknownRole, "sqlite transcript store: role %q", role)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite transcript store: iterate turns")
	}
	return s.limits.Apply(turns), nil
}

// Clear implements transcript.Store.
func (s *SQLiteStore) Clear(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE conv_id = ?`, id); err != nil {
		return errors.Wrap(err, "sqlite transcript store: clear")
	}
	return nil
}

// Close implements transcript.Store.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ transcript.Store = (*SQLiteStore)(nil)
