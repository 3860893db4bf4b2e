package sessionstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/haivivi/interviewer/pkg/interview"
)

// SQLite stores one row per session. The transcript is a JSON column.
type SQLite struct {
	db   *sql.DB
	opts options
}

// NewSQLite opens dsn and creates the schema if needed.
func NewSQLite(dsn string, opts ...Option) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: open database: %w", err)
	}
	// Each connection to an in-memory database is a separate database.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	s := &SQLite{db: db, opts: buildOptions(opts)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessionstore: migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS interview_sessions (
			id TEXT PRIMARY KEY,
			user_ref TEXT NOT NULL DEFAULT '',
			stage TEXT NOT NULL,
			status TEXT NOT NULL,
			transcript TEXT NOT NULL DEFAULT '[]',
			created_at INTEGER NOT NULL,
			completed_at INTEGER,
			duration_seconds INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interview_sessions_user_stage
			ON interview_sessions(user_ref, stage, status)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) CreateSession(ctx context.Context, stage interview.Stage, user string) (*interview.Session, error) {
	sess := &interview.Session{
		ID:        s.opts.newID(),
		User:      user,
		Stage:     stage,
		Status:    interview.StatusPending,
		CreatedAt: s.opts.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interview_sessions (id, user_ref, stage, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.User, string(sess.Stage), string(sess.Status), sess.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("sessionstore: insert session: %w", err)
	}
	return sess, nil
}

// UpdateSession reads, merges and writes the row in one transaction.
func (s *SQLite) UpdateSession(ctx context.Context, id string, u interview.Update) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sessionstore: begin: %w", err)
	}
	defer tx.Rollback()

	sess, err := scanSession(tx.QueryRowContext(ctx, selectSession+` WHERE id = ?`, id))
	if err != nil {
		return err
	}
	interview.ApplyUpdate(sess, u)

	transcript, err := json.Marshal(sess.Transcript)
	if err != nil {
		return fmt.Errorf("sessionstore: marshal transcript: %w", err)
	}
	var completed sql.NullInt64
	if !sess.CompletedAt.IsZero() {
		completed = sql.NullInt64{Int64: sess.CompletedAt.UnixNano(), Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE interview_sessions SET status = ?, transcript = ?, completed_at = ?, duration_seconds = ? WHERE id = ?`,
		string(sess.Status), string(transcript), completed, sess.DurationSeconds, id)
	if err != nil {
		return fmt.Errorf("sessionstore: update session: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) GetSession(ctx context.Context, id string) (*interview.Session, error) {
	return scanSession(s.db.QueryRowContext(ctx, selectSession+` WHERE id = ?`, id))
}

func (s *SQLite) ListSessions(ctx context.Context, f interview.Filter) ([]*interview.Session, error) {
	var (
		where []string
		args  []any
	)
	if f.User != "" {
		where = append(where, "user_ref = ?")
		args = append(args, f.User)
	}
	if f.Stage != "" {
		where = append(where, "stage = ?")
		args = append(args, string(f.Stage))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	query := selectSession
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: list sessions: %w", err)
	}
	defer rows.Close()

	var out []*interview.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

const selectSession = `SELECT id, user_ref, stage, status, transcript, created_at, completed_at, duration_seconds FROM interview_sessions`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*interview.Session, error) {
	var (
		sess       interview.Session
		stage      string
		status     string
		transcript string
		created    int64
		completed  sql.NullInt64
	)
	err := row.Scan(&sess.ID, &sess.User, &stage, &status, &transcript, &created, &completed, &sess.DurationSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interview.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sessionstore: scan session: %w", err)
	}
	sess.Stage = interview.Stage(stage)
	sess.Status = interview.Status(status)
	sess.CreatedAt = time.Unix(0, created).UTC()
	if completed.Valid {
		sess.CompletedAt = time.Unix(0, completed.Int64).UTC()
	}
	if err := json.Unmarshal([]byte(transcript), &sess.Transcript); err != nil {
		return nil, fmt.Errorf("sessionstore: decode transcript of %s: %w", sess.ID, err)
	}
	if len(sess.Transcript) == 0 {
		sess.Transcript = nil
	}
	return &sess, nil
}

var _ Store = (*SQLite)(nil)
