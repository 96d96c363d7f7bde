// Package sqlite stores the audit trail in a local SQLite file, for the CLI
// and single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	id "regassist/pkg/domain"
	audit "regassist/pkg/platform/audit"
	"regassist/pkg/platform/sentinel"
	txcontext "regassist/pkg/platform/tx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS audit_log (
		id          INTEGER PRIMARY KEY,
		ts          INTEGER NOT NULL,
		action      TEXT NOT NULL,
		actor       TEXT NOT NULL,
		role        TEXT NOT NULL DEFAULT '',
		resource_id TEXT NOT NULL DEFAULT '',
		details     TEXT NOT NULL DEFAULT '{}',
		request_id  TEXT NOT NULL DEFAULT '',
		client      TEXT NOT NULL DEFAULT '',
		prev_hash   TEXT NOT NULL DEFAULT '',
		hash        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS audit_log_resource_idx ON audit_log (resource_id, id DESC)`,
	`CREATE TRIGGER IF NOT EXISTS audit_log_no_update BEFORE UPDATE ON audit_log
	BEGIN SELECT RAISE(ABORT, 'audit_log is append-only'); END`,
	`CREATE TRIGGER IF NOT EXISTS audit_log_no_delete BEFORE DELETE ON audit_log
	BEGIN SELECT RAISE(ABORT, 'audit_log is append-only'); END`,
}

const selectColumns = `id, ts, action, actor, role, resource_id, details, request_id, client, prev_hash, hash`

// Store implements audit.Store on SQLite.
type Store struct {
	db     *sql.DB
	path   string
	closed atomic.Bool
}

// Open opens (creating if needed) the ledger at path and applies the schema.
// ":memory:" opens a private in-memory ledger.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	// one writer; also keeps ":memory:" on a single shared connection
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating ledger: %w", err)
		}
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection. Later calls report
// sentinel.ErrUnavailable.
func (s *Store) Close() error {
	s.closed.Store(true)
	return s.db.Close()
}

func (s *Store) available() error {
	if s.closed.Load() {
		return fmt.Errorf("ledger %s is closed: %w", s.path, sentinel.ErrUnavailable)
	}
	return nil
}

// Path returns the ledger file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Append(ctx context.Context, item audit.Item) error {
	if err := s.available(); err != nil {
		return err
	}
	details, err := json.Marshal(item.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		exec := txcontext.ExecutorFor(ctx, s.db)
		var (
			headID   int64
			headHash string
		)
		err := exec.QueryRowContext(ctx, `SELECT id, hash FROM audit_log ORDER BY id DESC LIMIT 1`).Scan(&headID, &headHash)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read audit head: %w", err)
		}
		if uint64(headID)+1 != item.ID || headHash != item.PrevHash {
			return fmt.Errorf("audit item %d does not extend head %d: %w", item.ID, headID, sentinel.ErrConflict)
		}
		_, err = exec.ExecContext(ctx,
			`INSERT INTO audit_log (`+selectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(item.ID),
			item.Timestamp.UnixMicro(),
			string(item.Action),
			item.Actor,
			string(item.Role),
			item.ResourceID,
			string(details),
			item.RequestID,
			item.Client,
			item.PrevHash,
			item.Hash,
		)
		if err != nil {
			return fmt.Errorf("insert audit item: %w", err)
		}
		return nil
	})
}

func (s *Store) Last(ctx context.Context) (audit.Item, bool, error) {
	items, err := s.query(ctx, `SELECT `+selectColumns+` FROM audit_log ORDER BY id DESC LIMIT 1`)
	if err != nil {
		return audit.Item{}, false, err
	}
	if len(items) == 0 {
		return audit.Item{}, false, nil
	}
	return items[0], true, nil
}

func (s *Store) Page(ctx context.Context, f audit.Filter, beforeID uint64, size int) ([]audit.Item, error) {
	if beforeID > math.MaxInt64 {
		beforeID = math.MaxInt64
	}
	conds := []string{"id < ?"}
	args := []any{int64(beforeID)}
	if f.Actor != "" {
		conds, args = append(conds, "actor = ?"), append(args, f.Actor)
	}
	if f.Role != "" {
		conds, args = append(conds, "role = ?"), append(args, string(f.Role))
	}
	if f.ResourceID != "" {
		conds, args = append(conds, "resource_id = ?"), append(args, f.ResourceID)
	}
	if !f.Since.IsZero() {
		conds, args = append(conds, "ts >= ?"), append(args, f.Since.UnixMicro())
	}
	if !f.Until.IsZero() {
		conds, args = append(conds, "ts < ?"), append(args, f.Until.UnixMicro())
	}
	if len(f.Actions) > 0 {
		conds = append(conds, "action IN ("+strings.TrimSuffix(strings.Repeat("?, ", len(f.Actions)), ", ")+")")
		for _, a := range f.Actions {
			args = append(args, string(a))
		}
	}
	args = append(args, size)
	return s.query(ctx, `SELECT `+selectColumns+` FROM audit_log WHERE `+strings.Join(conds, " AND ")+
		` ORDER BY id DESC LIMIT ?`, args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]audit.Item, error) {
	if err := s.available(); err != nil {
		return nil, err
	}
	rows, err := txcontext.ExecutorFor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit items: %w", err)
	}
	defer rows.Close()

	var items []audit.Item
	for rows.Next() {
		var (
			item    audit.Item
			itemID  int64
			micros  int64
			action  string
			role    string
			details string
		)
		err := rows.Scan(&itemID, &micros, &action, &item.Actor, &role, &item.ResourceID,
			&details, &item.RequestID, &item.Client, &item.PrevHash, &item.Hash)
		if err != nil {
			return nil, fmt.Errorf("scan audit item: %w", err)
		}
		item.ID = uint64(itemID)
		item.Timestamp = time.UnixMicro(micros).UTC()
		item.Action = audit.Action(action)
		item.Role = id.Role(role)
		if err := json.Unmarshal([]byte(details), &item.Details); err != nil {
			return nil, fmt.Errorf("decode audit details: %w", err)
		}
		if len(item.Details) == 0 {
			item.Details = nil
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit items: %w", err)
	}
	return items, nil
}
