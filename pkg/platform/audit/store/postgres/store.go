// Package postgres stores the audit trail in PostgreSQL.
//
// The table is guarded by a trigger that rejects UPDATE and DELETE, and
// appends run under a transaction-scoped advisory lock that compares the
// stored head before inserting, so several service replicas can share one
// chain.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	id "regassist/pkg/domain"
	audit "regassist/pkg/platform/audit"
	"regassist/pkg/platform/sentinel"
	txcontext "regassist/pkg/platform/tx"
)

const uniqueViolation = "23505"

// appendLockKey serializes appends across connections.
const appendLockKey int64 = 0x72656761756469 // "regaudi"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS audit_log (
		id          BIGINT PRIMARY KEY,
		ts          TIMESTAMPTZ NOT NULL,
		action      TEXT NOT NULL,
		actor       TEXT NOT NULL,
		role        TEXT NOT NULL DEFAULT '',
		resource_id TEXT NOT NULL DEFAULT '',
		details     JSONB NOT NULL DEFAULT '{}',
		request_id  TEXT NOT NULL DEFAULT '',
		client      TEXT NOT NULL DEFAULT '',
		prev_hash   TEXT NOT NULL DEFAULT '',
		hash        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS audit_log_resource_idx ON audit_log (resource_id, id DESC)`,
	`CREATE INDEX IF NOT EXISTS audit_log_actor_idx ON audit_log (actor, id DESC)`,
	`CREATE OR REPLACE FUNCTION audit_log_reject_mutation() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION 'audit_log is append-only';
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS audit_log_append_only ON audit_log`,
	`CREATE TRIGGER audit_log_append_only BEFORE UPDATE OR DELETE ON audit_log
		FOR EACH ROW EXECUTE FUNCTION audit_log_reject_mutation()`,
}

const selectColumns = `id, ts, action, actor, role, resource_id, details, request_id, client, prev_hash, hash`

// Store implements audit.Store on a database/sql handle opened with the
// pgx ("pgx") or lib/pq ("postgres") driver.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the audit table, its indexes and the append-only trigger.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate audit schema: %w", err)
		}
	}
	return nil
}

// Append inserts item if it extends the stored chain.
func (s *Store) Append(ctx context.Context, item audit.Item) error {
	details, err := json.Marshal(nonNil(item.Details))
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	err = txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		exec := txcontext.ExecutorFor(ctx, s.db)
		if _, err := exec.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
			return fmt.Errorf("lock audit head: %w", err)
		}

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

		_, err = exec.ExecContext(ctx, `
			INSERT INTO audit_log (`+selectColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			int64(item.ID),
			item.Timestamp.UTC(),
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
		if isUniqueViolation(err) {
			return fmt.Errorf("audit item %d already stored: %w", item.ID, sentinel.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("insert audit item: %w", err)
		}
		return nil
	})
	return unavailable(err)
}

func (s *Store) Last(ctx context.Context) (audit.Item, bool, error) {
	rows, err := txcontext.ExecutorFor(ctx, s.db).QueryContext(ctx,
		`SELECT `+selectColumns+` FROM audit_log ORDER BY id DESC LIMIT 1`)
	if err != nil {
		return audit.Item{}, false, fmt.Errorf("query audit head: %w", unavailable(err))
	}
	defer rows.Close()

	items, err := scanItems(rows)
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
	var (
		conds = []string{"id < $1"}
		args  = []any{int64(beforeID)}
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.Actor != "" {
		add("actor = ?", f.Actor)
	}
	if f.Role != "" {
		add("role = ?", string(f.Role))
	}
	if f.ResourceID != "" {
		add("resource_id = ?", f.ResourceID)
	}
	if !f.Since.IsZero() {
		add("ts >= ?", f.Since.UTC())
	}
	if !f.Until.IsZero() {
		add("ts < ?", f.Until.UTC())
	}
	if len(f.Actions) > 0 {
		placeholders := make([]string, len(f.Actions))
		for i, a := range f.Actions {
			args = append(args, string(a))
			placeholders[i] = "$" + strconv.Itoa(len(args))
		}
		conds = append(conds, "action IN ("+strings.Join(placeholders, ", ")+")")
	}
	args = append(args, size)
	query := `SELECT ` + selectColumns + ` FROM audit_log WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY id DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := txcontext.ExecutorFor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit items: %w", unavailable(err))
	}
	defer rows.Close()
	return scanItems(rows)
}

func scanItems(rows *sql.Rows) ([]audit.Item, error) {
	var items []audit.Item
	for rows.Next() {
		var (
			item    audit.Item
			itemID  int64
			ts      time.Time
			action  string
			role    string
			details []byte
		)
		err := rows.Scan(&itemID, &ts, &action, &item.Actor, &role, &item.ResourceID,
			&details, &item.RequestID, &item.Client, &item.PrevHash, &item.Hash)
		if err != nil {
			return nil, fmt.Errorf("scan audit item: %w", err)
		}
		item.ID = uint64(itemID)
		item.Timestamp = ts.UTC()
		item.Action = audit.Action(action)
		item.Role = id.Role(role)
		if err := json.Unmarshal(details, &item.Details); err != nil {
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

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// unavailable marks connection-level failures with sentinel.ErrUnavailable.
func unavailable(err error) error {
	if err == nil {
		return nil
	}
	var (
		connErr *pgconn.ConnectError
		netErr  net.Error
	)
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.As(err, &connErr) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
