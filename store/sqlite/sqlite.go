/*
Package sqlite provides the SQLite-backed implementation of every store
interface in the engine. In production the same patterns apply to
PostgreSQL; only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  sickness.TxStore     cases + transition log + bulk action insert
  milestone.Store      catalog rows + per-case actions
  milestone.CaseState  closed-case lookup for the reset guard
  trigger.Store        threshold rules + alerts
  trigger.CaseHistory  absence history for the evaluator
  engine.AuditLog      audit_log table

CONSISTENCY GUARDS (enforced here, not in application code):
  idx_milestone_key_org    at most one default row and one override row per
                           milestone key per organisation
  idx_alert_rule_case      at most one alert per (rule, case) pair; the
                           evaluator's existence check is a fast path only
  case_transitions         append-only: no UPDATE or DELETE statements exist
                           for it anywhere in this package

WAL MODE:
  Opened with WAL for better concurrency: readers don't block, single
  writer, better crash recovery.

MIGRATION:
  Schema is auto-migrated on New() and the system-default milestone catalog
  is seeded idempotently.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/absence-engine/milestone"
	"github.com/warp/absence-engine/sickness"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	q  querier
}

// New creates a store with the given database path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, q: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn against a transaction-bound view of the store. Nested calls
// join the enclosing transaction.
func (s *Store) WithTx(ctx context.Context, fn func(sickness.Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	txStore := &Store{db: s.db, q: tx}
	if err := fn(txStore); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sickness_cases (
		id TEXT PRIMARY KEY,
		organisation_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		reported_by TEXT,
		status TEXT NOT NULL,
		absence_type TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT,
		working_days_lost TEXT,
		is_long_term INTEGER NOT NULL DEFAULT 0,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cases_org_employee
		ON sickness_cases(organisation_id, employee_id, start_date);
	CREATE INDEX IF NOT EXISTS idx_cases_org_status
		ON sickness_cases(organisation_id, status);

	-- Append-only workflow log. Creation order is rowid order.
	CREATE TABLE IF NOT EXISTS case_transitions (
		id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL REFERENCES sickness_cases(id),
		from_status TEXT,
		to_status TEXT NOT NULL,
		action TEXT NOT NULL,
		performed_by TEXT,
		notes TEXT,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transitions_case
		ON case_transitions(case_id);

	CREATE TABLE IF NOT EXISTS milestone_configs (
		id TEXT PRIMARY KEY,
		organisation_id TEXT NOT NULL DEFAULT '',
		milestone_key TEXT NOT NULL,
		label TEXT NOT NULL,
		description TEXT,
		action_type TEXT,
		day_offset INTEGER NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	-- At most one default ('') and one override row per key per org.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_milestone_key_org
		ON milestone_configs(milestone_key, organisation_id);

	CREATE TABLE IF NOT EXISTS milestone_actions (
		id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL REFERENCES sickness_cases(id),
		milestone_key TEXT NOT NULL,
		action_type TEXT,
		label TEXT,
		status TEXT NOT NULL,
		due_date TEXT NOT NULL,
		completed_by TEXT,
		completed_at TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_actions_case
		ON milestone_actions(case_id, due_date);

	CREATE TABLE IF NOT EXISTS trigger_configs (
		id TEXT PRIMARY KEY,
		organisation_id TEXT NOT NULL,
		trigger_type TEXT NOT NULL,
		threshold_value TEXT NOT NULL,
		period_days INTEGER,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trigger_configs_org
		ON trigger_configs(organisation_id, is_active);

	CREATE TABLE IF NOT EXISTS trigger_alerts (
		id TEXT PRIMARY KEY,
		trigger_config_id TEXT NOT NULL REFERENCES trigger_configs(id),
		organisation_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		sickness_case_id TEXT NOT NULL REFERENCES sickness_cases(id),
		trigger_type TEXT NOT NULL,
		triggered_value TEXT NOT NULL,
		created_at TEXT NOT NULL,
		acknowledged_by TEXT,
		acknowledged_at TEXT
	);

	-- CRITICAL: authoritative alert deduplication. The evaluator's
	-- application-level existence check is an optimisation only.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_alert_rule_case
		ON trigger_alerts(trigger_config_id, sickness_case_id);

	CREATE INDEX IF NOT EXISTS idx_alerts_org_employee
		ON trigger_alerts(organisation_id, employee_id);

	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		actor_id TEXT,
		organisation_id TEXT,
		action TEXT NOT NULL,
		entity TEXT,
		entity_id TEXT,
		metadata_json TEXT,
		at TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.seedDefaults()
}

// seedDefaults inserts the system-default milestone catalog. Idempotent:
// existing rows (including rows an operator has deactivated) are left alone.
func (s *Store) seedDefaults() error {
	for _, c := range milestone.SystemDefaults() {
		_, err := s.db.Exec(`
			INSERT OR IGNORE INTO milestone_configs
				(id, organisation_id, milestone_key, label, description, action_type, day_offset, is_active)
			VALUES (?, '', ?, ?, ?, ?, ?, ?)`,
			"default-"+c.MilestoneKey, c.MilestoneKey, c.Label, c.Description, c.ActionType, c.DayOffset, boolInt(c.IsActive))
		if err != nil {
			return fmt.Errorf("seed milestone %s: %w", c.MilestoneKey, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
