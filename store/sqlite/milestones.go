package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/warp/absence-engine/engine"
	"github.com/warp/absence-engine/milestone"
)

// =============================================================================
// MILESTONE CONFIGS
// =============================================================================

const configColumns = `id, organisation_id, milestone_key, label, description, action_type, day_offset, is_active`

func (s *Store) ListDefaultMilestones(ctx context.Context) ([]milestone.MilestoneConfig, error) {
	return s.queryConfigs(ctx, `
		SELECT `+configColumns+` FROM milestone_configs
		WHERE organisation_id = '' ORDER BY day_offset, milestone_key`)
}

func (s *Store) ListOrgMilestones(ctx context.Context, orgID string) ([]milestone.MilestoneConfig, error) {
	return s.queryConfigs(ctx, `
		SELECT `+configColumns+` FROM milestone_configs
		WHERE organisation_id = ? ORDER BY day_offset, milestone_key`, orgID)
}

func (s *Store) GetOrgMilestone(ctx context.Context, orgID, milestoneKey string) (*milestone.MilestoneConfig, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+configColumns+` FROM milestone_configs
		WHERE organisation_id = ? AND milestone_key = ?`, orgID, milestoneKey)
	c, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get milestone config: %w", err)
	}
	return c, nil
}

func (s *Store) InsertMilestoneConfig(ctx context.Context, c *milestone.MilestoneConfig) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO milestone_configs
			(id, organisation_id, milestone_key, label, description, action_type, day_offset, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OrganisationID, c.MilestoneKey, c.Label, nullString(c.Description),
		nullString(c.ActionType), c.DayOffset, boolInt(c.IsActive))
	if err != nil {
		return fmt.Errorf("insert milestone config: %w", err)
	}
	return nil
}

func (s *Store) UpdateMilestoneConfig(ctx context.Context, c *milestone.MilestoneConfig) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE milestone_configs
		SET label = ?, description = ?, action_type = ?, day_offset = ?, is_active = ?
		WHERE id = ?`,
		c.Label, nullString(c.Description), nullString(c.ActionType), c.DayOffset, boolInt(c.IsActive), c.ID)
	if err != nil {
		return fmt.Errorf("update milestone config: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return engine.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteMilestoneConfig(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM milestone_configs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete milestone config: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return engine.ErrNotFound
	}
	return nil
}

func scanConfig(row rowScanner) (*milestone.MilestoneConfig, error) {
	var c milestone.MilestoneConfig
	var description, actionType sql.NullString
	var active int
	err := row.Scan(&c.ID, &c.OrganisationID, &c.MilestoneKey, &c.Label, &description, &actionType, &c.DayOffset, &active)
	if err != nil {
		return nil, err
	}
	c.Description = description.String
	c.ActionType = actionType.String
	c.IsActive = active == 1
	return &c, nil
}

func (s *Store) queryConfigs(ctx context.Context, query string, args ...any) ([]milestone.MilestoneConfig, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query milestone configs: %w", err)
	}
	defer rows.Close()

	var out []milestone.MilestoneConfig
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// =============================================================================
// MILESTONE ACTIONS
// =============================================================================

// BulkInsertActions writes a case's full action set. Called inside the case
// creation transaction so a partial set can never be observed.
func (s *Store) BulkInsertActions(ctx context.Context, actions []milestone.MilestoneAction) error {
	for _, a := range actions {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO milestone_actions
				(id, case_id, milestone_key, action_type, label, status, due_date,
				 completed_by, completed_at, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.CaseID, a.MilestoneKey, nullString(a.ActionType), nullString(a.Label),
			string(a.Status), a.DueDate.String(), nullString(a.CompletedBy), nullTime(a.CompletedAt),
			nullString(a.Notes), a.CreatedAt.Format(time.RFC3339Nano), a.UpdatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("insert milestone action %s: %w", a.MilestoneKey, err)
		}
	}
	return nil
}

const actionColumns = `id, case_id, milestone_key, action_type, label, status, due_date,
	completed_by, completed_at, notes, created_at, updated_at`

// GetAction scopes the lookup through the parent case's organisation, so a
// foreign action is indistinguishable from a missing one.
func (s *Store) GetAction(ctx context.Context, orgID, actionID string) (*milestone.MilestoneAction, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+actionColumns+` FROM milestone_actions
		WHERE id = ?
		  AND case_id IN (SELECT id FROM sickness_cases WHERE organisation_id = ?)`,
		actionID, orgID)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get milestone action: %w", err)
	}
	return a, nil
}

func (s *Store) UpdateAction(ctx context.Context, a *milestone.MilestoneAction) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE milestone_actions
		SET status = ?, completed_by = ?, completed_at = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		string(a.Status), nullString(a.CompletedBy), nullTime(a.CompletedAt),
		nullString(a.Notes), a.UpdatedAt.Format(time.RFC3339Nano), a.ID)
	if err != nil {
		return fmt.Errorf("update milestone action: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return engine.ErrNotFound
	}
	return nil
}

func (s *Store) ListActionsByCase(ctx context.Context, caseID string) ([]milestone.MilestoneAction, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+actionColumns+` FROM milestone_actions
		WHERE case_id = ? ORDER BY due_date, milestone_key`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list milestone actions: %w", err)
	}
	defer rows.Close()

	var out []milestone.MilestoneAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAction(row rowScanner) (*milestone.MilestoneAction, error) {
	var a milestone.MilestoneAction
	var actionType, label, completedBy, completedAt, notes sql.NullString
	var dueDate, createdAt, updatedAt string

	err := row.Scan(&a.ID, &a.CaseID, &a.MilestoneKey, &actionType, &label, &a.Status,
		&dueDate, &completedBy, &completedAt, &notes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a.ActionType = actionType.String
	a.Label = label.String
	a.CompletedBy = completedBy.String
	a.Notes = notes.String

	if a.DueDate, err = engine.ParseDate(dueDate); err != nil {
		return nil, fmt.Errorf("parse due date: %w", err)
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed at: %w", err)
		}
		a.CompletedAt = &t
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}
