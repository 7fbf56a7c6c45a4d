package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"github.com/warp/absence-engine/engine"
	"github.com/warp/absence-engine/trigger"
)

// =============================================================================
// TRIGGER CONFIGS
// =============================================================================

const triggerConfigColumns = `id, organisation_id, trigger_type, threshold_value, period_days, is_active, created_at, updated_at`

func (s *Store) ListTriggerConfigs(ctx context.Context, orgID string) ([]trigger.TriggerConfig, error) {
	return s.queryTriggerConfigs(ctx, `
		SELECT `+triggerConfigColumns+` FROM trigger_configs
		WHERE organisation_id = ? ORDER BY created_at, id`, orgID)
}

func (s *Store) ListActiveTriggerConfigs(ctx context.Context, orgID string) ([]trigger.TriggerConfig, error) {
	return s.queryTriggerConfigs(ctx, `
		SELECT `+triggerConfigColumns+` FROM trigger_configs
		WHERE organisation_id = ? AND is_active = 1 ORDER BY created_at, id`, orgID)
}

func (s *Store) GetTriggerConfig(ctx context.Context, orgID, configID string) (*trigger.TriggerConfig, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+triggerConfigColumns+` FROM trigger_configs
		WHERE id = ? AND organisation_id = ?`, configID, orgID)
	c, err := scanTriggerConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trigger config: %w", err)
	}
	return c, nil
}

func (s *Store) InsertTriggerConfig(ctx context.Context, c *trigger.TriggerConfig) error {
	var period sql.NullInt64
	if c.PeriodDays != nil {
		period = sql.NullInt64{Int64: int64(*c.PeriodDays), Valid: true}
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO trigger_configs
			(id, organisation_id, trigger_type, threshold_value, period_days, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OrganisationID, string(c.TriggerType), c.ThresholdValue.String(), period,
		boolInt(c.IsActive), c.CreatedAt.Format(time.RFC3339Nano), c.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert trigger config: %w", err)
	}
	return nil
}

func (s *Store) UpdateTriggerConfig(ctx context.Context, c *trigger.TriggerConfig) error {
	var period sql.NullInt64
	if c.PeriodDays != nil {
		period = sql.NullInt64{Int64: int64(*c.PeriodDays), Valid: true}
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE trigger_configs
		SET trigger_type = ?, threshold_value = ?, period_days = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		string(c.TriggerType), c.ThresholdValue.String(), period, boolInt(c.IsActive),
		c.UpdatedAt.Format(time.RFC3339Nano), c.ID)
	if err != nil {
		return fmt.Errorf("update trigger config: %w", err)
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

func scanTriggerConfig(row rowScanner) (*trigger.TriggerConfig, error) {
	var c trigger.TriggerConfig
	var threshold, createdAt, updatedAt string
	var period sql.NullInt64
	var active int

	err := row.Scan(&c.ID, &c.OrganisationID, &c.TriggerType, &threshold, &period, &active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if c.ThresholdValue, err = decimal.NewFromString(threshold); err != nil {
		return nil, fmt.Errorf("parse threshold: %w", err)
	}
	if period.Valid {
		p := int(period.Int64)
		c.PeriodDays = &p
	}
	c.IsActive = active == 1
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) queryTriggerConfigs(ctx context.Context, query string, args ...any) ([]trigger.TriggerConfig, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trigger configs: %w", err)
	}
	defer rows.Close()

	var out []trigger.TriggerConfig
	for rows.Next() {
		c, err := scanTriggerConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// =============================================================================
// TRIGGER ALERTS
// =============================================================================

func (s *Store) AlertExists(ctx context.Context, configID, caseID string) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM trigger_alerts
		WHERE trigger_config_id = ? AND sickness_case_id = ?`, configID, caseID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check alert existence: %w", err)
	}
	return n > 0, nil
}

// InsertAlert relies on idx_alert_rule_case as the authoritative dedup
// guard: a constraint rejection surfaces as engine.ErrAlertExists.
func (s *Store) InsertAlert(ctx context.Context, a *trigger.TriggerAlert) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO trigger_alerts
			(id, trigger_config_id, organisation_id, employee_id, sickness_case_id,
			 trigger_type, triggered_value, created_at, acknowledged_by, acknowledged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TriggerConfigID, a.OrganisationID, a.EmployeeID, a.SicknessCaseID,
		string(a.TriggerType), a.TriggeredValue.String(), a.CreatedAt.Format(time.RFC3339Nano),
		nullString(a.AcknowledgedBy), nullTime(a.AcknowledgedAt))
	if isUniqueConstraintError(err) {
		return engine.ErrAlertExists
	}
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

const alertColumns = `id, trigger_config_id, organisation_id, employee_id, sickness_case_id,
	trigger_type, triggered_value, created_at, acknowledged_by, acknowledged_at`

func (s *Store) GetAlert(ctx context.Context, orgID, alertID string) (*trigger.TriggerAlert, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+alertColumns+` FROM trigger_alerts
		WHERE id = ? AND organisation_id = ?`, alertID, orgID)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

func (s *Store) ListAlerts(ctx context.Context, orgID string, filter trigger.AlertFilter) ([]trigger.TriggerAlert, error) {
	builder := sq.Select("id", "trigger_config_id", "organisation_id", "employee_id", "sickness_case_id",
		"trigger_type", "triggered_value", "created_at", "acknowledged_by", "acknowledged_at").
		From("trigger_alerts").
		Where(sq.Eq{"organisation_id": orgID}).
		OrderBy("created_at", "id")
	if filter.EmployeeID != "" {
		builder = builder.Where(sq.Eq{"employee_id": filter.EmployeeID})
	}
	if filter.Acknowledged != nil {
		if *filter.Acknowledged {
			builder = builder.Where(sq.NotEq{"acknowledged_at": nil})
		} else {
			builder = builder.Where(sq.Eq{"acknowledged_at": nil})
		}
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build alert query: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []trigger.TriggerAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) StampAcknowledgement(ctx context.Context, alertID, userID string, at time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE trigger_alerts SET acknowledged_by = ?, acknowledged_at = ? WHERE id = ?`,
		userID, at.Format(time.RFC3339Nano), alertID)
	if err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
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

func scanAlert(row rowScanner) (*trigger.TriggerAlert, error) {
	var a trigger.TriggerAlert
	var value, createdAt string
	var ackBy, ackAt sql.NullString

	err := row.Scan(&a.ID, &a.TriggerConfigID, &a.OrganisationID, &a.EmployeeID, &a.SicknessCaseID,
		&a.TriggerType, &value, &createdAt, &ackBy, &ackAt)
	if err != nil {
		return nil, err
	}

	if a.TriggeredValue, err = decimal.NewFromString(value); err != nil {
		return nil, fmt.Errorf("parse triggered value: %w", err)
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	a.AcknowledgedBy = ackBy.String
	if ackAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, ackAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse acknowledged at: %w", err)
		}
		a.AcknowledgedAt = &t
	}
	return &a, nil
}
