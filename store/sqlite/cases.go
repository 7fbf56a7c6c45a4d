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
	"github.com/warp/absence-engine/sickness"
)

// =============================================================================
// SICKNESS CASES
// =============================================================================

func (s *Store) InsertCase(ctx context.Context, c *sickness.SicknessCase) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sickness_cases
			(id, organisation_id, employee_id, reported_by, status, absence_type,
			 start_date, end_date, working_days_lost, is_long_term, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OrganisationID, c.EmployeeID, nullString(c.ReportedBy), string(c.Status), nullString(c.AbsenceType),
		c.StartDate.String(), nullDate(c.EndDate), nullDecimal(c.WorkingDaysLost), boolInt(c.IsLongTerm),
		nullString(c.Notes), c.CreatedAt.Format(time.RFC3339Nano), c.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

const caseColumns = `id, organisation_id, employee_id, reported_by, status, absence_type,
	start_date, end_date, working_days_lost, is_long_term, notes, created_at, updated_at`

func (s *Store) GetCase(ctx context.Context, orgID, caseID string) (*sickness.SicknessCase, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+caseColumns+` FROM sickness_cases
		WHERE id = ? AND organisation_id = ?`, caseID, orgID)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	return c, nil
}

func (s *Store) ListCasesByEmployee(ctx context.Context, orgID, employeeID string) ([]sickness.SicknessCase, error) {
	return s.queryCases(ctx, `
		SELECT `+caseColumns+` FROM sickness_cases
		WHERE organisation_id = ? AND employee_id = ?
		ORDER BY start_date, id`, orgID, employeeID)
}

func (s *Store) ListCases(ctx context.Context, orgID string, filter sickness.CaseFilter) ([]sickness.SicknessCase, error) {
	builder := sq.Select("id", "organisation_id", "employee_id", "reported_by", "status", "absence_type",
		"start_date", "end_date", "working_days_lost", "is_long_term", "notes", "created_at", "updated_at").
		From("sickness_cases").
		Where(sq.Eq{"organisation_id": orgID}).
		OrderBy("start_date", "id")
	if filter.EmployeeID != "" {
		builder = builder.Where(sq.Eq{"employee_id": filter.EmployeeID})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": string(filter.Status)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build case query: %w", err)
	}
	return s.queryCases(ctx, query, args...)
}

// UpdateCaseStatus is a conditional update: the WHERE clause re-validates
// the expected current status inside the same unit of work, so two
// concurrent transitions cannot both win.
func (s *Store) UpdateCaseStatus(ctx context.Context, caseID string, from, to sickness.CaseStatus) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE sickness_cases SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), time.Now().Format(time.RFC3339Nano), caseID, string(from))
	if err != nil {
		return false, fmt.Errorf("update case status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) UpdateCaseDates(ctx context.Context, c *sickness.SicknessCase) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE sickness_cases
		SET start_date = ?, end_date = ?, working_days_lost = ?, is_long_term = ?, updated_at = ?
		WHERE id = ?`,
		c.StartDate.String(), nullDate(c.EndDate), nullDecimal(c.WorkingDaysLost),
		boolInt(c.IsLongTerm), c.UpdatedAt.Format(time.RFC3339Nano), c.ID)
	if err != nil {
		return fmt.Errorf("update case dates: %w", err)
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

func (s *Store) SetLongTerm(ctx context.Context, caseID string, longTerm bool) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE sickness_cases SET is_long_term = ?, updated_at = ? WHERE id = ?`,
		boolInt(longTerm), time.Now().Format(time.RFC3339Nano), caseID)
	if err != nil {
		return fmt.Errorf("set long term: %w", err)
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

// IsCaseClosed answers the milestone reset guard without org scoping: the
// action was already resolved through an org-scoped path.
func (s *Store) IsCaseClosed(ctx context.Context, caseID string) (bool, error) {
	var status string
	err := s.q.QueryRowContext(ctx,
		`SELECT status FROM sickness_cases WHERE id = ?`, caseID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, engine.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return sickness.CaseStatus(status) == sickness.StatusClosed, nil
}

// =============================================================================
// TRANSITION LOG (append-only)
// =============================================================================

func (s *Store) AppendTransition(ctx context.Context, t sickness.CaseTransition) error {
	var from sql.NullString
	if t.FromStatus != nil {
		from = nullString(string(*t.FromStatus))
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO case_transitions (id, case_id, from_status, to_status, action, performed_by, notes, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.CaseID, from, string(t.ToStatus), string(t.Action),
		nullString(t.PerformedBy), nullString(t.Notes), t.At.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append transition: %w", err)
	}
	return nil
}

func (s *Store) ListTransitions(ctx context.Context, caseID string) ([]sickness.CaseTransition, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, case_id, from_status, to_status, action, performed_by, notes, at
		FROM case_transitions WHERE case_id = ? ORDER BY rowid`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []sickness.CaseTransition
	for rows.Next() {
		var t sickness.CaseTransition
		var from, performedBy, notes sql.NullString
		var at string
		if err := rows.Scan(&t.ID, &t.CaseID, &from, &t.ToStatus, &t.Action, &performedBy, &notes, &at); err != nil {
			return nil, err
		}
		if from.Valid {
			status := sickness.CaseStatus(from.String)
			t.FromStatus = &status
		}
		t.PerformedBy = performedBy.String
		t.Notes = notes.String
		t.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse transition time: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// =============================================================================
// SCANNING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*sickness.SicknessCase, error) {
	var c sickness.SicknessCase
	var reportedBy, absenceType, endDate, daysLost, notes sql.NullString
	var longTerm int
	var startDate, createdAt, updatedAt string

	err := row.Scan(&c.ID, &c.OrganisationID, &c.EmployeeID, &reportedBy, &c.Status, &absenceType,
		&startDate, &endDate, &daysLost, &longTerm, &notes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.ReportedBy = reportedBy.String
	c.AbsenceType = absenceType.String
	c.Notes = notes.String
	c.IsLongTerm = longTerm == 1

	if c.StartDate, err = engine.ParseDate(startDate); err != nil {
		return nil, fmt.Errorf("parse start date: %w", err)
	}
	if endDate.Valid {
		d, err := engine.ParseDate(endDate.String)
		if err != nil {
			return nil, fmt.Errorf("parse end date: %w", err)
		}
		c.EndDate = &d
	}
	if daysLost.Valid {
		d, err := decimal.NewFromString(daysLost.String)
		if err != nil {
			return nil, fmt.Errorf("parse working days lost: %w", err)
		}
		c.WorkingDaysLost = &d
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) queryCases(ctx context.Context, query string, args ...any) ([]sickness.SicknessCase, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	var out []sickness.SicknessCase
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func nullDate(d *engine.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
