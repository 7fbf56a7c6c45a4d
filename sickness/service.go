/*
service.go - Case lifecycle service

PURPOSE:
  Applies case operations with transactional guarantees:
  - ReportCase: case + initial pseudo-transition + milestone actions commit
    as one unit, then triggers are evaluated opportunistically.
  - Transition: validates against the state machine and applies the status
    update with a conditional write, so two concurrent requests that both
    observed a legal prior state cannot both win.
  - UpdateDates: recomputes workingDaysLost and re-enters the evaluator.

SIDE EFFECTS:
  Audit and notification happen strictly after the primary write is durable,
  are best-effort, and never convert a committed write into an error.
*/
package sickness

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/absence-engine/engine"
	"github.com/warp/absence-engine/milestone"
)

// ActionReport labels the creation pseudo-transition in the log. It is not
// part of the workflow table and is never accepted from callers.
const ActionReport CaseAction = "REPORT"

// Calendar days of absence after which a case counts as long-term.
const longTermThresholdDays = 28

// CatalogSource resolves the effective milestone catalog for an
// organisation. Implemented by milestone.CatalogService.
type CatalogSource interface {
	Effective(ctx context.Context, orgID string) ([]milestone.MilestoneConfig, error)
}

// TriggerEvaluator re-scores an employee's absence history. Implemented by
// trigger.Evaluator. Evaluation failures are logged, never propagated.
type TriggerEvaluator interface {
	Evaluate(ctx context.Context, employeeID, orgID, caseID string) error
}

// CaseService owns all mutations of sickness cases.
type CaseService struct {
	Store     TxStore
	Catalog   CatalogSource
	Evaluator TriggerEvaluator // optional
	Audit     engine.AuditLog
	Notifier  engine.Notifier
	Codec     engine.Codec
	Log       *log.Logger

	// now is swapped in tests.
	now func() time.Time
}

func NewCaseService(store TxStore, catalog CatalogSource, evaluator TriggerEvaluator,
	audit engine.AuditLog, notifier engine.Notifier, codec engine.Codec, logger *log.Logger) *CaseService {
	return &CaseService{
		Store:     store,
		Catalog:   catalog,
		Evaluator: evaluator,
		Audit:     audit,
		Notifier:  notifier,
		Codec:     codec,
		Log:       logger,
		now:       time.Now,
	}
}

// =============================================================================
// REPORT CASE
// =============================================================================

// ReportCaseInput carries everything needed to open a case.
type ReportCaseInput struct {
	OrganisationID string
	EmployeeID     string
	ReportedBy     string
	AbsenceType    string
	StartDate      engine.Date
	EndDate        *engine.Date
	Notes          string
}

// ReportCase opens a case in REPORTED, appends the creation
// pseudo-transition, and bulk-creates one milestone action per
// effective-catalog entry, all in one transaction. Trigger evaluation and
// manager notification run after commit.
func (s *CaseService) ReportCase(ctx context.Context, in ReportCaseInput) (*SicknessCase, error) {
	if in.OrganisationID == "" {
		return nil, &engine.ValidationError{Field: "organisationId", Reason: "required"}
	}
	if in.EmployeeID == "" {
		return nil, &engine.ValidationError{Field: "employeeId", Reason: "required"}
	}
	if in.StartDate.IsZero() {
		return nil, &engine.ValidationError{Field: "absenceStartDate", Reason: "required"}
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return nil, &engine.ValidationError{Field: "absenceEndDate", Reason: "must not be before absenceStartDate"}
	}

	catalog, err := s.Catalog.Effective(ctx, in.OrganisationID)
	if err != nil {
		return nil, fmt.Errorf("resolve milestone catalog: %w", err)
	}

	encrypted, err := s.Codec.Encrypt(in.Notes)
	if err != nil {
		return nil, fmt.Errorf("encrypt notes: %w", err)
	}

	now := s.now()
	c := &SicknessCase{
		ID:              uuid.NewString(),
		OrganisationID:  in.OrganisationID,
		EmployeeID:      in.EmployeeID,
		ReportedBy:      in.ReportedBy,
		Status:          StatusReported,
		AbsenceType:     in.AbsenceType,
		StartDate:       in.StartDate,
		EndDate:         in.EndDate,
		WorkingDaysLost: workingDaysLost(in.StartDate, in.EndDate),
		IsLongTerm:      isLongTerm(in.StartDate, in.EndDate),
		Notes:           encrypted,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	actions := milestone.BuildActions(c.ID, catalog, in.StartDate, now)

	err = s.Store.WithTx(ctx, func(tx Store) error {
		if err := tx.InsertCase(ctx, c); err != nil {
			return err
		}
		if err := tx.AppendTransition(ctx, CaseTransition{
			ID:          uuid.NewString(),
			CaseID:      c.ID,
			FromStatus:  nil,
			ToStatus:    StatusReported,
			Action:      ActionReport,
			PerformedBy: in.ReportedBy,
			At:          now,
		}); err != nil {
			return err
		}
		return tx.BulkInsertActions(ctx, actions)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, engine.AuditEntry{
		ActorID:        in.ReportedBy,
		OrganisationID: c.OrganisationID,
		Action:         "case.reported",
		Entity:         "sickness_case",
		EntityID:       c.ID,
		Metadata:       map[string]string{"employeeId": c.EmployeeID, "startDate": c.StartDate.String()},
		At:             now,
	})

	if s.Evaluator != nil {
		if err := s.Evaluator.Evaluate(ctx, c.EmployeeID, c.OrganisationID, c.ID); err != nil {
			s.Log.Error("trigger evaluation after case creation failed", "case", c.ID, "err", err)
		}
	}

	// Recipient resolution (employee -> manager) is owned by the
	// notification layer; the core only names the employee.
	s.notify(ctx, c.EmployeeID, engine.TemplateSicknessReported, map[string]string{
		"caseId":    c.ID,
		"startDate": c.StartDate.String(),
	})

	out := *c
	out.Notes = in.Notes
	return &out, nil
}

// =============================================================================
// TRANSITION
// =============================================================================

// Transition validates and applies one workflow action. The status write is
// conditional on the status observed inside the transaction, and the
// transition-log append commits in the same unit.
func (s *CaseService) Transition(ctx context.Context, orgID, caseID string, action CaseAction, actorID, notes string) (*SicknessCase, error) {
	encrypted, err := s.Codec.Encrypt(notes)
	if err != nil {
		return nil, fmt.Errorf("encrypt notes: %w", err)
	}

	now := s.now()
	var updated *SicknessCase
	var prior CaseStatus
	err = s.Store.WithTx(ctx, func(tx Store) error {
		c, err := tx.GetCase(ctx, orgID, caseID)
		if err != nil {
			return err
		}
		prior = c.Status

		next, ok := NextStatus(c.Status, action)
		if !ok {
			return &engine.InvalidTransitionError{
				Status:    string(c.Status),
				Action:    string(action),
				Available: availableActionNames(c.Status),
			}
		}
		if action == ActionCloseCase && c.EndDate == nil {
			return &engine.ValidationError{Field: "absenceEndDate", Reason: "case cannot be closed while the absence is open-ended"}
		}

		applied, err := tx.UpdateCaseStatus(ctx, c.ID, c.Status, next)
		if err != nil {
			return err
		}
		if !applied {
			// A concurrent request won the race; the precondition no longer
			// holds. Report against whatever the status is now.
			fresh, err := tx.GetCase(ctx, orgID, caseID)
			if err != nil {
				return err
			}
			return &engine.InvalidTransitionError{
				Status:    string(fresh.Status),
				Action:    string(action),
				Available: availableActionNames(fresh.Status),
			}
		}

		if err := tx.AppendTransition(ctx, CaseTransition{
			ID:          uuid.NewString(),
			CaseID:      c.ID,
			FromStatus:  &c.Status,
			ToStatus:    next,
			Action:      action,
			PerformedBy: actorID,
			Notes:       encrypted,
			At:          now,
		}); err != nil {
			return err
		}

		after := *c
		after.Status = next
		after.UpdatedAt = now
		updated = &after
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, engine.AuditEntry{
		ActorID:        actorID,
		OrganisationID: updated.OrganisationID,
		Action:         "case.transition",
		Entity:         "sickness_case",
		EntityID:       updated.ID,
		Metadata: map[string]string{
			"action": string(action),
			"from":   string(prior),
			"to":     string(updated.Status),
		},
		At: now,
	})

	switch action {
	case ActionScheduleRTW:
		s.notify(ctx, updated.EmployeeID, engine.TemplateRTWScheduled, map[string]string{"caseId": updated.ID})
	case ActionCloseCase:
		s.notify(ctx, updated.EmployeeID, engine.TemplateCaseClosed, map[string]string{"caseId": updated.ID})
	}

	return s.decryptCase(updated)
}

// =============================================================================
// DATE UPDATES
// =============================================================================

// UpdateDates replaces the case's absence dates, recomputes the derived
// workingDaysLost and long-term flag, and re-enters the trigger evaluator
// (duration and frequency rules depend on the new totals).
func (s *CaseService) UpdateDates(ctx context.Context, orgID, caseID string, start engine.Date, end *engine.Date) (*SicknessCase, error) {
	if start.IsZero() {
		return nil, &engine.ValidationError{Field: "absenceStartDate", Reason: "required"}
	}
	if end != nil && end.Before(start) {
		return nil, &engine.ValidationError{Field: "absenceEndDate", Reason: "must not be before absenceStartDate"}
	}

	now := s.now()
	var updated *SicknessCase
	err := s.Store.WithTx(ctx, func(tx Store) error {
		c, err := tx.GetCase(ctx, orgID, caseID)
		if err != nil {
			return err
		}
		c.StartDate = start
		c.EndDate = end
		c.WorkingDaysLost = workingDaysLost(start, end)
		if isLongTerm(start, end) {
			c.IsLongTerm = true
		}
		c.UpdatedAt = now
		if err := tx.UpdateCaseDates(ctx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, engine.AuditEntry{
		ActorID:        "",
		OrganisationID: updated.OrganisationID,
		Action:         "case.dates_updated",
		Entity:         "sickness_case",
		EntityID:       updated.ID,
		Metadata:       map[string]string{"startDate": start.String()},
		At:             now,
	})

	if s.Evaluator != nil {
		if err := s.Evaluator.Evaluate(ctx, updated.EmployeeID, updated.OrganisationID, updated.ID); err != nil {
			s.Log.Error("trigger evaluation after date update failed", "case", updated.ID, "err", err)
		}
	}

	return s.decryptCase(updated)
}

// MarkLongTerm flags the case as a long-term absence. Invoked when the
// long-term review milestone completes.
func (s *CaseService) MarkLongTerm(ctx context.Context, orgID, caseID string) error {
	c, err := s.Store.GetCase(ctx, orgID, caseID)
	if err != nil {
		return err
	}
	return s.Store.SetLongTerm(ctx, c.ID, true)
}

// =============================================================================
// READS
// =============================================================================

func (s *CaseService) Get(ctx context.Context, orgID, caseID string) (*SicknessCase, error) {
	c, err := s.Store.GetCase(ctx, orgID, caseID)
	if err != nil {
		return nil, err
	}
	return s.decryptCase(c)
}

func (s *CaseService) List(ctx context.Context, orgID string, filter CaseFilter) ([]SicknessCase, error) {
	cases, err := s.Store.ListCases(ctx, orgID, filter)
	if err != nil {
		return nil, err
	}
	for i := range cases {
		decrypted, err := s.Codec.Decrypt(cases[i].Notes)
		if err != nil {
			return nil, fmt.Errorf("decrypt notes for case %s: %w", cases[i].ID, err)
		}
		cases[i].Notes = decrypted
	}
	return cases, nil
}

// History returns the case's transition log in creation order.
func (s *CaseService) History(ctx context.Context, orgID, caseID string) ([]CaseTransition, error) {
	if _, err := s.Store.GetCase(ctx, orgID, caseID); err != nil {
		return nil, err
	}
	log, err := s.Store.ListTransitions(ctx, caseID)
	if err != nil {
		return nil, err
	}
	for i := range log {
		decrypted, err := s.Codec.Decrypt(log[i].Notes)
		if err != nil {
			return nil, fmt.Errorf("decrypt transition notes: %w", err)
		}
		log[i].Notes = decrypted
	}
	return log, nil
}

// Actions returns the workflow actions legal for the case's current status.
func (s *CaseService) Actions(ctx context.Context, orgID, caseID string) ([]CaseAction, error) {
	c, err := s.Store.GetCase(ctx, orgID, caseID)
	if err != nil {
		return nil, err
	}
	return AvailableActions(c.Status), nil
}

// =============================================================================
// HELPERS
// =============================================================================

func workingDaysLost(start engine.Date, end *engine.Date) *decimal.Decimal {
	if end == nil {
		return nil
	}
	days := decimal.NewFromInt(int64(engine.WorkingDaysInclusive(start, *end)))
	return &days
}

func isLongTerm(start engine.Date, end *engine.Date) bool {
	return end != nil && start.DaysUntil(*end) >= longTermThresholdDays
}

func (s *CaseService) decryptCase(c *SicknessCase) (*SicknessCase, error) {
	decrypted, err := s.Codec.Decrypt(c.Notes)
	if err != nil {
		return nil, fmt.Errorf("decrypt notes: %w", err)
	}
	out := *c
	out.Notes = decrypted
	return &out, nil
}

func (s *CaseService) recordAudit(ctx context.Context, entry engine.AuditEntry) {
	if err := s.Audit.Record(ctx, entry); err != nil {
		s.Log.Warn("audit write failed", "action", entry.Action, "entity", entry.EntityID, "err", err)
	}
}

func (s *CaseService) notify(ctx context.Context, recipient string, kind engine.TemplateKind, fields map[string]string) {
	if err := s.Notifier.Notify(ctx, recipient, kind, fields); err != nil {
		s.Log.Warn("notification failed", "template", string(kind), "err", err)
	}
}
