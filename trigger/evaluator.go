/*
evaluator.go - Threshold rule evaluation and alert fan-out

PURPOSE:
  Evaluate runs after case creation and after any event that changes an
  employee's rolling absence totals. Each active rule is scored
  independently: one rule's failure is logged and never aborts the rest.

DEDUPLICATION:
  fireAlert checks for an existing (rule, case) alert as a fast path, but the
  store's uniqueness constraint is the authoritative guard: a concurrent
  insert surfaces as engine.ErrAlertExists and is treated as "already
  raised", not as an error.

NOTIFICATION:
  Manager notification is dispatched on a detached context after the alert
  row is durable. Its failure is logged and never propagated.
*/
package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/absence-engine/engine"
	"github.com/warp/absence-engine/sickness"
)

// Evaluator scores absence history against an organisation's rules.
type Evaluator struct {
	Store    Store
	Cases    CaseHistory
	Audit    engine.AuditLog
	Notifier engine.Notifier
	Log      *log.Logger

	now func() time.Time
}

func NewEvaluator(store Store, cases CaseHistory, audit engine.AuditLog,
	notifier engine.Notifier, logger *log.Logger) *Evaluator {
	return &Evaluator{
		Store:    store,
		Cases:    cases,
		Audit:    audit,
		Notifier: notifier,
		Log:      logger,
		now:      time.Now,
	}
}

// Evaluate scores the employee against every active rule for the
// organisation, raising at most one alert per (rule, case) pair.
func (e *Evaluator) Evaluate(ctx context.Context, employeeID, orgID, caseID string) error {
	configs, err := e.Store.ListActiveTriggerConfigs(ctx, orgID)
	if err != nil {
		return fmt.Errorf("load trigger configs: %w", err)
	}
	if len(configs) == 0 {
		return nil
	}

	history, err := e.Cases.ListCasesByEmployee(ctx, orgID, employeeID)
	if err != nil {
		return fmt.Errorf("load absence history: %w", err)
	}

	today := engine.Today()
	for _, cfg := range configs {
		observed, err := observe(cfg, history, today)
		if err != nil {
			e.Log.Error("trigger rule evaluation failed", "config", cfg.ID, "type", string(cfg.TriggerType), "err", err)
			continue
		}
		if observed.LessThan(cfg.ThresholdValue) {
			continue
		}
		if err := e.fireAlert(ctx, cfg, employeeID, caseID, observed); err != nil {
			e.Log.Error("alert creation failed", "config", cfg.ID, "case", caseID, "err", err)
		}
	}
	return nil
}

// observe computes the value a rule compares against its threshold.
func observe(cfg TriggerConfig, history []sickness.SicknessCase, today engine.Date) (decimal.Decimal, error) {
	switch cfg.TriggerType {
	case Frequency:
		cutoff := today.AddDays(-cfg.Window())
		count := 0
		for _, c := range history {
			if c.StartDate.AfterOrEqual(cutoff) && c.StartDate.BeforeOrEqual(today) {
				count++
			}
		}
		return decimal.NewFromInt(int64(count)), nil

	case BradfordFactor:
		// Full history, no window.
		return ScoreHistory(history), nil

	case Duration:
		cutoff := today.AddDays(-cfg.Window())
		total := decimal.Zero
		for _, c := range history {
			if c.WorkingDaysLost == nil {
				continue
			}
			if c.StartDate.AfterOrEqual(cutoff) && c.StartDate.BeforeOrEqual(today) {
				total = total.Add(*c.WorkingDaysLost)
			}
		}
		return total, nil

	default:
		return decimal.Zero, fmt.Errorf("unknown trigger type %q", cfg.TriggerType)
	}
}

// fireAlert inserts the alert unless one already exists for this
// (rule, case) pair, then audits and notifies best-effort.
func (e *Evaluator) fireAlert(ctx context.Context, cfg TriggerConfig, employeeID, caseID string, observed decimal.Decimal) error {
	exists, err := e.Store.AlertExists(ctx, cfg.ID, caseID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	now := e.now()
	alert := &TriggerAlert{
		ID:              uuid.NewString(),
		TriggerConfigID: cfg.ID,
		OrganisationID:  cfg.OrganisationID,
		EmployeeID:      employeeID,
		SicknessCaseID:  caseID,
		TriggerType:     cfg.TriggerType,
		TriggeredValue:  observed,
		CreatedAt:       now,
	}

	if err := e.Store.InsertAlert(ctx, alert); err != nil {
		if errors.Is(err, engine.ErrAlertExists) {
			// Lost the race to a concurrent evaluation; the alert is there.
			return nil
		}
		return err
	}

	e.recordAudit(ctx, engine.AuditEntry{
		OrganisationID: cfg.OrganisationID,
		Action:         "alert.fired",
		Entity:         "trigger_alert",
		EntityID:       alert.ID,
		Metadata: map[string]string{
			"triggerType": string(cfg.TriggerType),
			"caseId":      caseID,
			"employeeId":  employeeID,
			"value":       observed.String(),
		},
		At: now,
	})

	// Detached from the request: alert creation already committed.
	go func() {
		err := e.Notifier.Notify(context.WithoutCancel(ctx), employeeID, engine.TemplateTriggerBreached, map[string]string{
			"triggerType": string(cfg.TriggerType),
			"threshold":   cfg.ThresholdValue.String(),
			"value":       observed.String(),
		})
		if err != nil {
			e.Log.Warn("breach notification failed", "alert", alert.ID, "err", err)
		}
	}()

	return nil
}

// ListAlerts returns the organisation's alerts, optionally filtered.
func (e *Evaluator) ListAlerts(ctx context.Context, orgID string, filter AlertFilter) ([]TriggerAlert, error) {
	return e.Store.ListAlerts(ctx, orgID, filter)
}

// =============================================================================
// ACKNOWLEDGEMENT
// =============================================================================

// AcknowledgeAlert stamps the acknowledgement fields. Acknowledging an
// already-acknowledged alert re-stamps actor and time rather than erroring:
// the UI may double-submit.
func (e *Evaluator) AcknowledgeAlert(ctx context.Context, orgID, alertID, userID string) (*TriggerAlert, error) {
	alert, err := e.Store.GetAlert(ctx, orgID, alertID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	if err := e.Store.StampAcknowledgement(ctx, alert.ID, userID, now); err != nil {
		return nil, err
	}
	alert.AcknowledgedBy = userID
	alert.AcknowledgedAt = &now

	e.recordAudit(ctx, engine.AuditEntry{
		ActorID:        userID,
		OrganisationID: alert.OrganisationID,
		Action:         "alert.acknowledged",
		Entity:         "trigger_alert",
		EntityID:       alert.ID,
		At:             now,
	})
	return alert, nil
}

func (e *Evaluator) recordAudit(ctx context.Context, entry engine.AuditEntry) {
	if err := e.Audit.Record(ctx, entry); err != nil {
		e.Log.Warn("audit write failed", "action", entry.Action, "entity", entry.EntityID, "err", err)
	}
}
