package trigger

import (
	"context"
	"time"

	"github.com/warp/absence-engine/sickness"
)

// =============================================================================
// STORE INTERFACES
// =============================================================================

// Store is the persistence contract for trigger rules and alerts.
//
// InsertAlert must return engine.ErrAlertExists when the
// (triggerConfigId, sicknessCaseId) uniqueness constraint rejects the row:
// the evaluator treats that as "alert already exists", not as a failure.
type Store interface {
	ListTriggerConfigs(ctx context.Context, orgID string) ([]TriggerConfig, error)
	ListActiveTriggerConfigs(ctx context.Context, orgID string) ([]TriggerConfig, error)
	GetTriggerConfig(ctx context.Context, orgID, configID string) (*TriggerConfig, error)
	InsertTriggerConfig(ctx context.Context, c *TriggerConfig) error
	UpdateTriggerConfig(ctx context.Context, c *TriggerConfig) error

	AlertExists(ctx context.Context, configID, caseID string) (bool, error)
	InsertAlert(ctx context.Context, a *TriggerAlert) error
	GetAlert(ctx context.Context, orgID, alertID string) (*TriggerAlert, error)
	ListAlerts(ctx context.Context, orgID string, filter AlertFilter) ([]TriggerAlert, error)
	StampAcknowledgement(ctx context.Context, alertID, userID string, at time.Time) error
}

// AlertFilter narrows ListAlerts. Zero values mean "no constraint".
type AlertFilter struct {
	EmployeeID   string
	Acknowledged *bool
}

// CaseHistory supplies the absence history the scoring strategies consume.
// Implemented by the case store.
type CaseHistory interface {
	ListCasesByEmployee(ctx context.Context, orgID, employeeID string) ([]sickness.SicknessCase, error)
}
