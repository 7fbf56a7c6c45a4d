// Package sickness implements the absence case lifecycle: the case model,
// the finite-state workflow from report to closure, and the case service
// that applies transitions atomically with their audit log.
package sickness

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/absence-engine/engine"
)

// =============================================================================
// CASE STATUS & ACTIONS
// =============================================================================

// CaseStatus is a state of the case workflow.
type CaseStatus string

const (
	StatusReported        CaseStatus = "REPORTED"
	StatusTracking        CaseStatus = "TRACKING"
	StatusFitNoteReceived CaseStatus = "FIT_NOTE_RECEIVED"
	StatusRTWScheduled    CaseStatus = "RTW_SCHEDULED"
	StatusRTWCompleted    CaseStatus = "RTW_COMPLETED"
	StatusClosed          CaseStatus = "CLOSED"
)

// CaseAction is a manager action that drives the workflow forward.
type CaseAction string

const (
	ActionAcknowledge    CaseAction = "ACKNOWLEDGE"
	ActionReceiveFitNote CaseAction = "RECEIVE_FIT_NOTE"
	ActionScheduleRTW    CaseAction = "SCHEDULE_RTW"
	ActionCompleteRTW    CaseAction = "COMPLETE_RTW"
	ActionCloseCase      CaseAction = "CLOSE_CASE"
	ActionReopen         CaseAction = "REOPEN"
)

// =============================================================================
// SICKNESS CASE - One open-ended absence record
// =============================================================================

// SicknessCase is one tracked sickness absence for one employee.
//
// Invariants:
//   - EndDate, when set, is never before StartDate.
//   - WorkingDaysLost is nil iff EndDate is nil; it is derived and
//     recomputed whenever either date changes.
//   - Status changes only through the state machine; dates change only
//     through UpdateDates. Cases are never hard-deleted.
//
// Notes is plaintext on this struct; the service encrypts it before handing
// the case to the store and decrypts it on the way out.
type SicknessCase struct {
	ID              string
	OrganisationID  string
	EmployeeID      string
	ReportedBy      string
	Status          CaseStatus
	AbsenceType     string
	StartDate       engine.Date
	EndDate         *engine.Date
	WorkingDaysLost *decimal.Decimal
	IsLongTerm      bool
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// =============================================================================
// CASE TRANSITION - Append-only audit trail of the workflow
// =============================================================================

// CaseTransition is one applied transition. FromStatus is nil only for the
// creation pseudo-transition. Rows are never updated or deleted; the log is
// the sole source of historical status.
type CaseTransition struct {
	ID          string
	CaseID      string
	FromStatus  *CaseStatus
	ToStatus    CaseStatus
	Action      CaseAction
	PerformedBy string
	Notes       string
	At          time.Time
}
