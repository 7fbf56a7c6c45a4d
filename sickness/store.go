package sickness

import (
	"context"

	"github.com/warp/absence-engine/milestone"
)

// =============================================================================
// STORE INTERFACES
// =============================================================================

// Store is the persistence contract for cases and their transition log.
// Implementations return engine.ErrNotFound for missing rows AND for rows
// owned by another organisation: callers must not be able to tell the two
// apart.
type Store interface {
	InsertCase(ctx context.Context, c *SicknessCase) error
	GetCase(ctx context.Context, orgID, caseID string) (*SicknessCase, error)
	ListCasesByEmployee(ctx context.Context, orgID, employeeID string) ([]SicknessCase, error)
	ListCases(ctx context.Context, orgID string, filter CaseFilter) ([]SicknessCase, error)

	// UpdateCaseStatus is a conditional update keyed on the expected current
	// status. It reports whether a row was updated; false means the
	// precondition no longer held (concurrent transition) or the case does
	// not exist.
	UpdateCaseStatus(ctx context.Context, caseID string, from, to CaseStatus) (bool, error)

	UpdateCaseDates(ctx context.Context, c *SicknessCase) error
	SetLongTerm(ctx context.Context, caseID string, longTerm bool) error

	AppendTransition(ctx context.Context, t CaseTransition) error
	ListTransitions(ctx context.Context, caseID string) ([]CaseTransition, error)

	BulkInsertActions(ctx context.Context, actions []milestone.MilestoneAction) error
}

// CaseFilter narrows ListCases. Zero values mean "no constraint".
type CaseFilter struct {
	EmployeeID string
	Status     CaseStatus
}

// TxStore composes multiple Store calls into one atomic unit.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
