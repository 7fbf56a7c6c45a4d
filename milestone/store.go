package milestone

import "context"

// =============================================================================
// STORE INTERFACES
// =============================================================================

// Store is the persistence contract for milestone configs and per-case
// actions. Missing rows and rows owned by another organisation both surface
// as engine.ErrNotFound.
type Store interface {
	ListDefaultMilestones(ctx context.Context) ([]MilestoneConfig, error)
	ListOrgMilestones(ctx context.Context, orgID string) ([]MilestoneConfig, error)

	// GetOrgMilestone returns the organisation's override row for a key, or
	// engine.ErrNotFound when the org has no override for it.
	GetOrgMilestone(ctx context.Context, orgID, milestoneKey string) (*MilestoneConfig, error)
	InsertMilestoneConfig(ctx context.Context, c *MilestoneConfig) error
	UpdateMilestoneConfig(ctx context.Context, c *MilestoneConfig) error
	DeleteMilestoneConfig(ctx context.Context, id string) error

	// GetAction resolves an action through its parent case's organisation.
	// An action owned by another organisation is engine.ErrNotFound.
	GetAction(ctx context.Context, orgID, actionID string) (*MilestoneAction, error)
	UpdateAction(ctx context.Context, a *MilestoneAction) error
	ListActionsByCase(ctx context.Context, caseID string) ([]MilestoneAction, error)
}

// CaseState is the one question the action lifecycle needs answered about
// the parent case. Narrow on purpose: milestone must not depend on the case
// package (the dependency runs the other way).
type CaseState interface {
	IsCaseClosed(ctx context.Context, caseID string) (bool, error)
}
