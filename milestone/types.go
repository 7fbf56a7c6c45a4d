// Package milestone implements the milestone timeline engine: the
// per-organisation catalog of scheduled management actions, the pure
// timeline projection over a case's start date, and the lifecycle of
// per-case milestone actions.
package milestone

import (
	"time"

	"github.com/warp/absence-engine/engine"
)

// =============================================================================
// MILESTONE CATALOG
// =============================================================================

// MilestoneConfig is one milestone definition. OrganisationID is empty for
// system defaults and set for an organisation-specific override. At most one
// default row and one override row exist per key per organisation.
type MilestoneConfig struct {
	ID             string
	OrganisationID string // "" = system default
	MilestoneKey   string // stable identifier, e.g. "DAY_7"
	Label          string
	Description    string
	ActionType     string // e.g. "REQUEST_FIT_NOTE"
	DayOffset      int    // days from absence start
	IsActive       bool
}

// IsDefault reports whether this row is a system default.
func (c MilestoneConfig) IsDefault() bool { return c.OrganisationID == "" }

// =============================================================================
// MILESTONE ACTION - Per-case instantiation of a catalog entry
// =============================================================================

type ActionStatus string

const (
	ActionPending    ActionStatus = "PENDING"
	ActionInProgress ActionStatus = "IN_PROGRESS"
	ActionCompleted  ActionStatus = "COMPLETED"
)

// MilestoneAction is one required manager action on one case. DueDate is
// fixed at generation time: later catalog changes never move it.
type MilestoneAction struct {
	ID           string
	CaseID       string
	MilestoneKey string
	ActionType   string
	Label        string
	Status       ActionStatus
	DueDate      engine.Date
	CompletedBy  string
	CompletedAt  *time.Time
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// =============================================================================
// TIMELINE - Read-only projection
// =============================================================================

// TemporalStatus classifies a due date against "today".
type TemporalStatus string

const (
	Overdue  TemporalStatus = "OVERDUE"
	DueToday TemporalStatus = "DUE_TODAY"
	Upcoming TemporalStatus = "UPCOMING"
)

// TimelineEntry is one catalog entry projected onto a case. It carries no
// MilestoneAction state; the two are correlated by MilestoneKey at the
// presentation boundary.
type TimelineEntry struct {
	MilestoneKey string
	Label        string
	ActionType   string
	DayOffset    int
	DueDate      engine.Date
	Temporal     TemporalStatus
}

// =============================================================================
// SYSTEM DEFAULTS
// =============================================================================

// AutoTransitions maps a milestone key to the case-workflow action its
// completion should attempt. The mapping is consulted by the caller that
// composes the two subsystems, never by either subsystem itself, and the
// attempt is skipped when the transition is not currently legal.
var AutoTransitions = map[string]string{
	"DAY_7": "RECEIVE_FIT_NOTE",
}

// LongTermReviewKey is the milestone whose completion flags the case as a
// long-term absence.
const LongTermReviewKey = "DAY_28"

// SystemDefaults is the built-in milestone catalog, seeded into the store on
// migration. Organisations override individual keys, never the whole list.
func SystemDefaults() []MilestoneConfig {
	return []MilestoneConfig{
		{MilestoneKey: "DAY_1", Label: "Record absence and notify manager", ActionType: "CONTACT_EMPLOYEE", DayOffset: 1, IsActive: true,
			Description: "Confirm the absence is recorded and the line manager is aware."},
		{MilestoneKey: "DAY_3", Label: "Early contact check-in", ActionType: "CONTACT_EMPLOYEE", DayOffset: 3, IsActive: true},
		{MilestoneKey: "DAY_7", Label: "Fit note required", ActionType: "REQUEST_FIT_NOTE", DayOffset: 7, IsActive: true,
			Description: "Self-certification ends after seven calendar days."},
		{MilestoneKey: "DAY_14", Label: "Welfare call", ActionType: "WELFARE_CALL", DayOffset: 14, IsActive: true},
		{MilestoneKey: "DAY_28", Label: "Long-term absence review", ActionType: "ABSENCE_REVIEW", DayOffset: 28, IsActive: true},
		{MilestoneKey: "WEEK_8", Label: "Occupational health referral", ActionType: "OH_REFERRAL", DayOffset: 56, IsActive: true},
		{MilestoneKey: "WEEK_26", Label: "Half-year capability review", ActionType: "CAPABILITY_REVIEW", DayOffset: 182, IsActive: true},
	}
}
