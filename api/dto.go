/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATES:
  Calendar dates travel as "YYYY-MM-DD" strings, timestamps as RFC3339.

SEE ALSO:
  - handlers.go: Uses these types
  - server.go: Router setup and middleware
*/
package api

import (
	"time"

	"github.com/warp/absence-engine/milestone"
	"github.com/warp/absence-engine/sickness"
	"github.com/warp/absence-engine/trigger"
)

// =============================================================================
// CASES
// =============================================================================

// CaseDTO represents a sickness case in API responses.
type CaseDTO struct {
	ID              string   `json:"id"`
	OrganisationID  string   `json:"organisation_id"`
	EmployeeID      string   `json:"employee_id"`
	ReportedBy      string   `json:"reported_by,omitempty"`
	Status          string   `json:"status"`
	AbsenceType     string   `json:"absence_type,omitempty"`
	StartDate       string   `json:"start_date"`
	EndDate         *string  `json:"end_date,omitempty"`
	WorkingDaysLost *float64 `json:"working_days_lost,omitempty"`
	IsLongTerm      bool     `json:"is_long_term"`
	Notes           string   `json:"notes,omitempty"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

// ReportCaseRequest is the request to open a new case.
type ReportCaseRequest struct {
	EmployeeID  string  `json:"employee_id"`
	ReportedBy  string  `json:"reported_by"`
	AbsenceType string  `json:"absence_type"`
	StartDate   string  `json:"start_date"`
	EndDate     *string `json:"end_date,omitempty"`
	Notes       string  `json:"notes,omitempty"`
}

// TransitionRequest applies a workflow action to a case.
type TransitionRequest struct {
	Action  string `json:"action"`
	ActorID string `json:"actor_id"`
	Notes   string `json:"notes,omitempty"`
}

// UpdateDatesRequest changes a case's absence dates.
type UpdateDatesRequest struct {
	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date,omitempty"`
}

// TransitionDTO is one row of the append-only workflow log.
type TransitionDTO struct {
	ID          string  `json:"id"`
	CaseID      string  `json:"case_id"`
	FromStatus  *string `json:"from_status"`
	ToStatus    string  `json:"to_status"`
	Action      string  `json:"action"`
	PerformedBy string  `json:"performed_by,omitempty"`
	Notes       string  `json:"notes,omitempty"`
	At          string  `json:"at"`
}

// =============================================================================
// MILESTONES
// =============================================================================

// TimelineEntryDTO is one projected milestone on a case's timeline.
type TimelineEntryDTO struct {
	MilestoneKey string `json:"milestone_key"`
	Label        string `json:"label"`
	ActionType   string `json:"action_type,omitempty"`
	DayOffset    int    `json:"day_offset"`
	DueDate      string `json:"due_date"`
	Temporal     string `json:"temporal_status"`
}

// ActionDTO represents a generated milestone action.
type ActionDTO struct {
	ID           string  `json:"id"`
	CaseID       string  `json:"case_id"`
	MilestoneKey string  `json:"milestone_key"`
	ActionType   string  `json:"action_type,omitempty"`
	Label        string  `json:"label,omitempty"`
	Status       string  `json:"status"`
	DueDate      string  `json:"due_date"`
	CompletedBy  string  `json:"completed_by,omitempty"`
	CompletedAt  *string `json:"completed_at,omitempty"`
	Notes        string  `json:"notes,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// UpdateActionRequest changes a milestone action's status.
type UpdateActionRequest struct {
	Status      string  `json:"status"`
	CompletedBy string  `json:"completed_by,omitempty"`
	Notes       string  `json:"notes,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// MilestoneConfigDTO represents a catalog entry (default or override).
type MilestoneConfigDTO struct {
	ID             string `json:"id"`
	OrganisationID string `json:"organisation_id,omitempty"`
	MilestoneKey   string `json:"milestone_key"`
	Label          string `json:"label"`
	Description    string `json:"description,omitempty"`
	ActionType     string `json:"action_type,omitempty"`
	DayOffset      int    `json:"day_offset"`
	IsActive       bool   `json:"is_active"`
	IsDefault      bool   `json:"is_default"`
}

// UpsertMilestoneRequest creates or updates an organisation override.
type UpsertMilestoneRequest struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	ActionType  string `json:"action_type,omitempty"`
	DayOffset   int    `json:"day_offset"`
	IsActive    bool   `json:"is_active"`
}

// =============================================================================
// TRIGGERS
// =============================================================================

// TriggerConfigDTO represents a threshold rule.
type TriggerConfigDTO struct {
	ID             string  `json:"id"`
	OrganisationID string  `json:"organisation_id"`
	TriggerType    string  `json:"trigger_type"`
	ThresholdValue float64 `json:"threshold_value"`
	PeriodDays     *int    `json:"period_days,omitempty"`
	IsActive       bool    `json:"is_active"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// TriggerConfigRequest creates or updates a threshold rule.
type TriggerConfigRequest struct {
	TriggerType    string  `json:"trigger_type"`
	ThresholdValue float64 `json:"threshold_value"`
	PeriodDays     *int    `json:"period_days,omitempty"`
	IsActive       bool    `json:"is_active"`
}

// AlertDTO represents a fired trigger alert.
type AlertDTO struct {
	ID              string  `json:"id"`
	TriggerConfigID string  `json:"trigger_config_id"`
	OrganisationID  string  `json:"organisation_id"`
	EmployeeID      string  `json:"employee_id"`
	SicknessCaseID  string  `json:"sickness_case_id"`
	TriggerType     string  `json:"trigger_type"`
	TriggeredValue  float64 `json:"triggered_value"`
	CreatedAt       string  `json:"created_at"`
	AcknowledgedBy  string  `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *string `json:"acknowledged_at,omitempty"`
}

// AcknowledgeRequest stamps an alert as seen.
type AcknowledgeRequest struct {
	UserID string `json:"user_id"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toCaseDTO(c *sickness.SicknessCase) CaseDTO {
	dto := CaseDTO{
		ID:             c.ID,
		OrganisationID: c.OrganisationID,
		EmployeeID:     c.EmployeeID,
		ReportedBy:     c.ReportedBy,
		Status:         string(c.Status),
		AbsenceType:    c.AbsenceType,
		StartDate:      c.StartDate.String(),
		IsLongTerm:     c.IsLongTerm,
		Notes:          c.Notes,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      c.UpdatedAt.Format(time.RFC3339),
	}
	if c.EndDate != nil {
		end := c.EndDate.String()
		dto.EndDate = &end
	}
	if c.WorkingDaysLost != nil {
		days, _ := c.WorkingDaysLost.Float64()
		dto.WorkingDaysLost = &days
	}
	return dto
}

func toTransitionDTO(t sickness.CaseTransition) TransitionDTO {
	dto := TransitionDTO{
		ID:          t.ID,
		CaseID:      t.CaseID,
		ToStatus:    string(t.ToStatus),
		Action:      string(t.Action),
		PerformedBy: t.PerformedBy,
		Notes:       t.Notes,
		At:          t.At.Format(time.RFC3339),
	}
	if t.FromStatus != nil {
		from := string(*t.FromStatus)
		dto.FromStatus = &from
	}
	return dto
}

func toActionDTO(a *milestone.MilestoneAction) ActionDTO {
	dto := ActionDTO{
		ID:           a.ID,
		CaseID:       a.CaseID,
		MilestoneKey: a.MilestoneKey,
		ActionType:   a.ActionType,
		Label:        a.Label,
		Status:       string(a.Status),
		DueDate:      a.DueDate.String(),
		CompletedBy:  a.CompletedBy,
		Notes:        a.Notes,
		CreatedAt:    a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    a.UpdatedAt.Format(time.RFC3339),
	}
	if a.CompletedAt != nil {
		at := a.CompletedAt.Format(time.RFC3339)
		dto.CompletedAt = &at
	}
	return dto
}

func toMilestoneConfigDTO(c milestone.MilestoneConfig) MilestoneConfigDTO {
	return MilestoneConfigDTO{
		ID:             c.ID,
		OrganisationID: c.OrganisationID,
		MilestoneKey:   c.MilestoneKey,
		Label:          c.Label,
		Description:    c.Description,
		ActionType:     c.ActionType,
		DayOffset:      c.DayOffset,
		IsActive:       c.IsActive,
		IsDefault:      c.IsDefault(),
	}
}

func toTriggerConfigDTO(c trigger.TriggerConfig) TriggerConfigDTO {
	threshold, _ := c.ThresholdValue.Float64()
	return TriggerConfigDTO{
		ID:             c.ID,
		OrganisationID: c.OrganisationID,
		TriggerType:    string(c.TriggerType),
		ThresholdValue: threshold,
		PeriodDays:     c.PeriodDays,
		IsActive:       c.IsActive,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      c.UpdatedAt.Format(time.RFC3339),
	}
}

func toAlertDTO(a trigger.TriggerAlert) AlertDTO {
	value, _ := a.TriggeredValue.Float64()
	dto := AlertDTO{
		ID:              a.ID,
		TriggerConfigID: a.TriggerConfigID,
		OrganisationID:  a.OrganisationID,
		EmployeeID:      a.EmployeeID,
		SicknessCaseID:  a.SicknessCaseID,
		TriggerType:     string(a.TriggerType),
		TriggeredValue:  value,
		CreatedAt:       a.CreatedAt.Format(time.RFC3339),
		AcknowledgedBy:  a.AcknowledgedBy,
	}
	if a.AcknowledgedAt != nil {
		at := a.AcknowledgedAt.Format(time.RFC3339)
		dto.AcknowledgedAt = &at
	}
	return dto
}
