/*
handlers.go - HTTP API handlers for the absence case lifecycle engine

PURPOSE:
  Exposes the lifecycle engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain services.

ENDPOINTS:
  Cases:
    POST   /api/cases                          Report a sickness case
    GET    /api/cases                          List cases (filter: employee, status)
    GET    /api/cases/{id}                     Get case details
    POST   /api/cases/{id}/transitions         Apply a workflow action
    GET    /api/cases/{id}/transitions         Workflow history
    GET    /api/cases/{id}/timeline            Projected milestone timeline
    GET    /api/cases/{id}/actions             Generated milestone actions
    GET    /api/cases/{id}/available-actions   Legal next actions
    PUT    /api/cases/{id}/dates               Update absence dates

  Milestone actions:
    PUT    /api/actions/{id}                   Update action status
    POST   /api/actions/{id}/reset             Reset to pending

  Organisation configuration:
    GET    /api/organisations/{orgId}/milestones        Effective catalog
    PUT    /api/organisations/{orgId}/milestones/{key}  Upsert override
    DELETE /api/organisations/{orgId}/milestones/{key}  Reset to default
    GET    /api/organisations/{orgId}/triggers          List threshold rules
    POST   /api/organisations/{orgId}/triggers          Create rule
    PUT    /api/organisations/{orgId}/triggers/{id}     Update rule
    GET    /api/organisations/{orgId}/alerts            List alerts

  Alerts:
    POST   /api/alerts/{id}/acknowledge        Acknowledge (idempotent)

TENANCY:
  Organisation-scoped routes carry the organisation in the path. Case and
  action routes take it from the X-Organisation-ID header. A lookup outside
  the caller's organisation is a 404, indistinguishable from a missing row.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, bad overrides
  - 404: Resource not found
  - 409: Illegal workflow transition, closed-case conflicts
  - 500: Internal errors

COMPOSITION:
  Completing a milestone action whose key appears in the auto-transition
  map attempts the mapped case transition here, in the composing layer. A
  refused transition is logged and the completed action stands.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/absence-engine/engine"
	"github.com/warp/absence-engine/milestone"
	"github.com/warp/absence-engine/sickness"
	"github.com/warp/absence-engine/trigger"
)

// orgHeader scopes case and action routes to the caller's organisation.
const orgHeader = "X-Organisation-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Cases            *sickness.CaseService
	Catalog          *milestone.CatalogService
	Actions          *milestone.ActionService
	MilestoneConfigs *milestone.ConfigService
	TriggerConfigs   *trigger.ConfigService
	Evaluator        *trigger.Evaluator
	Log              *log.Logger
}

// NewHandler creates a handler wired to the given services.
func NewHandler(
	cases *sickness.CaseService,
	catalog *milestone.CatalogService,
	actions *milestone.ActionService,
	milestoneConfigs *milestone.ConfigService,
	triggerConfigs *trigger.ConfigService,
	evaluator *trigger.Evaluator,
	logger *log.Logger,
) *Handler {
	return &Handler{
		Cases:            cases,
		Catalog:          catalog,
		Actions:          actions,
		MilestoneConfigs: milestoneConfigs,
		TriggerConfigs:   triggerConfigs,
		Evaluator:        evaluator,
		Log:              logger,
	}
}

// =============================================================================
// CASE HANDLERS
// =============================================================================

// ReportCase opens a new sickness case.
// POST /api/cases
func (h *Handler) ReportCase(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}

	var req ReportCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := engine.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	end, err := parseOptionalDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}

	c, err := h.Cases.ReportCase(r.Context(), sickness.ReportCaseInput{
		OrganisationID: orgID,
		EmployeeID:     req.EmployeeID,
		ReportedBy:     req.ReportedBy,
		AbsenceType:    req.AbsenceType,
		StartDate:      start,
		EndDate:        end,
		Notes:          req.Notes,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCaseDTO(c))
}

// GetCase returns a single case.
// GET /api/cases/{id}
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}

	c, err := h.Cases.Get(r.Context(), orgID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseDTO(c))
}

// ListCases returns the organisation's cases, optionally filtered.
// GET /api/cases?employee_id=&status=
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}

	filter := sickness.CaseFilter{
		EmployeeID: r.URL.Query().Get("employee_id"),
		Status:     sickness.CaseStatus(r.URL.Query().Get("status")),
	}
	cases, err := h.Cases.List(r.Context(), orgID, filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]CaseDTO, 0, len(cases))
	for i := range cases {
		dtos = append(dtos, toCaseDTO(&cases[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"cases": dtos})
}

// ApplyTransition applies a workflow action to a case.
// POST /api/cases/{id}/transitions
func (h *Handler) ApplyTransition(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, "Action is required", nil)
		return
	}

	c, err := h.Cases.Transition(r.Context(), orgID, chi.URLParam(r, "id"),
		sickness.CaseAction(req.Action), req.ActorID, req.Notes)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseDTO(c))
}

// GetTransitions returns a case's workflow history in creation order.
// GET /api/cases/{id}/transitions
func (h *Handler) GetTransitions(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}

	history, err := h.Cases.History(r.Context(), orgID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]TransitionDTO, 0, len(history))
	for _, t := range history {
		dtos = append(dtos, toTransitionDTO(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transitions": dtos})
}

// GetTimeline projects the case's milestone timeline as of today.
// GET /api/cases/{id}/timeline
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}

	c, err := h.Cases.Get(r.Context(), orgID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	catalog, err := h.Catalog.Effective(r.Context(), orgID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	entries := milestone.BuildTimeline(catalog, c.StartDate, engine.Today())
	dtos := make([]TimelineEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, TimelineEntryDTO{
			MilestoneKey: e.MilestoneKey,
			Label:        e.Label,
			ActionType:   e.ActionType,
			DayOffset:    e.DayOffset,
			DueDate:      e.DueDate.String(),
			Temporal:     string(e.Temporal),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"timeline": dtos})
}

// GetCaseActions returns the case's generated milestone actions.
// GET /api/cases/{id}/actions
func (h *Handler) GetCaseActions(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}
	caseID := chi.URLParam(r, "id")

	// Resolve through the org-scoped path first.
	if _, err := h.Cases.Get(r.Context(), orgID, caseID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	actions, err := h.Actions.ListByCase(r.Context(), caseID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]ActionDTO, 0, len(actions))
	for i := range actions {
		dtos = append(dtos, toActionDTO(&actions[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": dtos})
}

// GetAvailableActions returns the legal workflow actions for a case.
// GET /api/cases/{id}/available-actions
func (h *Handler) GetAvailableActions(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}

	actions, err := h.Cases.Actions(r.Context(), orgID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, string(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"available_actions": names})
}

// UpdateDates changes a case's absence dates and re-evaluates triggers.
// PUT /api/cases/{id}/dates
func (h *Handler) UpdateDates(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}

	var req UpdateDatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := engine.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	end, err := parseOptionalDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}

	c, err := h.Cases.UpdateDates(r.Context(), orgID, chi.URLParam(r, "id"), start, end)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseDTO(c))
}

// =============================================================================
// MILESTONE ACTION HANDLERS
// =============================================================================

// UpdateAction changes a milestone action's status. Completing an action
// whose milestone key carries an auto-transition attempts the mapped case
// action; a refusal is logged and never unwinds the completion.
// PUT /api/actions/{id}
func (h *Handler) UpdateAction(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}

	var req UpdateActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var completedAt *time.Time
	if req.CompletedAt != nil {
		t, err := time.Parse(time.RFC3339, *req.CompletedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid completed_at format (use RFC3339)", err)
			return
		}
		completedAt = &t
	}

	a, err := h.Actions.UpdateStatus(r.Context(), orgID, chi.URLParam(r, "id"), milestone.UpdateStatusInput{
		Status:      milestone.ActionStatus(req.Status),
		CompletedBy: req.CompletedBy,
		Notes:       req.Notes,
		CompletedAt: completedAt,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if a.Status == milestone.ActionCompleted {
		h.applyCompletionEffects(r, orgID, a, req.CompletedBy)
	}

	writeJSON(w, http.StatusOK, toActionDTO(a))
}

// applyCompletionEffects runs the case-workflow side effects of a completed
// milestone: the auto-transition mapping and the long-term review flag.
func (h *Handler) applyCompletionEffects(r *http.Request, orgID string, a *milestone.MilestoneAction, actorID string) {
	ctx := r.Context()

	if caseAction, mapped := milestone.AutoTransitions[a.MilestoneKey]; mapped {
		_, err := h.Cases.Transition(ctx, orgID, a.CaseID, sickness.CaseAction(caseAction), actorID, "")
		if err != nil {
			h.Log.Info("auto-transition skipped",
				"case", a.CaseID, "milestone", a.MilestoneKey, "action", caseAction, "err", err)
		}
	}

	if a.MilestoneKey == milestone.LongTermReviewKey {
		if err := h.Cases.MarkLongTerm(ctx, orgID, a.CaseID); err != nil {
			h.Log.Warn("long-term flag not set", "case", a.CaseID, "err", err)
		}
	}
}

// ResetAction returns a completed or in-progress action to pending.
// POST /api/actions/{id}/reset
func (h *Handler) ResetAction(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}

	var req struct {
		ActorID string `json:"actor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	a, err := h.Actions.ResetToPending(r.Context(), orgID, chi.URLParam(r, "id"), req.ActorID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActionDTO(a))
}

// =============================================================================
// MILESTONE CATALOG HANDLERS
// =============================================================================

// ListEffectiveMilestones returns the organisation's merged catalog.
// GET /api/organisations/{orgId}/milestones
func (h *Handler) ListEffectiveMilestones(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgId")

	catalog, err := h.Catalog.Effective(r.Context(), orgID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]MilestoneConfigDTO, 0, len(catalog))
	for _, c := range catalog {
		dtos = append(dtos, toMilestoneConfigDTO(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"milestones": dtos})
}

// UpsertMilestone creates or updates an organisation override.
// PUT /api/organisations/{orgId}/milestones/{key}
func (h *Handler) UpsertMilestone(w http.ResponseWriter, r *http.Request) {
	var req UpsertMilestoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, err := h.MilestoneConfigs.Upsert(r.Context(),
		chi.URLParam(r, "orgId"), chi.URLParam(r, "key"), actorID(r),
		milestone.UpsertInput{
			Label:       req.Label,
			Description: req.Description,
			ActionType:  req.ActionType,
			DayOffset:   req.DayOffset,
			IsActive:    req.IsActive,
		})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMilestoneConfigDTO(*c))
}

// ResetMilestone deletes an organisation override, restoring the default.
// DELETE /api/organisations/{orgId}/milestones/{key}
func (h *Handler) ResetMilestone(w http.ResponseWriter, r *http.Request) {
	err := h.MilestoneConfigs.ResetToDefault(r.Context(),
		chi.URLParam(r, "orgId"), chi.URLParam(r, "key"), actorID(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

// =============================================================================
// TRIGGER HANDLERS
// =============================================================================

// ListTriggers returns the organisation's threshold rules.
// GET /api/organisations/{orgId}/triggers
func (h *Handler) ListTriggers(w http.ResponseWriter, r *http.Request) {
	configs, err := h.TriggerConfigs.List(r.Context(), chi.URLParam(r, "orgId"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]TriggerConfigDTO, 0, len(configs))
	for _, c := range configs {
		dtos = append(dtos, toTriggerConfigDTO(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"triggers": dtos})
}

// CreateTrigger creates a threshold rule.
// POST /api/organisations/{orgId}/triggers
func (h *Handler) CreateTrigger(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeTriggerInput(w, r)
	if !ok {
		return
	}

	c, err := h.TriggerConfigs.Create(r.Context(), chi.URLParam(r, "orgId"), in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTriggerConfigDTO(*c))
}

// UpdateTrigger updates a threshold rule.
// PUT /api/organisations/{orgId}/triggers/{id}
func (h *Handler) UpdateTrigger(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeTriggerInput(w, r)
	if !ok {
		return
	}

	c, err := h.TriggerConfigs.Update(r.Context(),
		chi.URLParam(r, "orgId"), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTriggerConfigDTO(*c))
}

func decodeTriggerInput(w http.ResponseWriter, r *http.Request) (trigger.ConfigInput, bool) {
	var req TriggerConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return trigger.ConfigInput{}, false
	}
	return trigger.ConfigInput{
		TriggerType:    trigger.TriggerType(req.TriggerType),
		ThresholdValue: decimal.NewFromFloat(req.ThresholdValue),
		PeriodDays:     req.PeriodDays,
		IsActive:       req.IsActive,
	}, true
}

// ListAlerts returns the organisation's alerts.
// GET /api/organisations/{orgId}/alerts?employee_id=&acknowledged=
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	filter := trigger.AlertFilter{EmployeeID: r.URL.Query().Get("employee_id")}
	if raw := r.URL.Query().Get("acknowledged"); raw != "" {
		acked, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid acknowledged value (use true/false)", err)
			return
		}
		filter.Acknowledged = &acked
	}

	alerts, err := h.Evaluator.ListAlerts(r.Context(), chi.URLParam(r, "orgId"), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]AlertDTO, 0, len(alerts))
	for _, a := range alerts {
		dtos = append(dtos, toAlertDTO(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": dtos})
}

// AcknowledgeAlert stamps an alert as seen. Re-acknowledging re-stamps.
// POST /api/alerts/{id}/acknowledge
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}

	var req AcknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	a, err := h.Evaluator.AcknowledgeAlert(r.Context(), orgID, chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAlertDTO(*a))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) orgID(w http.ResponseWriter, r *http.Request) (string, bool) {
	orgID := r.Header.Get(orgHeader)
	if orgID == "" {
		writeError(w, http.StatusBadRequest, orgHeader+" header is required", nil)
		return "", false
	}
	return orgID, true
}

// actorID identifies the operator on configuration routes.
func actorID(r *http.Request) string {
	return r.Header.Get("X-Actor-ID")
}

func parseOptionalDate(s *string) (*engine.Date, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := engine.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, engine.ErrInvalidTransition),
		errors.Is(err, engine.ErrCaseClosed),
		errors.Is(err, engine.ErrAlertExists):
		writeError(w, http.StatusConflict, "Conflict", err)
	case errors.Is(err, engine.ErrValidation),
		errors.Is(err, engine.ErrInvalidOverride):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		h.Log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
