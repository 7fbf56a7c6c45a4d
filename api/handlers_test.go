package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/absence-engine/api"
	"github.com/warp/absence-engine/engine"
	"github.com/warp/absence-engine/milestone"
	"github.com/warp/absence-engine/sickness"
	"github.com/warp/absence-engine/store/sqlite"
	"github.com/warp/absence-engine/trigger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// newTestServer wires the full stack against an in-memory database, the same
// composition as cmd/server.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := log.New(io.Discard)
	notifier := engine.NopNotifier{}

	catalog := milestone.NewCatalogService(store)
	evaluator := trigger.NewEvaluator(store, store, store, notifier, logger)
	cases := sickness.NewCaseService(store, catalog, evaluator, store, notifier, engine.Plaintext{}, logger)
	actions := milestone.NewActionService(store, store, store, engine.Plaintext{}, logger)
	milestoneConfigs := milestone.NewConfigService(store, store, logger)
	triggerConfigs := trigger.NewConfigService(store)

	handler := api.NewHandler(cases, catalog, actions, milestoneConfigs, triggerConfigs, evaluator, logger)
	srv := httptest.NewServer(api.NewRouter(handler, []string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

// doJSON issues an org-scoped request and decodes the JSON response.
func doJSON(t *testing.T, srv *httptest.Server, method, path, org string, body any) (int, map[string]any) {
	t.Helper()

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, srv.URL+path, payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if org != "" {
		req.Header.Set("X-Organisation-ID", org)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func reportCase(t *testing.T, srv *httptest.Server, org, employee string) string {
	return reportCaseOn(t, srv, org, employee, "2025-03-03")
}

func reportCaseOn(t *testing.T, srv *httptest.Server, org, employee, startDate string) string {
	t.Helper()
	status, body := doJSON(t, srv, http.MethodPost, "/api/cases", org, map[string]any{
		"employee_id": employee,
		"reported_by": "mgr-1",
		"start_date":  startDate,
	})
	require.Equal(t, http.StatusCreated, status)
	return body["id"].(string)
}

// =============================================================================
// CASE LIFECYCLE
// =============================================================================

func TestReportCase_Created(t *testing.T) {
	srv := newTestServer(t)

	status, body := doJSON(t, srv, http.MethodPost, "/api/cases", "org-1", map[string]any{
		"employee_id": "emp-1",
		"start_date":  "2025-03-03",
	})

	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "REPORTED", body["status"])
	assert.Equal(t, "org-1", body["organisation_id"])
	assert.NotEmpty(t, body["id"])
}

func TestReportCase_MissingOrganisationHeader(t *testing.T) {
	srv := newTestServer(t)

	status, body := doJSON(t, srv, http.MethodPost, "/api/cases", "", map[string]any{
		"employee_id": "emp-1",
		"start_date":  "2025-03-03",
	})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "X-Organisation-ID")
}

func TestGetCase_WrongOrganisationIs404(t *testing.T) {
	srv := newTestServer(t)
	caseID := reportCase(t, srv, "org-1", "emp-1")

	status, _ := doJSON(t, srv, http.MethodGet, "/api/cases/"+caseID, "org-2", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestApplyTransition_IllegalActionIsConflict(t *testing.T) {
	// GIVEN: A freshly reported case
	// WHEN: Closing it directly
	// THEN: 409; REPORTED only allows ACKNOWLEDGE
	srv := newTestServer(t)
	caseID := reportCase(t, srv, "org-1", "emp-1")

	status, _ := doJSON(t, srv, http.MethodPost, "/api/cases/"+caseID+"/transitions", "org-1", map[string]any{
		"action":   "CLOSE_CASE",
		"actor_id": "mgr-1",
	})
	assert.Equal(t, http.StatusConflict, status)
}

func TestApplyTransition_CloseWithoutEndDateRejected(t *testing.T) {
	srv := newTestServer(t)
	caseID := reportCase(t, srv, "org-1", "emp-1")

	status, _ := doJSON(t, srv, http.MethodPost, "/api/cases/"+caseID+"/transitions", "org-1", map[string]any{
		"action": "ACKNOWLEDGE", "actor_id": "mgr-1",
	})
	require.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, srv, http.MethodPost, "/api/cases/"+caseID+"/transitions", "org-1", map[string]any{
		"action": "CLOSE_CASE", "actor_id": "mgr-1",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, srv, http.MethodPut, "/api/cases/"+caseID+"/dates", "org-1", map[string]any{
		"start_date": "2025-03-03", "end_date": "2025-03-07",
	})
	require.Equal(t, http.StatusOK, status)

	status, body := doJSON(t, srv, http.MethodPost, "/api/cases/"+caseID+"/transitions", "org-1", map[string]any{
		"action": "CLOSE_CASE", "actor_id": "mgr-1",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "CLOSED", body["status"])
}

func TestGetTransitions_IncludesReportRow(t *testing.T) {
	srv := newTestServer(t)
	caseID := reportCase(t, srv, "org-1", "emp-1")

	status, body := doJSON(t, srv, http.MethodGet, "/api/cases/"+caseID+"/transitions", "org-1", nil)
	require.Equal(t, http.StatusOK, status)

	transitions := body["transitions"].([]any)
	require.Len(t, transitions, 1)
	first := transitions[0].(map[string]any)
	assert.Equal(t, "REPORT", first["action"])
	assert.Nil(t, first["from_status"])
}

func TestGetTimeline_ProjectsCatalog(t *testing.T) {
	srv := newTestServer(t)
	caseID := reportCase(t, srv, "org-1", "emp-1")

	status, body := doJSON(t, srv, http.MethodGet, "/api/cases/"+caseID+"/timeline", "org-1", nil)
	require.Equal(t, http.StatusOK, status)

	timeline := body["timeline"].([]any)
	require.Len(t, timeline, len(milestone.SystemDefaults()))
	first := timeline[0].(map[string]any)
	assert.Equal(t, "DAY_1", first["milestone_key"])
	assert.Equal(t, "2025-03-04", first["due_date"])
}

func TestGetAvailableActions(t *testing.T) {
	srv := newTestServer(t)
	caseID := reportCase(t, srv, "org-1", "emp-1")

	status, body := doJSON(t, srv, http.MethodGet, "/api/cases/"+caseID+"/available-actions", "org-1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"ACKNOWLEDGE"}, body["available_actions"])
}

// =============================================================================
// MILESTONE ACTIONS
// =============================================================================

func TestUpdateAction_CompletionAutoTransitionsCase(t *testing.T) {
	// GIVEN: A case in TRACKING with a generated fit-note action
	// WHEN: That action is completed
	// THEN: The case advances to FIT_NOTE_RECEIVED without a second request
	srv := newTestServer(t)
	caseID := reportCase(t, srv, "org-1", "emp-1")

	status, _ := doJSON(t, srv, http.MethodPost, "/api/cases/"+caseID+"/transitions", "org-1", map[string]any{
		"action": "ACKNOWLEDGE", "actor_id": "mgr-1",
	})
	require.Equal(t, http.StatusOK, status)

	status, body := doJSON(t, srv, http.MethodGet, "/api/cases/"+caseID+"/actions", "org-1", nil)
	require.Equal(t, http.StatusOK, status)

	var fitNoteActionID string
	for _, raw := range body["actions"].([]any) {
		a := raw.(map[string]any)
		if a["milestone_key"] == "DAY_7" {
			fitNoteActionID = a["id"].(string)
		}
	}
	require.NotEmpty(t, fitNoteActionID)

	status, updated := doJSON(t, srv, http.MethodPut, "/api/actions/"+fitNoteActionID, "org-1", map[string]any{
		"status":       "COMPLETED",
		"completed_by": "mgr-1",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "COMPLETED", updated["status"])

	status, c := doJSON(t, srv, http.MethodGet, "/api/cases/"+caseID, "org-1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "FIT_NOTE_RECEIVED", c["status"])
}

func TestResetAction_RoundTrip(t *testing.T) {
	srv := newTestServer(t)
	caseID := reportCase(t, srv, "org-1", "emp-1")

	status, body := doJSON(t, srv, http.MethodGet, "/api/cases/"+caseID+"/actions", "org-1", nil)
	require.Equal(t, http.StatusOK, status)
	actionID := body["actions"].([]any)[0].(map[string]any)["id"].(string)

	status, _ = doJSON(t, srv, http.MethodPut, "/api/actions/"+actionID, "org-1", map[string]any{
		"status": "COMPLETED", "completed_by": "mgr-1",
	})
	require.Equal(t, http.StatusOK, status)

	status, reset := doJSON(t, srv, http.MethodPost, "/api/actions/"+actionID+"/reset", "org-1", map[string]any{
		"actor_id": "mgr-2",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "PENDING", reset["status"])
	assert.Nil(t, reset["completed_at"])
}

func TestActionRoutes_WrongOrganisationIs404(t *testing.T) {
	// GIVEN: An action whose parent case belongs to org-1
	// WHEN: org-2 hits the action mutation routes
	// THEN: 404 on both, and org-1's action is untouched
	srv := newTestServer(t)
	caseID := reportCase(t, srv, "org-1", "emp-1")

	status, body := doJSON(t, srv, http.MethodGet, "/api/cases/"+caseID+"/actions", "org-1", nil)
	require.Equal(t, http.StatusOK, status)
	actionID := body["actions"].([]any)[0].(map[string]any)["id"].(string)

	status, _ = doJSON(t, srv, http.MethodPut, "/api/actions/"+actionID, "org-2", map[string]any{
		"status": "COMPLETED", "completed_by": "intruder",
	})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doJSON(t, srv, http.MethodPost, "/api/actions/"+actionID+"/reset", "org-2", map[string]any{
		"actor_id": "intruder",
	})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = doJSON(t, srv, http.MethodGet, "/api/cases/"+caseID+"/actions", "org-1", nil)
	require.Equal(t, http.StatusOK, status)
	first := body["actions"].([]any)[0].(map[string]any)
	assert.Equal(t, "PENDING", first["status"])
	assert.Nil(t, first["completed_by"])
}

func TestResetAction_MalformedBodyRejected(t *testing.T) {
	srv := newTestServer(t)
	caseID := reportCase(t, srv, "org-1", "emp-1")

	status, body := doJSON(t, srv, http.MethodGet, "/api/cases/"+caseID+"/actions", "org-1", nil)
	require.Equal(t, http.StatusOK, status)
	actionID := body["actions"].([]any)[0].(map[string]any)["id"].(string)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/actions/"+actionID+"/reset",
		bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Organisation-ID", "org-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// ORGANISATION CONFIGURATION
// =============================================================================

func TestMilestoneOverride_UpsertThenReset(t *testing.T) {
	srv := newTestServer(t)

	status, body := doJSON(t, srv, http.MethodPut, "/api/organisations/org-1/milestones/DAY_7", "", map[string]any{
		"label":       "Fit note chase call",
		"action_type": "CONTACT_EMPLOYEE",
		"day_offset":  5,
		"is_active":   true,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["is_default"])

	status, merged := doJSON(t, srv, http.MethodGet, "/api/organisations/org-1/milestones", "", nil)
	require.Equal(t, http.StatusOK, status)
	for _, raw := range merged["milestones"].([]any) {
		m := raw.(map[string]any)
		if m["milestone_key"] == "DAY_7" {
			assert.Equal(t, float64(5), m["day_offset"])
		}
	}

	status, _ = doJSON(t, srv, http.MethodDelete, "/api/organisations/org-1/milestones/DAY_7", "", nil)
	require.Equal(t, http.StatusOK, status)

	status, merged = doJSON(t, srv, http.MethodGet, "/api/organisations/org-1/milestones", "", nil)
	require.Equal(t, http.StatusOK, status)
	for _, raw := range merged["milestones"].([]any) {
		m := raw.(map[string]any)
		if m["milestone_key"] == "DAY_7" {
			assert.Equal(t, float64(7), m["day_offset"])
			assert.Equal(t, true, m["is_default"])
		}
	}
}

func TestResetMilestone_WithoutOverrideRejected(t *testing.T) {
	srv := newTestServer(t)

	status, _ := doJSON(t, srv, http.MethodDelete, "/api/organisations/org-1/milestones/DAY_7", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCreateTrigger_InvalidTypeRejected(t *testing.T) {
	srv := newTestServer(t)

	status, _ := doJSON(t, srv, http.MethodPost, "/api/organisations/org-1/triggers", "", map[string]any{
		"trigger_type":    "LUNAR_PHASE",
		"threshold_value": 3,
		"is_active":       true,
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

// =============================================================================
// ALERT FLOW
// =============================================================================

func TestAlertFlow_FireListAcknowledge(t *testing.T) {
	// GIVEN: A frequency rule with threshold 2
	// WHEN: The same employee reports a second case
	// THEN: An alert fires, lists as unacknowledged, and acknowledges cleanly
	srv := newTestServer(t)

	status, rule := doJSON(t, srv, http.MethodPost, "/api/organisations/org-1/triggers", "", map[string]any{
		"trigger_type":    "FREQUENCY",
		"threshold_value": 2,
		"period_days":     365,
		"is_active":       true,
	})
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, rule["id"])

	// The frequency window trails from today; the reports must land inside it.
	reportCaseOn(t, srv, "org-1", "emp-1", engine.Today().AddDays(-30).String())
	reportCaseOn(t, srv, "org-1", "emp-1", engine.Today().AddDays(-3).String())

	status, body := doJSON(t, srv, http.MethodGet, "/api/organisations/org-1/alerts?acknowledged=false", "", nil)
	require.Equal(t, http.StatusOK, status)
	alerts := body["alerts"].([]any)
	require.Len(t, alerts, 1)

	alert := alerts[0].(map[string]any)
	assert.Equal(t, "emp-1", alert["employee_id"])
	assert.Equal(t, float64(2), alert["triggered_value"])

	alertID := alert["id"].(string)
	status, acked := doJSON(t, srv, http.MethodPost,
		fmt.Sprintf("/api/alerts/%s/acknowledge", alertID), "org-1", map[string]any{
			"user_id": "hr-1",
		})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hr-1", acked["acknowledged_by"])
	assert.NotNil(t, acked["acknowledged_at"])

	status, _ = doJSON(t, srv, http.MethodPost,
		fmt.Sprintf("/api/alerts/%s/acknowledge", alertID), "org-1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status, "user_id is mandatory")
}
