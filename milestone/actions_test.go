package milestone_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/absence-engine/engine"
	"github.com/warp/absence-engine/milestone"
	"github.com/warp/absence-engine/sickness"
	"github.com/warp/absence-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newActionService(t *testing.T) (*milestone.ActionService, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := milestone.NewActionService(store, store, store, engine.Plaintext{}, log.New(io.Discard))
	return svc, store
}

// seedAction stores a parent case plus one pending DAY_7 action.
func seedAction(t *testing.T, store *memory.Store, caseStatus sickness.CaseStatus) milestone.MilestoneAction {
	t.Helper()
	ctx := context.Background()
	start := engine.NewDate(2025, time.March, 3)

	require.NoError(t, store.InsertCase(ctx, &sickness.SicknessCase{
		ID: "case-1", OrganisationID: "org-1", EmployeeID: "emp-1",
		Status: caseStatus, StartDate: start,
	}))

	catalog := []milestone.MilestoneConfig{
		{MilestoneKey: "DAY_7", Label: "Fit note required", DayOffset: 7, IsActive: true},
	}
	actions := milestone.BuildActions("case-1", catalog, start, time.Now())
	require.NoError(t, store.BulkInsertActions(ctx, actions))
	return actions[0]
}

// =============================================================================
// STATUS UPDATES
// =============================================================================

func TestUpdateStatus_CompletionStampsActorAndTime(t *testing.T) {
	svc, store := newActionService(t)
	a := seedAction(t, store, sickness.StatusTracking)

	updated, err := svc.UpdateStatus(context.Background(), "org-1", a.ID, milestone.UpdateStatusInput{
		Status:      milestone.ActionCompleted,
		CompletedBy: "mgr-1",
	})
	require.NoError(t, err)

	assert.Equal(t, milestone.ActionCompleted, updated.Status)
	assert.Equal(t, "mgr-1", updated.CompletedBy)
	require.NotNil(t, updated.CompletedAt)
}

func TestUpdateStatus_RecompletionKeepsOriginalStamp(t *testing.T) {
	// GIVEN: An action completed by mgr-1
	// WHEN: A second COMPLETED update arrives from mgr-2 with extra notes
	// THEN: The original stamp survives; the notes merge in
	svc, store := newActionService(t)
	a := seedAction(t, store, sickness.StatusTracking)
	ctx := context.Background()

	first, err := svc.UpdateStatus(ctx, "org-1", a.ID, milestone.UpdateStatusInput{
		Status:      milestone.ActionCompleted,
		CompletedBy: "mgr-1",
		Notes:       "fit note scanned",
	})
	require.NoError(t, err)

	second, err := svc.UpdateStatus(ctx, "org-1", a.ID, milestone.UpdateStatusInput{
		Status:      milestone.ActionCompleted,
		CompletedBy: "mgr-2",
		Notes:       "duplicate submission",
	})
	require.NoError(t, err)

	assert.Equal(t, "mgr-1", second.CompletedBy)
	assert.Equal(t, first.CompletedAt, second.CompletedAt)
	assert.Equal(t, "fit note scanned\nduplicate submission", second.Notes)
}

func TestUpdateStatus_HonoursExplicitCompletedAt(t *testing.T) {
	svc, store := newActionService(t)
	a := seedAction(t, store, sickness.StatusTracking)

	backdated := time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC)
	updated, err := svc.UpdateStatus(context.Background(), "org-1", a.ID, milestone.UpdateStatusInput{
		Status:      milestone.ActionCompleted,
		CompletedBy: "mgr-1",
		CompletedAt: &backdated,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.CompletedAt)
	assert.True(t, updated.CompletedAt.Equal(backdated))
}

func TestUpdateStatus_LeavingCompletedRequiresReset(t *testing.T) {
	svc, store := newActionService(t)
	a := seedAction(t, store, sickness.StatusTracking)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, "org-1", a.ID, milestone.UpdateStatusInput{
		Status:      milestone.ActionCompleted,
		CompletedBy: "mgr-1",
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, "org-1", a.ID, milestone.UpdateStatusInput{Status: milestone.ActionPending})
	assert.ErrorIs(t, err, engine.ErrValidation)

	_, err = svc.UpdateStatus(ctx, "org-1", a.ID, milestone.UpdateStatusInput{Status: milestone.ActionInProgress})
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestUpdateStatus_UnknownStatusRejected(t *testing.T) {
	svc, store := newActionService(t)
	a := seedAction(t, store, sickness.StatusTracking)

	_, err := svc.UpdateStatus(context.Background(), "org-1", a.ID, milestone.UpdateStatusInput{Status: "DONE"})
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestUpdateStatus_OtherOrganisationActionIsInvisible(t *testing.T) {
	// GIVEN: An action whose parent case belongs to org-1
	// WHEN: org-2 tries to complete it
	// THEN: Not found, indistinguishable from a missing action; the row is
	//       untouched
	svc, store := newActionService(t)
	a := seedAction(t, store, sickness.StatusTracking)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, "org-2", a.ID, milestone.UpdateStatusInput{
		Status:      milestone.ActionCompleted,
		CompletedBy: "intruder",
	})
	assert.ErrorIs(t, err, engine.ErrNotFound)

	stored, err := store.GetAction(ctx, "org-1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, milestone.ActionPending, stored.Status)
	assert.Empty(t, stored.CompletedBy)
}

func TestUpdateStatus_MissingAction(t *testing.T) {
	svc, _ := newActionService(t)

	_, err := svc.UpdateStatus(context.Background(), "org-1", "nope", milestone.UpdateStatusInput{
		Status: milestone.ActionInProgress,
	})
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

// =============================================================================
// RESET TO PENDING
// =============================================================================

func TestResetToPending_ClearsCompletionFields(t *testing.T) {
	svc, store := newActionService(t)
	a := seedAction(t, store, sickness.StatusTracking)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, "org-1", a.ID, milestone.UpdateStatusInput{
		Status:      milestone.ActionCompleted,
		CompletedBy: "mgr-1",
		Notes:       "done",
	})
	require.NoError(t, err)

	reset, err := svc.ResetToPending(ctx, "org-1", a.ID, "mgr-2")
	require.NoError(t, err)

	assert.Equal(t, milestone.ActionPending, reset.Status)
	assert.Empty(t, reset.CompletedBy)
	assert.Nil(t, reset.CompletedAt)
	assert.Empty(t, reset.Notes)
}

func TestResetToPending_OtherOrganisationActionIsInvisible(t *testing.T) {
	svc, store := newActionService(t)
	a := seedAction(t, store, sickness.StatusTracking)

	_, err := svc.ResetToPending(context.Background(), "org-2", a.ID, "intruder")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestResetToPending_RefusedOnClosedCase(t *testing.T) {
	// GIVEN: The parent case is CLOSED
	// WHEN: A reset is attempted
	// THEN: Refused; the closed case's milestone record is frozen
	svc, store := newActionService(t)
	a := seedAction(t, store, sickness.StatusClosed)

	_, err := svc.ResetToPending(context.Background(), "org-1", a.ID, "mgr-1")
	assert.ErrorIs(t, err, engine.ErrCaseClosed)
}
