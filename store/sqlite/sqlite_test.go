package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/absence-engine/engine"
	"github.com/warp/absence-engine/milestone"
	"github.com/warp/absence-engine/sickness"
	"github.com/warp/absence-engine/store/sqlite"
	"github.com/warp/absence-engine/trigger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func insertCase(t *testing.T, store *sqlite.Store, org, employee string, status sickness.CaseStatus) sickness.SicknessCase {
	t.Helper()
	now := time.Now()
	c := sickness.SicknessCase{
		ID:             uuid.NewString(),
		OrganisationID: org,
		EmployeeID:     employee,
		Status:         status,
		StartDate:      engine.NewDate(2025, time.March, 3),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, store.InsertCase(context.Background(), &c))
	return c
}

func insertRule(t *testing.T, store *sqlite.Store, org string) trigger.TriggerConfig {
	t.Helper()
	now := time.Now()
	c := trigger.TriggerConfig{
		ID:             uuid.NewString(),
		OrganisationID: org,
		TriggerType:    trigger.Frequency,
		ThresholdValue: decimal.NewFromInt(3),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, store.InsertTriggerConfig(context.Background(), &c))
	return c
}

func insertAlert(t *testing.T, store *sqlite.Store, rule trigger.TriggerConfig, c sickness.SicknessCase) trigger.TriggerAlert {
	t.Helper()
	a := trigger.TriggerAlert{
		ID:              uuid.NewString(),
		TriggerConfigID: rule.ID,
		OrganisationID:  c.OrganisationID,
		EmployeeID:      c.EmployeeID,
		SicknessCaseID:  c.ID,
		TriggerType:     rule.TriggerType,
		TriggeredValue:  decimal.NewFromInt(3),
		CreatedAt:       time.Now(),
	}
	require.NoError(t, store.InsertAlert(context.Background(), &a))
	return a
}

// =============================================================================
// MIGRATION AND SEEDING
// =============================================================================

func TestNew_SeedsDefaultCatalog(t *testing.T) {
	store := newTestStore(t)

	defaults, err := store.ListDefaultMilestones(context.Background())
	require.NoError(t, err)
	require.Len(t, defaults, len(milestone.SystemDefaults()))

	for _, d := range defaults {
		assert.Equal(t, "default-"+d.MilestoneKey, d.ID)
		assert.True(t, d.IsDefault())
	}
}

// =============================================================================
// CASES
// =============================================================================

func TestGetCase_ScopedToOrganisation(t *testing.T) {
	store := newTestStore(t)
	c := insertCase(t, store, "org-1", "emp-1", sickness.StatusTracking)

	_, err := store.GetCase(context.Background(), "org-2", c.ID)
	assert.ErrorIs(t, err, engine.ErrNotFound)

	got, err := store.GetCase(context.Background(), "org-1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
}

func TestCaseRoundTrip_NullableFields(t *testing.T) {
	// The optional columns (end date, working days lost, notes) must survive
	// a write-read cycle both when set and when absent.
	store := newTestStore(t)
	ctx := context.Background()

	open := insertCase(t, store, "org-1", "emp-1", sickness.StatusReported)
	got, err := store.GetCase(ctx, "org-1", open.ID)
	require.NoError(t, err)
	assert.Nil(t, got.EndDate)
	assert.Nil(t, got.WorkingDaysLost)
	assert.Empty(t, got.Notes)

	end := engine.NewDate(2025, time.March, 7)
	lost := decimal.NewFromInt(5)
	open.EndDate = &end
	open.WorkingDaysLost = &lost
	open.IsLongTerm = true
	open.UpdatedAt = time.Now()
	require.NoError(t, store.UpdateCaseDates(ctx, &open))

	got, err = store.GetCase(ctx, "org-1", open.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndDate)
	assert.Equal(t, "2025-03-07", got.EndDate.String())
	require.NotNil(t, got.WorkingDaysLost)
	assert.True(t, got.WorkingDaysLost.Equal(lost))
	assert.True(t, got.IsLongTerm)
}

func TestUpdateCaseStatus_ConditionalOnExpectedStatus(t *testing.T) {
	// GIVEN: A case in TRACKING
	// WHEN: An update expects a different current status
	// THEN: No row matches, the caller learns it lost the race
	store := newTestStore(t)
	ctx := context.Background()
	c := insertCase(t, store, "org-1", "emp-1", sickness.StatusTracking)

	ok, err := store.UpdateCaseStatus(ctx, c.ID, sickness.StatusReported, sickness.StatusTracking)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.GetCase(ctx, "org-1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, sickness.StatusTracking, got.Status)

	ok, err = store.UpdateCaseStatus(ctx, c.ID, sickness.StatusTracking, sickness.StatusFitNoteReceived)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListCases_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertCase(t, store, "org-1", "emp-1", sickness.StatusTracking)
	insertCase(t, store, "org-1", "emp-1", sickness.StatusClosed)
	insertCase(t, store, "org-1", "emp-2", sickness.StatusTracking)
	insertCase(t, store, "org-2", "emp-1", sickness.StatusTracking)

	all, err := store.ListCases(ctx, "org-1", sickness.CaseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byEmployee, err := store.ListCases(ctx, "org-1", sickness.CaseFilter{EmployeeID: "emp-1"})
	require.NoError(t, err)
	assert.Len(t, byEmployee, 2)

	byBoth, err := store.ListCases(ctx, "org-1", sickness.CaseFilter{
		EmployeeID: "emp-1", Status: sickness.StatusClosed,
	})
	require.NoError(t, err)
	assert.Len(t, byBoth, 1)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	var caseID string
	err := store.WithTx(ctx, func(tx sickness.Store) error {
		c := sickness.SicknessCase{
			ID: uuid.NewString(), OrganisationID: "org-1", EmployeeID: "emp-1",
			Status: sickness.StatusReported, StartDate: engine.NewDate(2025, time.March, 3),
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}
		if err := tx.InsertCase(ctx, &c); err != nil {
			return err
		}
		caseID = c.ID
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.GetCase(ctx, "org-1", caseID)
	assert.ErrorIs(t, err, engine.ErrNotFound, "the insert must not survive the rollback")
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var caseID string
	err := store.WithTx(ctx, func(tx sickness.Store) error {
		c := sickness.SicknessCase{
			ID: uuid.NewString(), OrganisationID: "org-1", EmployeeID: "emp-1",
			Status: sickness.StatusReported, StartDate: engine.NewDate(2025, time.March, 3),
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}
		caseID = c.ID
		return tx.InsertCase(ctx, &c)
	})
	require.NoError(t, err)

	_, err = store.GetCase(ctx, "org-1", caseID)
	assert.NoError(t, err)
}

// =============================================================================
// TRANSITION LOG
// =============================================================================

func TestListTransitions_CreationOrder(t *testing.T) {
	// All three rows carry the same timestamp; ordering must still reflect
	// insertion order, not clock resolution.
	store := newTestStore(t)
	ctx := context.Background()
	c := insertCase(t, store, "org-1", "emp-1", sickness.StatusTracking)

	at := time.Now()
	for _, to := range []sickness.CaseStatus{
		sickness.StatusReported, sickness.StatusTracking, sickness.StatusFitNoteReceived,
	} {
		require.NoError(t, store.AppendTransition(ctx, sickness.CaseTransition{
			ID: uuid.NewString(), CaseID: c.ID, ToStatus: to,
			Action: sickness.ActionAcknowledge, At: at,
		}))
	}

	history, err := store.ListTransitions(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, sickness.StatusReported, history[0].ToStatus)
	assert.Equal(t, sickness.StatusTracking, history[1].ToStatus)
	assert.Equal(t, sickness.StatusFitNoteReceived, history[2].ToStatus)
}

// =============================================================================
// ALERTS
// =============================================================================

func TestInsertAlert_DuplicatePairRejected(t *testing.T) {
	// GIVEN: An alert already exists for a (rule, case) pair
	// WHEN: A second insert arrives for the same pair
	// THEN: The unique index rejects it as ErrAlertExists
	store := newTestStore(t)
	c := insertCase(t, store, "org-1", "emp-1", sickness.StatusClosed)
	rule := insertRule(t, store, "org-1")
	insertAlert(t, store, rule, c)

	dup := trigger.TriggerAlert{
		ID:              uuid.NewString(),
		TriggerConfigID: rule.ID,
		OrganisationID:  "org-1",
		EmployeeID:      "emp-1",
		SicknessCaseID:  c.ID,
		TriggerType:     rule.TriggerType,
		TriggeredValue:  decimal.NewFromInt(4),
		CreatedAt:       time.Now(),
	}
	err := store.InsertAlert(context.Background(), &dup)
	assert.ErrorIs(t, err, engine.ErrAlertExists)
}

func TestGetAlert_ScopedToOrganisation(t *testing.T) {
	store := newTestStore(t)
	c := insertCase(t, store, "org-1", "emp-1", sickness.StatusClosed)
	rule := insertRule(t, store, "org-1")
	a := insertAlert(t, store, rule, c)

	_, err := store.GetAlert(context.Background(), "org-2", a.ID)
	assert.ErrorIs(t, err, engine.ErrNotFound)

	got, err := store.GetAlert(context.Background(), "org-1", a.ID)
	require.NoError(t, err)
	assert.True(t, got.TriggeredValue.Equal(a.TriggeredValue))
	assert.Nil(t, got.AcknowledgedAt)
}

func TestListAlerts_AcknowledgedFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rule := insertRule(t, store, "org-1")

	first := insertAlert(t, store, rule, insertCase(t, store, "org-1", "emp-1", sickness.StatusClosed))
	insertAlert(t, store, rule, insertCase(t, store, "org-1", "emp-1", sickness.StatusClosed))

	require.NoError(t, store.StampAcknowledgement(ctx, first.ID, "hr-1", time.Now()))

	acked := true
	got, err := store.ListAlerts(ctx, "org-1", trigger.AlertFilter{Acknowledged: &acked})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, "hr-1", got[0].AcknowledgedBy)
	require.NotNil(t, got[0].AcknowledgedAt)

	acked = false
	open, err := store.ListAlerts(ctx, "org-1", trigger.AlertFilter{Acknowledged: &acked})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.NotEqual(t, first.ID, open[0].ID)
}

func TestListAlerts_EmployeeFilter(t *testing.T) {
	store := newTestStore(t)
	rule := insertRule(t, store, "org-1")
	insertAlert(t, store, rule, insertCase(t, store, "org-1", "emp-1", sickness.StatusClosed))
	insertAlert(t, store, rule, insertCase(t, store, "org-1", "emp-2", sickness.StatusClosed))

	got, err := store.ListAlerts(context.Background(), "org-1", trigger.AlertFilter{EmployeeID: "emp-2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "emp-2", got[0].EmployeeID)
}
