package milestone_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/absence-engine/engine"
	"github.com/warp/absence-engine/milestone"
)

// =============================================================================
// TEMPORAL CLASSIFICATION
// =============================================================================

func TestClassify_DueTodayIsNeitherOverdueNorUpcoming(t *testing.T) {
	today := engine.NewDate(2025, time.March, 10)

	assert.Equal(t, milestone.DueToday, milestone.Classify(today, today))
	assert.Equal(t, milestone.Overdue, milestone.Classify(today.AddDays(-1), today))
	assert.Equal(t, milestone.Upcoming, milestone.Classify(today.AddDays(1), today))
}

// =============================================================================
// TIMELINE PROJECTION
// =============================================================================

func TestBuildTimeline_ProjectsOffsetsOntoStartDate(t *testing.T) {
	// GIVEN: A case that started 7 days ago
	// THEN: DAY_3 is overdue, DAY_7 is due today, DAY_14 is upcoming
	today := engine.NewDate(2025, time.March, 10)
	start := today.AddDays(-7)

	catalog := []milestone.MilestoneConfig{
		{MilestoneKey: "DAY_3", Label: "Early contact", DayOffset: 3, IsActive: true},
		{MilestoneKey: "DAY_7", Label: "Fit note required", DayOffset: 7, IsActive: true},
		{MilestoneKey: "DAY_14", Label: "Welfare call", DayOffset: 14, IsActive: true},
	}

	entries := milestone.BuildTimeline(catalog, start, today)
	require.Len(t, entries, 3)

	assert.Equal(t, milestone.Overdue, entries[0].Temporal)
	assert.True(t, entries[0].DueDate.Equal(start.AddDays(3)))

	assert.Equal(t, milestone.DueToday, entries[1].Temporal)
	assert.True(t, entries[1].DueDate.Equal(today))

	assert.Equal(t, milestone.Upcoming, entries[2].Temporal)
	assert.True(t, entries[2].DueDate.Equal(start.AddDays(14)))
}

func TestBuildTimeline_EmptyCatalog(t *testing.T) {
	today := engine.NewDate(2025, time.March, 10)
	entries := milestone.BuildTimeline(nil, today, today)
	assert.Empty(t, entries)
}

func TestBuildActions_DueDatesFixedAtGeneration(t *testing.T) {
	// GIVEN: Actions generated from one catalog
	// WHEN: The catalog entry's offset later changes
	// THEN: The generated due dates do not move
	start := engine.NewDate(2025, time.March, 3)
	catalog := []milestone.MilestoneConfig{
		{MilestoneKey: "DAY_7", Label: "Fit note required", DayOffset: 7, IsActive: true},
	}

	actions := milestone.BuildActions("case-1", catalog, start, time.Now())
	require.Len(t, actions, 1)
	require.True(t, actions[0].DueDate.Equal(start.AddDays(7)))

	catalog[0].DayOffset = 3

	assert.True(t, actions[0].DueDate.Equal(start.AddDays(7)),
		"catalog edits must not move generated due dates")
}

func TestBuildActions_OnePendingActionPerEntry(t *testing.T) {
	start := engine.NewDate(2025, time.March, 3)
	actions := milestone.BuildActions("case-1", milestone.SystemDefaults(), start, time.Now())

	require.Len(t, actions, len(milestone.SystemDefaults()))
	for _, a := range actions {
		assert.Equal(t, milestone.ActionPending, a.Status)
		assert.Equal(t, "case-1", a.CaseID)
		assert.NotEmpty(t, a.ID)
	}
}
