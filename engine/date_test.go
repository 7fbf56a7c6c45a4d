package engine_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/absence-engine/engine"
)

// =============================================================================
// DATE BASICS
// =============================================================================

func TestDate_ParseAndString_RoundTrip(t *testing.T) {
	d, err := engine.ParseDate("2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", d.String())
	assert.Equal(t, 2025, d.Year())
	assert.Equal(t, time.March, d.Month())
	assert.Equal(t, 10, d.Day())
}

func TestDate_Parse_RejectsGarbage(t *testing.T) {
	_, err := engine.ParseDate("10/03/2025")
	assert.Error(t, err)
}

func TestDate_Comparisons(t *testing.T) {
	a := engine.NewDate(2025, time.March, 10)
	b := engine.NewDate(2025, time.March, 11)

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, a.BeforeOrEqual(a))
	assert.True(t, a.AfterOrEqual(a))
	assert.False(t, a.Equal(b))
}

func TestDate_AddDays_CrossesMonthBoundary(t *testing.T) {
	d := engine.NewDate(2025, time.January, 30).AddDays(3)
	assert.Equal(t, "2025-02-02", d.String())
}

func TestDate_DaysUntil(t *testing.T) {
	start := engine.NewDate(2025, time.March, 1)
	end := engine.NewDate(2025, time.March, 29)

	assert.Equal(t, 28, start.DaysUntil(end))
	assert.Equal(t, -28, end.DaysUntil(start))
	assert.Equal(t, 0, start.DaysUntil(start))
}

func TestDate_JSON_UsesCalendarForm(t *testing.T) {
	d := engine.NewDate(2025, time.July, 4)

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2025-07-04"`, string(raw))

	var back engine.Date
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, d.Equal(back))
}

// =============================================================================
// WORKING-DAY MATH
// =============================================================================

func TestWorkingDaysInclusive_FullWeek(t *testing.T) {
	// GIVEN: Monday 2025-03-03 through Sunday 2025-03-09
	// THEN: 5 working days (Sat/Sun excluded)
	start := engine.NewDate(2025, time.March, 3)
	end := engine.NewDate(2025, time.March, 9)

	assert.Equal(t, 5, engine.WorkingDaysInclusive(start, end))
}

func TestWorkingDaysInclusive_SingleWeekday(t *testing.T) {
	d := engine.NewDate(2025, time.March, 5) // Wednesday
	assert.Equal(t, 1, engine.WorkingDaysInclusive(d, d))
}

func TestWorkingDaysInclusive_WeekendOnly(t *testing.T) {
	sat := engine.NewDate(2025, time.March, 8)
	sun := engine.NewDate(2025, time.March, 9)
	assert.Equal(t, 0, engine.WorkingDaysInclusive(sat, sun))
}

func TestWorkingDaysInclusive_EndBeforeStart(t *testing.T) {
	start := engine.NewDate(2025, time.March, 10)
	end := engine.NewDate(2025, time.March, 3)
	assert.Equal(t, 0, engine.WorkingDaysInclusive(start, end))
}
