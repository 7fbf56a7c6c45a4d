package milestone

import "github.com/warp/absence-engine/engine"

// =============================================================================
// TIMELINE PROJECTION
// =============================================================================

// BuildTimeline projects the effective catalog onto a case's start date:
// dueDate = start + dayOffset days, classified against today. Pure and
// stateless; it reads no MilestoneAction state.
func BuildTimeline(catalog []MilestoneConfig, start, today engine.Date) []TimelineEntry {
	entries := make([]TimelineEntry, 0, len(catalog))
	for _, c := range catalog {
		due := start.AddDays(c.DayOffset)
		entries = append(entries, TimelineEntry{
			MilestoneKey: c.MilestoneKey,
			Label:        c.Label,
			ActionType:   c.ActionType,
			DayOffset:    c.DayOffset,
			DueDate:      due,
			Temporal:     Classify(due, today),
		})
	}
	return entries
}

// Classify places a due date relative to today. A milestone due exactly
// today is DUE_TODAY, never OVERDUE or UPCOMING.
func Classify(due, today engine.Date) TemporalStatus {
	switch {
	case due.Before(today):
		return Overdue
	case due.Equal(today):
		return DueToday
	default:
		return Upcoming
	}
}
