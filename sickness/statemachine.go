/*
statemachine.go - The case workflow definition

PURPOSE:
  The single source of truth for which actions are legal in which status.
  Pure data plus pure lookups; the transactional application of a transition
  lives in service.go.

WORKFLOW:
  REPORTED -> TRACKING -> FIT_NOTE_RECEIVED -> RTW_SCHEDULED -> RTW_COMPLETED -> CLOSED
                  \______________ CLOSE_CASE _________________________________/
  CLOSED is terminal but reopenable: REOPEN returns to TRACKING (the case was
  already acknowledged once).
*/
package sickness

import "sort"

// transitions maps each status to its legal actions and their targets.
var transitions = map[CaseStatus]map[CaseAction]CaseStatus{
	StatusReported: {
		ActionAcknowledge: StatusTracking,
	},
	StatusTracking: {
		ActionReceiveFitNote: StatusFitNoteReceived,
		ActionScheduleRTW:    StatusRTWScheduled,
		ActionCloseCase:      StatusClosed,
	},
	StatusFitNoteReceived: {
		ActionScheduleRTW: StatusRTWScheduled,
		ActionCloseCase:   StatusClosed,
	},
	StatusRTWScheduled: {
		ActionCompleteRTW: StatusRTWCompleted,
	},
	StatusRTWCompleted: {
		ActionCloseCase: StatusClosed,
	},
	StatusClosed: {
		ActionReopen: StatusTracking,
	},
}

// AvailableActions returns the actions legal from the given status, sorted
// for stable output. Total: unknown statuses yield an empty slice.
func AvailableActions(status CaseStatus) []CaseAction {
	legal := transitions[status]
	actions := make([]CaseAction, 0, len(legal))
	for a := range legal {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

// NextStatus returns the target status for an action from the given status,
// and whether the action is legal.
func NextStatus(status CaseStatus, action CaseAction) (CaseStatus, bool) {
	next, ok := transitions[status][action]
	return next, ok
}

func availableActionNames(status CaseStatus) []string {
	actions := AvailableActions(status)
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return names
}
