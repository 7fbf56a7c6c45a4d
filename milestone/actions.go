/*
actions.go - Per-case milestone action lifecycle

PURPOSE:
  Owns the MilestoneAction rows: bulk generation when a case opens, manager
  status updates, and the explicit reset-to-pending undo.

COMPLETION SEMANTICS:
  - Entering COMPLETED stamps completedBy/completedAt (defaulting to now).
  - Re-completing an already-completed action is a no-op on those fields;
    new notes still merge in. Idempotent-safe forward only.
  - Leaving COMPLETED goes through ResetToPending, which clears the
    completion fields and is refused once the parent case is closed.
*/
package milestone

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/warp/absence-engine/engine"
)

// BuildActions creates one PENDING action per effective-catalog entry for a
// newly opened case. Due dates are computed here, once; the catalog may
// change afterward without moving them.
func BuildActions(caseID string, catalog []MilestoneConfig, start engine.Date, now time.Time) []MilestoneAction {
	actions := make([]MilestoneAction, 0, len(catalog))
	for _, c := range catalog {
		actions = append(actions, MilestoneAction{
			ID:           uuid.NewString(),
			CaseID:       caseID,
			MilestoneKey: c.MilestoneKey,
			ActionType:   c.ActionType,
			Label:        c.Label,
			Status:       ActionPending,
			DueDate:      start.AddDays(c.DayOffset),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return actions
}

// ActionService mutates per-case milestone actions.
type ActionService struct {
	Store Store
	Cases CaseState
	Audit engine.AuditLog
	Codec engine.Codec
	Log   *log.Logger

	now func() time.Time
}

func NewActionService(store Store, cases CaseState, audit engine.AuditLog, codec engine.Codec, logger *log.Logger) *ActionService {
	return &ActionService{
		Store: store,
		Cases: cases,
		Audit: audit,
		Codec: codec,
		Log:   logger,
		now:   time.Now,
	}
}

// UpdateStatusInput carries a manager's action update. CompletedAt is
// honoured only when transitioning into COMPLETED and defaults to now.
type UpdateStatusInput struct {
	Status      ActionStatus
	CompletedBy string
	Notes       string
	CompletedAt *time.Time
}

// UpdateStatus applies a status change to one action. The lookup is scoped
// to the caller's organisation through the parent case.
func (s *ActionService) UpdateStatus(ctx context.Context, orgID, actionID string, in UpdateStatusInput) (*MilestoneAction, error) {
	switch in.Status {
	case ActionPending, ActionInProgress, ActionCompleted:
	default:
		return nil, &engine.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", in.Status)}
	}

	a, err := s.Store.GetAction(ctx, orgID, actionID)
	if err != nil {
		return nil, err
	}

	if a.Status == ActionCompleted && in.Status != ActionCompleted {
		return nil, &engine.ValidationError{Field: "status", Reason: "completed actions are undone via reset, not a status update"}
	}

	now := s.now()
	if in.Status == ActionCompleted && a.Status != ActionCompleted {
		a.CompletedBy = in.CompletedBy
		completedAt := now
		if in.CompletedAt != nil {
			completedAt = *in.CompletedAt
		}
		a.CompletedAt = &completedAt
	}
	// Re-completing leaves the original completion fields untouched.
	a.Status = in.Status

	if in.Notes != "" {
		merged, err := s.mergeNotes(a.Notes, in.Notes)
		if err != nil {
			return nil, err
		}
		a.Notes = merged
	}
	a.UpdatedAt = now

	if err := s.Store.UpdateAction(ctx, a); err != nil {
		return nil, err
	}

	if in.Status == ActionCompleted {
		s.recordAudit(ctx, engine.AuditEntry{
			ActorID:  in.CompletedBy,
			Action:   "milestone.completed",
			Entity:   "milestone_action",
			EntityID: a.ID,
			Metadata: map[string]string{"caseId": a.CaseID, "milestoneKey": a.MilestoneKey},
			At:       now,
		})
	}

	return s.decryptAction(a)
}

// ResetToPending is the explicit undo: back to PENDING with completion
// fields and notes cleared. Refused once the parent case is closed.
func (s *ActionService) ResetToPending(ctx context.Context, orgID, actionID, actorID string) (*MilestoneAction, error) {
	a, err := s.Store.GetAction(ctx, orgID, actionID)
	if err != nil {
		return nil, err
	}

	closed, err := s.Cases.IsCaseClosed(ctx, a.CaseID)
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, fmt.Errorf("reset milestone %s: %w", a.MilestoneKey, engine.ErrCaseClosed)
	}

	now := s.now()
	a.Status = ActionPending
	a.CompletedBy = ""
	a.CompletedAt = nil
	a.Notes = ""
	a.UpdatedAt = now

	if err := s.Store.UpdateAction(ctx, a); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, engine.AuditEntry{
		ActorID:  actorID,
		Action:   "milestone.reset",
		Entity:   "milestone_action",
		EntityID: a.ID,
		Metadata: map[string]string{"caseId": a.CaseID, "milestoneKey": a.MilestoneKey},
		At:       now,
	})

	return a, nil
}

// ListByCase returns the case's actions with notes decrypted.
func (s *ActionService) ListByCase(ctx context.Context, caseID string) ([]MilestoneAction, error) {
	actions, err := s.Store.ListActionsByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	for i := range actions {
		decrypted, err := s.Codec.Decrypt(actions[i].Notes)
		if err != nil {
			return nil, fmt.Errorf("decrypt action notes: %w", err)
		}
		actions[i].Notes = decrypted
	}
	return actions, nil
}

func (s *ActionService) mergeNotes(existing, added string) (string, error) {
	plain, err := s.Codec.Decrypt(existing)
	if err != nil {
		return "", fmt.Errorf("decrypt action notes: %w", err)
	}
	if plain != "" {
		plain = plain + "\n" + added
	} else {
		plain = added
	}
	return s.Codec.Encrypt(strings.TrimSpace(plain))
}

func (s *ActionService) decryptAction(a *MilestoneAction) (*MilestoneAction, error) {
	plain, err := s.Codec.Decrypt(a.Notes)
	if err != nil {
		return nil, fmt.Errorf("decrypt action notes: %w", err)
	}
	out := *a
	out.Notes = plain
	return &out, nil
}

func (s *ActionService) recordAudit(ctx context.Context, entry engine.AuditEntry) {
	if err := s.Audit.Record(ctx, entry); err != nil {
		s.Log.Warn("audit write failed", "action", entry.Action, "entity", entry.EntityID, "err", err)
	}
}
