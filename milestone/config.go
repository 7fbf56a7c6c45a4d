/*
config.go - Organisation milestone overrides

PURPOSE:
  CRUD for an organisation's milestone override rows. An override replaces
  the same-key system default in that organisation's effective catalog;
  deleting the override reverts the key to the default. System-default rows
  themselves are immutable through this service.
*/
package milestone

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/warp/absence-engine/engine"
)

// ConfigService mutates organisation milestone overrides.
type ConfigService struct {
	Store Store
	Audit engine.AuditLog
	Log   *log.Logger

	now func() time.Time
}

func NewConfigService(store Store, audit engine.AuditLog, logger *log.Logger) *ConfigService {
	return &ConfigService{Store: store, Audit: audit, Log: logger, now: time.Now}
}

// UpsertInput carries an override definition.
type UpsertInput struct {
	Label       string
	Description string
	ActionType  string
	DayOffset   int
	IsActive    bool
}

// Upsert updates the organisation's override row for the key if one exists,
// else inserts one. Existing cases keep their generated due dates.
func (s *ConfigService) Upsert(ctx context.Context, orgID, milestoneKey, actorID string, in UpsertInput) (*MilestoneConfig, error) {
	if orgID == "" {
		return nil, &engine.ValidationError{Field: "organisationId", Reason: "required"}
	}
	if milestoneKey == "" {
		return nil, &engine.ValidationError{Field: "milestoneKey", Reason: "required"}
	}
	if in.DayOffset < 0 {
		return nil, &engine.ValidationError{Field: "dayOffset", Reason: "must not be negative"}
	}
	if in.Label == "" {
		return nil, &engine.ValidationError{Field: "label", Reason: "required"}
	}

	existing, err := s.Store.GetOrgMilestone(ctx, orgID, milestoneKey)
	switch {
	case err == nil:
		existing.Label = in.Label
		existing.Description = in.Description
		existing.ActionType = in.ActionType
		existing.DayOffset = in.DayOffset
		existing.IsActive = in.IsActive
		if err := s.Store.UpdateMilestoneConfig(ctx, existing); err != nil {
			return nil, err
		}
		s.auditOverride(ctx, actorID, orgID, "milestone_config.updated", existing)
		return existing, nil

	case errors.Is(err, engine.ErrNotFound):
		c := &MilestoneConfig{
			ID:             uuid.NewString(),
			OrganisationID: orgID,
			MilestoneKey:   milestoneKey,
			Label:          in.Label,
			Description:    in.Description,
			ActionType:     in.ActionType,
			DayOffset:      in.DayOffset,
			IsActive:       in.IsActive,
		}
		if err := s.Store.InsertMilestoneConfig(ctx, c); err != nil {
			return nil, err
		}
		s.auditOverride(ctx, actorID, orgID, "milestone_config.created", c)
		return c, nil

	default:
		return nil, err
	}
}

// ResetToDefault deletes the organisation's override row for the key,
// reverting it to the system default. There is nothing to delete when the
// organisation never overrode the key; system defaults are not deletable.
func (s *ConfigService) ResetToDefault(ctx context.Context, orgID, milestoneKey, actorID string) error {
	override, err := s.Store.GetOrgMilestone(ctx, orgID, milestoneKey)
	if errors.Is(err, engine.ErrNotFound) {
		return &engine.OverrideError{
			MilestoneKey: milestoneKey,
			Reason:       "organisation has no override for this milestone; system defaults cannot be deleted",
		}
	}
	if err != nil {
		return err
	}
	if override.IsDefault() {
		return &engine.OverrideError{MilestoneKey: milestoneKey, Reason: "system defaults cannot be deleted"}
	}
	if override.OrganisationID != orgID {
		return &engine.OverrideError{MilestoneKey: milestoneKey, Reason: "override belongs to another organisation"}
	}

	if err := s.Store.DeleteMilestoneConfig(ctx, override.ID); err != nil {
		return err
	}
	s.auditOverride(ctx, actorID, orgID, "milestone_config.reset", override)
	return nil
}

func (s *ConfigService) auditOverride(ctx context.Context, actorID, orgID, action string, c *MilestoneConfig) {
	err := s.Audit.Record(ctx, engine.AuditEntry{
		ActorID:        actorID,
		OrganisationID: orgID,
		Action:         action,
		Entity:         "milestone_config",
		EntityID:       c.ID,
		Metadata:       map[string]string{"milestoneKey": c.MilestoneKey},
		At:             s.now(),
	})
	if err != nil {
		s.Log.Warn("audit write failed", "action", action, "entity", c.ID, "err", err)
	}
}
