package trigger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/absence-engine/engine"
)

// =============================================================================
// TRIGGER CONFIG CRUD
// =============================================================================

// ConfigService owns the user-editable threshold rules. Historical alerts
// are never touched by rule edits: lookups are snapshot-at-use.
type ConfigService struct {
	Store Store

	now func() time.Time
}

func NewConfigService(store Store) *ConfigService {
	return &ConfigService{Store: store, now: time.Now}
}

// ConfigInput carries a rule definition from the caller.
type ConfigInput struct {
	TriggerType    TriggerType
	ThresholdValue decimal.Decimal
	PeriodDays     *int
	IsActive       bool
}

func validateConfig(in ConfigInput) (ConfigInput, error) {
	switch in.TriggerType {
	case Frequency, Duration:
		if in.PeriodDays != nil && *in.PeriodDays <= 0 {
			return in, &engine.ValidationError{Field: "periodDays", Reason: "must be positive"}
		}
	case BradfordFactor:
		// Bradford always scores the full history.
		in.PeriodDays = nil
	default:
		return in, &engine.ValidationError{Field: "triggerType", Reason: "must be FREQUENCY, BRADFORD_FACTOR or DURATION"}
	}
	if !in.ThresholdValue.IsPositive() {
		return in, &engine.ValidationError{Field: "thresholdValue", Reason: "must be positive"}
	}
	return in, nil
}

func (s *ConfigService) Create(ctx context.Context, orgID string, in ConfigInput) (*TriggerConfig, error) {
	if orgID == "" {
		return nil, &engine.ValidationError{Field: "organisationId", Reason: "required"}
	}
	in, err := validateConfig(in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	c := &TriggerConfig{
		ID:             uuid.NewString(),
		OrganisationID: orgID,
		TriggerType:    in.TriggerType,
		ThresholdValue: in.ThresholdValue,
		PeriodDays:     in.PeriodDays,
		IsActive:       in.IsActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Store.InsertTriggerConfig(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ConfigService) Update(ctx context.Context, orgID, configID string, in ConfigInput) (*TriggerConfig, error) {
	in, err := validateConfig(in)
	if err != nil {
		return nil, err
	}

	c, err := s.Store.GetTriggerConfig(ctx, orgID, configID)
	if err != nil {
		return nil, err
	}
	c.TriggerType = in.TriggerType
	c.ThresholdValue = in.ThresholdValue
	c.PeriodDays = in.PeriodDays
	c.IsActive = in.IsActive
	c.UpdatedAt = s.now()

	if err := s.Store.UpdateTriggerConfig(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ConfigService) List(ctx context.Context, orgID string) ([]TriggerConfig, error) {
	return s.Store.ListTriggerConfigs(ctx, orgID)
}
