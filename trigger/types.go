// Package trigger implements the threshold-rule evaluator: it scores an
// employee's absence history against organisation-defined rules and raises
// deduplicated alerts when a rule breaches.
package trigger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRIGGER CONFIG - One organisation-defined threshold rule
// =============================================================================

type TriggerType string

const (
	// Frequency counts case start dates inside the trailing window.
	Frequency TriggerType = "FREQUENCY"
	// BradfordFactor scores spells squared times total working days lost
	// over the full history. PeriodDays has no meaning for it.
	BradfordFactor TriggerType = "BRADFORD_FACTOR"
	// Duration sums working days lost inside the trailing window.
	Duration TriggerType = "DURATION"
)

// DefaultPeriodDays is the rolling window applied when a windowed rule
// leaves PeriodDays unset.
const DefaultPeriodDays = 365

// TriggerConfig is user-editable and never auto-generated. Historical alerts
// keep the value observed at fire time; editing a rule never rewrites them.
type TriggerConfig struct {
	ID             string
	OrganisationID string
	TriggerType    TriggerType
	ThresholdValue decimal.Decimal
	PeriodDays     *int // nil = default window; always nil for BRADFORD_FACTOR
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Window returns the effective rolling window in days.
func (c TriggerConfig) Window() int {
	if c.PeriodDays != nil {
		return *c.PeriodDays
	}
	return DefaultPeriodDays
}

// =============================================================================
// TRIGGER ALERT - One fired breach
// =============================================================================

// TriggerAlert is immutable except for the acknowledgement fields. At most
// one alert exists per (TriggerConfigID, SicknessCaseID) pair; the store's
// uniqueness constraint is the authoritative guard.
type TriggerAlert struct {
	ID              string
	TriggerConfigID string
	OrganisationID  string
	EmployeeID      string
	SicknessCaseID  string
	TriggerType     TriggerType
	TriggeredValue  decimal.Decimal
	CreatedAt       time.Time
	AcknowledgedBy  string
	AcknowledgedAt  *time.Time
}

// Acknowledged reports whether the alert has been acknowledged.
func (a TriggerAlert) Acknowledged() bool { return a.AcknowledgedAt != nil }
