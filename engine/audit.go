package engine

import (
	"context"
	"time"
)

// =============================================================================
// AUDIT - Fire-and-forget structured audit trail
// =============================================================================

// AuditEntry is one structured audit record. Metadata holds small,
// non-sensitive key/value context (never free-text notes).
type AuditEntry struct {
	ActorID        string
	OrganisationID string
	Action         string // e.g. "case.transition", "alert.fired"
	Entity         string // e.g. "sickness_case"
	EntityID       string
	Metadata       map[string]string
	At             time.Time
}

// AuditLog records audit entries. The core calls it fire-and-forget: a
// failed Record is logged by the caller and never fails the primary write.
type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// NopAudit discards entries. Useful in tests.
type NopAudit struct{}

func (NopAudit) Record(context.Context, AuditEntry) error { return nil }
