package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/absence-engine/engine"
)

// Record appends an audit row. Callers treat audit failures as best-effort;
// this method never participates in the caller's transaction.
func (s *Store) Record(ctx context.Context, e engine.AuditEntry) error {
	var metadata []byte
	if len(e.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (actor_id, organisation_id, action, entity, entity_id, metadata_json, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullString(e.ActorID), nullString(e.OrganisationID), e.Action,
		nullString(e.Entity), nullString(e.EntityID), nullString(string(metadata)),
		at.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}
