package audit

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
)

// Entities
const (
	EntityClient         = "client"
	EntityServiceRequest = "service_request"
)

// Actions
const (
	ActionTierChanged    = "TIER_CHANGED"
	ActionProfileUpdated = "PROFILE_UPDATED"
	ActionStatusChanged  = "STATUS_CHANGED"
)

func Insert(ctx context.Context, tx pgx.Tx, entity, entityID, action, actor string, metadata any) error {
	var s *string
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		str := string(b)
		s = &str
	}
	const q = `
INSERT INTO audit_logs (entity, entity_id, action, actor, metadata)
VALUES ($1, $2, $3, $4, CAST($5 AS jsonb))
`
	_, err := tx.Exec(ctx, q, entity, entityID, action, actor, s)
	return err
}
