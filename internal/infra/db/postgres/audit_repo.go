package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/bryanwahyu/testresult-ingest/internal/domain/audit"
	"github.com/bryanwahyu/testresult-ingest/internal/infra/db"
)

type AuditRepository struct{ db *sql.DB }

func NewAuditRepository(conn *sql.DB) *AuditRepository { return &AuditRepository{db: conn} }

// Record inserts an audit event and fills its id.
func (r *AuditRepository) Record(ctx context.Context, e *audit.Event) error {
	const q = `
INSERT INTO test_result_audit
  (actor_id, actor_role, action, resource_id, test_id, details_json, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id;`
	details := e.DetailsJSON
	if strings.TrimSpace(details) == "" {
		details = "{}"
	} else if !json.Valid([]byte(details)) {
		// ensure valid json; if invalid, wrap as string field
		b, _ := json.Marshal(map[string]string{"raw": details})
		details = string(b)
	}
	return r.db.QueryRowContext(ctx, q,
		db.DashIfEmpty(e.ActorID), db.DashIfEmpty(e.ActorRole), string(e.Action),
		db.DashIfEmpty(e.ResourceID), db.DashIfEmpty(e.TestID), details,
		db.CreatedAtOrNow(e.CreatedAt),
	).Scan(&e.ID)
}

// ListByResource returns the newest events for one test result.
func (r *AuditRepository) ListByResource(ctx context.Context, resourceID string, limit int) ([]*audit.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, actor_id, actor_role, action, resource_id, test_id, details_json, created_at
FROM test_result_audit
WHERE resource_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, q, resourceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*audit.Event
	for rows.Next() {
		var e audit.Event
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorRole, &e.Action, &e.ResourceID, &e.TestID, &e.DetailsJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
