package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/bryanwahyu/testresult-ingest/internal/domain/audit"
	"github.com/bryanwahyu/testresult-ingest/internal/infra/db"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(conn *sql.DB) *AuditRepository { return &AuditRepository{db: conn} }

func (r *AuditRepository) Record(ctx context.Context, e *audit.Event) error {
	const q = `
INSERT INTO test_result_audit
  (actor_id, actor_role, action, resource_id, test_id, details_json, created_at)
VALUES (?,?,?,?,?,?,?)
`
	details := e.DetailsJSON
	if strings.TrimSpace(details) == "" {
		details = "{}"
	} else if !json.Valid([]byte(details)) {
		b, _ := json.Marshal(map[string]string{"raw": details})
		details = string(b)
	}
	res, err := r.db.ExecContext(ctx, q,
		db.DashIfEmpty(e.ActorID), db.DashIfEmpty(e.ActorRole), string(e.Action),
		db.DashIfEmpty(e.ResourceID), db.DashIfEmpty(e.TestID), details,
		db.CreatedAtOrNow(e.CreatedAt),
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

func (r *AuditRepository) ListByResource(ctx context.Context, resourceID string, limit int) ([]*audit.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, actor_id, actor_role, action, resource_id, test_id, details_json, created_at
FROM test_result_audit
WHERE resource_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
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
