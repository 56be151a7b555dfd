package audit

import "time"

// Action enum
type Action string

const (
	ActionIngest        Action = "test_result.ingest"
	ActionAssign        Action = "test_result.assign"
	ActionDelete        Action = "test_result.delete"
	ActionDeletePartial Action = "test_result.delete_partial"
)

// Event represents a persisted audit entry
type Event struct {
	ID          int64     `json:"id"`
	ActorID     string    `json:"actor_id"`
	ActorRole   string    `json:"actor_role"`
	Action      Action    `json:"action"`
	ResourceID  string    `json:"resource_id"`
	TestID      string    `json:"test_id,omitempty"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
