package audit

import "context"

// Recorder persists audit events
type Recorder interface {
	Record(ctx context.Context, e *Event) error
}

// Reader lists the audit trail of one resource
type Reader interface {
	ListByResource(ctx context.Context, resourceID string, limit int) ([]*Event, error)
}
