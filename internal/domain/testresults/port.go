package testresults

import (
	"context"
	"io"
	"time"
)

// Repository port (interface untuk persistence)
type Repository interface {
	// ExistsTestID is a fast-path check only; Create is the authority.
	ExistsTestID(ctx context.Context, testID string) (bool, error)
	// Create inserts r and returns ErrConflict when test_id is taken.
	Create(ctx context.Context, r *TestResult) error
	Get(ctx context.Context, id ResultID) (*TestResult, error)
	ListByPatient(ctx context.Context, patientID string, p Page) (PaginatedResult, error)
	ListOrphaned(ctx context.Context, f OrphanFilter, p Page) (PaginatedResult, error)
	// Assign binds a provisional record; ErrInvalidState when it is not provisional.
	Assign(ctx context.Context, id ResultID, patientID, assignedBy string, at time.Time) error
	Delete(ctx context.Context, id ResultID) error
}

// ObjectStore port (interface untuk penyimpanan artefak)
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration, downloadName string) (string, error)
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error

	StartMultipart(ctx context.Context, key, contentType string) (string, error)
	PresignPart(ctx context.Context, key, uploadID string, partNumber int, expiry time.Duration) (string, error)
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []CompletedPart) error
	AbortMultipart(ctx context.Context, key, uploadID string) error
}

// CompletedPart describes one uploaded part for completing multipart uploads.
type CompletedPart struct {
	PartNumber int    `json:"partNumber" validate:"required,min=1,max=10000"`
	ETag       string `json:"etag" validate:"required"`
}
