package patients

import "context"

// Patient is the slice of the patient directory this service reads.
type Patient struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
}

// Directory port onto the patient CRUD domain.
type Directory interface {
	// FindByUserID returns testresults.ErrNotFound when the user has no patient row.
	FindByUserID(ctx context.Context, userID string) (*Patient, error)
	Exists(ctx context.Context, patientID string) (bool, error)
}
