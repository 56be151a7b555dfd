package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bryanwahyu/testresult-ingest/internal/domain/patients"
	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

// PatientDirectory reads the patients table owned by the patient CRUD domain.
type PatientDirectory struct{ db *sql.DB }

func NewPatientDirectory(conn *sql.DB) *PatientDirectory { return &PatientDirectory{db: conn} }

func (d *PatientDirectory) FindByUserID(ctx context.Context, userID string) (*patients.Patient, error) {
	var p patients.Patient
	err := d.db.QueryRowContext(ctx, `SELECT id, user_id FROM patients WHERE user_id=$1 LIMIT 1`, userID).
		Scan(&p.ID, &p.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("patient for user %s not found", userID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *PatientDirectory) Exists(ctx context.Context, patientID string) (bool, error) {
	var ok bool
	err := d.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM patients WHERE id=$1)`, patientID).Scan(&ok)
	return ok, err
}
