package testresults

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/bryanwahyu/testresult-ingest/internal/domain/audit"
	"github.com/bryanwahyu/testresult-ingest/internal/domain/identity"
	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

// ListOrphaned returns provisional records (participantId set, patientId null).
func (s *Service) ListOrphaned(ctx context.Context, caller *identity.Caller, f domain.OrphanFilter, p domain.Page) (domain.PaginatedResult, error) {
	if err := s.Owners.RequireAdmin(caller); err != nil {
		return domain.PaginatedResult{}, err
	}
	if err := f.Validate(); err != nil {
		return domain.PaginatedResult{}, err
	}
	return s.Repo.ListOrphaned(ctx, f, p.Normalize())
}

// Assign binds a provisional record to a patient. It is a one-way transition:
// a second call on the same record fails with ErrInvalidState.
func (s *Service) Assign(ctx context.Context, caller *identity.Caller, id domain.ResultID, patientID string) (*domain.TestResult, error) {
	if err := s.Owners.RequireAdmin(caller); err != nil {
		return nil, err
	}
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, domain.Invalidf("patientId is required")
	}

	rec, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Assigned() {
		return nil, domain.InvalidStatef("test result %s is already assigned", id)
	}
	if rec.ParticipantID == nil {
		return nil, domain.InvalidStatef("test result %s has no participantId", id)
	}
	exists, err := s.Patients.Exists(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.NotFoundf("patient %s not found", patientID)
	}

	now := s.now()
	// the repository re-checks the provisional guard in the UPDATE itself
	if err := s.Repo.Assign(ctx, id, patientID, caller.ID, now); err != nil {
		return nil, err
	}
	rec.PatientID = &patientID
	assignedBy := caller.ID
	rec.AssignedBy = &assignedBy
	rec.AssignedAt = &now

	s.log().Info("test result assigned",
		zap.String("id", string(id)),
		zap.String("participant_id", *rec.ParticipantID),
		zap.String("patient_id", patientID),
		zap.String("assigned_by", caller.ID),
	)
	s.record(ctx, caller, audit.ActionAssign, rec, map[string]any{
		"participant_id": *rec.ParticipantID,
		"patient_id":     patientID,
	})
	return rec, nil
}
