// Package ownership decides whose storage namespace and which ownership tag
// apply to an upload. Every test-result operation asks this package instead
// of branching on roles itself.
package ownership

import (
	"context"
	"errors"
	"strings"

	"github.com/bryanwahyu/testresult-ingest/internal/domain/identity"
	"github.com/bryanwahyu/testresult-ingest/internal/domain/patients"
	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

// Resolver maps a caller onto an upload namespace.
type Resolver struct {
	Patients patients.Directory
}

func NewResolver(dir patients.Directory) *Resolver {
	return &Resolver{Patients: dir}
}

// Resolve returns the namespace and ownership tag for a new record.
//
// Patients upload into their own namespace and own the record directly.
// Admins upload into their own namespace and tag the record with the
// participant id, leaving it provisional until it is assigned.
func (r *Resolver) Resolve(ctx context.Context, caller *identity.Caller, participantID string) (domain.Ownership, error) {
	if caller == nil || caller.ID == "" {
		return domain.Ownership{}, domain.ErrUnauthenticated
	}
	participantID = strings.TrimSpace(participantID)

	switch caller.Role {
	case identity.RoleAdmin:
		if participantID == "" {
			return domain.Ownership{}, domain.Invalidf("participantId is required for admin uploads")
		}
		pid := participantID
		return domain.Ownership{Namespace: adminNamespace(caller.ID), ParticipantID: &pid}, nil

	case identity.RolePatient:
		if participantID != "" {
			return domain.Ownership{}, domain.Forbiddenf("patients may not create provisional records")
		}
		p, err := r.ResolvePatient(ctx, caller)
		if err != nil {
			return domain.Ownership{}, err
		}
		id := p.ID
		return domain.Ownership{Namespace: patientNamespace(id), PatientID: &id}, nil
	}

	if participantID != "" {
		return domain.Ownership{}, domain.Forbiddenf("only admins may supply participantId")
	}
	return domain.Ownership{}, domain.Forbiddenf("role %q may not upload test results", caller.Role)
}

// ResolvePatient returns the patient record behind a PATIENT caller.
func (r *Resolver) ResolvePatient(ctx context.Context, caller *identity.Caller) (*patients.Patient, error) {
	if caller == nil || caller.ID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if caller.Role != identity.RolePatient {
		return nil, domain.Forbiddenf("caller is not a patient")
	}
	p, err := r.Patients.FindByUserID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFoundf("no patient record for user %s", caller.ID)
		}
		return nil, err
	}
	return p, nil
}

// Namespace returns the caller's own key namespace without deciding an
// ownership tag. Used to check that client supplied keys belong to the caller.
func (r *Resolver) Namespace(ctx context.Context, caller *identity.Caller) (string, error) {
	if caller == nil || caller.ID == "" {
		return "", domain.ErrUnauthenticated
	}
	if caller.IsAdmin() {
		return adminNamespace(caller.ID), nil
	}
	p, err := r.ResolvePatient(ctx, caller)
	if err != nil {
		return "", err
	}
	return patientNamespace(p.ID), nil
}

// Admin user ids and patient ids are separate id spaces, so the namespace
// carries the role to keep equal ids from sharing a prefix.
func adminNamespace(userID string) string { return "admin-" + userID }
func patientNamespace(patientID string) string { return "patient-" + patientID }

// RequireAdmin fails unless the caller is an admin.
func (r *Resolver) RequireAdmin(caller *identity.Caller) error {
	if caller == nil || caller.ID == "" {
		return domain.ErrUnauthenticated
	}
	if !caller.IsAdmin() {
		return domain.Forbiddenf("admin role required")
	}
	return nil
}

// Authorize checks read/delete access to an existing record: admins always,
// patients only for records bound to their patient id.
func (r *Resolver) Authorize(ctx context.Context, caller *identity.Caller, rec *domain.TestResult) error {
	if caller == nil || caller.ID == "" {
		return domain.ErrUnauthenticated
	}
	if caller.IsAdmin() {
		return nil
	}
	p, err := r.ResolvePatient(ctx, caller)
	if err != nil {
		return err
	}
	if !rec.OwnedByPatient(p.ID) {
		return domain.Forbiddenf("test result belongs to another patient")
	}
	return nil
}
