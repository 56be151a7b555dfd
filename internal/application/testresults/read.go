package testresults

import (
	"context"
	"time"

	"github.com/bryanwahyu/testresult-ingest/internal/domain/identity"
	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

// ListMine returns a patient's own records. Admins must name the patient.
func (s *Service) ListMine(ctx context.Context, caller *identity.Caller, patientID string, p domain.Page) (domain.PaginatedResult, error) {
	if caller == nil || caller.ID == "" {
		return domain.PaginatedResult{}, domain.ErrUnauthenticated
	}
	if caller.IsAdmin() {
		if patientID == "" {
			return domain.PaginatedResult{}, domain.Invalidf("patientId is required for admins")
		}
		return s.Repo.ListByPatient(ctx, patientID, p.Normalize())
	}
	pt, err := s.Owners.ResolvePatient(ctx, caller)
	if err != nil {
		return domain.PaginatedResult{}, err
	}
	if patientID != "" && patientID != pt.ID {
		return domain.PaginatedResult{}, domain.Forbiddenf("patients may only list their own test results")
	}
	return s.Repo.ListByPatient(ctx, pt.ID, p.Normalize())
}

// DownloadLink is a short-lived presigned GET.
type DownloadLink struct {
	URL       string          `json:"downloadUrl"`
	FileType  domain.FileType `json:"fileType"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// DownloadURL presigns a GET for one file of a record, owner or admin only.
func (s *Service) DownloadURL(ctx context.Context, caller *identity.Caller, id domain.ResultID, fileType string) (*DownloadLink, error) {
	ft, err := domain.ParseFileType(fileType)
	if err != nil {
		return nil, err
	}
	rec, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	key := rec.Key(ft)
	if key == nil || *key == "" {
		return nil, domain.NotFoundf("test result %s has no %s file", id, ft)
	}

	expiry := s.Settings.DownloadExpiry
	name := rec.TestID + "-" + string(ft) + "." + extensionFor(ft, *key)
	u, err := s.Store.PresignGet(ctx, *key, expiry, name)
	if err != nil {
		return nil, domain.Upstream("presign get", err)
	}
	return &DownloadLink{URL: u, FileType: ft, ExpiresAt: s.now().Add(expiry)}, nil
}
