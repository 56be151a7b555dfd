package testresults_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bryanwahyu/testresult-ingest/internal/application"
	"github.com/bryanwahyu/testresult-ingest/internal/application/testresults"
	"github.com/bryanwahyu/testresult-ingest/internal/domain/identity"
	"github.com/bryanwahyu/testresult-ingest/internal/domain/patients"
	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
	"github.com/bryanwahyu/testresult-ingest/internal/testutil"
)

var (
	fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	admin     = &identity.Caller{ID: "admin-1", Role: identity.RoleAdmin}
	patientA  = &identity.Caller{ID: "user-a", Role: identity.RolePatient}
	patientB  = &identity.Caller{ID: "user-b", Role: identity.RolePatient}
	clinician = &identity.Caller{ID: "doc-1", Role: identity.RoleClinician}
)

type fixture struct {
	svc   *testresults.Service
	repo  *testutil.Repo
	store *testutil.Store
	audit *testutil.AuditLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:  testutil.NewRepo(),
		store: testutil.NewStore(),
		audit: &testutil.AuditLog{},
	}
	dir := testutil.NewDirectory(
		patients.Patient{ID: "p-a", UserID: "user-a"},
		patients.Patient{ID: "p-b", UserID: "user-b"},
		patients.Patient{ID: "p-42", UserID: "user-42"},
	)
	f.svc = testresults.NewService(f.repo, f.store, dir, f.audit, zaptest.NewLogger(t))
	f.svc.Clock = application.FixedClock{T: fixedNow}
	return f
}

// ingestAs runs the presign + confirm flow and returns the stored record.
func (f *fixture) ingestAs(t *testing.T, caller *identity.Caller, testID, participantID string, types ...domain.FileType) *domain.TestResult {
	t.Helper()
	ctx := context.Background()
	files := make([]testresults.DeclaredFile, 0, len(types))
	for _, ft := range types {
		files = append(files, testresults.DeclaredFile{FileType: string(ft), ContentType: "application/octet-stream"})
	}
	intent, err := f.svc.RequestUploadURLs(ctx, caller, testresults.RequestUploadCommand{
		TestID: testID, TestType: "AUDIOMETRY", Files: files, ParticipantID: participantID,
	})
	require.NoError(t, err)

	var uploaded testresults.UploadedFiles
	for ft, u := range intent.UploadURLs {
		f.store.Seed(u.Key, []byte("bytes"))
		switch ft {
		case domain.FileVideo:
			uploaded.Video = &testresults.UploadedFile{Key: u.Key}
		case domain.FileCSV:
			uploaded.CSV = &testresults.UploadedFile{Key: u.Key}
		case domain.FileQuestions:
			uploaded.Questions = &testresults.UploadedFile{Key: u.Key}
		}
	}
	rec, err := f.svc.ConfirmUpload(ctx, caller, testresults.ConfirmUploadCommand{
		TestID: testID, TestType: "AUDIOMETRY", TestDate: "2025-03-14",
		UploadedFiles: uploaded, ParticipantID: participantID,
	})
	require.NoError(t, err)
	return rec
}

// failingCreate lets the pre-check pass and then fails the insert.
type failingCreate struct {
	*testutil.Repo
}

func (failingCreate) Create(context.Context, *domain.TestResult) error {
	return errors.New("connection reset")
}

func confirmNoFiles(testID string) testresults.ConfirmUploadCommand {
	return testresults.ConfirmUploadCommand{TestID: testID, TestType: "OTHER", TestDate: "2025-03-14"}
}
