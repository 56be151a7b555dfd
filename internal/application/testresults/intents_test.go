package testresults_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/testresult-ingest/internal/application/testresults"
	"github.com/bryanwahyu/testresult-ingest/internal/domain/identity"
	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

func TestRequestUploadURLsAdminNamespace(t *testing.T) {
	f := newFixture(t)

	intent, err := f.svc.RequestUploadURLs(context.Background(), admin, testresults.RequestUploadCommand{
		TestID:        "T1",
		TestType:      "audiogram",
		ParticipantID: "P-001",
		Files: []testresults.DeclaredFile{
			{FileType: "video", ContentType: "video/mp4", FileName: "rec.MOV"},
			{FileType: "csv", ContentType: "text/csv"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "T1", intent.TestID)
	require.Len(t, intent.UploadURLs, 2)
	video := intent.UploadURLs[domain.FileVideo]
	assert.True(t, strings.HasPrefix(video.Key, "test-recordings/admin-admin-1/"), video.Key)
	assert.True(t, strings.HasSuffix(video.Key, ".mov"), video.Key)
	assert.True(t, strings.HasSuffix(intent.UploadURLs[domain.FileCSV].Key, ".csv"))
	assert.Contains(t, video.UploadURL, "X-Amz-Expires=3600")
	assert.Equal(t, fixedNow.Add(time.Hour), video.ExpiresAt)
	assert.NotEqual(t, video.Key, intent.UploadURLs[domain.FileCSV].Key)
}

func TestRequestUploadURLsPatientNamespace(t *testing.T) {
	f := newFixture(t)

	intent, err := f.svc.RequestUploadURLs(context.Background(), patientA, testresults.RequestUploadCommand{
		TestID:   "T-patient",
		TestType: "BPPV",
		Files:    []testresults.DeclaredFile{{FileType: "questions", ContentType: "application/json"}},
	})
	require.NoError(t, err)
	q := intent.UploadURLs[domain.FileQuestions]
	assert.True(t, strings.HasPrefix(q.Key, "test-recordings/patient-p-a/"), q.Key)
	assert.True(t, strings.HasSuffix(q.Key, ".json"), q.Key)
}

func TestRequestUploadURLsRejects(t *testing.T) {
	video := testresults.DeclaredFile{FileType: "video", ContentType: "video/mp4"}
	tests := []struct {
		name   string
		caller *identity.Caller
		cmd    testresults.RequestUploadCommand
		want   error
	}{
		{"unauthenticated", nil, testresults.RequestUploadCommand{TestID: "T", Files: []testresults.DeclaredFile{video}}, domain.ErrUnauthenticated},
		{"patient with participantId", patientA, testresults.RequestUploadCommand{TestID: "T", ParticipantID: "P-1", Files: []testresults.DeclaredFile{video}}, domain.ErrForbidden},
		{"admin without participantId", admin, testresults.RequestUploadCommand{TestID: "T", Files: []testresults.DeclaredFile{video}}, domain.ErrInvalidArgument},
		{"clinician", clinician, testresults.RequestUploadCommand{TestID: "T", Files: []testresults.DeclaredFile{video}}, domain.ErrForbidden},
		{"missing testId", patientA, testresults.RequestUploadCommand{Files: []testresults.DeclaredFile{video}}, domain.ErrInvalidArgument},
		{"bad testId", patientA, testresults.RequestUploadCommand{TestID: "../T", Files: []testresults.DeclaredFile{video}}, domain.ErrInvalidArgument},
		{"unknown testType", patientA, testresults.RequestUploadCommand{TestID: "T", TestType: "eeg", Files: []testresults.DeclaredFile{video}}, domain.ErrInvalidArgument},
		{"no files", patientA, testresults.RequestUploadCommand{TestID: "T"}, domain.ErrInvalidArgument},
		{"duplicate fileType", patientA, testresults.RequestUploadCommand{TestID: "T", Files: []testresults.DeclaredFile{video, video}}, domain.ErrInvalidArgument},
		{"unknown fileType", patientA, testresults.RequestUploadCommand{TestID: "T", Files: []testresults.DeclaredFile{{FileType: "audio", ContentType: "audio/wav"}}}, domain.ErrInvalidArgument},
		{"missing contentType", patientA, testresults.RequestUploadCommand{TestID: "T", Files: []testresults.DeclaredFile{{FileType: "csv"}}}, domain.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.RequestUploadURLs(context.Background(), tt.caller, tt.cmd)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.store.Presigned)
		})
	}
}

func TestRequestUploadURLsExistingTestID(t *testing.T) {
	f := newFixture(t)
	f.ingestAs(t, patientA, "T-dup", "", domain.FileCSV)
	presigned := len(f.store.Presigned)

	_, err := f.svc.RequestUploadURLs(context.Background(), patientA, testresults.RequestUploadCommand{
		TestID: "T-dup",
		Files:  []testresults.DeclaredFile{{FileType: "csv", ContentType: "text/csv"}},
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Len(t, f.store.Presigned, presigned, "no URL minted for a taken testId")
}

func TestRequestUploadURLsAbortsBatchOnPresignFailure(t *testing.T) {
	f := newFixture(t)
	f.store.FailPresign = func(key string) error {
		if strings.HasSuffix(key, ".csv") {
			return errors.New("signature backend down")
		}
		return nil
	}

	intent, err := f.svc.RequestUploadURLs(context.Background(), patientA, testresults.RequestUploadCommand{
		TestID: "T-batch",
		Files: []testresults.DeclaredFile{
			{FileType: "video", ContentType: "video/mp4"},
			{FileType: "csv", ContentType: "text/csv"},
			{FileType: "questions", ContentType: "application/json"},
		},
	})
	require.Error(t, err)
	assert.Nil(t, intent)
	assert.ErrorIs(t, err, domain.ErrUpstreamStorage)
}
