package testresults_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/testresult-ingest/internal/application/testresults"
	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

func startVideo(t *testing.T, f *fixture, parts int) *testresults.MultipartUpload {
	t.Helper()
	up, err := f.svc.StartMultipartUpload(context.Background(), patientA, testresults.StartMultipartCommand{
		TestID: "T-big",
		File:   testresults.DeclaredFile{FileType: "video", ContentType: "video/mp4", FileName: "long.mp4"},
		Parts:  parts,
	})
	require.NoError(t, err)
	return up
}

func TestMultipartUploadLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	up := startVideo(t, f, 3)
	assert.Equal(t, domain.FileVideo, up.FileType)
	assert.True(t, strings.HasPrefix(up.Key, "test-recordings/patient-p-a/"), up.Key)
	require.Len(t, up.PartURLs, 3)
	assert.Contains(t, up.PartURLs[3], "partNumber=3")
	assert.Equal(t, 1, f.store.OpenUploads())

	parts := []domain.CompletedPart{{PartNumber: 2, ETag: "b"}, {PartNumber: 1, ETag: "a"}, {PartNumber: 3, ETag: "c"}}
	require.NoError(t, f.svc.CompleteMultipartUpload(ctx, patientA, up.Key, up.UploadID, parts))
	assert.True(t, f.store.Has(up.Key))
	assert.Zero(t, f.store.OpenUploads())

	rec, err := f.svc.ConfirmUpload(ctx, patientA, testresults.ConfirmUploadCommand{
		TestID: "T-big", TestType: "BPPV", TestDate: "2025-03-14",
		UploadedFiles: testresults.UploadedFiles{Video: &testresults.UploadedFile{Key: up.Key}},
	})
	require.NoError(t, err)
	assert.Equal(t, up.Key, *rec.VideoKey)
}

func TestMultipartRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	up := startVideo(t, f, 2)

	err := f.svc.CompleteMultipartUpload(ctx, patientB, up.Key, up.UploadID, []domain.CompletedPart{{PartNumber: 1, ETag: "a"}})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	err = f.svc.CompleteMultipartUpload(ctx, patientA, up.Key, up.UploadID, []domain.CompletedPart{{PartNumber: 1, ETag: "a"}, {PartNumber: 1, ETag: "b"}})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	err = f.svc.CompleteMultipartUpload(ctx, patientA, up.Key, up.UploadID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	err = f.svc.AbortMultipartUpload(ctx, patientA, up.Key, "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	require.NoError(t, f.svc.AbortMultipartUpload(ctx, patientA, up.Key, up.UploadID))
	assert.Zero(t, f.store.OpenUploads())

	_, err = f.svc.StartMultipartUpload(ctx, patientA, testresults.StartMultipartCommand{
		TestID: "T-x", File: testresults.DeclaredFile{FileType: "video", ContentType: "video/mp4"}, Parts: 0,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	f.svc.Settings.MaxMultipartParts = 4
	_, err = f.svc.StartMultipartUpload(ctx, patientA, testresults.StartMultipartCommand{
		TestID: "T-x", File: testresults.DeclaredFile{FileType: "video", ContentType: "video/mp4"}, Parts: 5,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestMultipartAbortsWhenPartPresignFails(t *testing.T) {
	f := newFixture(t)
	f.store.FailPart = func(n int) error {
		if n == 2 {
			return errors.New("signer unavailable")
		}
		return nil
	}

	_, err := f.svc.StartMultipartUpload(context.Background(), patientA, testresults.StartMultipartCommand{
		TestID: "T-fail",
		File:   testresults.DeclaredFile{FileType: "video", ContentType: "video/mp4"},
		Parts:  4,
	})
	assert.ErrorIs(t, err, domain.ErrUpstreamStorage)
	assert.Len(t, f.store.Aborted, 1)
	assert.Zero(t, f.store.OpenUploads())
}
