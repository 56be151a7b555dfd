package testresults_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/testresult-ingest/internal/domain/audit"
	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

func TestDeleteRemovesObjectsThenRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.ingestAs(t, patientA, "T-del", "", domain.FileVideo, domain.FileCSV, domain.FileQuestions)
	require.Len(t, f.store.Keys("test-recordings/patient-p-a/"), 3)

	require.NoError(t, f.svc.Delete(ctx, patientA, rec.ID))

	assert.Empty(t, f.store.Keys("test-recordings/patient-p-a/"))
	_, err := f.repo.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, []audit.Action{audit.ActionIngest, audit.ActionDelete}, f.audit.Actions())

	// testId is free again
	f.ingestAs(t, patientA, "T-del", "", domain.FileCSV)
}

func TestDeletePartialFailureKeepsRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.ingestAs(t, admin, "T-partial", "P-1", domain.FileVideo, domain.FileCSV)
	f.store.FailDelete = func(key string) error {
		if strings.HasSuffix(key, ".csv") {
			return errors.New("access denied")
		}
		return nil
	}

	err := f.svc.Delete(ctx, admin, rec.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamStorage)

	stored, err := f.repo.Get(ctx, rec.ID)
	require.NoError(t, err, "row survives a failed object delete")
	assert.False(t, f.store.Has(*stored.VideoKey))
	assert.True(t, f.store.Has(*stored.CSVKey))
	assert.Equal(t, []audit.Action{audit.ActionIngest, audit.ActionDeletePartial}, f.audit.Actions())

	// retry once storage recovers; the already removed video is not an error
	f.store.FailDelete = nil
	require.NoError(t, f.svc.Delete(ctx, admin, rec.ID))
	assert.Zero(t, f.repo.Count())
}

func TestDeleteRecordWithoutFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec, err := f.svc.ConfirmUpload(ctx, patientA, confirmNoFiles("T-empty"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, patientA, rec.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, patientA, rec.ID), domain.ErrNotFound)
}
