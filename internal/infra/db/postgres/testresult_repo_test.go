package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

var resultColumns = []string{
	"id", "test_id", "test_type", "test_date", "patient_id", "participant_id",
	"video_key", "csv_key", "questions_key", "metadata", "uploaded_by",
	"assigned_by", "assigned_at", "created_at",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, mock
}

func TestCreateMapsUniqueViolationToConflict(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewTestResultRepository(conn)

	mock.ExpectExec("INSERT INTO test_results").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "test_results_test_id_key"})

	participant := "P1"
	err := repo.Create(context.Background(), &domain.TestResult{
		ID:            "r-1",
		TestID:        "T2",
		TestType:      domain.TestAudiometry,
		TestDate:      time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		ParticipantID: &participant,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWrapsOtherErrors(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewTestResultRepository(conn)

	mock.ExpectExec("INSERT INTO test_results").WillReturnError(&pq.Error{Code: "23514"})

	err := repo.Create(context.Background(), &domain.TestResult{ID: "r-1", TestID: "T3"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrConflict)
}

func TestGetScansNullableColumns(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewTestResultRepository(conn)

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM test_results WHERE id=").
		WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows(resultColumns).AddRow(
			"r-1", "T1", "AUDIOMETRY", created, nil, "P1",
			"test-recordings/admin-1/a.mp4", nil, nil, []byte(`{"device":"x"}`), "admin-1",
			nil, nil, created,
		))

	rec, err := repo.Get(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ResultID("r-1"), rec.ID)
	assert.Nil(t, rec.PatientID)
	require.NotNil(t, rec.ParticipantID)
	assert.Equal(t, "P1", *rec.ParticipantID)
	assert.True(t, rec.Provisional())
	assert.Equal(t, []string{"test-recordings/admin-1/a.mp4"}, rec.Keys())
	assert.JSONEq(t, `{"device":"x"}`, string(rec.Metadata))
}

func TestGetMissingIsNotFound(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewTestResultRepository(conn)

	mock.ExpectQuery("FROM test_results WHERE id=").WillReturnRows(sqlmock.NewRows(resultColumns))

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAssignLosingRaceIsInvalidState(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewTestResultRepository(conn)

	mock.ExpectExec("UPDATE test_results").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT patient_id FROM test_results").
		WillReturnRows(sqlmock.NewRows([]string{"patient_id"}).AddRow("PAT-42"))

	err := repo.Assign(context.Background(), "r-1", "PAT-99", "admin-1", time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignMissingRecordIsNotFound(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewTestResultRepository(conn)

	mock.ExpectExec("UPDATE test_results").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT patient_id FROM test_results").
		WillReturnRows(sqlmock.NewRows([]string{"patient_id"}))

	err := repo.Assign(context.Background(), "r-404", "PAT-1", "admin-1", time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAssignSucceedsOnProvisionalRow(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewTestResultRepository(conn)

	mock.ExpectExec("UPDATE test_results").
		WithArgs("PAT-42", "admin-1", sqlmock.AnyArg(), "r-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Assign(context.Background(), "r-1", "PAT-42", "admin-1", time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListOrphanedAppliesFilter(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewTestResultRepository(conn)

	where := "WHERE patient_id IS NULL AND participant_id IS NOT NULL AND participant_id = $1 AND test_type = $2"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM test_results " + where)).
		WithArgs("P1", "BPPV").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	created := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(where + " ORDER BY created_at ASC")).
		WithArgs("P1", "BPPV", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(resultColumns).AddRow(
			"r-1", "T1", "BPPV", created, nil, "P1",
			nil, nil, nil, nil, "admin-1", nil, nil, created,
		))

	participant := "P1"
	tt := domain.TestBPPV
	page, err := repo.ListOrphaned(context.Background(), domain.OrphanFilter{ParticipantID: &participant, TestType: &tt}, domain.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "T1", page.Data[0].TestID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissingIsNotFound(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewTestResultRepository(conn)

	mock.ExpectExec("DELETE FROM test_results").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "r-404"), domain.ErrNotFound)
}
