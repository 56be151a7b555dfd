package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

func TestCreateDuplicateEntryIsConflict(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec("INSERT INTO test_results").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'T2' for key 'test_results_test_id_key'"})

	patient := "PAT-1"
	err = NewTestResultRepository(conn).Create(context.Background(), &domain.TestResult{
		ID:        "r-2",
		TestID:    "T2",
		TestType:  domain.TestLoudness,
		TestDate:  time.Now(),
		PatientID: &patient,
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientDirectoryMissingUser(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery("SELECT id, user_id FROM patients").
		WithArgs("user-9").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}))

	_, err = NewPatientDirectory(conn).FindByUserID(context.Background(), "user-9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
