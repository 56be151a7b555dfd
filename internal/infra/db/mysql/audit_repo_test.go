package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/testresult-ingest/internal/domain/audit"
)

func newEvent() *audit.Event {
	return &audit.Event{
		ActorID:    "admin-1",
		ActorRole:  "ADMIN",
		Action:     audit.ActionAssign,
		ResourceID: "r-1",
		TestID:     "T1",
		CreatedAt:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestAuditRecordWrapsInvalidDetails(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec("INSERT INTO test_result_audit").
		WithArgs("admin-1", "ADMIN", "test_result.assign", "r-1", "T1", `{"raw":"not json"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(7, 1))

	e := newEvent()
	e.DetailsJSON = "not json"
	require.NoError(t, NewAuditRepository(conn).Record(context.Background(), e))
	assert.Equal(t, int64(7), e.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
