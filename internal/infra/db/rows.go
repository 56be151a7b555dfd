package db

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

// TestResultColumns is the column list every SELECT on test_results uses,
// in the order ScanTestResult expects.
const TestResultColumns = `id, test_id, test_type, test_date, patient_id, participant_id,
       video_key, csv_key, questions_key, metadata, uploaded_by,
       assigned_by, assigned_at, created_at`

// RowScanner is satisfied by *sql.Row and *sql.Rows.
type RowScanner interface {
	Scan(dest ...any) error
}

// ScanTestResult reads one row in TestResultColumns order.
func ScanTestResult(row RowScanner) (*domain.TestResult, error) {
	var (
		r                              domain.TestResult
		patientID, participantID       sql.NullString
		videoKey, csvKey, questionsKey sql.NullString
		assignedBy                     sql.NullString
		assignedAt                     sql.NullTime
		metadata                       []byte
		testType                       string
	)
	if err := row.Scan(
		&r.ID, &r.TestID, &testType, &r.TestDate, &patientID, &participantID,
		&videoKey, &csvKey, &questionsKey, &metadata, &r.UploadedBy,
		&assignedBy, &assignedAt, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.TestType = domain.TestType(testType)
	r.PatientID = StringPtr(patientID)
	r.ParticipantID = StringPtr(participantID)
	r.VideoKey = StringPtr(videoKey)
	r.CSVKey = StringPtr(csvKey)
	r.QuestionsKey = StringPtr(questionsKey)
	r.AssignedBy = StringPtr(assignedBy)
	if assignedAt.Valid {
		t := assignedAt.Time
		r.AssignedAt = &t
	}
	if len(metadata) > 0 {
		r.Metadata = json.RawMessage(append([]byte(nil), metadata...))
	}
	return &r, nil
}

// StringPtr converts a nullable column into *string.
func StringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// NullString maps nil or empty to SQL NULL.
func NullString(s *string) sql.NullString {
	if s == nil || strings.TrimSpace(*s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// NullJSON maps empty metadata to SQL NULL and passes JSON as text.
func NullJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

// CreatedAtOrNow guards against zero timestamps.
func CreatedAtOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// DashIfEmpty returns "-" when the input is empty/whitespace
func DashIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
