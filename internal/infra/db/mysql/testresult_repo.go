package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
	"github.com/bryanwahyu/testresult-ingest/internal/infra/db"
)

type TestResultRepository struct {
	db *sql.DB
}

func NewTestResultRepository(conn *sql.DB) *TestResultRepository {
	return &TestResultRepository{db: conn}
}

func (r *TestResultRepository) ExistsTestID(ctx context.Context, testID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM test_results WHERE test_id=?)`, testID).Scan(&exists)
	return exists, err
}

// Create insert TestResult baru. Plain INSERT, no ON DUPLICATE KEY UPDATE:
// a second row for the same test_id must fail.
func (r *TestResultRepository) Create(ctx context.Context, t *domain.TestResult) error {
	const q = `
INSERT INTO test_results
(id, test_id, test_type, test_date, patient_id, participant_id,
 video_key, csv_key, questions_key, metadata, uploaded_by, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?);`

	_, err := r.db.ExecContext(ctx, q,
		t.ID, t.TestID, string(t.TestType), t.TestDate,
		db.NullString(t.PatientID), db.NullString(t.ParticipantID),
		db.NullString(t.VideoKey), db.NullString(t.CSVKey), db.NullString(t.QuestionsKey),
		db.NullJSON(t.Metadata), t.UploadedBy, db.CreatedAtOrNow(t.CreatedAt),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return domain.ConflictTestID(t.TestID)
		}
		return fmt.Errorf("inserting test result: %w", err)
	}
	return nil
}

// Get by ID
func (r *TestResultRepository) Get(ctx context.Context, id domain.ResultID) (*domain.TestResult, error) {
	q := `SELECT ` + db.TestResultColumns + ` FROM test_results WHERE id=? LIMIT 1;`
	t, err := db.ScanTestResult(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("test result %s not found", id)
		}
		return nil, err
	}
	return t, nil
}

func (r *TestResultRepository) ListByPatient(ctx context.Context, patientID string, p domain.Page) (domain.PaginatedResult, error) {
	p = p.Normalize()
	q := `SELECT ` + db.TestResultColumns + `
FROM test_results
WHERE patient_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;`
	rows, err := r.query(ctx, q, patientID, p.Size, p.Offset())
	if err != nil {
		return domain.PaginatedResult{}, err
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM test_results WHERE patient_id=?`, patientID).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("counting test results: %w", err)
	}
	return domain.NewPaginatedResult(rows, p, total), nil
}

func (r *TestResultRepository) ListOrphaned(ctx context.Context, f domain.OrphanFilter, p domain.Page) (domain.PaginatedResult, error) {
	p = p.Normalize()
	where := ` WHERE patient_id IS NULL AND participant_id IS NOT NULL`
	var args []any
	if f.ParticipantID != nil {
		where += ` AND participant_id = ?`
		args = append(args, *f.ParticipantID)
	}
	if f.TestType != nil {
		where += ` AND test_type = ?`
		args = append(args, string(*f.TestType))
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM test_results`+where, args...).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("counting orphaned test results: %w", err)
	}
	q := `SELECT ` + db.TestResultColumns + ` FROM test_results` + where + ` ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`
	rows, err := r.query(ctx, q, append(args, p.Size, p.Offset())...)
	if err != nil {
		return domain.PaginatedResult{}, err
	}
	return domain.NewPaginatedResult(rows, p, total), nil
}

// Assign hanya update kalau record masih provisional
func (r *TestResultRepository) Assign(ctx context.Context, id domain.ResultID, patientID, assignedBy string, at time.Time) error {
	const q = `
UPDATE test_results
SET patient_id = ?, assigned_by = ?, assigned_at = ?
WHERE id = ? AND patient_id IS NULL AND participant_id IS NOT NULL;`
	res, err := r.db.ExecContext(ctx, q, patientID, assignedBy, at, id)
	if err != nil {
		return fmt.Errorf("assigning test result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var current sql.NullString
	err = r.db.QueryRowContext(ctx, `SELECT patient_id FROM test_results WHERE id=?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundf("test result %s not found", id)
	}
	if err != nil {
		return err
	}
	return domain.InvalidStatef("test result %s is not provisional", id)
}

func (r *TestResultRepository) Delete(ctx context.Context, id domain.ResultID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM test_results WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("deleting test result: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NotFoundf("test result %s not found", id)
	}
	return nil
}

func (r *TestResultRepository) query(ctx context.Context, q string, args ...any) ([]*domain.TestResult, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying test results: %w", err)
	}
	defer rows.Close()

	var out []*domain.TestResult
	for rows.Next() {
		t, err := db.ScanTestResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
