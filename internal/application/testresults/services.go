package testresults

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/testresult-ingest/internal/application"
	"github.com/bryanwahyu/testresult-ingest/internal/application/ownership"
	"github.com/bryanwahyu/testresult-ingest/internal/domain/audit"
	"github.com/bryanwahyu/testresult-ingest/internal/domain/identity"
	"github.com/bryanwahyu/testresult-ingest/internal/domain/patients"
	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

// Settings tunes key layout, URL lifetimes and upload limits.
type Settings struct {
	KeyPrefix            string
	UploadExpiry         time.Duration
	DownloadExpiry       time.Duration
	MaxDirectUploadBytes int64
	MaxMultipartParts    int
}

// DefaultSettings: 1h upload URLs, 15m download URLs.
func DefaultSettings() Settings {
	return Settings{
		KeyPrefix:            "test-recordings",
		UploadExpiry:         time.Hour,
		DownloadExpiry:       15 * time.Minute,
		MaxDirectUploadBytes: 500 << 20,
		MaxMultipartParts:    10000,
	}
}

// Service implements use-cases untuk TestResult ingest and reconciliation.
// It holds no mutable state and is safe for concurrent use.
type Service struct {
	Repo     domain.Repository
	Store    domain.ObjectStore
	Owners   *ownership.Resolver
	Patients patients.Directory
	Audit    audit.Recorder
	History  audit.Reader
	Clock    application.Clock
	Log      *zap.Logger
	Settings Settings

	// NewID defaults to uuid.NewString.
	NewID func() string
}

// NewService wires a Service with default settings.
func NewService(repo domain.Repository, store domain.ObjectStore, dir patients.Directory, rec audit.Recorder, log *zap.Logger) *Service {
	// the SQL recorders also read the trail back
	history, _ := rec.(audit.Reader)
	return &Service{
		Repo:     repo,
		Store:    store,
		Owners:   ownership.NewResolver(dir),
		Patients: dir,
		Audit:    rec,
		History:  history,
		Clock:    application.SystemClock{},
		Log:      log,
		Settings: DefaultSettings(),
		NewID:    uuid.NewString,
	}
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}

func (s *Service) newID() string {
	if s.NewID == nil {
		return uuid.NewString()
	}
	return s.NewID()
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// record writes an audit event. Failures are logged and never fail the request.
func (s *Service) record(ctx context.Context, caller *identity.Caller, action audit.Action, rec *domain.TestResult, details map[string]any) {
	if s.Audit == nil {
		return
	}
	raw := "{}"
	if len(details) > 0 {
		if b, err := json.Marshal(details); err == nil {
			raw = string(b)
		}
	}
	e := &audit.Event{
		ActorID:     caller.ID,
		ActorRole:   string(caller.Role),
		Action:      action,
		ResourceID:  string(rec.ID),
		TestID:      rec.TestID,
		DetailsJSON: raw,
		CreatedAt:   s.now(),
	}
	if err := s.Audit.Record(ctx, e); err != nil {
		s.log().Warn("audit record failed",
			zap.String("action", string(action)),
			zap.String("test_result_id", string(rec.ID)),
			zap.Error(err),
		)
	}
}

// ensureTestIDFree is the fast-path duplicate check. It is racy by nature;
// Repository.Create is what actually enforces uniqueness.
func (s *Service) ensureTestIDFree(ctx context.Context, testID string) error {
	exists, err := s.Repo.ExistsTestID(ctx, testID)
	if err != nil {
		return err
	}
	if exists {
		return domain.ConflictTestID(testID)
	}
	return nil
}

// Get ambil 1 test result, owner or admin only
func (s *Service) Get(ctx context.Context, caller *identity.Caller, id domain.ResultID) (*domain.TestResult, error) {
	rec, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Owners.Authorize(ctx, caller, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
