package testresults

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/bryanwahyu/testresult-ingest/internal/domain/audit"
	"github.com/bryanwahyu/testresult-ingest/internal/domain/identity"
	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

// UploadedFile is the client's confirmation that a key now holds bytes.
type UploadedFile struct {
	Key string `json:"key"`
}

// UploadedFiles mirrors the uploadUrls map returned by RequestUploadURLs.
type UploadedFiles struct {
	Video     *UploadedFile `json:"video,omitempty"`
	CSV       *UploadedFile `json:"csv,omitempty"`
	Questions *UploadedFile `json:"questions,omitempty"`
}

func (u UploadedFiles) byType() map[domain.FileType]string {
	out := make(map[domain.FileType]string, 3)
	if u.Video != nil {
		out[domain.FileVideo] = u.Video.Key
	}
	if u.CSV != nil {
		out[domain.FileCSV] = u.CSV.Key
	}
	if u.Questions != nil {
		out[domain.FileQuestions] = u.Questions.Key
	}
	return out
}

// Command untuk confirm setelah presigned PUT
type ConfirmUploadCommand struct {
	TestID        string
	TestType      string
	TestDate      string
	Metadata      json.RawMessage
	UploadedFiles UploadedFiles
	ParticipantID string
}

// ConfirmUpload records a TestResult whose files the client already PUT to
// storage. Keys are stored verbatim; object existence is not re-checked.
func (s *Service) ConfirmUpload(ctx context.Context, caller *identity.Caller, cmd ConfirmUploadCommand) (*domain.TestResult, error) {
	own, err := s.Owners.Resolve(ctx, caller, cmd.ParticipantID)
	if err != nil {
		return nil, err
	}
	fields, err := validateRecordFields(cmd.TestID, cmd.TestType, cmd.TestDate, cmd.Metadata)
	if err != nil {
		return nil, err
	}
	keys := cmd.UploadedFiles.byType()
	for ft, key := range keys {
		if err := s.checkKeyInNamespace(own.Namespace, string(ft), key); err != nil {
			return nil, err
		}
	}
	if err := s.ensureTestIDFree(ctx, cmd.TestID); err != nil {
		return nil, err
	}

	rec := s.newRecord(caller, own, cmd.TestID, fields)
	for ft, key := range keys {
		rec.SetKey(ft, key)
	}
	if err := s.create(ctx, caller, rec, "confirm"); err != nil {
		return nil, err
	}
	return rec, nil
}

// DirectFile is one file streamed through the legacy multipart endpoint.
type DirectFile struct {
	FileType    domain.FileType
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Command untuk legacy direct upload
type DirectUploadCommand struct {
	TestID        string
	TestType      string
	TestDate      string
	Metadata      json.RawMessage
	ParticipantID string
	Files         []DirectFile
}

// UploadDirect is the legacy path: bytes pass through this service and are
// written to storage one file at a time before the record is inserted.
func (s *Service) UploadDirect(ctx context.Context, caller *identity.Caller, cmd DirectUploadCommand) (*domain.TestResult, error) {
	own, err := s.Owners.Resolve(ctx, caller, cmd.ParticipantID)
	if err != nil {
		return nil, err
	}
	fields, err := validateRecordFields(cmd.TestID, cmd.TestType, cmd.TestDate, cmd.Metadata)
	if err != nil {
		return nil, err
	}
	seen := make(map[domain.FileType]bool, len(cmd.Files))
	for _, f := range cmd.Files {
		if _, err := domain.ParseFileType(string(f.FileType)); err != nil {
			return nil, err
		}
		if seen[f.FileType] {
			return nil, domain.Invalidf("fileType %s uploaded twice", f.FileType)
		}
		seen[f.FileType] = true
		if limit := s.Settings.MaxDirectUploadBytes; limit > 0 && f.Size > limit {
			return nil, domain.Invalidf("%s exceeds the %d byte limit", f.FileType, limit)
		}
	}
	if err := s.ensureTestIDFree(ctx, cmd.TestID); err != nil {
		return nil, err
	}

	rec := s.newRecord(caller, own, cmd.TestID, fields)
	var written []string
	for _, f := range cmd.Files {
		key, err := s.objectKey(own.Namespace, f.FileType, f.FileName)
		if err != nil {
			return nil, err
		}
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := s.Store.Put(ctx, key, f.Body, f.Size, contentType); err != nil {
			s.cleanup(written)
			return nil, domain.Upstream("put "+string(f.FileType), err)
		}
		written = append(written, key)
		rec.SetKey(f.FileType, key)
	}

	if err := s.create(ctx, caller, rec, "direct"); err != nil {
		s.cleanup(written)
		return nil, err
	}
	return rec, nil
}

func (s *Service) newRecord(caller *identity.Caller, own domain.Ownership, testID string, f recordFields) *domain.TestResult {
	rec := &domain.TestResult{
		ID:         domain.ResultID(s.newID()),
		TestID:     testID,
		TestType:   f.testType,
		TestDate:   f.testDate,
		Metadata:   f.metadata,
		UploadedBy: caller.ID,
		CreatedAt:  s.now(),
	}
	own.Apply(rec)
	return rec
}

// create inserts rec. A duplicate test_id surfaces as ErrConflict from the
// repository even when the pre-check passed.
func (s *Service) create(ctx context.Context, caller *identity.Caller, rec *domain.TestResult, path string) error {
	if err := rec.ValidateOwnership(); err != nil {
		return err
	}
	if err := s.Repo.Create(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.log().Info("duplicate testId rejected", zap.String("test_id", rec.TestID), zap.String("path", path))
		}
		return err
	}
	s.log().Info("test result ingested",
		zap.String("id", string(rec.ID)),
		zap.String("test_id", rec.TestID),
		zap.String("test_type", string(rec.TestType)),
		zap.String("path", path),
		zap.Bool("provisional", rec.Provisional()),
	)
	s.record(ctx, caller, audit.ActionIngest, rec, map[string]any{
		"path":        path,
		"test_type":   rec.TestType,
		"provisional": rec.Provisional(),
		"files":       len(rec.Keys()),
	})
	return nil
}

// cleanup removes objects written by a failed direct upload. Best effort:
// it runs on a fresh context so a cancelled request still cleans up.
func (s *Service) cleanup(keys []string) {
	if len(keys) == 0 {
		return
	}
	for _, k := range s.removeObjects(context.Background(), keys) {
		s.log().Warn("orphaned object after failed ingest", zap.String("key", k.key), zap.Error(k.err))
	}
}
