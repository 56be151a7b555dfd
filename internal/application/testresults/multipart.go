package testresults

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/testresult-ingest/internal/domain/identity"
	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

// Command untuk mulai multipart upload (video besar)
type StartMultipartCommand struct {
	TestID        string
	File          DeclaredFile
	Parts         int
	ParticipantID string
}

// MultipartUpload carries one presigned URL per part.
type MultipartUpload struct {
	TestID    string          `json:"testId"`
	FileType  domain.FileType `json:"fileType"`
	Key       string          `json:"key"`
	UploadID  string          `json:"uploadId"`
	PartURLs  map[int]string  `json:"partUrls"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// StartMultipartUpload opens a multipart upload for one file and presigns
// every part. If any part URL cannot be minted the upload is aborted.
func (s *Service) StartMultipartUpload(ctx context.Context, caller *identity.Caller, cmd StartMultipartCommand) (*MultipartUpload, error) {
	own, err := s.Owners.Resolve(ctx, caller, cmd.ParticipantID)
	if err != nil {
		return nil, err
	}
	if err := ValidateTestID(cmd.TestID); err != nil {
		return nil, err
	}
	maxParts := s.Settings.MaxMultipartParts
	if cmd.Parts < 1 || (maxParts > 0 && cmd.Parts > maxParts) {
		return nil, domain.Invalidf("parts must be between 1 and %d", maxParts)
	}
	planned, err := s.planUploads(own.Namespace, []DeclaredFile{cmd.File})
	if err != nil {
		return nil, err
	}
	if err := s.ensureTestIDFree(ctx, cmd.TestID); err != nil {
		return nil, err
	}
	p := planned[0]

	uploadID, err := s.Store.StartMultipart(ctx, p.key, p.contentType)
	if err != nil {
		return nil, domain.Upstream("start multipart", err)
	}

	expiry := s.Settings.UploadExpiry
	urls := make([]string, cmd.Parts)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for i := range urls {
		g.Go(func() error {
			u, err := s.Store.PresignPart(gctx, p.key, uploadID, i+1, expiry)
			if err != nil {
				return err
			}
			urls[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if aerr := s.Store.AbortMultipart(context.Background(), p.key, uploadID); aerr != nil {
			s.log().Warn("abort after presign failure", zap.String("key", p.key), zap.Error(aerr))
		}
		return nil, domain.Upstream("presign part", err)
	}

	out := &MultipartUpload{
		TestID:    cmd.TestID,
		FileType:  p.fileType,
		Key:       p.key,
		UploadID:  uploadID,
		PartURLs:  make(map[int]string, len(urls)),
		ExpiresAt: s.now().Add(expiry),
	}
	for i, u := range urls {
		out.PartURLs[i+1] = u
	}
	s.log().Info("multipart upload started",
		zap.String("test_id", cmd.TestID),
		zap.String("key", p.key),
		zap.Int("parts", cmd.Parts),
	)
	return out, nil
}

// CompleteMultipartUpload stitches the parts. The key must be in the caller's
// namespace; afterwards the client confirms as usual.
func (s *Service) CompleteMultipartUpload(ctx context.Context, caller *identity.Caller, key, uploadID string, parts []domain.CompletedPart) error {
	if err := s.checkMultipartTarget(ctx, caller, key, uploadID); err != nil {
		return err
	}
	if len(parts) == 0 {
		return domain.Invalidf("parts are required")
	}
	sorted := append([]domain.CompletedPart(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })
	for i, p := range sorted {
		if p.PartNumber < 1 || p.ETag == "" {
			return domain.Invalidf("part %d is missing a number or etag", i)
		}
		if i > 0 && sorted[i-1].PartNumber == p.PartNumber {
			return domain.Invalidf("part %d listed twice", p.PartNumber)
		}
	}
	if err := s.Store.CompleteMultipart(ctx, key, uploadID, sorted); err != nil {
		return domain.Upstream("complete multipart", err)
	}
	return nil
}

// AbortMultipartUpload discards an in-flight upload.
func (s *Service) AbortMultipartUpload(ctx context.Context, caller *identity.Caller, key, uploadID string) error {
	if err := s.checkMultipartTarget(ctx, caller, key, uploadID); err != nil {
		return err
	}
	if err := s.Store.AbortMultipart(ctx, key, uploadID); err != nil {
		return domain.Upstream("abort multipart", err)
	}
	return nil
}

func (s *Service) checkMultipartTarget(ctx context.Context, caller *identity.Caller, key, uploadID string) error {
	ns, err := s.Owners.Namespace(ctx, caller)
	if err != nil {
		return err
	}
	if uploadID == "" {
		return domain.Invalidf("uploadId is required")
	}
	return s.checkKeyInNamespace(ns, "multipart", key)
}
