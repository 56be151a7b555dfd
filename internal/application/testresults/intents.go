package testresults

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/testresult-ingest/internal/domain/identity"
	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

// DeclaredFile is one file the client intends to upload.
type DeclaredFile struct {
	FileType    string `json:"fileType" validate:"required"`
	ContentType string `json:"contentType" validate:"required"`
	FileName    string `json:"fileName"`
}

// Command untuk minta presigned upload URL
type RequestUploadCommand struct {
	TestID        string
	TestType      string
	Files         []DeclaredFile
	ParticipantID string
}

// UploadURL is one presigned PUT target.
type UploadURL struct {
	UploadURL string    `json:"uploadUrl"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UploadIntent is returned to the client; it PUTs each file to its URL and
// then calls ConfirmUpload with the keys.
type UploadIntent struct {
	TestID     string                        `json:"testId"`
	UploadURLs map[domain.FileType]UploadURL `json:"uploadUrls"`
}

type plannedUpload struct {
	fileType    domain.FileType
	contentType string
	key         string
}

// RequestUploadURLs mints one presigned PUT URL per declared file. Either every
// URL is returned or none: the first storage error aborts the batch.
func (s *Service) RequestUploadURLs(ctx context.Context, caller *identity.Caller, cmd RequestUploadCommand) (*UploadIntent, error) {
	own, err := s.Owners.Resolve(ctx, caller, cmd.ParticipantID)
	if err != nil {
		return nil, err
	}
	if err := ValidateTestID(cmd.TestID); err != nil {
		return nil, err
	}
	if cmd.TestType != "" {
		if _, err := domain.NormalizeTestType(cmd.TestType); err != nil {
			return nil, err
		}
	}
	planned, err := s.planUploads(own.Namespace, cmd.Files)
	if err != nil {
		return nil, err
	}
	if err := s.ensureTestIDFree(ctx, cmd.TestID); err != nil {
		return nil, err
	}

	expiry := s.Settings.UploadExpiry
	expiresAt := s.now().Add(expiry)
	urls := make([]string, len(planned))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range planned {
		g.Go(func() error {
			u, err := s.Store.PresignPut(gctx, p.key, p.contentType, expiry)
			if err != nil {
				return domain.Upstream("presign put "+string(p.fileType), err)
			}
			urls[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log().Error("minting upload urls failed",
			zap.String("test_id", cmd.TestID),
			zap.String("caller_id", caller.ID),
			zap.Error(err),
		)
		return nil, err
	}

	intent := &UploadIntent{TestID: cmd.TestID, UploadURLs: make(map[domain.FileType]UploadURL, len(planned))}
	for i, p := range planned {
		intent.UploadURLs[p.fileType] = UploadURL{UploadURL: urls[i], Key: p.key, ExpiresAt: expiresAt}
	}
	s.log().Info("upload intent issued",
		zap.String("test_id", cmd.TestID),
		zap.String("caller_id", caller.ID),
		zap.String("namespace", own.Namespace),
		zap.Int("files", len(planned)),
	)
	return intent, nil
}

func (s *Service) planUploads(namespace string, files []DeclaredFile) ([]plannedUpload, error) {
	if len(files) == 0 {
		return nil, domain.Invalidf("at least one file is required")
	}
	if len(files) > len(domain.FileTypes) {
		return nil, domain.Invalidf("at most %d files may be declared", len(domain.FileTypes))
	}
	seen := make(map[domain.FileType]bool, len(files))
	out := make([]plannedUpload, 0, len(files))
	for _, f := range files {
		ft, err := domain.ParseFileType(f.FileType)
		if err != nil {
			return nil, err
		}
		if seen[ft] {
			return nil, domain.Invalidf("fileType %s declared twice", ft)
		}
		seen[ft] = true
		if f.ContentType == "" {
			return nil, domain.Invalidf("contentType is required for %s", ft)
		}
		key, err := s.objectKey(namespace, ft, f.FileName)
		if err != nil {
			return nil, err
		}
		out = append(out, plannedUpload{fileType: ft, contentType: f.ContentType, key: key})
	}
	return out, nil
}
