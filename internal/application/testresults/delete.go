package testresults

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/testresult-ingest/internal/domain/audit"
	"github.com/bryanwahyu/testresult-ingest/internal/domain/identity"
	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

type keyError struct {
	key string
	err error
}

// removeObjects deletes keys concurrently. Every key is attempted even when
// another fails; the failures are returned.
func (s *Service) removeObjects(ctx context.Context, keys []string) []keyError {
	errs := make([]error, len(keys))
	var g errgroup.Group
	for i, k := range keys {
		g.Go(func() error {
			errs[i] = s.Store.Delete(ctx, k)
			return nil
		})
	}
	_ = g.Wait()

	var failed []keyError
	for i, err := range errs {
		if err != nil {
			failed = append(failed, keyError{key: keys[i], err: err})
		}
	}
	return failed
}

// Delete removes every stored object of the record, then the record itself.
//
// When any object delete fails the row is kept so the reference is not lost
// and the call can be retried; objects already removed stay removed.
func (s *Service) Delete(ctx context.Context, caller *identity.Caller, id domain.ResultID) error {
	rec, err := s.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Owners.Authorize(ctx, caller, rec); err != nil {
		return err
	}

	keys := rec.Keys()
	if failed := s.removeObjects(ctx, keys); len(failed) > 0 {
		causes := make([]error, 0, len(failed))
		failedKeys := make([]string, 0, len(failed))
		for _, f := range failed {
			s.log().Warn("object delete failed",
				zap.String("test_result_id", string(id)),
				zap.String("key", f.key),
				zap.Error(f.err),
			)
			causes = append(causes, f.err)
			failedKeys = append(failedKeys, f.key)
		}
		s.record(ctx, caller, audit.ActionDeletePartial, rec, map[string]any{
			"removed": len(keys) - len(failed),
			"failed":  failedKeys,
		})
		return domain.Upstream("delete objects", errors.Join(causes...))
	}

	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log().Info("test result deleted",
		zap.String("id", string(id)),
		zap.String("test_id", rec.TestID),
		zap.String("caller_id", caller.ID),
		zap.Int("objects", len(keys)),
	)
	s.record(ctx, caller, audit.ActionDelete, rec, map[string]any{"objects": len(keys)})
	return nil
}
