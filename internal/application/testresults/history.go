package testresults

import (
	"context"
	"errors"

	"github.com/bryanwahyu/testresult-ingest/internal/domain/audit"
	"github.com/bryanwahyu/testresult-ingest/internal/domain/identity"
	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

const maxAuditEntries = 200

// AuditTrail lists the recorded actions on one test result, newest first.
// Admin only. The record itself may already be deleted.
func (s *Service) AuditTrail(ctx context.Context, caller *identity.Caller, id domain.ResultID) ([]*audit.Event, error) {
	if err := s.Owners.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, domain.Invalidf("id is required")
	}
	if s.History == nil {
		return nil, errors.New("audit history is not configured")
	}
	events, err := s.History.ListByResource(ctx, string(id), maxAuditEntries)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*audit.Event{}
	}
	return events, nil
}
