// Package testutil holds in-memory implementations of the service ports.
// They enforce the same contracts as the SQL and MinIO adapters (unique
// test_id, conditional assign) so service tests exercise real semantics.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bryanwahyu/testresult-ingest/internal/domain/audit"
	"github.com/bryanwahyu/testresult-ingest/internal/domain/patients"
	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

// Repo is a mutex-guarded testresults.Repository.
type Repo struct {
	mu       sync.Mutex
	rows     map[domain.ResultID]domain.TestResult
	byTestID map[string]domain.ResultID

	// Err, when set, is returned from every call.
	Err error
}

func NewRepo() *Repo {
	return &Repo{
		rows:     map[domain.ResultID]domain.TestResult{},
		byTestID: map[string]domain.ResultID{},
	}
}

func (r *Repo) ExistsTestID(_ context.Context, testID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	_, ok := r.byTestID[testID]
	return ok, nil
}

func (r *Repo) Create(_ context.Context, t *domain.TestResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.byTestID[t.TestID]; ok {
		return domain.ConflictTestID(t.TestID)
	}
	r.rows[t.ID] = *t
	r.byTestID[t.TestID] = t.ID
	return nil
}

func (r *Repo) Get(_ context.Context, id domain.ResultID) (*domain.TestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	t, ok := r.rows[id]
	if !ok {
		return nil, domain.NotFoundf("test result %s not found", id)
	}
	return &t, nil
}

func (r *Repo) ListByPatient(_ context.Context, patientID string, p domain.Page) (domain.PaginatedResult, error) {
	return r.list(p, func(t domain.TestResult) bool { return t.OwnedByPatient(patientID) }, true)
}

func (r *Repo) ListOrphaned(_ context.Context, f domain.OrphanFilter, p domain.Page) (domain.PaginatedResult, error) {
	return r.list(p, func(t domain.TestResult) bool {
		if !t.Provisional() {
			return false
		}
		if f.ParticipantID != nil && *t.ParticipantID != *f.ParticipantID {
			return false
		}
		return f.TestType == nil || t.TestType == *f.TestType
	}, false)
}

func (r *Repo) list(p domain.Page, keep func(domain.TestResult) bool, newestFirst bool) (domain.PaginatedResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return domain.PaginatedResult{}, r.Err
	}
	p = p.Normalize()
	var all []*domain.TestResult
	for _, t := range r.rows {
		if keep(t) {
			t := t
			all = append(all, &t)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt) != newestFirst
		}
		return (a.ID < b.ID) != newestFirst
	})
	total := int64(len(all))
	start := min(p.Offset(), len(all))
	end := min(start+p.Size, len(all))
	return domain.NewPaginatedResult(all[start:end], p, total), nil
}

func (r *Repo) Assign(_ context.Context, id domain.ResultID, patientID, assignedBy string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	t, ok := r.rows[id]
	if !ok {
		return domain.NotFoundf("test result %s not found", id)
	}
	if !t.Provisional() {
		return domain.InvalidStatef("test result %s is not provisional", id)
	}
	t.PatientID = &patientID
	t.AssignedBy = &assignedBy
	t.AssignedAt = &at
	r.rows[id] = t
	return nil
}

func (r *Repo) Delete(_ context.Context, id domain.ResultID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	t, ok := r.rows[id]
	if !ok {
		return domain.NotFoundf("test result %s not found", id)
	}
	delete(r.rows, id)
	delete(r.byTestID, t.TestID)
	return nil
}

// Count returns the number of stored rows.
func (r *Repo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// Store is an in-memory testresults.ObjectStore. Presigned URLs are fake but
// carry the key so tests can match them.
type Store struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploads   map[string]string // uploadID -> key
	nextID    int
	Presigned []string
	Aborted   []string

	// failure injection, matched against the object key
	FailPresign func(key string) error
	FailPut     func(key string) error
	FailDelete  func(key string) error
	FailPart    func(partNumber int) error
}

func NewStore() *Store {
	return &Store{objects: map[string][]byte{}, uploads: map[string]string{}}
}

func (s *Store) PresignPut(_ context.Context, key, contentType string, expiry time.Duration) (string, error) {
	if s.FailPresign != nil {
		if err := s.FailPresign(key); err != nil {
			return "", err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Presigned = append(s.Presigned, key)
	return fmt.Sprintf("https://storage.test/%s?X-Amz-Expires=%d&content-type=%s", key, int(expiry.Seconds()), contentType), nil
}

func (s *Store) PresignGet(_ context.Context, key string, expiry time.Duration, downloadName string) (string, error) {
	if s.FailPresign != nil {
		if err := s.FailPresign(key); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("https://storage.test/%s?X-Amz-Expires=%d&filename=%s", key, int(expiry.Seconds()), downloadName), nil
}

func (s *Store) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	if s.FailPut != nil {
		if err := s.FailPut(key); err != nil {
			return err
		}
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
	return nil
}

// Delete is idempotent like S3 RemoveObject.
func (s *Store) Delete(_ context.Context, key string) error {
	if s.FailDelete != nil {
		if err := s.FailDelete(key); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *Store) StartMultipart(_ context.Context, key, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("upload-%d", s.nextID)
	s.uploads[id] = key
	return id, nil
}

func (s *Store) PresignPart(_ context.Context, key, uploadID string, partNumber int, _ time.Duration) (string, error) {
	if s.FailPart != nil {
		if err := s.FailPart(partNumber); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("https://storage.test/%s?partNumber=%d&uploadId=%s", key, partNumber, uploadID), nil
}

func (s *Store) CompleteMultipart(_ context.Context, key, uploadID string, parts []domain.CompletedPart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploads[uploadID] != key {
		return fmt.Errorf("NoSuchUpload: %s", uploadID)
	}
	delete(s.uploads, uploadID)
	var buf bytes.Buffer
	for _, p := range parts {
		buf.WriteString(p.ETag)
	}
	s.objects[key] = buf.Bytes()
	return nil
}

func (s *Store) AbortMultipart(_ context.Context, key, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uploads, uploadID)
	s.Aborted = append(s.Aborted, key)
	return nil
}

// Has reports whether key holds an object.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// Keys lists stored object keys with the given prefix.
func (s *Store) Keys(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Seed stores an object directly, as if a client had PUT it.
func (s *Store) Seed(key string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = body
}

// OpenUploads returns the number of multipart uploads not yet completed or aborted.
func (s *Store) OpenUploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

// Directory is a patients.Directory keyed by user id.
type Directory struct {
	byUser map[string]*patients.Patient
	byID   map[string]*patients.Patient
}

func NewDirectory(ps ...patients.Patient) *Directory {
	d := &Directory{byUser: map[string]*patients.Patient{}, byID: map[string]*patients.Patient{}}
	for _, p := range ps {
		p := p
		d.byUser[p.UserID] = &p
		d.byID[p.ID] = &p
	}
	return d
}

func (d *Directory) FindByUserID(_ context.Context, userID string) (*patients.Patient, error) {
	p, ok := d.byUser[userID]
	if !ok {
		return nil, domain.NotFoundf("patient for user %s not found", userID)
	}
	return p, nil
}

func (d *Directory) Exists(_ context.Context, patientID string) (bool, error) {
	_, ok := d.byID[patientID]
	return ok, nil
}

// AuditLog records events in memory and reads them back newest first.
type AuditLog struct {
	mu     sync.Mutex
	events []*audit.Event
	Err    error
}

func (a *AuditLog) Record(_ context.Context, e *audit.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return a.Err
	}
	cp := *e
	cp.ID = int64(len(a.events) + 1)
	a.events = append(a.events, &cp)
	e.ID = cp.ID
	return nil
}

func (a *AuditLog) ListByResource(_ context.Context, resourceID string, limit int) ([]*audit.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*audit.Event
	for i := len(a.events) - 1; i >= 0 && len(out) < limit; i-- {
		if a.events[i].ResourceID == resourceID {
			out = append(out, a.events[i])
		}
	}
	return out, nil
}

// Actions returns the recorded actions in order.
func (a *AuditLog) Actions() []audit.Action {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]audit.Action, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Action)
	}
	return out
}
