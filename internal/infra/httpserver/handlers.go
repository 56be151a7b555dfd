package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apptr "github.com/bryanwahyu/testresult-ingest/internal/application/testresults"
	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
	"github.com/bryanwahyu/testresult-ingest/internal/middleware"
)

const (
	maxJSONBody     = 1 << 20
	multipartMemory = 32 << 20
)

// decode reads a JSON body into dst and runs its validate tags.
func decode(w http.ResponseWriter, req *http.Request, dst any) error {
	req.Body = http.MaxBytesReader(w, req.Body, maxJSONBody)
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return domain.Invalidf("request body is required")
		}
		return domain.Invalidf("malformed JSON body: %v", err)
	}
	return middleware.ValidateStruct(dst)
}

type presignedUploadRequest struct {
	TestID        string               `json:"testId" validate:"required"`
	TestType      string               `json:"testType"`
	Files         []apptr.DeclaredFile `json:"files" validate:"required,min=1,max=3,dive"`
	ParticipantID string               `json:"participantId"`
}

// POST /test-results/presigned-upload
func (r *Router) handlePresignedUpload(w http.ResponseWriter, req *http.Request) error {
	var body presignedUploadRequest
	if err := decode(w, req, &body); err != nil {
		return err
	}
	intent, err := r.svc.RequestUploadURLs(req.Context(), middleware.GetCaller(req.Context()), apptr.RequestUploadCommand{
		TestID:        body.TestID,
		TestType:      body.TestType,
		Files:         body.Files,
		ParticipantID: body.ParticipantID,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, intent)
	return nil
}

type confirmUploadRequest struct {
	TestID        string              `json:"testId" validate:"required"`
	TestType      string              `json:"testType" validate:"required"`
	TestDate      string              `json:"testDate" validate:"required"`
	Metadata      json.RawMessage     `json:"metadata"`
	UploadedFiles apptr.UploadedFiles `json:"uploadedFiles"`
	ParticipantID string              `json:"participantId"`
}

// POST /test-results/confirm-upload
func (r *Router) handleConfirmUpload(w http.ResponseWriter, req *http.Request) error {
	var body confirmUploadRequest
	if err := decode(w, req, &body); err != nil {
		return err
	}
	rec, err := r.svc.ConfirmUpload(req.Context(), middleware.GetCaller(req.Context()), apptr.ConfirmUploadCommand{
		TestID:        body.TestID,
		TestType:      body.TestType,
		TestDate:      body.TestDate,
		Metadata:      body.Metadata,
		UploadedFiles: body.UploadedFiles,
		ParticipantID: body.ParticipantID,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, rec)
	return nil
}

// POST /test-results (multipart form, legacy clients)
func (r *Router) handleDirectUpload(w http.ResponseWriter, req *http.Request) error {
	if err := r.extendDeadlines(w, r.opts.DirectUploadTimeout); err != nil {
		return err
	}
	limit := r.svc.Settings.MaxDirectUploadBytes
	if limit > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, int64(len(domain.FileTypes))*limit+maxJSONBody)
	}
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return domain.Invalidf("malformed multipart form: %v", err)
	}
	defer req.MultipartForm.RemoveAll()

	cmd := apptr.DirectUploadCommand{
		TestID:        req.FormValue("testId"),
		TestType:      req.FormValue("testType"),
		TestDate:      req.FormValue("testDate"),
		ParticipantID: req.FormValue("participantId"),
	}
	if md := strings.TrimSpace(req.FormValue("metadata")); md != "" {
		cmd.Metadata = json.RawMessage(md)
	}

	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, ft := range domain.FileTypes {
		headers := req.MultipartForm.File[string(ft)]
		if len(headers) == 0 {
			continue
		}
		if len(headers) > 1 {
			return domain.Invalidf("only one %s file may be uploaded", ft)
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			return domain.Invalidf("reading %s: %v", ft, err)
		}
		opened = append(opened, f)
		cmd.Files = append(cmd.Files, apptr.DirectFile{
			FileType:    ft,
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}

	rec, err := r.svc.UploadDirect(req.Context(), middleware.GetCaller(req.Context()), cmd)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, rec)
	return nil
}

type multipartInitiateRequest struct {
	TestID        string             `json:"testId" validate:"required"`
	File          apptr.DeclaredFile `json:"file"`
	Parts         int                `json:"parts" validate:"required,min=1"`
	ParticipantID string             `json:"participantId"`
}

// POST /test-results/multipart/initiate
func (r *Router) handleMultipartInitiate(w http.ResponseWriter, req *http.Request) error {
	var body multipartInitiateRequest
	if err := decode(w, req, &body); err != nil {
		return err
	}
	up, err := r.svc.StartMultipartUpload(req.Context(), middleware.GetCaller(req.Context()), apptr.StartMultipartCommand{
		TestID:        body.TestID,
		File:          body.File,
		Parts:         body.Parts,
		ParticipantID: body.ParticipantID,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, up)
	return nil
}

type multipartTarget struct {
	Key      string `json:"key" validate:"required"`
	UploadID string `json:"uploadId" validate:"required"`
}

type multipartCompleteRequest struct {
	multipartTarget
	Parts []domain.CompletedPart `json:"parts" validate:"required,min=1,dive"`
}

// POST /test-results/multipart/complete
func (r *Router) handleMultipartComplete(w http.ResponseWriter, req *http.Request) error {
	var body multipartCompleteRequest
	if err := decode(w, req, &body); err != nil {
		return err
	}
	if err := r.svc.CompleteMultipartUpload(req.Context(), middleware.GetCaller(req.Context()), body.Key, body.UploadID, body.Parts); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": body.Key})
	return nil
}

// POST /test-results/multipart/abort
func (r *Router) handleMultipartAbort(w http.ResponseWriter, req *http.Request) error {
	var body multipartTarget
	if err := decode(w, req, &body); err != nil {
		return err
	}
	if err := r.svc.AbortMultipartUpload(req.Context(), middleware.GetCaller(req.Context()), body.Key, body.UploadID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /test-results?page=&page_size=&patientId=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	p, err := middleware.ParsePage(req)
	if err != nil {
		return err
	}
	list, err := r.svc.ListMine(req.Context(), middleware.GetCaller(req.Context()), req.URL.Query().Get("patientId"), p)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /test-results/unassigned?participantId=&testType=&page=&page_size=
func (r *Router) handleUnassigned(w http.ResponseWriter, req *http.Request) error {
	p, err := middleware.ParsePage(req)
	if err != nil {
		return err
	}
	q := req.URL.Query()
	var f domain.OrphanFilter
	if v := strings.TrimSpace(q.Get("participantId")); v != "" {
		f.ParticipantID = &v
	}
	if v := strings.TrimSpace(q.Get("testType")); v != "" {
		tt := domain.TestType(v)
		f.TestType = &tt
	}
	list, err := r.svc.ListOrphaned(req.Context(), middleware.GetCaller(req.Context()), f, p)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /test-results/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	rec, err := r.svc.Get(req.Context(), middleware.GetCaller(req.Context()), resultID(req))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, rec)
	return nil
}

// GET /test-results/{id}/download/{fileType}
func (r *Router) handleDownload(w http.ResponseWriter, req *http.Request) error {
	link, err := r.svc.DownloadURL(req.Context(), middleware.GetCaller(req.Context()), resultID(req), chi.URLParam(req, "fileType"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, link)
	return nil
}

type assignRequest struct {
	PatientID string `json:"patientId" validate:"required"`
}

// POST /test-results/{id}/assign
func (r *Router) handleAssign(w http.ResponseWriter, req *http.Request) error {
	var body assignRequest
	if err := decode(w, req, &body); err != nil {
		return err
	}
	rec, err := r.svc.Assign(req.Context(), middleware.GetCaller(req.Context()), resultID(req), body.PatientID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, rec)
	return nil
}

// GET /test-results/{id}/audit
func (r *Router) handleAudit(w http.ResponseWriter, req *http.Request) error {
	events, err := r.svc.AuditTrail(req.Context(), middleware.GetCaller(req.Context()), resultID(req))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": events})
	return nil
}

// DELETE /test-results/{id}
func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) error {
	if err := r.svc.Delete(req.Context(), middleware.GetCaller(req.Context()), resultID(req)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func resultID(req *http.Request) domain.ResultID {
	return domain.ResultID(chi.URLParam(req, "id"))
}

// extendDeadlines moves the connection read and write deadlines d into the
// future. The server-wide ReadTimeout covers the whole body, which a large
// direct upload cannot meet.
func (r *Router) extendDeadlines(w http.ResponseWriter, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	rc := http.NewResponseController(w)
	deadline := time.Now().Add(d)
	if err := rc.SetReadDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("extend read deadline: %w", err)
	}
	if err := rc.SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("extend write deadline: %w", err)
	}
	return nil
}
