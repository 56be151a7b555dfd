package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	apptr "github.com/bryanwahyu/testresult-ingest/internal/application/testresults"
	"github.com/bryanwahyu/testresult-ingest/internal/domain/identity"
	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
	"github.com/bryanwahyu/testresult-ingest/internal/middleware"
)

// Options configures the transport around the service.
type Options struct {
	JWTSecret      []byte
	JWTIssuer      string
	RatePerSecond  float64
	RateBurst      int
	AllowedOrigins []string
	Health         map[string]middleware.HealthCheck
	Metrics        *middleware.Metrics

	// RequestTimeout bounds every authenticated route except the direct upload.
	RequestTimeout time.Duration
	// DirectUploadTimeout replaces the server read and write deadlines for
	// the direct upload, whose body can be far larger than anything else.
	DirectUploadTimeout time.Duration
}

type Router struct {
	svc  *apptr.Service
	log  *zap.Logger
	opts Options
}

func NewRouter(svc *apptr.Service, log *zap.Logger, opts Options) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Router{svc: svc, log: log, opts: opts}
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.RequestLogger(log))
	mux.Use(chimw.Recoverer)
	if opts.Metrics != nil {
		mux.Use(opts.Metrics.Middleware)
	}
	if len(opts.AllowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	health := middleware.ReadinessHandler(opts.Health, 5*time.Second)
	mux.Get("/health", health)
	mux.Get("/healthz/ready", health)
	mux.Get("/healthz/live", middleware.LivenessHandler)
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics.Handler())
	}

	mux.Group(func(rt chi.Router) {
		rt.Use(middleware.JWTAuth(opts.JWTSecret, opts.JWTIssuer))
		rt.Use(middleware.RateLimitMiddleware(opts.RatePerSecond, opts.RateBurst))
		admin := middleware.RequireRole(identity.RoleAdmin)

		rt.Route("/test-results", func(rt chi.Router) {
			rt.Post("/", r.wrap(r.handleDirectUpload))

			rt.Group(func(rt chi.Router) {
				if opts.RequestTimeout > 0 {
					rt.Use(chimw.Timeout(opts.RequestTimeout))
				}
				rt.Post("/presigned-upload", r.wrap(r.handlePresignedUpload))
				rt.Post("/confirm-upload", r.wrap(r.handleConfirmUpload))

				rt.Post("/multipart/initiate", r.wrap(r.handleMultipartInitiate))
				rt.Post("/multipart/complete", r.wrap(r.handleMultipartComplete))
				rt.Post("/multipart/abort", r.wrap(r.handleMultipartAbort))

				rt.Get("/", r.wrap(r.handleList))
				rt.With(admin).Get("/unassigned", r.wrap(r.handleUnassigned))

				rt.Get("/{id}", r.wrap(r.handleGet))
				rt.Get("/{id}/download/{fileType}", r.wrap(r.handleDownload))
				rt.With(admin).Post("/{id}/assign", r.wrap(r.handleAssign))
				rt.With(admin).Get("/{id}/audit", r.wrap(r.handleAudit))
				rt.Delete("/{id}", r.wrap(r.handleDelete))
			})
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status, msg := statusFor(err)
			if status >= http.StatusInternalServerError {
				r.log.Error("request failed",
					zap.String("method", req.Method),
					zap.String("path", req.URL.Path),
					zap.String("request_id", chimw.GetReqID(req.Context())),
					zap.Error(err),
				)
			}
			writeJSON(w, status, errorBody{Status: status, Message: msg})
		}
	}
}

type errorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// statusFor maps service errors onto HTTP. 5xx causes are never sent to the
// client.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidState):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrUpstreamStorage):
		return http.StatusBadGateway, "object storage is unavailable"
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge, "request body too large"
	}
	return http.StatusInternalServerError, "internal server error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
