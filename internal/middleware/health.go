package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthCheck reports whether one dependency can serve requests.
type HealthCheck func(ctx context.Context) error

// PingDB checks the SQL pool behind the test result repositories.
func PingDB(db *sql.DB) HealthCheck {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return db.PingContext(ctx)
	}
}

// Readiness is the body of /health and /healthz/ready. Checks maps a
// dependency name to "ok" or the error it returned.
type Readiness struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// ReadinessHandler runs every check concurrently within timeout and answers
// 503 when any of them fails.
func ReadinessHandler(checks map[string]HealthCheck, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		out := Readiness{Status: "ok", Timestamp: time.Now().UTC(), Checks: make(map[string]string, len(checks))}
		var (
			mu sync.Mutex
			g  errgroup.Group
		)
		for name, check := range checks {
			g.Go(func() error {
				res := "ok"
				if err := check(ctx); err != nil {
					res = err.Error()
				}
				mu.Lock()
				defer mu.Unlock()
				out.Checks[name] = res
				if res != "ok" {
					out.Status = "unavailable"
				}
				return nil
			})
		}
		_ = g.Wait()

		status := http.StatusOK
		if out.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(out)
	}
}

// LivenessHandler answers as long as the process serves HTTP.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
