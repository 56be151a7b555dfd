package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

// Instrumented records latency and failures of every object store call.
type Instrumented struct {
	next     domain.ObjectStore
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

// Instrument wraps next and registers its collectors on reg.
func Instrument(next domain.ObjectStore, reg prometheus.Registerer) (*Instrumented, error) {
	in := &Instrumented{
		next: next,
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "testresults",
			Subsystem: "storage",
			Name:      "operation_duration_seconds",
			Help:      "Latency of object storage operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testresults",
			Subsystem: "storage",
			Name:      "operation_errors_total",
			Help:      "Failed object storage operations.",
		}, []string{"operation"}),
	}
	for _, c := range []prometheus.Collector{in.duration, in.failures} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register storage metric: %w", err)
		}
	}
	return in, nil
}

// observe is deferred with a pointer so it sees the final error.
func (in *Instrumented) observe(op string, start time.Time, err *error) {
	in.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if *err != nil {
		in.failures.WithLabelValues(op).Inc()
	}
}

func (in *Instrumented) PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (u string, err error) {
	defer in.observe("presign_put", time.Now(), &err)
	return in.next.PresignPut(ctx, key, contentType, expiry)
}

func (in *Instrumented) PresignGet(ctx context.Context, key string, expiry time.Duration, downloadName string) (u string, err error) {
	defer in.observe("presign_get", time.Now(), &err)
	return in.next.PresignGet(ctx, key, expiry, downloadName)
}

func (in *Instrumented) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (err error) {
	defer in.observe("put", time.Now(), &err)
	return in.next.Put(ctx, key, body, size, contentType)
}

func (in *Instrumented) Delete(ctx context.Context, key string) (err error) {
	defer in.observe("delete", time.Now(), &err)
	return in.next.Delete(ctx, key)
}

func (in *Instrumented) StartMultipart(ctx context.Context, key, contentType string) (uploadID string, err error) {
	defer in.observe("start_multipart", time.Now(), &err)
	return in.next.StartMultipart(ctx, key, contentType)
}

func (in *Instrumented) PresignPart(ctx context.Context, key, uploadID string, partNumber int, expiry time.Duration) (u string, err error) {
	defer in.observe("presign_part", time.Now(), &err)
	return in.next.PresignPart(ctx, key, uploadID, partNumber, expiry)
}

func (in *Instrumented) CompleteMultipart(ctx context.Context, key, uploadID string, parts []domain.CompletedPart) (err error) {
	defer in.observe("complete_multipart", time.Now(), &err)
	return in.next.CompleteMultipart(ctx, key, uploadID, parts)
}

func (in *Instrumented) AbortMultipart(ctx context.Context, key, uploadID string) (err error) {
	defer in.observe("abort_multipart", time.Now(), &err)
	return in.next.AbortMultipart(ctx, key, uploadID)
}
