package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/testresult-ingest/internal/testutil"
)

func TestInstrumentedCountsFailures(t *testing.T) {
	fake := testutil.NewStore()
	fake.FailDelete = func(key string) error {
		if key == "bad" {
			return errors.New("denied")
		}
		return nil
	}
	reg := prometheus.NewRegistry()
	in, err := Instrument(fake, reg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, in.Delete(ctx, "ok"))
	assert.Error(t, in.Delete(ctx, "bad"))
	_, err = in.PresignPut(ctx, "k", "text/csv", time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(in.failures.WithLabelValues("delete")))
	assert.Equal(t, 0.0, promtest.ToFloat64(in.failures.WithLabelValues("presign_put")))
	assert.Equal(t, 2, promtest.CollectAndCount(in.duration))

	_, err = Instrument(fake, reg)
	assert.Error(t, err, "collectors are registered once per registry")
}
