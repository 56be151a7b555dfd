package storage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := newStore(Options{
		Endpoint:  "localhost:9000",
		Region:    "us-east-1",
		Bucket:    "recordings",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	require.NoError(t, err)
	return s
}

func TestPresignPutSignsContentType(t *testing.T) {
	s := testStore(t)

	raw, err := s.PresignPut(context.Background(), "test-recordings/ns-1/abc.mp4", "video/mp4", time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/recordings/test-recordings/ns-1/abc.mp4", u.Path)
	assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))
	assert.Contains(t, u.Query().Get("X-Amz-SignedHeaders"), "content-type")
}

func TestPresignGetSetsDisposition(t *testing.T) {
	s := testStore(t)

	raw, err := s.PresignGet(context.Background(), "test-recordings/ns-1/abc.csv", 15*time.Minute, "T1-csv.csv")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.Contains(t, u.Query().Get("response-content-disposition"), "T1-csv.csv")
}

func TestPresignPartCarriesUploadID(t *testing.T) {
	s := testStore(t)

	raw, err := s.PresignPart(context.Background(), "test-recordings/ns-1/big.mp4", "upload-xyz", 3, time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "3", u.Query().Get("partNumber"))
	assert.Equal(t, "upload-xyz", u.Query().Get("uploadId"))
}
