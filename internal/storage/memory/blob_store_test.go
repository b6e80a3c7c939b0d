package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xvc323/omnidocs/internal/crawler"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	s := NewBlobStore()
	ctx := context.Background()
	expires := time.Now().Add(time.Hour).Truncate(time.Second)

	uri, err := s.PutObject(ctx, "job-1/all_docs.md", []byte("# doc"), crawler.PutOptions{
		ContentType: "text/markdown",
		ExpiresAt:   expires,
	})
	require.NoError(t, err)
	require.Equal(t, "memory://job-1/all_docs.md", uri)

	data, info, err := s.GetObject(ctx, "job-1/all_docs.md")
	require.NoError(t, err)
	require.Equal(t, "# doc", string(data))
	require.Equal(t, "text/markdown", info.ContentType)
	require.True(t, info.ExpiresAt.Equal(expires))
}

func TestBlobStoreMissingKey(t *testing.T) {
	s := NewBlobStore()
	_, _, err := s.GetObject(context.Background(), "nope")
	require.ErrorIs(t, err, crawler.ErrObjectNotFound)
}

func TestBlobStoreListByPrefix(t *testing.T) {
	s := NewBlobStore()
	ctx := context.Background()
	_, err := s.PutObject(ctx, "job-1/a", []byte("a"), crawler.PutOptions{})
	require.NoError(t, err)
	_, err = s.PutObject(ctx, "job-2/b", []byte("b"), crawler.PutOptions{})
	require.NoError(t, err)

	infos, err := s.ListObjects(ctx, "job-1/")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "job-1/a", infos[0].Key)
}

func TestBlobStoreDeleteIdempotent(t *testing.T) {
	s := NewBlobStore()
	ctx := context.Background()
	_, err := s.PutObject(ctx, "k", []byte("v"), crawler.PutOptions{})
	require.NoError(t, err)
	require.NoError(t, s.DeleteObject(ctx, "k"))
	require.NoError(t, s.DeleteObject(ctx, "k"))
}
