package fetch_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/unibuild/internal/adapters/fetch"
	"go.trai.ch/unibuild/internal/core/domain"
	"golang.org/x/sync/errgroup"
)

func TestFetcher_HTTP(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/zlib-1.2.11.tar.gz" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("archive bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dst := filepath.Join(dir, "source", "zlib", "zlib-1.2.11.tar.gz")
	var progress bytes.Buffer
	f := fetch.New(fetch.WithHTTPClient(srv.Client()), fetch.WithProgress(&progress))

	require.NoError(t, f.Fetch(t.Context(), srv.URL+"/zlib-1.2.11.tar.gz", dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "archive bytes", string(data))
	assert.NoFileExists(t, dst+".part")
	assert.FileExists(t, dst+".lock")
	assert.Contains(t, progress.String(), "zlib-1.2.11.tar.gz")

	// The file is already there, so the server is not contacted again.
	require.NoError(t, f.Fetch(t.Context(), srv.URL+"/zlib-1.2.11.tar.gz", dst))
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetcher_ConcurrentFetchesDownloadOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("archive bytes"))
	}))
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "zstd-1.5.0.tar.gz")
	url := srv.URL + "/zstd-1.5.0.tar.gz"

	// Each fetcher opens its own lock descriptor, as separate processes would.
	var g errgroup.Group
	for range 4 {
		g.Go(func() error {
			return fetch.New(fetch.WithHTTPClient(srv.Client())).Fetch(t.Context(), url, dst)
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), hits.Load())
	assert.FileExists(t, dst+".lock")
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "archive bytes", string(data))
}

func TestFetcher_HTTPFailureLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "missing.tar.xz")
	f := fetch.New(fetch.WithHTTPClient(srv.Client()))

	err := f.Fetch(t.Context(), srv.URL+"/missing.tar.xz", dst)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDownloadFailed))
	assert.NoFileExists(t, dst)
	assert.NoFileExists(t, dst+".part")
}

func TestFetcher_UnsupportedScheme(t *testing.T) {
	err := fetch.New().Fetch(t.Context(), "ftp://example.com/a.tar.gz", filepath.Join(t.TempDir(), "a.tar.gz"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDownloadFailed))
}

type fakeS3 struct {
	bucket, key string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader([]byte("mirrored"))),
		ContentLength: aws.Int64(8),
	}, nil
}

func TestFetcher_S3(t *testing.T) {
	client := &fakeS3{}
	dst := filepath.Join(t.TempDir(), "xz-5.2.5.tar.gz")

	f := fetch.New(fetch.WithS3Client(client))
	require.NoError(t, f.Fetch(t.Context(), "s3://mirror/sources/xz-5.2.5.tar.gz", dst))

	assert.Equal(t, "mirror", client.bucket)
	assert.Equal(t, "sources/xz-5.2.5.tar.gz", client.key)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "mirrored", string(data))
}
