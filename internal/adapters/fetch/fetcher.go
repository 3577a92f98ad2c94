// Package fetch downloads source archives over HTTP(S) and from S3 mirrors.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/schollz/progressbar/v3"
	"go.trai.ch/unibuild/internal/core/domain"
	"go.trai.ch/zerr"
	"golang.org/x/sys/unix"
)

const (
	partSuffix = ".part"
	lockSuffix = ".lock"
)

// ObjectGetter is the subset of the S3 client used for s3:// URLs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Fetcher implements ports.Fetcher.
type Fetcher struct {
	client   *http.Client
	progress io.Writer

	s3Once   sync.Once
	s3Client ObjectGetter
	s3Err    error
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithProgress renders a download progress bar to w.
func WithProgress(w io.Writer) Option {
	return func(f *Fetcher) {
		f.progress = w
	}
}

// WithS3Client sets the client used for s3:// URLs instead of one built
// from the default AWS configuration chain.
func WithS3Client(c ObjectGetter) Option {
	return func(f *Fetcher) {
		f.s3Client = c
		f.s3Once.Do(func() {})
	}
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: 30 * time.Minute},
		progress: io.Discard,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads rawURL to dst. Concurrent processes fetching the same dst
// serialize on dst.lock; the loser finds the finished file and returns.
// The lock file is never removed, so every process locks the same inode.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create download directory"), "path", filepath.Dir(dst))
	}

	lockPath := dst + lockSuffix
	lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, domain.FilePerm) //nolint:gosec // path derives from the layout
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create lock file"), "path", lockPath)
	}
	defer func() { _ = lock.Close() }()

	if err := unix.Flock(int(lock.Fd()), unix.LOCK_EX); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to acquire download lock"), "path", lockPath)
	}
	defer func() { _ = unix.Flock(int(lock.Fd()), unix.LOCK_UN) }()

	if _, err := os.Stat(dst); err == nil {
		return nil
	}

	if err := f.download(ctx, rawURL, dst); err != nil {
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrDownloadFailed, err.Error()), "url", rawURL), "path", dst)
	}
	return nil
}

func (f *Fetcher) download(ctx context.Context, rawURL, dst string) error {
	body, size, err := f.open(ctx, rawURL)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	part := dst + partSuffix
	out, err := os.OpenFile(part, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, domain.FilePerm) //nolint:gosec // path derives from the layout
	if err != nil {
		return err
	}

	bar := f.newBar(size, filepath.Base(dst))
	_, err = io.Copy(io.MultiWriter(out, bar), body)
	_ = bar.Finish()
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(part)
		return err
	}

	if err := os.Rename(part, dst); err != nil {
		_ = os.Remove(part)
		return err
	}
	return nil
}

// open returns the response body and its length, or -1 if unknown.
func (f *Fetcher) open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, err
	}

	switch u.Scheme {
	case "s3":
		return f.openS3(ctx, u)
	case "http", "https":
		return f.openHTTP(ctx, rawURL)
	default:
		return nil, 0, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
}

func (f *Fetcher) openHTTP(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, 0, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, 0, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Body, resp.ContentLength, nil
}

func (f *Fetcher) openS3(ctx context.Context, u *url.URL) (io.ReadCloser, int64, error) {
	client, err := f.s3(ctx)
	if err != nil {
		return nil, 0, err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
	})
	if err != nil {
		return nil, 0, err
	}

	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return out.Body, size, nil
}

// s3 builds the client on first use. Region, credentials and AWS_ENDPOINT_URL
// come from the standard AWS configuration chain.
func (f *Fetcher) s3(ctx context.Context) (ObjectGetter, error) {
	f.s3Once.Do(func() {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			f.s3Err = zerr.Wrap(err, "failed to load AWS config")
			return
		}
		f.s3Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	})
	return f.s3Client, f.s3Err
}

func (f *Fetcher) newBar(size int64, name string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(f.progress),
		progressbar.OptionSetDescription(name),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprint(f.progress, "\n")
		}),
	)
}
