// Package feed resolves feed URIs to decompressed record streams.
package feed

import (
	"bufio"
	"compress/bzip2"
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/sagerock/ai-law-research/internal/domain/ingestion"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// Router dispatches Open by URI scheme and decompresses by file extension.
// A bare path is treated as file://.
type Router struct {
	mu      sync.RWMutex
	sources map[string]ingestion.FeedSource
}

func NewRouter() *Router {
	r := &Router{sources: make(map[string]ingestion.FeedSource)}
	r.Register("file", FileSource{})
	return r
}

// Register binds scheme to src, replacing any previous binding.
func (r *Router) Register(scheme string, src ingestion.FeedSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[strings.ToLower(scheme)] = src
}

func (r *Router) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sources))
	for s := range r.sources {
		out = append(out, s)
	}
	return out
}

func (r *Router) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	scheme, objectPath, err := SplitURI(uri)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	src, ok := r.sources[scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.FeedFailure(errors.Newf(errors.ErrCodeBadRequest, "unsupported feed scheme %q", scheme), uri)
	}
	rc, err := src.Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	dec, err := Decompress(objectPath, rc)
	if err != nil {
		_ = rc.Close()
		return nil, errors.FeedFailure(err, uri)
	}
	return dec, nil
}

// SplitURI returns the lowercased scheme and the path component.
func SplitURI(uri string) (string, string, error) {
	if strings.TrimSpace(uri) == "" {
		return "", "", errors.InvalidParam("feed uri is required")
	}
	if !strings.Contains(uri, "://") {
		return "file", uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", errors.InvalidParam("malformed feed uri").WithDetail(uri)
	}
	p := u.Path
	if u.Scheme == "file" && u.Host != "" {
		p = u.Host + p
	}
	return strings.ToLower(u.Scheme), p, nil
}

// BucketKey splits scheme://bucket/key into its parts.
func BucketKey(uri string) (string, string, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return "", "", errors.InvalidParam("feed uri must be scheme://bucket/key").WithDetail(uri)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", errors.InvalidParam("feed uri has no object key").WithDetail(uri)
	}
	return u.Host, key, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Decompression
// ─────────────────────────────────────────────────────────────────────────────

type readCloser struct {
	io.Reader
	closers []func() error
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Decompress wraps rc according to name's extension (.gz, .bz2, .zst).
// Other names pass through unchanged. Closing the result closes rc.
func Decompress(name string, rc io.ReadCloser) (io.ReadCloser, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".gz", ".gzip":
		zr, err := gzip.NewReader(bufio.NewReader(rc))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "invalid gzip stream")
		}
		return &readCloser{Reader: zr, closers: []func() error{zr.Close, rc.Close}}, nil
	case ".bz2":
		return &readCloser{Reader: bzip2.NewReader(bufio.NewReader(rc)), closers: []func() error{rc.Close}}, nil
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(rc)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "invalid zstd stream")
		}
		return &readCloser{Reader: zr, closers: []func() error{func() error { zr.Close(); return nil }, rc.Close}}, nil
	}
	return rc, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Local files
// ─────────────────────────────────────────────────────────────────────────────

// FileSource opens feeds on the local filesystem.
type FileSource struct{}

func (FileSource) Open(_ context.Context, uri string) (io.ReadCloser, error) {
	_, p, err := SplitURI(uri)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FeedFailure(errors.NotFound("feed file not found").WithCause(err), uri)
		}
		return nil, errors.FeedFailure(err, uri)
	}
	return f, nil
}

var _ ingestion.FeedSource = (*Router)(nil)

//Personal.AI order the ending
