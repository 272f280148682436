package feed

import (
	"bytes"
	"compress/bzip2"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagerock/ai-law-research/pkg/errors"
)

const payload = `{"id":"a"}` + "\n" + `{"id":"b"}` + "\n"

type memSource struct {
	data   map[string][]byte
	opened []string
}

func (m *memSource) Open(_ context.Context, uri string) (io.ReadCloser, error) {
	m.opened = append(m.opened, uri)
	b, ok := m.data[uri]
	if !ok {
		return nil, errors.FeedFailure(errors.NotFound("missing"), uri)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func gzipped(t *testing.T, s string) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zstded(t *testing.T, s string) []byte {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll([]byte(s), nil)
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestSplitURI(t *testing.T) {
	s, p, err := SplitURI("/data/feed.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "file", s)
	assert.Equal(t, "/data/feed.jsonl", p)

	s, p, err = SplitURI("MINIO://feeds/2024/cases.jsonl.gz")
	require.NoError(t, err)
	assert.Equal(t, "minio", s)
	assert.Equal(t, "/2024/cases.jsonl.gz", p)

	_, _, err = SplitURI(" ")
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestBucketKey(t *testing.T) {
	b, k, err := BucketKey("s3://opinions/bulk/2024.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "opinions", b)
	assert.Equal(t, "bulk/2024.jsonl", k)

	_, _, err = BucketKey("s3://opinions/")
	assert.Error(t, err)
}

func TestRouter_DecompressesByExtension(t *testing.T) {
	src := &memSource{data: map[string][]byte{
		"mem://b/plain.jsonl":    []byte(payload),
		"mem://b/cases.jsonl.gz": gzipped(t, payload),
		"mem://b/cases.zst":      zstded(t, payload),
	}}
	r := NewRouter()
	r.Register("mem", src)

	for uri := range src.data {
		rc, err := r.Open(context.Background(), uri)
		require.NoError(t, err, uri)
		assert.Equal(t, payload, readAll(t, rc), uri)
	}
}

func TestRouter_Bzip2Passthrough(t *testing.T) {
	// a bzip2 stream of payload cannot be produced by the standard library,
	// so check that a malformed one surfaces as a read error
	src := &memSource{data: map[string][]byte{"mem://b/x.bz2": []byte("not bzip2")}}
	r := NewRouter()
	r.Register("mem", src)

	rc, err := r.Open(context.Background(), "mem://b/x.bz2")
	require.NoError(t, err)
	defer rc.Close()
	_, err = io.ReadAll(rc)
	var se bzip2.StructuralError
	assert.ErrorAs(t, err, &se)
}

func TestRouter_UnknownScheme(t *testing.T) {
	_, err := NewRouter().Open(context.Background(), "ftp://host/feed.jsonl")
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeedFailure))
}

func TestRouter_BadGzip(t *testing.T) {
	src := &memSource{data: map[string][]byte{"mem://b/x.gz": []byte("plain")}}
	r := NewRouter()
	r.Register("mem", src)
	_, err := r.Open(context.Background(), "mem://b/x.gz")
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeedFailure))
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "feed.jsonl")
	require.NoError(t, os.WriteFile(p, []byte(payload), 0o600))

	rc, err := NewRouter().Open(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(readAll(t, rc), `{"id":"a"}`))

	_, err = NewRouter().Open(context.Background(), filepath.Join(dir, "missing.jsonl"))
	assert.True(t, errors.IsNotFound(err))
}

//Personal.AI order the ending
