package minio

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sagerock/ai-law-research/pkg/errors"
)

func newTestStore(api *MockMinIOAPI) *FeedStore {
	return NewFeedStore(newMinIOClient(api, &MinIOConfig{Bucket: "feeds"}, nil), nil)
}

func TestFeedStore_URI(t *testing.T) {
	s := newTestStore(new(MockMinIOAPI))
	assert.Equal(t, "minio://feeds/2024/cases.jsonl.gz", s.URI("/2024/cases.jsonl.gz"))
}

func TestFeedStore_Open(t *testing.T) {
	api := new(MockMinIOAPI)
	api.On("StatObject", mock.Anything, "feeds", "bulk/a.jsonl", mock.Anything).Return(minio.ObjectInfo{Key: "bulk/a.jsonl"}, nil)
	s := newTestStore(api)
	s.getObject = func(_ context.Context, bucket, key string) (io.ReadCloser, error) {
		assert.Equal(t, "feeds", bucket)
		return io.NopCloser(strings.NewReader(`{"id":"a"}`)), nil
	}

	rc, err := s.Open(context.Background(), "minio://feeds/bulk/a.jsonl")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	assert.Equal(t, `{"id":"a"}`, string(b))
}

func TestFeedStore_Open_Missing(t *testing.T) {
	api := new(MockMinIOAPI)
	api.On("StatObject", mock.Anything, "feeds", "nope.jsonl", mock.Anything).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404})
	s := newTestStore(api)

	_, err := s.Open(context.Background(), "minio://feeds/nope.jsonl")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeFeedFailure))
	assert.True(t, apperrors.IsNotFound(err))
}

func TestFeedStore_Open_BadURI(t *testing.T) {
	_, err := newTestStore(new(MockMinIOAPI)).Open(context.Background(), "minio://feeds/")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeFeedFailure))
}

func TestFeedStore_Upload(t *testing.T) {
	api := new(MockMinIOAPI)
	api.On("PutObject", mock.Anything, "feeds", "x.jsonl.gz", mock.Anything, int64(-1),
		mock.MatchedBy(func(o minio.PutObjectOptions) bool {
			return o.ContentType == "application/gzip" && o.PartSize == 16*1024*1024
		})).Return(minio.UploadInfo{Key: "x.jsonl.gz", Size: 42, ETag: "e"}, nil)

	obj, err := newTestStore(api).Upload(context.Background(), "x.jsonl.gz", strings.NewReader("data"), -1)
	require.NoError(t, err)
	assert.Equal(t, "minio://feeds/x.jsonl.gz", obj.URI)
	assert.Equal(t, int64(42), obj.Size)
	api.AssertExpectations(t)
}

func TestFeedStore_List(t *testing.T) {
	ch := make(chan minio.ObjectInfo, 2)
	ch <- minio.ObjectInfo{Key: "2024/a.jsonl", Size: 10, LastModified: time.Unix(0, 0)}
	ch <- minio.ObjectInfo{Key: "2024/b.jsonl.bz2", Size: 20}
	close(ch)
	api := new(MockMinIOAPI)
	api.On("ListObjects", mock.Anything, "feeds", minio.ListObjectsOptions{Prefix: "2024/", Recursive: true}).
		Return((<-chan minio.ObjectInfo)(ch))

	out, err := newTestStore(api).List(context.Background(), "2024/")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "minio://feeds/2024/b.jsonl.bz2", out[1].URI)
}

func TestFeedStore_ListError(t *testing.T) {
	ch := make(chan minio.ObjectInfo, 1)
	ch <- minio.ObjectInfo{Err: errors.New("denied")}
	close(ch)
	api := new(MockMinIOAPI)
	api.On("ListObjects", mock.Anything, "feeds", mock.Anything).Return((<-chan minio.ObjectInfo)(ch))

	_, err := newTestStore(api).List(context.Background(), "")
	assert.Error(t, err)
}

func TestFeedStore_Delete(t *testing.T) {
	api := new(MockMinIOAPI)
	api.On("RemoveObject", mock.Anything, "feeds", "old.jsonl", mock.Anything).Return(nil)
	require.NoError(t, newTestStore(api).Delete(context.Background(), "old.jsonl"))
	api.AssertExpectations(t)
}

//Personal.AI order the ending
