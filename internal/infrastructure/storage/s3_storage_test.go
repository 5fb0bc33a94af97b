package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kctmenswear/storefront/internal/infrastructure/config"
)

// fakeS3 is a minimal path-style S3 endpoint
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodHead && r.URL.Path == "/product-images":
		if !f.buckets["product-images"] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && r.URL.Path == "/product-images":
		f.buckets["product-images"] = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead:
		if _, ok := f.objects[r.URL.Path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeS3) hasBucket(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buckets[name]
}

func (f *fakeS3) object(path string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[path]
}

func newTestStorage(t *testing.T, endpoint string) *S3ObjectStorage {
	t.Helper()
	s, err := NewS3ObjectStorage(config.StorageConfig{
		Endpoint:        endpoint,
		Region:          "us-east-1",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		UsePathStyle:    true,
	}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return s
}

func TestNewS3ObjectStorage(t *testing.T) {
	t.Run("defaults bucket", func(t *testing.T) {
		s, err := NewS3ObjectStorage(config.StorageConfig{})
		require.NoError(t, err)
		assert.Equal(t, DefaultBucket, s.Bucket())
	})

	t.Run("half-configured credentials", func(t *testing.T) {
		_, err := NewS3ObjectStorage(config.StorageConfig{AccessKeyID: "key"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be set together")
	})

	t.Run("adds https scheme", func(t *testing.T) {
		s, err := NewS3ObjectStorage(config.StorageConfig{Endpoint: "storage.example.com/"})
		require.NoError(t, err)
		assert.Equal(t, "https://storage.example.com/product-images/a.jpg", s.PublicURL("a.jpg"))
	})
}

func TestPublicURL(t *testing.T) {
	s, err := NewS3ObjectStorage(config.StorageConfig{PublicURL: "https://cdn.kctmenswear.com/images/"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.kctmenswear.com/images/suits/navy.jpg", s.PublicURL("suits/navy.jpg"))

	s, err = NewS3ObjectStorage(config.StorageConfig{Bucket: "assets"})
	require.NoError(t, err)
	assert.Equal(t, "https://assets.s3.amazonaws.com/x.csv", s.PublicURL("x.csv"))
}

func TestEnsureBucket(t *testing.T) {
	fake, srv := newFakeS3(t)
	s := newTestStorage(t, srv.URL)
	ctx := context.Background()

	created, err := s.EnsureBucket(ctx)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, fake.hasBucket("product-images"))

	created, err = s.EnsureBucket(ctx)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestUploadAndExists(t *testing.T) {
	fake, srv := newFakeS3(t)
	s := newTestStorage(t, srv.URL)
	ctx := context.Background()

	exists, err := s.ObjectExists(ctx, "exports/products.csv")
	require.NoError(t, err)
	assert.False(t, exists)

	url, err := s.Upload(ctx, "exports/products.csv", []byte("id,name\n1,Navy Suit\n"), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/product-images/exports/products.csv", url)
	assert.Equal(t, []byte("id,name\n1,Navy Suit\n"), fake.object("/product-images/exports/products.csv"))

	exists, err = s.ObjectExists(ctx, "exports/products.csv")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestEmptyKey(t *testing.T) {
	s, err := NewS3ObjectStorage(config.StorageConfig{})
	require.NoError(t, err)

	_, err = s.Upload(context.Background(), "", []byte("x"), "text/plain")
	assert.ErrorIs(t, err, errKeyRequired)

	_, err = s.ObjectExists(context.Background(), "")
	assert.ErrorIs(t, err, errKeyRequired)
}

func TestMemoryObjectStorage(t *testing.T) {
	m := NewMemoryObjectStorage()
	ctx := context.Background()

	created, err := m.EnsureBucket(ctx)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = m.EnsureBucket(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	data := []byte("hello")
	url, err := m.Upload(ctx, "a.txt", data, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "memory://product-images/a.txt", url)

	data[0] = 'j'
	obj, ok := m.Get("a.txt")
	require.True(t, ok)
	assert.Equal(t, "hello", string(obj.Data))
	assert.Equal(t, "text/plain", obj.ContentType)

	exists, err := m.ObjectExists(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = m.Upload(ctx, "", nil, "")
	assert.ErrorIs(t, err, errKeyRequired)
}
