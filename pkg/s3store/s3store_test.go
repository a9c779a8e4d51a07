package s3store

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type capturedPut struct {
	method      string
	path        string
	body        string
	contentType string
}

func newBucketServer(t *testing.T) (*httptest.Server, func() capturedPut) {
	t.Helper()

	var (
		mu   sync.Mutex
		last capturedPut
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		last = capturedPut{method: r.Method, path: r.URL.Path, body: string(body), contentType: r.Header.Get("Content-Type")}
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	return server, func() capturedPut {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func newTestUploader(t *testing.T, cfg Config) *Uploader {
	t.Helper()
	uploader, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	uploader.now = func() time.Time { return time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC) }
	uploader.newUUID = func() string { return "fixed" }
	return uploader
}

func TestUploadPutsObjectAndReturnsEndpointURL(t *testing.T) {
	server, last := newBucketServer(t)

	uploader := newTestUploader(t, Config{
		Bucket:    "tracker",
		Endpoint:  server.URL,
		AccessKey: "key",
		SecretKey: "secret",
		Prefix:    "submissions",
	})

	url, err := uploader.Upload(context.Background(), "essay.txt", strings.NewReader("hello world"))
	require.NoError(t, err)
	require.Equal(t, server.URL+"/tracker/submissions/2024/03/09/fixed-essay.txt", url)

	put := last()
	require.Equal(t, http.MethodPut, put.method)
	require.Equal(t, "/tracker/submissions/2024/03/09/fixed-essay.txt", put.path)
	require.Equal(t, "hello world", put.body)
	require.True(t, strings.HasPrefix(put.contentType, "text/plain"))
}

func TestUploadPrefersPublicBaseURL(t *testing.T) {
	server, _ := newBucketServer(t)

	uploader := newTestUploader(t, Config{
		Bucket:        "tracker",
		Endpoint:      server.URL,
		AccessKey:     "key",
		SecretKey:     "secret",
		PublicBaseURL: "https://files.example.com/",
	})

	url, err := uploader.Upload(context.Background(), `C:\Users\siswa\tugas akhir.pdf`, strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	require.Equal(t, "https://files.example.com/2024/03/09/fixed-tugas%20akhir.pdf", url)
}

func TestUploadSurfacesBucketErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<Error><Code>AccessDenied</Code><Message>denied</Message></Error>`))
	}))
	defer server.Close()

	uploader := newTestUploader(t, Config{Bucket: "tracker", Endpoint: server.URL, AccessKey: "key", SecretKey: "secret"})

	_, err := uploader.Upload(context.Background(), "a.txt", strings.NewReader("x"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "AccessDenied")
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(Config{}, zerolog.Nop())
	require.Error(t, err)
}
