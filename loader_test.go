package resourcefactory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_FileBackend_BoundarySizes(t *testing.T) {
	dir := t.TempDir()

	okPath := filepath.Join(dir, "ok.bin")
	require.NoError(t, os.WriteFile(okPath, make([]byte, 7), 0o644)) // capacity(8) - 1

	tooLargePath := filepath.Join(dir, "big.bin")
	require.NoError(t, os.WriteFile(tooLargePath, make([]byte, 8), 0o644)) // == capacity

	l := &loader{buf: newStagingBuffer(8), uri: backendURI{scheme: "file"}}

	n, result := l.loadFile(okPath)
	assert.Equal(t, OK, result)
	assert.Equal(t, 7, n)

	l2 := &loader{buf: newStagingBuffer(8), uri: backendURI{scheme: "file"}}
	_, result = l2.loadFile(tooLargePath)
	assert.Equal(t, StreamBufferTooSmall, result)
}

func TestLoader_FileBackend_MissingFileIsNotFound(t *testing.T) {
	l := &loader{buf: newStagingBuffer(64), uri: backendURI{scheme: "file"}}
	_, result := l.loadFile("/nonexistent/path/does-not-exist.bin")
	assert.Equal(t, ResourceNotFound, result)
}

func TestLoader_HTTPBackend_404IsResourceNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	uri, err := parseBackendURI(srv.URL)
	require.NoError(t, err)

	l := &loader{buf: newStagingBuffer(64), uri: uri, httpClient: srv.Client()}
	_, result := l.loadHTTP(context.Background(), "/missing.txt")
	assert.Equal(t, ResourceNotFound, result)
}

func TestLoader_HTTPBackend_SuccessStreamsBody(t *testing.T) {
	body := []byte("hello world")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	uri, err := parseBackendURI(srv.URL)
	require.NoError(t, err)

	l := &loader{buf: newStagingBuffer(64), uri: uri, httpClient: srv.Client()}
	n, result := l.loadHTTP(context.Background(), "/a.txt")
	require.Equal(t, OK, result)
	assert.Equal(t, len(body), n)
	assert.Equal(t, body, l.buf.bytes())
}

func TestLoader_HTTPBackend_NonOKStatusIsIOError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	uri, err := parseBackendURI(srv.URL)
	require.NoError(t, err)

	l := &loader{buf: newStagingBuffer(64), uri: uri, httpClient: srv.Client()}
	_, result := l.loadHTTP(context.Background(), "/a.txt")
	assert.Equal(t, IOError, result)
}

func TestLoader_BuiltinsArchiveTakesPrecedence(t *testing.T) {
	archiveData := buildTestZip(t, map[string][]byte{"a.txt": []byte("from archive")})
	archive, err := wrapBuiltinsArchive(archiveData)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("from disk"), 0o644))

	uri, err := parseBackendURI("file://" + dir)
	require.NoError(t, err)

	l := &loader{buf: newStagingBuffer(64), uri: uri, archive: archive}
	_, result := l.load(context.Background(), "a.txt", filepath.Join(dir, "a.txt"))
	require.Equal(t, OK, result)
	assert.Equal(t, "from archive", string(l.buf.bytes()))
}
