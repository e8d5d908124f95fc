package resourcefactory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServerTestFactory(t *testing.T) (*Factory, string) {
	t.Helper()
	dir := t.TempDir()
	f, err := NewFactory(Params{URI: "file://" + dir, Flags: ReloadSupport})
	require.NoError(t, err)

	create := func(_ *Factory, _ any, _ []byte, _ int, desc *Descriptor, _ string) CreateResult {
		desc.Object = &struct{}{}
		return CreateOK
	}
	recreate := func(_ *Factory, _ any, _ []byte, _ int, _ *Descriptor, _ string) CreateResult {
		return CreateOK
	}
	_, err = f.RegisterType("txt", nil, create, func(*Factory, any, *Descriptor) {}, recreate)
	require.NoError(t, err)
	return f, dir
}

func TestControlServer_StatusPageListsTrackedResources(t *testing.T) {
	f, dir := newServerTestFactory(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("data"), 0o644))
	_, err := f.Get(context.Background(), "a.txt")
	require.NoError(t, err)

	srv := newControlServer(0, f.cache, f.reloader, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.handleStatus(rec, req)

	assert.Contains(t, rec.Body.String(), "a.txt")
	assert.Contains(t, rec.Body.String(), "<table")
}

func TestControlServer_ReloadRoute(t *testing.T) {
	f, dir := newServerTestFactory(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("data"), 0o644))
	_, err := f.Get(context.Background(), "a.txt")
	require.NoError(t, err)

	srv := newControlServer(0, f.cache, f.reloader, nil)
	f.reloader.factory = f

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reload/a.txt", nil)
	srv.handleReload(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "successfully reloaded")
}

func TestControlServer_ReloadRouteUnknownName(t *testing.T) {
	f, _ := newServerTestFactory(t)
	srv := newControlServer(0, f.cache, f.reloader, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reload/never.txt", nil)
	srv.handleReload(rec, req)

	assert.NotEqual(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "never loaded before"))
}

func TestReloadLogTable_MatchesSpecTemplates(t *testing.T) {
	_, msg := reloadLogTable(ReloadOK, "a.txt", "")
	assert.Equal(t, "a.txt was successfully reloaded.", msg)

	_, msg = reloadLogTable(ReloadNotSupported, "a.txt", "txt")
	assert.Equal(t, "Reloading of resource type txt not supported.", msg)

	_, msg = reloadLogTable(ReloadOutOfMemory, "a.txt", "")
	assert.Equal(t, "Not enough memory to reload a.txt.", msg)
}
