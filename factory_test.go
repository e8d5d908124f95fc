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

func newTestFactory(t *testing.T) (*Factory, string) {
	t.Helper()
	dir := t.TempDir()
	f, err := NewFactory(Params{URI: "file://" + dir})
	require.NoError(t, err)

	var createCalls int
	create := func(_ *Factory, _ any, _ []byte, _ int, desc *Descriptor, _ string) CreateResult {
		createCalls++
		desc.Object = &struct{ calls int }{calls: createCalls}
		return CreateOK
	}
	_, err = f.RegisterType("txt", nil, create, func(*Factory, any, *Descriptor) {}, nil)
	require.NoError(t, err)
	return f, dir
}

func TestFactory_BasicCacheHit(t *testing.T) {
	f, dir := newTestFactory(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("data"), 0o644))

	obj1, err := f.Get(context.Background(), "a.txt")
	require.NoError(t, err)
	obj2, err := f.Get(context.Background(), "a.txt")
	require.NoError(t, err)

	assert.Same(t, obj1, obj2)

	desc, err := f.GetDescriptor("a.txt")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), desc.Refcount)
}

func TestFactory_PathNormalization(t *testing.T) {
	f, dir := newTestFactory(t)
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "x.txt"), []byte("data"), 0o644))

	// The factory from newTestFactory is based at dir, so both spellings
	// canonicalize to dir/sub/x.txt.
	obj1, err := f.Get(context.Background(), "sub//x.txt")
	require.NoError(t, err)
	obj2, err := f.Get(context.Background(), "sub/x.txt")
	require.NoError(t, err)
	assert.Same(t, obj1, obj2)
}

func TestFactory_MissingExtension(t *testing.T) {
	f, _ := newTestFactory(t)
	_, err := f.Get(context.Background(), "noext")
	require.Error(t, err)
	var rerr *ResourceError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, MissingFileExtension, rerr.Result)
}

func TestFactory_FileBackendNotFound(t *testing.T) {
	f, _ := newTestFactory(t)
	_, err := f.Get(context.Background(), "missing.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestFactory_ReleaseDecrementsAndDestroys(t *testing.T) {
	f, dir := newTestFactory(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("data"), 0o644))

	var destroyed bool
	create := func(_ *Factory, _ any, _ []byte, _ int, desc *Descriptor, _ string) CreateResult {
		desc.Object = &struct{}{}
		return CreateOK
	}
	destroy := func(_ *Factory, _ any, _ *Descriptor) { destroyed = true }
	_, err := f.RegisterType("bin", nil, create, destroy, nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.bin"), []byte("data"), 0o644))

	obj, err := f.Get(context.Background(), "b.bin")
	require.NoError(t, err)

	require.NoError(t, f.Release(obj))
	assert.True(t, destroyed)
}

func TestFactory_GetTypeFromExtensionRoundTrips(t *testing.T) {
	f, _ := newTestFactory(t)
	h, err := f.GetTypeFromExtension("txt")
	require.NoError(t, err)
	ext, err := f.GetExtensionFromType(h)
	require.NoError(t, err)
	assert.Equal(t, "txt", ext)
}

func TestFactory_HTTPBackend404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f, err := NewFactory(Params{URI: srv.URL})
	require.NoError(t, err)
	_, err = f.RegisterType("txt", nil, func(*Factory, any, []byte, int, *Descriptor, string) CreateResult {
		return CreateOK
	}, func(*Factory, any, *Descriptor) {}, nil)
	require.NoError(t, err)

	_, err = f.Get(context.Background(), "missing.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResourceNotFound)

	desc, err := f.GetDescriptor("missing.txt")
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.Zero(t, desc.Refcount)
}

func TestFactory_RegisterTypeDuplicateExtension(t *testing.T) {
	f, _ := newTestFactory(t)
	_, err := f.RegisterType("txt", nil, func(*Factory, any, []byte, int, *Descriptor, string) CreateResult {
		return CreateOK
	}, func(*Factory, any, *Descriptor) {}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}
