package resourcefactory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type versionedObject struct {
	version int
}

func newReloadTestFactory(t *testing.T, recreate RecreateFunc) (*Factory, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("v1"), 0o644))

	f, err := NewFactory(Params{URI: "file://" + dir})
	require.NoError(t, err)

	create := func(_ *Factory, _ any, buf []byte, _ int, desc *Descriptor, _ string) CreateResult {
		desc.Object = &versionedObject{version: 1}
		return CreateOK
	}
	_, err = f.RegisterType("txt", nil, create, func(*Factory, any, *Descriptor) {}, recreate)
	require.NoError(t, err)
	return f, dir
}

func TestReload_HappyPathPreservesIdentityAndNotifiesSubscriber(t *testing.T) {
	recreate := func(_ *Factory, _ any, buf []byte, _ int, desc *Descriptor, _ string) CreateResult {
		obj := desc.Object.(*versionedObject)
		obj.version = 2
		return CreateOK
	}
	f, dir := newReloadTestFactory(t, recreate)

	obj, err := f.Get(context.Background(), "a.txt")
	require.NoError(t, err)
	x := obj.(*versionedObject)
	assert.Equal(t, 1, x.version)

	var notifiedName string
	var notifiedCount int
	require.NoError(t, f.Subscribe(func(_ Descriptor, name string) {
		notifiedCount++
		notifiedName = name
	}, nil))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("v2"), 0o644))
	result, _ := f.Reload(context.Background(), "a.txt")

	require.Equal(t, ReloadOK, result)
	assert.Equal(t, 2, x.version, "recreate must mutate the same object prior Get callers hold")
	assert.Equal(t, 1, notifiedCount)
	assert.Equal(t, "a.txt", notifiedName)
}

func TestReload_UnsupportedWhenNoRecreateRegistered(t *testing.T) {
	f, _ := newReloadTestFactory(t, nil)

	obj, err := f.Get(context.Background(), "a.txt")
	require.NoError(t, err)
	x := obj.(*versionedObject)

	result, _ := f.Reload(context.Background(), "a.txt")
	assert.Equal(t, ReloadNotSupported, result)
	assert.Equal(t, 1, x.version, "object must be unchanged on unsupported reload")
}

func TestReload_NotFoundForNeverLoadedName(t *testing.T) {
	f, _ := newReloadTestFactory(t, nil)
	result, _ := f.Reload(context.Background(), "never-loaded.txt")
	assert.Equal(t, ReloadNotFound, result)
}

func TestReloader_SubscriberListBoundedAtSixteen(t *testing.T) {
	r := newReloader(newCache(16, true), newTypeRegistry(), &loader{buf: newStagingBuffer(8)}, nil)
	for i := 0; i < maxReloadSubscribers; i++ {
		result := r.subscribe(func(Descriptor, string) {}, i)
		require.Equal(t, OK, result, "subscription %d should succeed", i)
	}
	result := r.subscribe(func(Descriptor, string) {}, "overflow")
	assert.Equal(t, OutOfResources, result)
	assert.Len(t, r.snapshot(), maxReloadSubscribers)
}
