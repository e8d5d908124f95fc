package resourcefactory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_InsertAndIncref(t *testing.T) {
	c := newCache(16, true)
	obj := &struct{ v int }{v: 1}
	h := hashPath("/root/a.txt")

	_, ok := c.getOrIncref(h)
	require.False(t, ok, "expected miss before insert")

	c.insert(h, Descriptor{Hash: h, Refcount: 1, Object: obj, Type: 0}, "/root/a.txt")

	desc, ok := c.getOrIncref(h)
	require.True(t, ok)
	assert.Equal(t, uint32(2), desc.Refcount)
	assert.Same(t, obj, desc.Object)
	assert.Equal(t, 1, c.size())
}

func TestCache_DuplicateInsertPanics(t *testing.T) {
	c := newCache(16, false)
	h := hashPath("/root/a.txt")
	c.insert(h, Descriptor{Hash: h, Refcount: 1, Object: &struct{}{}}, "/root/a.txt")

	assert.Panics(t, func() {
		c.insert(h, Descriptor{Hash: h, Refcount: 1, Object: &struct{}{}}, "/root/a.txt")
	})
}

func TestCache_ReleaseToZeroDestroysEntry(t *testing.T) {
	c := newCache(16, true)
	obj := &struct{ v int }{}
	h := hashPath("/root/a.txt")
	c.insert(h, Descriptor{Hash: h, Refcount: 1, Object: obj}, "/root/a.txt")

	desc, destroyed, found := c.release(obj)
	require.True(t, found)
	require.True(t, destroyed)
	assert.Equal(t, uint32(0), desc.Refcount)
	assert.Equal(t, 0, c.size())

	_, found = c.hashOf(obj)
	assert.False(t, found)
}

func TestCache_ReleaseOfUnknownObjectPanics(t *testing.T) {
	c := newCache(16, false)
	assert.Panics(t, func() {
		c.release(&struct{}{})
	})
}

func TestCache_ReleaseOfZeroRefcountPanics(t *testing.T) {
	c := newCache(16, false)
	obj := &struct{}{}
	h := hashPath("/root/a.txt")
	c.insert(h, Descriptor{Hash: h, Refcount: 1, Object: obj}, "/root/a.txt")

	_, destroyed, found := c.release(obj)
	require.True(t, found)
	require.True(t, destroyed)

	assert.Panics(t, func() {
		c.release(obj)
	})
}

func TestCache_FilenameIndexOptional(t *testing.T) {
	withNames := newCache(16, true)
	withoutNames := newCache(16, false)
	h := hashPath("/root/a.txt")
	obj1, obj2 := &struct{}{}, &struct{}{}

	withNames.insert(h, Descriptor{Hash: h, Refcount: 1, Object: obj1}, "/root/a.txt")
	withoutNames.insert(h, Descriptor{Hash: h, Refcount: 1, Object: obj2}, "/root/a.txt")

	name, ok := withNames.filenameOf(h)
	require.True(t, ok)
	assert.Equal(t, "/root/a.txt", name)

	_, ok = withoutNames.filenameOf(h)
	assert.False(t, ok)
}

func TestStatistics_HitRatioAndSizeHighWaterMark(t *testing.T) {
	s := NewStatistics()
	s.Hit()
	s.Hit()
	s.Miss()
	assert.InDelta(t, 2.0/3.0, s.HitRatio(), 0.0001)

	s.UpdateSize(5)
	s.UpdateSize(3)
	assert.Equal(t, int64(3), s.CurrentSize())
	assert.Equal(t, int64(5), s.MaxSize())
}
