package resourcefactory

import "sync"

// stagingBuffer is the single, process-lifetime byte region every load
// fills before a handler parses it (spec §3/§5). It is exclusively owned by
// the factory; the mutex below is the "dedicated sync.Mutex around the
// whole load" from SPEC_FULL §5, which turns the documented no-nested-load
// API contract into a detectable hang instead of silent buffer corruption
// if a handler callback re-enters the loader.
type stagingBuffer struct {
	mu   sync.Mutex
	data []byte // len(data) == capacity+1; the last byte is the reserved terminator slot
	size int    // bytes currently valid in data[:size]
}

// newStagingBuffer allocates a buffer of the given capacity plus one
// trailing byte reserved for a terminating zero (spec §3/§6:
// stream_buffer_size).
func newStagingBuffer(capacity int) *stagingBuffer {
	return &stagingBuffer{data: make([]byte, capacity+1)}
}

// capacity returns the usable capacity, excluding the reserved terminator byte.
func (b *stagingBuffer) capacity() int {
	return len(b.data) - 1
}

// reset truncates the buffer to empty without shrinking the backing array.
func (b *stagingBuffer) reset() {
	b.size = 0
}

// append copies p onto the end of the buffer, failing with
// StreamBufferTooSmall if doing so would overflow the capacity (leaving the
// reserved terminator slot intact). No partial data is retained on
// overflow, matching spec §4.3's "no data is retained" HTTP failure mode.
func (b *stagingBuffer) append(p []byte) FactoryResult {
	if b.size+len(p) > b.capacity() {
		b.size = 0
		return StreamBufferTooSmall
	}
	copy(b.data[b.size:], p)
	b.size += len(p)
	return OK
}

// terminate writes a trailing zero byte immediately after the valid data,
// for handlers that expect a null-terminated view (spec §4.3).
func (b *stagingBuffer) terminate() {
	b.data[b.size] = 0
}

// bytes returns the valid portion of the buffer (excluding the terminator).
func (b *stagingBuffer) bytes() []byte {
	return b.data[:b.size]
}
