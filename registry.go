package resourcefactory

import "sync"

// maxRegisteredTypes is the per-factory type-registry capacity (spec §3:
// "Maximum 128 records per factory (implementation constant, may be
// raised)").
const maxRegisteredTypes = 128

// CreateFunc fills a freshly allocated Descriptor's Object field from the
// bytes in buf[:size]. name is the original (pre-canonical) resource name,
// context is the opaque pointer supplied to RegisterType.
type CreateFunc func(f *Factory, context any, buf []byte, size int, desc *Descriptor, name string) CreateResult

// DestroyFunc releases whatever CreateFunc allocated into desc.Object.
type DestroyFunc func(f *Factory, context any, desc *Descriptor)

// RecreateFunc re-parses buf[:size] into the existing live object in desc,
// in place, preserving object identity and refcount. Optional: a type
// registered with a nil RecreateFunc disables reload for that type.
type RecreateFunc func(f *Factory, context any, buf []byte, size int, desc *Descriptor, name string) CreateResult

// typeRecord is the per-extension handler triple plus its caller context.
// Immutable after RegisterType; destroyed with the factory.
type typeRecord struct {
	extension string
	context   any
	create    CreateFunc
	destroy   DestroyFunc
	recreate  RecreateFunc
	// id is a stable, dense handle exposed to callers as TypeHandle instead
	// of a pointer, per the source's re-architecture guidance (spec §9):
	// a cast-from-pointer handle risks pointer-sized truncation bugs.
	id int
}

// TypeHandle is the opaque handle identifying a registered type. Stable for
// the lifetime of the factory; never reused even if a future version adds
// type unregistration.
type TypeHandle int

// invalidTypeHandle is returned by lookups that miss.
const invalidTypeHandle TypeHandle = -1

// typeRegistry maps an extension string to its handler triple. records keeps
// registration order (a record's index is its TypeHandle); byExt indexes
// records by extension, so lookup by extension is a map lookup, not a scan.
type typeRegistry struct {
	mu      sync.RWMutex
	records []*typeRecord
	byExt   map[string]int // extension -> index into records
}

func newTypeRegistry() *typeRegistry {
	return &typeRegistry{
		byExt: make(map[string]int),
	}
}

// register adds a new type record. Returns INVAL if extension contains a
// dot or create/destroy is nil, AlreadyRegistered if the extension is
// already present, OutOfResources if the registry is full.
func (tr *typeRegistry) register(extension string, context any, create CreateFunc, destroy DestroyFunc, recreate RecreateFunc) (TypeHandle, FactoryResult) {
	if extension == "" || containsByte(extension, '.') || create == nil || destroy == nil {
		return invalidTypeHandle, INVAL
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	if _, exists := tr.byExt[extension]; exists {
		return invalidTypeHandle, AlreadyRegistered
	}
	if len(tr.records) >= maxRegisteredTypes {
		return invalidTypeHandle, OutOfResources
	}

	rec := &typeRecord{
		extension: extension,
		context:   context,
		create:    create,
		destroy:   destroy,
		recreate:  recreate,
		id:        len(tr.records),
	}
	tr.records = append(tr.records, rec)
	tr.byExt[extension] = rec.id
	return TypeHandle(rec.id), OK
}

// lookupExtension returns the record for an extension, or nil.
func (tr *typeRegistry) lookupExtension(extension string) *typeRecord {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	idx, ok := tr.byExt[extension]
	if !ok {
		return nil
	}
	return tr.records[idx]
}

// lookupHandle returns the record for a TypeHandle, or nil.
func (tr *typeRegistry) lookupHandle(h TypeHandle) *typeRecord {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	if h < 0 || int(h) >= len(tr.records) {
		return nil
	}
	return tr.records[h]
}

// size returns the number of registered types.
func (tr *typeRegistry) size() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.records)
}

func containsByte(s string, c byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return true
		}
	}
	return false
}
