package resourcefactory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/resourcefactory/metric"
)

// maxReloadSubscribers bounds the reload-subscriber list (spec §3: "bounded
// at 16"). The 17th registration is silently dropped with a logged warning;
// Factory.Subscribe does not return an error for it, matching spec §8's
// boundary behavior.
const maxReloadSubscribers = 16

// SubscriberFunc is notified after a successful Reload, in subscriber
// registration order. Per spec §4.5, a subscriber must not mutate the
// subscriber list from within its own callback.
type SubscriberFunc func(desc Descriptor, name string)

type subscriber struct {
	fn       SubscriberFunc
	userData any
}

// reloadFanoutSubject is the default NATS subject a successful reload is
// published to for out-of-process observers (SPEC_FULL §4).
const reloadFanoutSubject = "resourcefactory.reload"

// reloadEvent is the JSON payload published to reloadFanoutSubject and
// pushed over the optional control-server websocket (SPEC_FULL §4, C6).
type reloadEvent struct {
	Name      string    `json:"name"`
	Hash      uint64    `json:"hash"`
	Refcount  uint32    `json:"refcount"`
	Timestamp time.Time `json:"timestamp"`
}

// reloader owns the subscriber list and drives the recreate path. It never
// touches the cache's mutex directly; it composes cache, registry, and
// loader, exactly the way the factory composes C1-C6 (C7).
type reloader struct {
	subsMu sync.Mutex
	subs   []subscriber

	cache    *cache
	registry *typeRegistry
	load     *loader
	factory  *Factory // threaded into handler callbacks; set once by NewFactory

	natsConn   *nats.Conn // optional, for fan-out publish
	fanoutSubj string

	onEvent func(reloadEvent) // optional hook for the control server's websocket push

	logger  *slog.Logger
	metrics *metric.Metrics
}

func newReloader(c *cache, tr *typeRegistry, ld *loader, logger *slog.Logger) *reloader {
	return &reloader{
		cache:      c,
		registry:   tr,
		load:       ld,
		fanoutSubj: reloadFanoutSubject,
		logger:     logger,
	}
}

// subscribe registers a subscriber. Once maxReloadSubscribers is reached the
// registration is dropped with a logged warning and OutOfResources is
// returned; Factory.Subscribe does not surface that result as an error.
func (r *reloader) subscribe(fn SubscriberFunc, userData any) FactoryResult {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	if len(r.subs) >= maxReloadSubscribers {
		if r.logger != nil {
			r.logger.Warn("reload subscriber list full, dropping registration",
				"limit", maxReloadSubscribers)
		}
		return OutOfResources
	}
	r.subs = append(r.subs, subscriber{fn: fn, userData: userData})
	if r.metrics != nil {
		r.metrics.SetSubscribers(len(r.subs))
	}
	return OK
}

// unsubscribe removes the first subscriber matching both the callback and
// user-data identity (spec §3). any equality compares the underlying
// concrete values; callers should pass back the exact values they
// registered with.
func (r *reloader) unsubscribe(fn SubscriberFunc, userData any) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	for i, s := range r.subs {
		if funcsEqual(s.fn, fn) && s.userData == userData {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			if r.metrics != nil {
				r.metrics.SetSubscribers(len(r.subs))
			}
			return
		}
	}
}

// funcsEqual compares two SubscriberFunc values by pointer identity.
// Go forbids comparing func values directly, so this compares their %p
// formatting, which is the function's code pointer.
func funcsEqual(a, b SubscriberFunc) bool {
	return fmt.Sprintf("%p", a) == fmt.Sprintf("%p", b)
}

// snapshot returns a copy of the current subscriber list. Reload iterates
// a snapshot, not the live slice, so a subscriber that unregisters itself
// mid-notification doesn't corrupt the iteration (spec §9's
// re-architecture guidance).
func (r *reloader) snapshot() []subscriber {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	out := make([]subscriber, len(r.subs))
	copy(out, r.subs)
	return out
}

// reload re-reads name's bytes and invokes the registered handler's
// recreate callback on the existing live object in place, preserving
// identity and refcount, then fans out to subscribers and (optionally)
// NATS (spec §4.5, SPEC_FULL §4).
func (r *reloader) reload(ctx context.Context, name string, basePath string) (ReloadResult, Descriptor) {
	cpath := canonicalize(basePath, name)
	h := hashPath(cpath)

	desc, ok := r.cache.byHashSnapshot(h)
	if !ok {
		return ReloadNotFound, Descriptor{}
	}

	rec := r.registry.lookupHandle(desc.Type)
	if rec == nil || rec.recreate == nil {
		return ReloadNotSupported, desc
	}

	size, loadResult := r.load.load(ctx, name, cpath)
	if loadResult != OK {
		return ReloadLoadError, desc
	}

	createResult := rec.recreate(r.factory, rec.context, r.load.buf.bytes(), size, &desc, name)
	result := mapCreateResultToReload(createResult)
	if result != ReloadOK {
		if r.metrics != nil {
			r.metrics.RecordReload(result.String())
		}
		return result, desc
	}

	r.cache.updateObject(h, desc.Object)
	r.cache.stats.Reload()
	if r.metrics != nil {
		r.metrics.RecordReload(ReloadOK.String())
	}

	event := reloadEvent{Name: name, Hash: h, Refcount: desc.Refcount, Timestamp: time.Now()}
	for _, sub := range r.snapshot() {
		sub.fn(desc, name)
	}
	if r.onEvent != nil {
		r.onEvent(event)
	}
	r.publishFanout(event)

	return ReloadOK, desc
}

// mapCreateResultToReload maps a handler's recreate outcome onto the
// reload taxonomy (spec §4.5's explicit table, unlike Get's collapse to
// UNKNOWN — see DESIGN.md's Open Questions).
func mapCreateResultToReload(r CreateResult) ReloadResult {
	switch r {
	case CreateOK:
		return ReloadOK
	case CreateOutOfMemory:
		return ReloadOutOfMemory
	case CreateFormatError:
		return ReloadFormatError
	case CreateConstantError:
		return ReloadConstantError
	default:
		return ReloadUnknown
	}
}

// publishFanout publishes a reload event to NATS if the reloader was
// constructed with a connection. A publish failure is logged, never
// propagated to the Reload caller (SPEC_FULL §4: "reload success/failure
// is determined solely by the local handler invocation").
func (r *reloader) publishFanout(event reloadEvent) {
	if r.natsConn == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("failed to marshal reload fan-out event", "error", err)
		}
		return
	}
	if err := r.natsConn.Publish(r.fanoutSubj, payload); err != nil {
		if r.logger != nil {
			r.logger.Warn("failed to publish reload fan-out event", "subject", r.fanoutSubj, "error", err)
		}
	}
}
