package resourcefactory

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/c360/resourcefactory/metric"
)

// Flags selects optional factory capabilities (spec §6).
type Flags uint8

const (
	// ReloadSupport enables the filename index and subscriber list.
	ReloadSupport Flags = 1 << iota
	// HTTPServer enables the control server and implies ReloadSupport.
	HTTPServer
)

const (
	defaultMaxResources     = 1024
	defaultStreamBufferSize = 4 * 1024 * 1024 // 4 MiB
)

// Params are the factory construction parameters (spec §6).
type Params struct {
	// URI is <scheme>://[host[:port]]/<base-path>. Scheme is "http", "file",
	// or (SPEC_FULL addition) "nats".
	URI string

	MaxResources     int
	Flags            Flags
	StreamBufferSize int

	// BuiltinsArchive is an optional in-memory zip blob consulted first by
	// the loader.
	BuiltinsArchive []byte

	// ControlPort overrides the control server's bind port (default 8001).
	ControlPort int

	// HTTPRateLimit bounds requests/second the HTTP backend issues; zero
	// means unlimited (SPEC_FULL §4).
	HTTPRateLimit float64
	HTTPBurst     int

	// NATSConn, if set, enables the object-store loader backend (scheme
	// "nats"), the reload fan-out publish, and the remote reload trigger
	// subscription (SPEC_FULL §4/§6).
	NATSConn          *nats.Conn
	ReloadFanoutSubj  string // default "resourcefactory.reload"
	ReloadRequestSubj string // default "resourcefactory.reload.request"
	NATSObjectBucket  string // object-store bucket name for scheme "nats"
}

// Option customizes a Factory beyond what Params expresses; mirrors the
// functional-option pattern used throughout this codebase's components
// (e.g. cache.WithMetrics).
type Option func(*Factory)

// WithMetrics attaches a Prometheus metrics set (C8). A nil registry
// disables collection entirely; it is never required.
func WithMetrics(m *metric.Metrics) Option {
	return func(f *Factory) { f.metrics = m }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) { f.logger = logger }
}

// Factory is the top-level handle: construction/teardown, option parsing,
// and wiring of the canonicalizer, type registry, loader, cache core,
// reloader, and control-server adapter (C7).
type Factory struct {
	params Params
	uri    backendURI

	cache    *cache
	registry *typeRegistry
	loader   *loader
	reloader *reloader
	server   *controlServer

	logger  *slog.Logger
	metrics *metric.Metrics

	natsConn    *nats.Conn
	natsReqSub  *nats.Subscription
	cancel      context.CancelFunc
	group       *errgroup.Group
}

// NewFactory allocates the staging buffer, parses the URI, instantiates
// exactly one backend, sizes the cache indexes, and optionally starts the
// control server (spec §4.7).
func NewFactory(params Params, opts ...Option) (*Factory, error) {
	if params.MaxResources <= 0 {
		params.MaxResources = defaultMaxResources
	}
	if params.StreamBufferSize <= 0 {
		params.StreamBufferSize = defaultStreamBufferSize
	}
	if params.ReloadFanoutSubj == "" {
		params.ReloadFanoutSubj = reloadFanoutSubject
	}
	if params.ReloadRequestSubj == "" {
		params.ReloadRequestSubj = "resourcefactory.reload.request"
	}
	if params.Flags&HTTPServer != 0 {
		params.Flags |= ReloadSupport
	}

	uri, err := parseBackendURI(params.URI)
	if err != nil {
		return nil, newFactoryError(INVAL, "Factory", "NewFactory")
	}

	f := &Factory{
		params: params,
		uri:    uri,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}

	f.cache = newCache(params.MaxResources, params.Flags&ReloadSupport != 0)
	f.registry = newTypeRegistry()

	buf := newStagingBuffer(params.StreamBufferSize)

	l := &loader{
		buf:        buf,
		uri:        uri,
		httpClient: &http.Client{},
		logger:     f.logger,
		metrics:    f.metrics,
	}
	if params.HTTPRateLimit > 0 {
		burst := params.HTTPBurst
		if burst <= 0 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(params.HTTPRateLimit), burst)
	}
	if len(params.BuiltinsArchive) > 0 {
		archive, err := wrapBuiltinsArchive(params.BuiltinsArchive)
		if err != nil {
			return nil, newFactoryError(IOError, "Factory", "NewFactory")
		}
		l.archive = archive
	}
	if uri.scheme == "nats" && params.NATSConn == nil {
		return nil, newFactoryError(INVAL, "Factory", "NewFactory")
	}
	f.loader = l

	f.reloader = newReloader(f.cache, f.registry, f.loader, f.logger)
	f.reloader.factory = f
	f.reloader.metrics = f.metrics

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	group, gctx := errgroup.WithContext(ctx)
	f.group = group

	if params.NATSConn != nil {
		f.natsConn = params.NATSConn
		f.reloader.natsConn = params.NATSConn
		f.reloader.fanoutSubj = params.ReloadFanoutSubj

		if uri.scheme == "nats" {
			js, err := jetstream.New(params.NATSConn)
			if err != nil {
				return nil, newFactoryError(IOError, "Factory", "NewFactory")
			}
			bucket := params.NATSObjectBucket
			if bucket == "" {
				bucket = "resourcefactory"
			}
			store, err := js.ObjectStore(ctx, bucket)
			if err != nil {
				return nil, newFactoryError(IOError, "Factory", "NewFactory")
			}
			f.loader.natsJS = js
			f.loader.natsBucket = store
		}

		f.subscribeRemoteReload(gctx)
	}

	if params.Flags&HTTPServer != 0 {
		f.server = newControlServer(params.ControlPort, f.cache, f.reloader, f.logger)
		if f.server.bind() {
			f.group.Go(f.server.serve)
		}
	}

	return f, nil
}

// subscribeRemoteReload wires the NATS remote reload trigger (SPEC_FULL
// §6): a message's payload is treated as a resource name and drives the
// same Reload path as the HTTP control endpoint, replying with the result
// when the message carries a reply subject.
func (f *Factory) subscribeRemoteReload(ctx context.Context) {
	sub, err := f.natsConn.Subscribe(f.params.ReloadRequestSubj, func(msg *nats.Msg) {
		name := string(msg.Data)
		result, _ := f.reloader.reload(ctx, name, f.uri.basePath)
		if msg.Reply != "" {
			_ = f.natsConn.Publish(msg.Reply, []byte(result.String()))
		}
	})
	if err != nil {
		if f.logger != nil {
			f.logger.Warn("failed to subscribe to remote reload trigger subject",
				"subject", f.params.ReloadRequestSubj, "error", err)
		}
		return
	}
	f.natsReqSub = sub
}

// RegisterType registers a handler triple for extension (spec §4.2).
func (f *Factory) RegisterType(extension string, context any, create CreateFunc, destroy DestroyFunc, recreate RecreateFunc) (TypeHandle, error) {
	h, result := f.registry.register(extension, context, create, destroy, recreate)
	if f.metrics != nil {
		f.metrics.SetTypesRegistered(f.registry.size())
	}
	return h, newFactoryError(result, "TypeRegistry", "RegisterType")
}

// Get resolves name to a live object, loading and constructing it on first
// reference (spec §4.4.1).
func (f *Factory) Get(ctx context.Context, name string) (any, error) {
	cpath := canonicalize(f.uri.basePath, name)
	h := hashPath(cpath)

	if desc, ok := f.cache.getOrIncref(h); ok {
		f.cache.stats.Hit()
		if f.metrics != nil {
			f.metrics.RecordCacheHit()
		}
		return desc.Object, nil
	}
	f.cache.stats.Miss()
	if f.metrics != nil {
		f.metrics.RecordCacheMiss()
	}

	ext, ok := extensionOf(name)
	if !ok {
		return nil, newFactoryError(MissingFileExtension, "Cache", "Get")
	}
	rec := f.registry.lookupExtension(ext)
	if rec == nil {
		return nil, newFactoryError(UnknownResourceType, "Cache", "Get")
	}

	size, loadResult := f.loader.load(ctx, name, cpath)
	if loadResult != OK {
		return nil, newFactoryError(loadResult, "Loader", "Get")
	}

	desc := Descriptor{Hash: h, Refcount: 1, Type: TypeHandle(rec.id)}
	createResult := rec.create(f, rec.context, f.loader.buf.bytes(), size, &desc, name)
	if createResult != CreateOK {
		// spec §4.4.1: any non-OK create outcome collapses to UNKNOWN today;
		// see DESIGN.md's Open Questions for why a richer mapping is deferred.
		return nil, newFactoryError(Unknown, "Handler", "Get")
	}

	f.cache.insert(h, desc, cpath)
	f.cache.stats.Load()
	if f.metrics != nil {
		f.metrics.SetResourcesLoaded(f.cache.size())
	}
	return desc.Object, nil
}

// Release decrements object's refcount, invoking the handler's destroy
// callback when it reaches zero (spec §4.4.2).
func (f *Factory) Release(object any) error {
	h, found := f.cache.hashOf(object)
	if !found {
		panic("resourcefactory: release of object never loaded through this factory")
	}
	desc, destroyed, _ := f.cache.release(object)
	if destroyed {
		rec := f.registry.lookupHandle(desc.Type)
		if rec != nil {
			rec.destroy(f, rec.context, &desc)
		}
		if f.metrics != nil {
			f.metrics.SetResourcesLoaded(f.cache.size())
		}
	}
	_ = h
	return nil
}

// Reload re-reads name and invokes the handler's recreate callback in
// place, fanning out to subscribers on success (spec §4.5).
func (f *Factory) Reload(ctx context.Context, name string) (ReloadResult, Descriptor) {
	return f.reloader.reload(ctx, name, f.uri.basePath)
}

// Subscribe registers a reload subscriber (spec §3). Once
// maxReloadSubscribers are registered, a further registration is dropped
// with a logged warning and Subscribe still returns nil (spec §8).
func (f *Factory) Subscribe(fn SubscriberFunc, userData any) error {
	if result := f.reloader.subscribe(fn, userData); result != OutOfResources {
		return newFactoryError(result, "Reloader", "Subscribe")
	}
	return nil
}

// Unsubscribe removes a previously registered reload subscriber.
func (f *Factory) Unsubscribe(fn SubscriberFunc, userData any) {
	f.reloader.unsubscribe(fn, userData)
}

// GetType returns the TypeHandle associated with a live object, or
// NOT_LOADED if the object was never loaded through this factory (spec §4.4.3).
func (f *Factory) GetType(object any) (TypeHandle, error) {
	h, ok := f.cache.hashOf(object)
	if !ok {
		return invalidTypeHandle, newFactoryError(NotLoaded, "Cache", "GetType")
	}
	desc, ok := f.cache.byHashSnapshot(h)
	if !ok {
		return invalidTypeHandle, newFactoryError(NotLoaded, "Cache", "GetType")
	}
	return desc.Type, nil
}

// GetTypeFromExtension returns the TypeHandle registered for extension.
func (f *Factory) GetTypeFromExtension(extension string) (TypeHandle, error) {
	rec := f.registry.lookupExtension(extension)
	if rec == nil {
		return invalidTypeHandle, newFactoryError(UnknownResourceType, "TypeRegistry", "GetTypeFromExtension")
	}
	return TypeHandle(rec.id), nil
}

// GetExtensionFromType returns the extension string registered under h.
func (f *Factory) GetExtensionFromType(h TypeHandle) (string, error) {
	rec := f.registry.lookupHandle(h)
	if rec == nil {
		return "", newFactoryError(UnknownResourceType, "TypeRegistry", "GetExtensionFromType")
	}
	return rec.extension, nil
}

// GetDescriptor canonicalizes and hashes name and returns a snapshot of its
// descriptor, or NOT_LOADED on miss (spec §4.4.3).
func (f *Factory) GetDescriptor(name string) (Descriptor, error) {
	cpath := canonicalize(f.uri.basePath, name)
	h := hashPath(cpath)
	desc, ok := f.cache.byHashSnapshot(h)
	if !ok {
		return Descriptor{}, newFactoryError(NotLoaded, "Cache", "GetDescriptor")
	}
	return desc, nil
}

// Stats returns a snapshot of the cache's hit/miss/load/reload counters.
func (f *Factory) Stats() Summary {
	return f.cache.stats.Summary()
}

// UpdateFactory is a cooperative tick: if the control server exists, ask
// it to drain pending I/O (spec §4.6). Here the control server runs its
// own supervised goroutine, so there is nothing to drain synchronously;
// the call remains for API parity with callers ported from the
// single-threaded original.
func (f *Factory) UpdateFactory() {
	if f.server != nil {
		f.server.update()
	}
}

// Close releases the staging buffer, HTTP client, control server, and
// subscriptions. It does not call destroy on any still-resident resources
// (spec §4.7): the caller is expected to have released them first.
func (f *Factory) Close() error {
	if f.natsReqSub != nil {
		_ = f.natsReqSub.Unsubscribe()
	}
	if f.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		f.server.stop(ctx)
	}
	f.cancel()
	return f.group.Wait()
}
