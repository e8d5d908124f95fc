// Package resourcefactory implements an in-process, reference-counted cache
// that loads opaque byte blobs from a local filesystem, a remote HTTP
// origin, a NATS JetStream object-store bucket, or an in-memory builtins
// archive, converts them into typed live objects through caller-supplied
// handlers, deduplicates them by canonicalized path, and supports live
// hot-reload of already-loaded resources driven by an embedded control
// channel.
//
// # Quick start
//
//	f, err := resourcefactory.NewFactory(resourcefactory.Params{URI: "file:///var/lib/assets"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	if _, err := f.RegisterType("txt", nil, textCreate, textDestroy, textRecreate); err != nil {
//	    log.Fatal(err)
//	}
//
//	obj, err := f.Get(context.Background(), "readme.txt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Release(obj)
//
// # Architecture
//
// The factory is assembled from a handful of tightly coupled pieces: a path
// canonicalizer (identity), a type registry (extension -> handler), a
// loader (byte-filling pipeline over one shared staging buffer), a dual
// indexed cache core (refcounting), a reloader (re-run create in place),
// and an optional control-server adapter that drives reload over HTTP.
// See DESIGN.md for the per-file rationale and the mapping back to the
// originating specification.
package resourcefactory
