// Package pool provides runtime object pooling for composite, prefab-like
// entities. Instead of instantiating and destroying short-lived objects
// (projectiles, particle effects, UI widgets) every frame, callers acquire
// recycled instances from a per-prototype Pool and return them when done.
//
// The package has two entry points. Pool owns every instance of a single
// prototype and enforces the reuse-safety guarantees: an instance is checked
// out to at most one caller, double-returns are guarded no-ops, and an
// instance can never be smuggled into a pool that did not create it.
// Collection multiplexes many pools behind one acquire/return surface keyed
// by prototype identity, adding placement convenience on top.
//
// Example usage:
//
//	h := host.NewMemoryHost()
//	pools, _ := pool.NewCollection(h, nil, nil)
//	defer pools.Dispose()
//
//	bullet, _ := pools.Acquire(bulletPrototype,
//	    pool.WithParent(muzzle),
//	    pool.At(host.Vec3{X: 1}, host.IdentityQuat()),
//	)
//	// ... later ...
//	_ = pools.Return(bullet)
//
// Components of a pooled instance that implement host.PooledComponent are
// discovered once at creation time, cached, and notified on every acquire
// and return. A return-side callback may re-enter the pool; notification
// dispatch happens before the active/reserve sets mutate so reentrant calls
// observe consistent membership.
//
// All operations are synchronous and single-threaded by contract. Calling
// into a pool from two threads of control simultaneously is undefined.
package pool
