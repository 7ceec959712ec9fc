// Package prefabpool provides a runtime object-pooling layer for
// component-based application frameworks. It amortizes the cost of
// instantiating and destroying composite, prefab-like entities by recycling
// previously created instances, serving any subsystem that spawns
// short-lived objects at high frequency: particle effects, projectiles,
// UI widgets.
//
// # Architecture
//
// The module is built around three ideas:
//
// 1. Host abstraction: the pools have zero compile-time dependency on any
// scene-graph or rendering framework. Cloning, destruction, activation,
// parenting, and transforms are invoked through the host.Host interface,
// which the embedding application adapts (pkg/host ships a complete
// in-memory implementation for tests and benchmarks).
//
// 2. Exactly-once reuse safety: each pool partitions its instances into an
// active set and a LIFO reserve, wraps every checkout in a lifetime lease,
// tolerates double-returns as guarded no-ops, and rejects returns of
// instances another pool owns. Ownership lives in a side-table keyed by
// instance identity, so pooled types carry no pool bookkeeping.
//
// 3. Cached capability discovery: components wanting lifecycle
// notifications implement host.PooledComponent and are discovered once at
// instance creation, never on the acquire/return hot path. A configurable
// validation mode catches structural mutation of pooled clones.
//
// # Quick Start
//
//	h := host.NewMemoryHost()
//	pools, err := pool.NewCollection(h, nil, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pools.Dispose()
//
//	_ = pools.PreWarm(bulletPrototype, 32)
//	bullet, _ := pools.Acquire(bulletPrototype, pool.WithParent(muzzle))
//	// ...
//	_ = pools.Return(bullet)
//
// See pkg/pool for the core engine, pkg/host for the boundary interface,
// and cmd/poolbench for a workload driver.
package prefabpool
