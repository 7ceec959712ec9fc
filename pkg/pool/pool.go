package pool

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/ajitpratap0/prefabpool/pkg/config"
	"github.com/ajitpratap0/prefabpool/pkg/errors"
	"github.com/ajitpratap0/prefabpool/pkg/host"
	"github.com/ajitpratap0/prefabpool/pkg/logger"
	"github.com/ajitpratap0/prefabpool/pkg/metrics"
	stringpool "github.com/ajitpratap0/prefabpool/pkg/strings"
)

// activeEntry pairs a checked-out instance with its lease. The slice of
// entries is ordered by acquisition; return lookups scan it back-to-front
// because frequently-cycled instances are the ones returned soonest.
type activeEntry struct {
	node  host.Node
	lease *Lease
}

// componentCache holds the capability components discovered on an instance
// at creation time. Discovery walks the whole instance tree once; repeating
// it on every acquire/return cycle is exactly the cost pooling exists to
// avoid, so the cache is treated as authoritative for the instance's
// lifetime. pooledCount backs the structural drift check.
type componentCache struct {
	pooled      []host.PooledComponent
	transient   []host.TransientEffect
	pooledCount int
}

// Pool owns and recycles every instance of exactly one prototype. Instances
// live in either the active set (checked out) or the reserve stack
// (available for reuse), never both. Reserve is LIFO: the most recently
// returned instance is the next one handed out.
type Pool struct {
	host      host.Host
	prototype host.Node
	protoType reflect.Type
	name      string

	// holding is a disabled node that parks reserve instances. Parking them
	// under an inactive parent keeps state toggles off the live hierarchy,
	// which would otherwise recalculate layout on every cycle.
	holding host.Node

	cfg       *config.Config
	log       *zap.Logger
	collector *metrics.Collector

	active   []activeEntry
	reserve  []host.Node
	caches   map[host.Node]*componentCache
	disposed bool
}

// NewPool creates a pool for one prototype. cfg and log may be nil, in which
// case production defaults and the global logger are used. The pool creates
// a disabled holding-area node for its reserve instances immediately.
func NewPool(h host.Host, prototype host.Node, cfg *config.Config, log *zap.Logger) (*Pool, error) {
	return newPool(h, prototype, cfg, log, nil)
}

func newPool(h host.Host, prototype host.Node, cfg *config.Config, log *zap.Logger, root host.Node) (*Pool, error) {
	if h == nil {
		return nil, errors.New(errors.ErrorTypePrecondition, "pool requires a host")
	}
	if prototype == nil {
		return nil, errors.New(errors.ErrorTypePrecondition, "pool requires a prototype")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if log == nil {
		log = logger.Get()
	}

	p := &Pool{
		host:      h,
		prototype: prototype,
		protoType: reflect.TypeOf(prototype),
		name:      prototype.Name(),
		cfg:       cfg,
		log:       log.With(zap.String("pool", prototype.Name())),
		caches:    make(map[host.Node]*componentCache),
	}

	p.holding = h.NewRoot(stringpool.Concat(p.name, "-reserve"))
	h.SetActive(p.holding, false)
	if root != nil {
		h.SetParent(p.holding, root, false)
	}

	if cfg.Observability.EnableMetrics {
		p.collector = metrics.NewCollector(p.name)
	}

	p.log.Debug("pool created")
	return p, nil
}

// Name returns the pool's name (the prototype's name).
func (p *Pool) Name() string { return p.name }

// Prototype returns the template this pool clones.
func (p *Pool) Prototype() host.Node { return p.prototype }

// ActiveCount returns the number of instances currently checked out.
func (p *Pool) ActiveCount() int { return len(p.active) }

// ReserveCount returns the number of instances available for reuse.
func (p *Pool) ReserveCount() int { return len(p.reserve) }

// TotalCount returns every instance the pool currently owns.
func (p *Pool) TotalCount() int { return len(p.active) + len(p.reserve) }

// Disposed reports whether the pool has been torn down.
func (p *Pool) Disposed() bool { return p.disposed }

// Acquire checks an instance out of the pool, reusing the most recently
// returned reserve instance when one exists and cloning the prototype
// otherwise. The instance comes back disabled; enabling it is the caller's
// decision. The returned lease stays valid until the instance is returned.
//
// No two currently-valid leases from the same pool ever wrap the same
// instance.
func (p *Pool) Acquire() (*Lease, error) {
	if p.disposed {
		return nil, errors.Newf(errors.ErrorTypeDisposed,
			"acquire on disposed pool %q", p.name)
	}

	var node host.Node
	source := "reserve"
	if n := len(p.reserve); n > 0 {
		node = p.reserve[n-1]
		p.reserve[n-1] = nil
		p.reserve = p.reserve[:n-1]
	} else {
		node = p.create()
		source = "new"
	}

	// Pull the instance out of the disabled holding area before handing it
	// over; its placement is the caller's business from here on.
	p.host.SetParent(node, nil, false)

	lease := newLease(node)
	p.active = append(p.active, activeEntry{node: node, lease: lease})

	cache := p.caches[node]
	if cache == nil {
		cache = &componentCache{}
	}

	if p.cfg.DriftEnabled() {
		p.checkStructuralDrift(node, cache)
	}

	for _, c := range cache.pooled {
		if componentGone(c) {
			continue
		}
		c.OnPoolAcquire()
	}

	// Reused instances must not leak the previous checkout's effect state.
	for _, t := range cache.transient {
		if componentGone(t) {
			continue
		}
		t.ClearTransient()
	}

	if p.collector != nil {
		p.collector.RecordAcquire(source)
		p.collector.SetCounts(len(p.active), len(p.reserve))
	}
	return lease, nil
}

// Return hands an instance back to the pool. Returning an instance that is
// already in reserve is a guarded no-op: multiple cleanup paths racing to
// return the same object is a benign pattern, not an error. Returning to a
// disposed pool destroys the instance outright rather than resurrecting it
// into a dead pool.
//
// With validation enabled, instances owned by another pool or of the wrong
// concrete type are rejected loudly and never enter the reserve.
func (p *Pool) Return(node host.Node) error {
	if node == nil {
		return errors.New(errors.ErrorTypeValidation, "return of nil instance")
	}

	if p.disposed {
		p.destroy(node)
		if p.collector != nil {
			p.collector.RecordReturn("destroyed")
		}
		return nil
	}

	for _, r := range p.reserve {
		if r == node {
			p.log.Debug("double return ignored", zap.String("instance", node.Name()))
			if p.collector != nil {
				p.collector.RecordReturn("double_return")
			}
			return nil
		}
	}

	if p.cfg.ChecksEnabled() {
		if err := p.validateReturn(node); err != nil {
			if p.collector != nil {
				p.collector.RecordReturn("rejected")
			}
			return err
		}
	}

	// Notify before touching the active or reserve sets: a callback may
	// re-enter this pool (or another), and must observe consistent
	// membership while doing so.
	if cache := p.caches[node]; cache != nil {
		for _, c := range cache.pooled {
			if componentGone(c) {
				continue
			}
			c.OnPoolReturn()
		}
	}

	p.host.SetActive(node, false)
	p.host.SetParent(node, p.holding, false)

	idx := -1
	for i := len(p.active) - 1; i >= 0; i-- {
		if p.active[i].node == node {
			idx = i
			break
		}
	}
	if idx < 0 {
		err := errors.Newf(errors.ErrorTypeNotFound,
			"instance %q is not checked out of pool %q", node.Name(), p.name)
		p.log.Error("return of unknown instance", zap.Error(err))
		if p.collector != nil {
			p.collector.RecordReturn("rejected")
		}
		return err
	}

	entry := p.active[idx]
	p.active = append(p.active[:idx], p.active[idx+1:]...)
	p.reserve = append(p.reserve, node)
	entry.lease.invalidate()

	if p.collector != nil {
		p.collector.RecordReturn("recycled")
		p.collector.SetCounts(len(p.active), len(p.reserve))
	}
	return nil
}

// PreWarm clones instances into the reserve until the pool could satisfy
// capacity concurrent checkouts without further allocation. Pre-warmed
// instances are not acquired: they receive no notifications and stay
// disabled in the holding area.
func (p *Pool) PreWarm(capacity int) error {
	if p.disposed {
		return errors.Newf(errors.ErrorTypeDisposed,
			"prewarm on disposed pool %q", p.name)
	}
	if capacity < 0 {
		return errors.New(errors.ErrorTypeValidation, "prewarm capacity must be >= 0")
	}

	target := capacity - len(p.active)
	created := 0
	for len(p.reserve) < target {
		p.reserve = append(p.reserve, p.create())
		created++
	}

	if created > 0 {
		p.log.Debug("pool prewarmed",
			zap.Int("created", created),
			zap.Int("reserve", len(p.reserve)))
		if p.collector != nil {
			p.collector.SetCounts(len(p.active), len(p.reserve))
		}
	}
	return nil
}

// Clear destroys every reserve instance. Active instances are untouched;
// they are still owned by whoever acquired them and remain returnable.
func (p *Pool) Clear() {
	if p.disposed {
		return
	}
	for _, node := range p.reserve {
		p.destroy(node)
	}
	p.reserve = nil
	if p.collector != nil {
		p.collector.SetCounts(len(p.active), len(p.reserve))
	}
}

// Dispose tears the pool down: reserve instances and the holding area are
// destroyed, every outstanding lease is invalidated, and the pool enters its
// terminal state. Acquire and PreWarm fail afterward; Return degrades to
// destroying the returned instance. Dispose is idempotent.
func (p *Pool) Dispose() {
	if p.disposed {
		return
	}

	for _, node := range p.reserve {
		p.destroy(node)
	}
	p.reserve = nil

	// Active instances stay alive in the caller's hands, but their leases
	// end here: a lease is only valid while its instance sits in the
	// active set, and the set is going away. Ownership tags are kept so a
	// late Return still routes here for destruction.
	for _, entry := range p.active {
		entry.lease.invalidate()
	}
	p.active = nil
	p.caches = nil

	p.host.Destroy(p.holding)
	p.disposed = true

	if p.collector != nil {
		p.collector.SetCounts(0, 0)
	}
	p.log.Debug("pool disposed")
}

// create clones the prototype into the holding area, tags its ownership,
// and discovers its capability components. The clone never flows through
// notification dispatch here; that only happens on acquisition.
func (p *Pool) create() host.Node {
	node := p.host.Instantiate(p.prototype, p.holding)
	p.host.SetActive(node, false)
	ownership.tag(node, p)
	p.caches[node] = discoverComponents(p.host, node)
	if p.collector != nil {
		p.collector.RecordCreated()
	}
	return node
}

// destroy hands an instance to the host for teardown and drops all pool
// bookkeeping for it.
func (p *Pool) destroy(node host.Node) {
	ownership.forget(node)
	if p.caches != nil {
		delete(p.caches, node)
	}
	p.host.Destroy(node)
	if p.collector != nil {
		p.collector.RecordDestroyed()
	}
}

func (p *Pool) validateReturn(node host.Node) error {
	if owner := ownership.owner(node); owner != p {
		err := errors.Newf(errors.ErrorTypeOwnership,
			"instance %q does not belong to pool %q", node.Name(), p.name)
		if p.cfg.Validation.Mode == config.ValidationStrict {
			p.log.Error("ownership violation", zap.Error(err))
		} else {
			p.log.Warn("ownership violation", zap.Error(err))
		}
		return err
	}
	if t := reflect.TypeOf(node); t != p.protoType {
		err := errors.Newf(errors.ErrorTypeOwnership,
			"instance %q has type %s, pool %q expects %s",
			node.Name(), t, p.name, p.protoType)
		p.log.Error("type mismatch on return", zap.Error(err))
		return err
	}
	return nil
}

// checkStructuralDrift re-counts the instance's lifecycle components and
// warns when the count no longer matches what was discovered at creation
// time. Mutating a pooled clone's component set after pool creation breaks
// the discovery cache; the pool keeps running on the stale cache, so this
// is a recoverable diagnostic, not an error.
func (p *Pool) checkStructuralDrift(node host.Node, cache *componentCache) {
	count := 0
	for _, c := range p.host.Components(node) {
		if _, ok := c.(host.PooledComponent); ok {
			count++
		}
	}
	if count != cache.pooledCount {
		p.log.Warn("pooled instance component set changed since creation",
			zap.String("instance", node.Name()),
			zap.Int("cached", cache.pooledCount),
			zap.Int("found", count))
		if p.collector != nil {
			p.collector.RecordDrift()
		}
	}
}

func discoverComponents(h host.Host, node host.Node) *componentCache {
	cache := &componentCache{}
	for _, c := range h.Components(node) {
		if pc, ok := c.(host.PooledComponent); ok {
			cache.pooled = append(cache.pooled, pc)
			cache.pooledCount++
		}
		if te, ok := c.(host.TransientEffect); ok {
			cache.transient = append(cache.transient, te)
		}
	}
	return cache
}

// componentGone skips destroyed or nil components during notification
// dispatch.
func componentGone(c host.Component) bool {
	if c == nil {
		return true
	}
	if d, ok := c.(host.Destructible); ok && d.Destroyed() {
		return true
	}
	return false
}
