package pool

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/prefabpool/pkg/config"
	"github.com/ajitpratap0/prefabpool/pkg/errors"
	"github.com/ajitpratap0/prefabpool/pkg/host"
	"github.com/ajitpratap0/prefabpool/pkg/logger"
	stringpool "github.com/ajitpratap0/prefabpool/pkg/strings"
)

// acquireRequest collects the placement options for one acquisition.
type acquireRequest struct {
	parent       host.Node
	hasTransform bool
	position     host.Vec3
	rotation     host.Quat
	inactive     bool
}

// AcquireOption configures placement and activation for Collection.Acquire.
type AcquireOption func(*acquireRequest)

// WithParent parents the acquired instance under parent.
func WithParent(parent host.Node) AcquireOption {
	return func(r *acquireRequest) {
		r.parent = parent
	}
}

// At places the acquired instance at a local position and rotation.
func At(position host.Vec3, rotation host.Quat) AcquireOption {
	return func(r *acquireRequest) {
		r.hasTransform = true
		r.position = position
		r.rotation = rotation
	}
}

// Inactive leaves the acquired instance disabled, handing the activation
// decision to the caller. Without it the instance is enabled on the way out.
func Inactive() AcquireOption {
	return func(r *acquireRequest) {
		r.inactive = true
	}
}

// Collection multiplexes many single-prototype pools behind one entry
// point, keyed by prototype identity. Pools are created lazily the first
// time a prototype is seen; resolution is an upsert, never a lookup
// failure.
type Collection struct {
	host  host.Host
	cfg   *config.Config
	log   *zap.Logger
	root  host.Node
	pools map[host.Node]*Pool

	disposed bool
}

// NewCollection creates an empty collection. cfg and log may be nil, in
// which case production defaults and the global logger are used. The
// collection creates one detached root node under which every pool parks
// its holding area.
func NewCollection(h host.Host, cfg *config.Config, log *zap.Logger) (*Collection, error) {
	if h == nil {
		return nil, errors.New(errors.ErrorTypePrecondition, "collection requires a host")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if log == nil {
		log = logger.Get()
	}

	root := h.NewRoot(stringpool.Concat(cfg.Name, "-pools"))
	h.SetActive(root, false)

	return &Collection{
		host:  h,
		cfg:   cfg,
		log:   log,
		root:  root,
		pools: make(map[host.Node]*Pool),
	}, nil
}

// PoolCount returns the number of pools the collection has created.
func (c *Collection) PoolCount() int { return len(c.pools) }

// Pool returns the pool for prototype if one has been created. Unlike
// Acquire and PreWarm, this is a pure lookup and never creates a pool.
func (c *Collection) Pool(prototype host.Node) (*Pool, bool) {
	p, ok := c.pools[prototype]
	return p, ok
}

// Disposed reports whether the collection has been torn down.
func (c *Collection) Disposed() bool { return c.disposed }

// Acquire checks an instance of prototype out of its pool, creating the
// pool on first use, then applies the requested placement. Unless Inactive
// is given, the instance comes back enabled. The pool's lease stays
// internal at this layer; callers hold the bare instance and hand it back
// through Return.
func (c *Collection) Acquire(prototype host.Node, opts ...AcquireOption) (host.Node, error) {
	if c.disposed {
		return nil, errors.New(errors.ErrorTypeDisposed, "acquire on disposed collection")
	}
	if prototype == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "acquire of nil prototype")
	}

	var req acquireRequest
	for _, opt := range opts {
		opt(&req)
	}

	p, err := c.resolve(prototype)
	if err != nil {
		return nil, err
	}

	lease, err := p.Acquire()
	if err != nil {
		return nil, err
	}
	node := lease.Node()

	if req.parent != nil {
		c.host.SetParent(node, req.parent, false)
	}
	if req.hasTransform {
		c.host.SetLocalTransform(node, req.position, req.rotation)
	}
	if !req.inactive {
		c.host.SetActive(node, true)
	}
	return node, nil
}

// PreWarm eagerly allocates reserve instances for prototype, creating the
// pool on first use.
func (c *Collection) PreWarm(prototype host.Node, capacity int) error {
	if c.disposed {
		return errors.New(errors.ErrorTypeDisposed, "prewarm on disposed collection")
	}
	if prototype == nil {
		return errors.New(errors.ErrorTypeValidation, "prewarm of nil prototype")
	}
	p, err := c.resolve(prototype)
	if err != nil {
		return err
	}
	return p.PreWarm(capacity)
}

// Return sends an instance back to whichever pool created it. The
// collection holds no per-instance state of its own; this exists so acquire
// and return share one access point.
func (c *Collection) Return(node host.Node) error {
	return Return(node)
}

// Dispose tears down every owned pool and the collection itself.
// Idempotent.
func (c *Collection) Dispose() {
	if c.disposed {
		return
	}
	for _, p := range c.pools {
		p.Dispose()
	}
	c.pools = make(map[host.Node]*Pool)
	c.host.Destroy(c.root)
	c.disposed = true
	c.log.Debug("collection disposed")
}

// resolve returns the pool for prototype, creating and pre-warming it on
// first sight.
func (c *Collection) resolve(prototype host.Node) (*Pool, error) {
	if p, ok := c.pools[prototype]; ok {
		return p, nil
	}

	p, err := newPool(c.host, prototype, c.cfg, c.log, c.root)
	if err != nil {
		return nil, err
	}
	c.pools[prototype] = p

	capacity := c.cfg.Prewarm.DefaultCapacity
	if v, ok := c.cfg.Prewarm.Capacities[prototype.Name()]; ok {
		capacity = v
	}
	if capacity > 0 {
		if err := p.PreWarm(capacity); err != nil {
			return nil, err
		}
	}
	return p, nil
}
