package pool_test

import (
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/prefabpool/pkg/config"
	"github.com/ajitpratap0/prefabpool/pkg/errors"
	"github.com/ajitpratap0/prefabpool/pkg/host"
	"github.com/ajitpratap0/prefabpool/pkg/metrics"
	"github.com/ajitpratap0/prefabpool/pkg/pool"
	"github.com/ajitpratap0/prefabpool/pkg/testutil"
)

// probe records the lifecycle notifications its instance receives. The
// shared counters aggregate across clones so tests can assert over a whole
// pool's population.
type probe struct {
	acquires *int
	returns  *int
	onReturn func()
}

func (p *probe) OnPoolAcquire() { *p.acquires++ }

func (p *probe) OnPoolReturn() {
	*p.returns++
	if p.onReturn != nil {
		p.onReturn()
	}
}

// trail simulates a trail-effect history buffer.
type trail struct {
	points []host.Vec3
}

func (t *trail) ClearTransient() { t.points = t.points[:0] }

type testFixture struct {
	host     *host.MemoryHost
	proto    *host.MemoryNode
	acquires int
	returns  int
	onReturn func()
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{host: host.NewMemoryHost()}
	f.proto = f.host.NewPrototype("rocket",
		func() host.Component {
			return &probe{
				acquires: &f.acquires,
				returns:  &f.returns,
				onReturn: func() {
					if f.onReturn != nil {
						f.onReturn()
					}
				},
			}
		},
	)
	f.host.AddChild(f.proto, "exhaust",
		func() host.Component { return &trail{} },
	)
	return f
}

func (f *testFixture) newPool(t *testing.T) *pool.Pool {
	t.Helper()
	p, err := pool.NewPool(f.host, f.proto, nil, testutil.TestLogger(t))
	require.NoError(t, err)
	return p
}

func TestNewPoolPreconditions(t *testing.T) {
	f := newFixture(t)

	_, err := pool.NewPool(nil, f.proto, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypePrecondition))

	_, err = pool.NewPool(f.host, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypePrecondition))
}

func TestAcquireUniqueInstances(t *testing.T) {
	f := newFixture(t)
	p := f.newPool(t)

	seen := make(map[host.Node]bool)
	for i := 0; i < 10; i++ {
		lease, err := p.Acquire()
		require.NoError(t, err)
		require.True(t, lease.Valid())
		assert.False(t, seen[lease.Node()], "instance handed out twice")
		seen[lease.Node()] = true
	}
	assert.Equal(t, 10, p.ActiveCount())
	assert.Equal(t, 0, p.ReserveCount())
}

func TestAcquireReturnReuse(t *testing.T) {
	f := newFixture(t)
	p := f.newPool(t)

	first, err := p.Acquire()
	require.NoError(t, err)
	node := first.Node()

	require.NoError(t, p.Return(node))
	assert.False(t, first.Valid(), "lease must die on return")

	second, err := p.Acquire()
	require.NoError(t, err)
	assert.Same(t, node, second.Node(), "reserve must be reused before cloning")
	assert.NotSame(t, first, second, "leases are never recycled")
	assert.True(t, second.Valid())
}

func TestRecencyBiasReuse(t *testing.T) {
	f := newFixture(t)
	p := f.newPool(t)

	a, _ := p.Acquire()
	b, _ := p.Acquire()
	c, _ := p.Acquire()

	require.NoError(t, p.Return(b.Node()))
	require.NoError(t, p.Return(a.Node()))

	next, err := p.Acquire()
	require.NoError(t, err)
	assert.Same(t, a.Node(), next.Node(), "most recently returned comes back first")

	next, err = p.Acquire()
	require.NoError(t, err)
	assert.Same(t, b.Node(), next.Node())

	assert.True(t, c.Valid(), "untouched checkout keeps its lease")
}

func TestConservation(t *testing.T) {
	f := newFixture(t)
	p := f.newPool(t)

	check := func() {
		t.Helper()
		assert.Equal(t, p.TotalCount(), p.ActiveCount()+p.ReserveCount())
	}

	require.NoError(t, p.PreWarm(3))
	check()

	var leases []*pool.Lease
	for i := 0; i < 7; i++ {
		lease, err := p.Acquire()
		require.NoError(t, err)
		leases = append(leases, lease)
		check()
	}
	for _, lease := range leases {
		require.NoError(t, p.Return(lease.Node()))
		check()
	}
	require.NoError(t, p.PreWarm(10))
	check()
	assert.Equal(t, 10, p.TotalCount())
}

func TestDoubleReturnIsGuardedNoOp(t *testing.T) {
	f := newFixture(t)
	p := f.newPool(t)

	lease, _ := p.Acquire()
	node := lease.Node()

	require.NoError(t, p.Return(node))
	reserveAfterFirst := p.ReserveCount()

	require.NoError(t, p.Return(node), "double return must not error")
	assert.Equal(t, reserveAfterFirst, p.ReserveCount(), "reserve grows by exactly one")
	assert.Equal(t, 1, f.returns, "no second return notification")
}

func TestPreWarmFloor(t *testing.T) {
	f := newFixture(t)
	p := f.newPool(t)

	require.NoError(t, p.PreWarm(5))
	assert.GreaterOrEqual(t, p.ReserveCount(), 5)
	assert.Equal(t, 0, p.ActiveCount())
	assert.Equal(t, 0, f.acquires, "prewarmed instances are not acquired")

	// PreWarm counts outstanding checkouts toward the target.
	lease, _ := p.Acquire()
	require.NoError(t, p.PreWarm(5))
	assert.Equal(t, 4, p.ReserveCount())
	require.NoError(t, p.Return(lease.Node()))
}

func TestCrossPoolRejection(t *testing.T) {
	f := newFixture(t)
	poolA := f.newPool(t)

	protoB := f.host.NewPrototype("grenade")
	poolB, err := pool.NewPool(f.host, protoB, nil, testutil.TestLogger(t))
	require.NoError(t, err)

	lease, _ := poolA.Acquire()

	err = poolB.Return(lease.Node())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeOwnership))
	assert.Equal(t, 0, poolB.ReserveCount(), "foreign instance must never enter reserve")
	assert.True(t, lease.Valid(), "rejected return leaves the checkout intact in pool A")

	require.NoError(t, poolA.Return(lease.Node()))
}

func TestReturnWithValidationOff(t *testing.T) {
	f := newFixture(t)
	cfg := config.NewConfig()
	cfg.Validation.Mode = config.ValidationOff

	p, err := pool.NewPool(f.host, f.proto, cfg, testutil.TestLogger(t))
	require.NoError(t, err)

	// With checks off, a foreign instance falls through to the active-set
	// search and surfaces as not-found rather than ownership.
	stranger := f.host.NewPrototype("stranger")
	err = p.Return(f.host.Instantiate(stranger, nil))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestReturnNeverAcquired(t *testing.T) {
	f := newFixture(t)
	p := f.newPool(t)

	orphan := f.host.Instantiate(f.proto, nil)
	err := p.Return(orphan)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeOwnership),
		"instance without an ownership tag is rejected")
}

func TestReturnNil(t *testing.T) {
	f := newFixture(t)
	p := f.newPool(t)

	err := p.Return(nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestDisposalTerminality(t *testing.T) {
	f := newFixture(t)
	p := f.newPool(t)

	lease, _ := p.Acquire()
	node := lease.Node().(*host.MemoryNode)
	require.NoError(t, p.PreWarm(3))

	p.Dispose()
	assert.True(t, p.Disposed())
	assert.False(t, lease.Valid(), "disposal ends every outstanding lease")

	_, err := p.Acquire()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDisposed))

	err = p.PreWarm(2)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDisposed))

	// Returning to a dead pool destroys the instance instead of reviving
	// anything.
	require.NoError(t, p.Return(node))
	assert.False(t, node.Alive())
	assert.Equal(t, 0, p.ReserveCount())

	p.Dispose() // idempotent
}

func TestNotificationOrdering(t *testing.T) {
	f := newFixture(t)
	p := f.newPool(t)

	lease, _ := p.Acquire()
	assert.Equal(t, 1, f.acquires)

	f.onReturn = func() {
		// The instance must not be eligible for re-acquisition while its
		// return notification runs.
		assert.Equal(t, 0, p.ReserveCount())
		assert.Equal(t, 1, p.ActiveCount())
	}
	require.NoError(t, p.Return(lease.Node()))
	f.onReturn = nil

	assert.Equal(t, 1, f.returns, "return notification fires exactly once")
	assert.Equal(t, 1, p.ReserveCount())
}

func TestReentrantReturnCallback(t *testing.T) {
	f := newFixture(t)
	p := f.newPool(t)

	outer, _ := p.Acquire()

	var nested *pool.Lease
	f.onReturn = func() {
		if nested != nil {
			return
		}
		var err error
		nested, err = p.Acquire()
		require.NoError(t, err)
	}
	require.NoError(t, p.Return(outer.Node()))
	f.onReturn = nil

	require.NotNil(t, nested)
	assert.NotSame(t, outer.Node(), nested.Node(),
		"the instance being returned is not yet reusable inside its own callback")
	assert.Equal(t, p.TotalCount(), p.ActiveCount()+p.ReserveCount())

	require.NoError(t, p.Return(nested.Node()))
	assert.Equal(t, 2, p.ReserveCount())
}

func TestTransientStateCleared(t *testing.T) {
	f := newFixture(t)
	p := f.newPool(t)

	lease, _ := p.Acquire()
	node := lease.Node().(*host.MemoryNode)

	var tr *trail
	for _, c := range f.host.Components(node) {
		if candidate, ok := c.(*trail); ok {
			tr = candidate
		}
	}
	require.NotNil(t, tr)

	tr.points = append(tr.points, host.Vec3{X: 1}, host.Vec3{X: 2})
	require.NoError(t, p.Return(node))

	again, _ := p.Acquire()
	require.Same(t, node, again.Node())
	assert.Empty(t, tr.points, "effect history must not leak across checkouts")
}

func TestStructuralDriftWarning(t *testing.T) {
	f := newFixture(t)
	log, logs := testutil.ObservedLogger(zap.WarnLevel)

	p, err := pool.NewPool(f.host, f.proto, nil, log)
	require.NoError(t, err)

	lease, _ := p.Acquire()
	node := lease.Node().(*host.MemoryNode)
	require.NoError(t, p.Return(node))

	// Mutating a pooled clone's component set after creation is illegal;
	// the pool must warn and keep running on its stale cache.
	extra := 0
	node.AddComponent(&probe{acquires: &extra, returns: &extra})

	again, err := p.Acquire()
	require.NoError(t, err)
	require.Same(t, node, again.Node())

	drift := logs.FilterMessage("pooled instance component set changed since creation")
	assert.Equal(t, 1, drift.Len())
	assert.Equal(t, 0, extra, "stale cache means the new component is never notified")
}

func TestClearDestroysReserveOnly(t *testing.T) {
	f := newFixture(t)
	p := f.newPool(t)

	lease, _ := p.Acquire()
	active := lease.Node().(*host.MemoryNode)
	require.NoError(t, p.PreWarm(4))
	reserved := make([]*host.MemoryNode, 0, 3)
	for i := 0; i < 3; i++ {
		l, _ := p.Acquire()
		reserved = append(reserved, l.Node().(*host.MemoryNode))
	}
	for _, n := range reserved {
		require.NoError(t, p.Return(n))
	}

	p.Clear()
	assert.Equal(t, 0, p.ReserveCount())
	assert.Equal(t, 1, p.ActiveCount())
	assert.True(t, active.Alive(), "active instances are still owned externally")
	for _, n := range reserved {
		assert.False(t, n.Alive())
	}

	// A cleared pool keeps working.
	next, err := p.Acquire()
	require.NoError(t, err)
	require.NoError(t, p.Return(next.Node()))
}

func TestPackageLevelReturn(t *testing.T) {
	f := newFixture(t)
	p := f.newPool(t)

	lease, _ := p.Acquire()
	assert.Same(t, p, pool.Owner(lease.Node()))

	require.NoError(t, pool.Return(lease.Node()))
	assert.Equal(t, 1, p.ReserveCount())

	err := pool.Return(f.host.NewRoot("untracked"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestMetricsRecording(t *testing.T) {
	h := host.NewMemoryHost()
	proto := h.NewPrototype("metered")
	cfg := config.NewConfig()
	cfg.Observability.EnableMetrics = true

	p, err := pool.NewPool(h, proto, cfg, testutil.TestLogger(t))
	require.NoError(t, err)

	created := metrics.InstancesCreated.WithLabelValues("metered")
	activeGauge := metrics.Instances.WithLabelValues("metered", "active")
	reserveGauge := metrics.Instances.WithLabelValues("metered", "reserve")

	require.NoError(t, p.PreWarm(2))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(created))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(reserveGauge))

	first, err := p.Acquire()
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := p.Acquire()
		require.NoError(t, err)
	}

	assert.Equal(t, 2.0, promtestutil.ToFloat64(
		metrics.Acquisitions.WithLabelValues("metered", "reserve")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(
		metrics.Acquisitions.WithLabelValues("metered", "new")))
	assert.Equal(t, 3.0, promtestutil.ToFloat64(created))
	assert.Equal(t, 3.0, promtestutil.ToFloat64(activeGauge))
	assert.Equal(t, 0.0, promtestutil.ToFloat64(reserveGauge))

	require.NoError(t, p.Return(first.Node()))
	require.NoError(t, p.Return(first.Node()))

	assert.Equal(t, 1.0, promtestutil.ToFloat64(
		metrics.Returns.WithLabelValues("metered", "recycled")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(
		metrics.Returns.WithLabelValues("metered", "double_return")))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(activeGauge))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(reserveGauge))

	p.Dispose()
	assert.Equal(t, 1.0, promtestutil.ToFloat64(
		metrics.InstancesDestroyed.WithLabelValues("metered")))
	assert.Equal(t, 0.0, promtestutil.ToFloat64(activeGauge))
	assert.Equal(t, 0.0, promtestutil.ToFloat64(reserveGauge))
}

func BenchmarkAcquireReturn(b *testing.B) {
	h := host.NewMemoryHost()
	proto := h.NewPrototype("spark",
		func() host.Component { return &trail{} },
	)
	cfg := config.NewConfig()
	cfg.Validation.Mode = config.ValidationOff

	p, err := pool.NewPool(h, proto, cfg, zap.NewNop())
	if err != nil {
		b.Fatal(err)
	}
	if err := p.PreWarm(1); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lease, err := p.Acquire()
		if err != nil {
			b.Fatal(err)
		}
		if err := p.Return(lease.Node()); err != nil {
			b.Fatal(err)
		}
	}
}
