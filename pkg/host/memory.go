package host

import (
	"github.com/ajitpratap0/prefabpool/pkg/errors"
	stringpool "github.com/ajitpratap0/prefabpool/pkg/strings"
)

// ComponentFactory produces a fresh component for each clone of a prototype
// node. Factories are the memory host's initialization hook: they run
// synchronously during Instantiate.
type ComponentFactory func() Component

// MemoryNode is the node type of MemoryHost. It models the minimum hierarchy
// a component framework needs: name, parent/children, active flag, local
// transform, and an ordered component list.
type MemoryNode struct {
	host      *MemoryHost
	name      string
	parent    *MemoryNode
	children  []*MemoryNode
	active    bool
	position  Vec3
	rotation  Quat
	comps     []Component
	factories []ComponentFactory
	alive     bool
}

// Name returns the node's name.
func (n *MemoryNode) Name() string { return n.name }

// Active reports whether the node is enabled.
func (n *MemoryNode) Active() bool { return n.active }

// Alive reports whether the node has not been destroyed.
func (n *MemoryNode) Alive() bool { return n.alive }

// Parent returns the node's parent, nil at the hierarchy root.
func (n *MemoryNode) Parent() *MemoryNode { return n.parent }

// LocalPosition returns the node's position relative to its parent.
func (n *MemoryNode) LocalPosition() Vec3 { return n.position }

// LocalRotation returns the node's rotation relative to its parent.
func (n *MemoryNode) LocalRotation() Quat { return n.rotation }

// Components returns the node's own components (not its descendants').
func (n *MemoryNode) Components() []Component { return n.comps }

// AddComponent attaches a component to the node after creation. Doing this
// to a pooled clone invalidates the pool's cached component list and is
// flagged as structural drift in validation mode.
func (n *MemoryNode) AddComponent(c Component) {
	n.comps = append(n.comps, c)
}

// MemoryHost is an in-memory Host implementation backing the test suite and
// the poolbench tool. It is not safe for concurrent use, matching the
// single-threaded contract of the pools themselves.
type MemoryHost struct {
	liveCount int
	nextClone int
}

// NewMemoryHost creates an empty in-memory host.
func NewMemoryHost() *MemoryHost {
	return &MemoryHost{}
}

// LiveCount returns the number of nodes that have been created and not yet
// destroyed, counting every node in every hierarchy.
func (h *MemoryHost) LiveCount() int { return h.liveCount }

// NewPrototype creates a detached, inactive template node. Each factory is
// invoked once per clone to produce that clone's components; the prototype
// itself carries one representative instance of each so component discovery
// works on prototypes too.
func (h *MemoryHost) NewPrototype(name string, factories ...ComponentFactory) *MemoryNode {
	n := h.newNode(name)
	n.active = false
	n.factories = factories
	for _, f := range factories {
		n.comps = append(n.comps, f())
	}
	return n
}

// AddChild attaches a new child node to a prototype (or any other node),
// with its own component factories.
func (h *MemoryHost) AddChild(parent Node, name string, factories ...ComponentFactory) *MemoryNode {
	p := h.memoryNode(parent)
	n := h.newNode(name)
	n.factories = factories
	for _, f := range factories {
		n.comps = append(n.comps, f())
	}
	n.parent = p
	p.children = append(p.children, n)
	return n
}

// NewRoot creates an empty detached node.
func (h *MemoryHost) NewRoot(name string) Node {
	return h.newNode(name)
}

// Instantiate deep-clones the prototype tree under parent. Component
// factories run synchronously for every cloned node.
func (h *MemoryHost) Instantiate(prototype, parent Node) Node {
	proto := h.memoryNode(prototype)
	h.nextClone++
	clone := h.cloneTree(proto, stringpool.Sprintf("%s#%d", proto.name, h.nextClone))
	if parent != nil {
		p := h.memoryNode(parent)
		clone.parent = p
		p.children = append(p.children, clone)
	}
	return clone
}

func (h *MemoryHost) cloneTree(proto *MemoryNode, name string) *MemoryNode {
	clone := h.newNode(name)
	clone.active = proto.active
	clone.position = proto.position
	clone.rotation = proto.rotation
	clone.factories = proto.factories
	for _, f := range proto.factories {
		clone.comps = append(clone.comps, f())
	}
	for _, child := range proto.children {
		c := h.cloneTree(child, child.name)
		c.parent = clone
		clone.children = append(clone.children, c)
	}
	return clone
}

// Destroy tears down node and all its descendants.
func (h *MemoryHost) Destroy(node Node) {
	n := h.memoryNode(node)
	if !n.alive {
		return
	}
	h.detach(n)
	h.destroyTree(n)
}

func (h *MemoryHost) destroyTree(n *MemoryNode) {
	for _, child := range n.children {
		h.destroyTree(child)
	}
	n.children = nil
	n.comps = nil
	n.parent = nil
	n.alive = false
	h.liveCount--
}

// SetActive enables or disables the node.
func (h *MemoryHost) SetActive(node Node, active bool) {
	h.memoryNode(node).active = active
}

// SetParent re-parents the node. The memory host has no world space, so
// preserveWorld is accepted and ignored.
func (h *MemoryHost) SetParent(node, parent Node, _ bool) {
	n := h.memoryNode(node)
	h.detach(n)
	if parent == nil {
		return
	}
	p := h.memoryNode(parent)
	n.parent = p
	p.children = append(p.children, n)
}

// SetLocalTransform places the node relative to its parent.
func (h *MemoryHost) SetLocalTransform(node Node, position Vec3, rotation Quat) {
	n := h.memoryNode(node)
	n.position = position
	n.rotation = rotation
}

// Components returns the components of node and its descendants in
// depth-first order, regardless of active state.
func (h *MemoryHost) Components(node Node) []Component {
	n := h.memoryNode(node)
	var out []Component
	var walk func(*MemoryNode)
	walk = func(m *MemoryNode) {
		out = append(out, m.comps...)
		for _, child := range m.children {
			walk(child)
		}
	}
	walk(n)
	return out
}

func (h *MemoryHost) newNode(name string) *MemoryNode {
	h.liveCount++
	return &MemoryNode{
		host:     h,
		name:     name,
		active:   true,
		rotation: IdentityQuat(),
		alive:    true,
	}
}

func (h *MemoryHost) detach(n *MemoryNode) {
	if n.parent == nil {
		return
	}
	siblings := n.parent.children
	for i, s := range siblings {
		if s == n {
			n.parent.children = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	n.parent = nil
}

func (h *MemoryHost) memoryNode(node Node) *MemoryNode {
	n, ok := node.(*MemoryNode)
	if !ok || n.host != h {
		// Mixing nodes across hosts is a programmer error with no sane
		// recovery path.
		panic(errors.Newf(errors.ErrorTypePrecondition,
			"node %q does not belong to this host", node.Name()))
	}
	return n
}
