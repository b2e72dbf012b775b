// Package tree implements a hierarchical selection widget: nodes carrying an
// application payload, checkbox/radio/single selection semantics with
// tri-state aggregation, and a server-side view model for rendering.
//
// A tree is driven from a single goroutine. Nothing in this package locks;
// callers that share a tree between goroutines must serialize access.
package tree

import (
	"fmt"
	"sync/atomic"

	"github.com/joeblew999/plat-mapview/internal/logging"
)

var log = logging.NewLogger("tree")

// SelectionMode is the policy governing how a node and its children select.
type SelectionMode int

const (
	// Inherit means no override: the mode comes from the nearest ancestor,
	// then the tree default, then Single.
	Inherit SelectionMode = iota
	Multi
	Single
	Radio
	RadioGroup
)

func (m SelectionMode) String() string {
	switch m {
	case Inherit:
		return "inherit"
	case Multi:
		return "multi"
	case Single:
		return "single"
	case Radio:
		return "radio"
	case RadioGroup:
		return "radio-group"
	}
	return fmt.Sprintf("SelectionMode(%d)", int(m))
}

// SelectionStatus is the tri-state selection value of a node.
type SelectionStatus int

const (
	Unselected SelectionStatus = iota
	Selected
	Indeterminate
)

func (s SelectionStatus) String() string {
	switch s {
	case Unselected:
		return "unselected"
	case Selected:
		return "selected"
	case Indeterminate:
		return "indeterminate"
	}
	return fmt.Sprintf("SelectionStatus(%d)", int(s))
}

// Params configures a node at construction. The zero value is usable.
type Params struct {
	// Renderer produces the node label. Defaults to DefaultRenderer.
	Renderer Renderer
	// Actions are rendered as icons next to the label when authorized.
	Actions []*Action
	// HideEmptyNode hides the node while it has no children.
	HideEmptyNode bool
	// Mode overrides the inherited selection mode.
	Mode SelectionMode
	// Selected is the initial selection flag. A node with children that
	// resolves to Multi mode takes the aggregate of its children instead.
	Selected bool
}

var nodeSeq atomic.Uint64

// Node is a unit of the selection tree. A node exclusively owns its
// children; the parent reference is a non-owning back pointer kept in step
// with the child's subscription to the parent.
type Node struct {
	// Data is the opaque application payload.
	Data any

	id        string
	seq       uint64
	parent    *Node
	children  []*Node
	tree      *Tree
	renderer  Renderer
	actions   []*Action
	hideEmpty bool
	mode      SelectionMode
	selected  bool
	radio     bool
	expanded  bool

	control  *Control
	view     *View
	onChange Dispatcher
}

// New creates a node and wires the given children to it.
func New(data any, children []*Node, params Params) *Node {
	seq := nodeSeq.Add(1)
	n := &Node{
		Data:      data,
		id:        fmt.Sprintf("n%d", seq),
		seq:       seq,
		renderer:  params.Renderer,
		actions:   params.Actions,
		hideEmpty: params.HideEmptyNode,
		mode:      params.Mode,
		selected:  params.Selected,
	}
	if n.renderer == nil {
		n.renderer = DefaultRenderer
	}
	for _, c := range children {
		if c == nil || c == n || n.contains(c) {
			continue
		}
		n.attach(c)
		n.children = append(n.children, c)
	}
	for _, a := range n.actions {
		if a != nil {
			a.addListener(n.actionChanged)
		}
	}
	n.reconcileSelf()
	return n
}

// NewRadioGroup creates a node whose direct children are mutually
// exclusive. The group runs in RadioGroup mode and every child, including
// children attached later, is forced into Radio mode.
func NewRadioGroup(data any, children []*Node, params Params) *Node {
	n := New(data, children, params)
	n.mode = RadioGroup
	n.radio = true
	for _, c := range n.children {
		c.mode = Radio
		c.reconcile()
	}
	n.reconcileSelf()
	return n
}

// ID returns the node identifier, unique within the process.
func (n *Node) ID() string { return n.id }

// Parent returns the owning node, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns a copy of the child list.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Tree returns the tree the node belongs to, if any.
func (n *Node) Tree() *Tree { return n.tree }

// IsRadioGroup reports whether the node enforces exclusivity among its
// children.
func (n *Node) IsRadioGroup() bool { return n.radio }

// OnSelectionChange is the node's notification channel. It fires with the
// event source and its status on every selection status change.
func (n *Node) OnSelectionChange() *Dispatcher { return &n.onChange }

// Mode returns the node's own mode override.
func (n *Node) Mode() SelectionMode { return n.mode }

// SetMode sets the node's mode override. Inherit clears it.
func (n *Node) SetMode(m SelectionMode) {
	n.mode = m
	n.reconcile()
	n.refresh()
}

// SelectionMode returns the effective mode: the node's override, else the
// nearest ancestor's, else the tree default, else Single.
func (n *Node) SelectionMode() SelectionMode {
	for p := n; p != nil; p = p.parent {
		if p.mode != Inherit {
			return p.mode
		}
		if p.parent == nil && p.tree != nil && p.tree.Mode != Inherit {
			return p.tree.Mode
		}
	}
	return Single
}

// SetTree assigns the tree to the node and all of its descendants.
func (n *Node) SetTree(t *Tree) {
	n.tree = t
	for _, c := range n.children {
		c.SetTree(t)
	}
}

// Width returns the layout width of the owning tree, or -1 when the node is
// not part of a tree.
func (n *Node) Width() int {
	if n.tree != nil {
		return n.tree.Width()
	}
	return -1
}

// Walk visits the node and its descendants depth-first until fn returns
// false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Expanded reports whether the node's children are shown.
func (n *Node) Expanded() bool { return n.expanded }

// Expand shows the node's children.
func (n *Node) Expand() {
	if len(n.children) == 0 || n.expanded {
		return
	}
	n.expanded = true
	n.refresh()
}

// ToggleExpanded flips the expand state of a node with children and reports
// the new state.
func (n *Node) ToggleExpanded() bool {
	if len(n.children) == 0 {
		return false
	}
	n.expanded = !n.expanded
	n.refresh()
	return n.expanded
}

// contains reports whether c is a direct child of n.
func (n *Node) contains(c *Node) bool {
	for _, x := range n.children {
		if x == c {
			return true
		}
	}
	return false
}
