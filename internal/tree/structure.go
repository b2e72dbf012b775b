package tree

import (
	"errors"
	"slices"
)

var (
	// ErrCycle is returned when a node would become its own descendant.
	ErrCycle = errors.New("tree: node cannot be attached below itself")
	// ErrNilNode is returned when a nil child is attached.
	ErrNilNode = errors.New("tree: nil node")
)

// attach links c to n: the subscription and the parent reference are set
// together. A child owned by another node is released from it first.
func (n *Node) attach(c *Node) {
	if c.parent != nil && c.parent != n {
		c.parent.release(c)
	}
	c.onChange.Subscribe(n, n.childSelected)
	c.parent = n
	if n.radio {
		c.mode = Radio
	}
	c.SetTree(n.tree)
	c.reconcile()
}

// detach undoes attach: the subscription and the parent reference are
// cleared together.
func (n *Node) detach(c *Node) {
	c.onChange.Unsubscribe(n)
	if c.parent == n {
		c.parent = nil
	}
}

// release removes c from n's children when c moves to another parent.
func (n *Node) release(c *Node) {
	if !n.contains(c) {
		n.detach(c)
		return
	}
	n.detach(c)
	n.children = slices.DeleteFunc(slices.Clone(n.children), func(x *Node) bool { return x == c })
	n.Rerender()
	n.resync()
}

func (n *Node) checkAttach(c *Node) error {
	if c == nil {
		return ErrNilNode
	}
	for p := n; p != nil; p = p.parent {
		if p == c {
			return ErrCycle
		}
	}
	return nil
}

// AddChild appends child and wires it. If the node is already rendered the
// child's view is attached incrementally and the node's own affordances
// (depth, leaf flag, expand indicator) are recomputed without re-rendering
// the siblings. Adding a current child again is a no-op.
func (n *Node) AddChild(child *Node) error {
	if err := n.checkAttach(child); err != nil {
		return err
	}
	if n.contains(child) {
		return nil
	}
	n.attach(child)
	n.children = append(n.children, child)

	if n.view != nil {
		n.view.Children = append(n.view.Children, child.Render())
		n.refresh()
	}
	n.resync()
	return nil
}

// SetChildren replaces all children. Old children are unsubscribed and
// detached before the new ones are wired; a rendered node re-renders its
// whole subtree.
func (n *Node) SetChildren(children []*Node) error {
	for _, c := range children {
		if err := n.checkAttach(c); err != nil {
			return err
		}
	}

	old := n.children
	for _, c := range old {
		n.detach(c)
	}
	n.children = nil
	for _, c := range children {
		if n.contains(c) {
			continue
		}
		n.attach(c)
		n.children = append(n.children, c)
	}
	for _, c := range old {
		if c.parent == nil {
			c.Dispose()
		}
	}

	if len(n.children) == 0 {
		n.expanded = false
	}
	n.Rerender()
	n.resync()
	return nil
}

// RemoveChild unsubscribes and detaches target, drops it from the child
// list and disposes its view. Removing a node that is not a child is a
// no-op.
func (n *Node) RemoveChild(target *Node) {
	if target == nil || !n.contains(target) {
		return
	}
	n.detach(target)
	n.children = slices.DeleteFunc(slices.Clone(n.children), func(c *Node) bool { return c == target })
	target.Dispose()

	if len(n.children) == 0 {
		n.expanded = false
	}
	n.Rerender()
	n.resync()
}

// Remove detaches the node from its parent, if any.
func (n *Node) Remove() {
	if n.parent != nil {
		n.parent.RemoveChild(n)
	}
}

// TreePath returns the chain from the root down to node, inclusive.
func TreePath(node *Node) []*Node {
	var path []*Node
	for p := node; p != nil; p = p.parent {
		path = append(path, p)
	}
	slices.Reverse(path)
	return path
}

// Depth returns the nesting depth of the node; roots have depth 1.
func (n *Node) Depth() int {
	d := 0
	for p := n; p != nil; p = p.parent {
		d++
	}
	return d
}
