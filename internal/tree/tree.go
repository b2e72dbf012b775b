package tree

import (
	"fmt"
	"io"
	"strings"
)

// Tree owns a list of root nodes and supplies the default selection mode
// and the layout width.
type Tree struct {
	// Mode is the default selection mode of nodes without an override.
	Mode SelectionMode

	roots    []*Node
	width    int
	onChange Dispatcher
}

// NewTree creates a tree with the given default mode and roots.
func NewTree(mode SelectionMode, roots ...*Node) *Tree {
	t := &Tree{Mode: mode, width: -1}
	t.SetRoots(roots...)
	return t
}

// Roots returns a copy of the root list.
func (t *Tree) Roots() []*Node {
	out := make([]*Node, len(t.roots))
	copy(out, t.roots)
	return out
}

// SetRoots replaces the roots. Roots still owned by a parent are detached
// from it.
func (t *Tree) SetRoots(roots ...*Node) {
	for _, r := range t.roots {
		r.onChange.Unsubscribe(t)
		if r.tree == t {
			r.SetTree(nil)
		}
	}
	t.roots = t.roots[:0:0]
	for _, r := range roots {
		if r == nil {
			continue
		}
		r.Remove()
		r.onChange.Subscribe(t, t.onChange.Dispatch)
		r.SetTree(t)
		r.reconcile()
		t.roots = append(t.roots, r)
	}
}

// AddRoot appends a root node.
func (t *Tree) AddRoot(r *Node) {
	t.SetRoots(append(t.Roots(), r)...)
}

// OnSelectionChange relays the notifications of every root.
func (t *Tree) OnSelectionChange() *Dispatcher { return &t.onChange }

// Width returns the layout width, or -1 when unknown.
func (t *Tree) Width() int { return t.width }

// SetWidth records the layout width reported by the view.
func (t *Tree) SetWidth(w int) { t.width = w }

// Walk visits every node depth-first until fn returns false.
func (t *Tree) Walk(fn func(*Node) bool) {
	for _, r := range t.roots {
		if !r.Walk(fn) {
			return
		}
	}
}

// Find returns the node with the given id, or nil.
func (t *Tree) Find(id string) *Node {
	var found *Node
	t.Walk(func(n *Node) bool {
		if n.id == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Selected collects the selected payloads of all roots.
func (t *Tree) Selected() []any {
	var out []any
	for _, r := range t.roots {
		out = append(out, r.Selected()...)
	}
	return out
}

// SelectNode runs SelectNode on each root until one matches.
func (t *Tree) SelectNode(value any, field string) []*Node {
	for _, r := range t.roots {
		if path := r.SelectNode(value, field); path != nil {
			return path
		}
	}
	return nil
}

// Render renders every root.
func (t *Tree) Render() []*View {
	views := make([]*View, 0, len(t.roots))
	for _, r := range t.roots {
		views = append(views, r.Render())
	}
	return views
}

// Fprint writes an indented text outline of the tree, one node per line,
// prefixed by its selection marker.
func (t *Tree) Fprint(w io.Writer) error {
	var err error
	t.Walk(func(n *Node) bool {
		_, err = fmt.Fprintf(w, "%s%s %s\n", strings.Repeat("  ", n.Depth()-1), marker(n), n.Text())
		return err == nil
	})
	return err
}

func marker(n *Node) string {
	st := n.Status()
	switch n.SelectionMode() {
	case Radio:
		if st == Selected {
			return "(*)"
		}
		return "( )"
	case RadioGroup:
		return "-"
	}
	switch st {
	case Selected:
		return "[x]"
	case Indeterminate:
		return "[-]"
	}
	return "[ ]"
}
