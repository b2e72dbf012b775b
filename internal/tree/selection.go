package tree

import "slices"

// ControlKind is the toggle a node materializes in Multi or Radio mode.
type ControlKind int

const (
	NoControl ControlKind = iota
	Checkbox
	RadioButton
)

// String returns the HTML input type of the control.
func (k ControlKind) String() string {
	switch k {
	case Checkbox:
		return "checkbox"
	case RadioButton:
		return "radio"
	}
	return ""
}

// Control is the backing toggle of a node. Once materialized its flags are
// the authoritative selection state of the node.
type Control struct {
	Kind          ControlKind
	ID            string
	Checked       bool
	Indeterminate bool
}

func controlKind(m SelectionMode) ControlKind {
	switch m {
	case Multi:
		return Checkbox
	case Radio:
		return RadioButton
	}
	return NoControl
}

// ensureControl materializes the backing control when the effective mode
// has an aggregate representation and returns it, or nil otherwise.
func (n *Node) ensureControl() *Control {
	kind := controlKind(n.SelectionMode())
	if kind == NoControl {
		return nil
	}
	if n.control == nil {
		n.control = &Control{
			ID:      "lsw_cb" + n.controlKey(),
			Checked: n.selected,
		}
	}
	n.control.Kind = kind
	return n.control
}

func (n *Node) controlKey() string {
	if v, ok := fieldValue(n.Data, "id"); ok {
		if s := toString(v); s != "" {
			return s
		}
	}
	return n.id
}

// Control returns the materialized backing control, or nil.
func (n *Node) Control() *Control {
	if kind := controlKind(n.SelectionMode()); kind == NoControl {
		return nil
	}
	return n.control
}

// IsSelected reports the checked flag of the backing control when present,
// else the raw selection flag.
func (n *Node) IsSelected() bool {
	if n.control != nil {
		return n.control.Checked
	}
	return n.selected
}

// Status returns the tri-state selection status. Indeterminate is only
// possible through a backing control.
func (n *Node) Status() SelectionStatus {
	if c := n.control; c != nil {
		if !c.Checked {
			return Unselected
		}
		if c.Indeterminate {
			return Indeterminate
		}
		return Selected
	}
	if n.selected {
		return Selected
	}
	return Unselected
}

// holds reports whether the node already is in the requested state. An
// indeterminate node holds neither value.
func (n *Node) holds(selected bool) bool {
	if selected {
		return n.Status() == Selected
	}
	return n.Status() == Unselected
}

// SetSelected requests a selection change. It is a no-op when the node
// already holds the value. In Single mode only the node's own flag changes;
// in every other mode the value cascades to all children first. The node
// then notifies its subscribers.
func (n *Node) SetSelected(selected bool) {
	if n.holds(selected) {
		return
	}
	log.Debugf("setSelected %s %v => %v", n.id, n.selected, selected)

	if n.SelectionMode() == Single {
		n.selected = selected
	} else {
		if c := n.ensureControl(); c != nil {
			c.Checked = selected
			c.Indeterminate = false
		}
		for _, c := range slices.Clone(n.children) {
			c.SetSelected(selected)
		}
		n.selected = selected
	}
	n.refresh()

	status := Unselected
	if selected {
		status = Selected
	}
	n.onChange.Dispatch(n, status)
}

// StatusOfChildren aggregates the statuses of the direct children: any
// indeterminate child makes the result indeterminate, otherwise it is
// unselected for zero selected children, selected for all of them and
// indeterminate in between. A node without children is unselected.
func (n *Node) StatusOfChildren() SelectionStatus {
	count := 0
	for _, c := range n.children {
		switch c.Status() {
		case Selected:
			count++
		case Indeterminate:
			return Indeterminate
		}
	}
	switch {
	case count == 0:
		return Unselected
	case count < len(n.children):
		return Indeterminate
	}
	return Selected
}

// childSelected is subscribed to every direct child.
func (n *Node) childSelected(child *Node, status SelectionStatus) {
	log.Debugf("childSelected %s child=%s %s", n.id, child.id, status)

	if n.radio {
		n.radioChildSelected(child)
		return
	}

	c := n.ensureControl()
	if c == nil {
		// Pass-through: relay the child's event unchanged.
		n.onChange.Dispatch(child, status)
		return
	}

	agg := n.applyAggregate(c)
	n.onChange.Dispatch(n, agg)
}

func (n *Node) applyAggregate(c *Control) SelectionStatus {
	agg := n.StatusOfChildren()
	c.Checked = agg != Unselected
	c.Indeterminate = agg == Indeterminate
	n.selected = c.Checked
	n.refresh()
	return agg
}

// resync recomputes the aggregate after a structural change and notifies
// subscribers if it moved.
func (n *Node) resync() {
	if len(n.children) == 0 {
		return
	}
	if n.radio {
		n.keepOneRadio()
		return
	}
	c := n.ensureControl()
	if c == nil || n.StatusOfChildren() == n.Status() {
		return
	}
	n.onChange.Dispatch(n, n.applyAggregate(c))
}

// reconcile brings the subtree in line with the aggregate rule, bottom up
// and without notifications. It runs when a subtree is built or attached,
// since initial flags and inherited modes are only known then. For an
// aggregate node the children win over its own initial flag.
func (n *Node) reconcile() {
	for _, c := range n.children {
		c.reconcile()
	}
	n.reconcileSelf()
}

func (n *Node) reconcileSelf() {
	if len(n.children) == 0 {
		return
	}
	if n.radio {
		n.keepOneRadio()
		return
	}
	if c := n.ensureControl(); c != nil {
		n.applyAggregate(c)
	}
}

// keepOneRadio deselects every selected child of a radio group but the
// first.
func (n *Node) keepOneRadio() {
	kept := false
	for _, c := range slices.Clone(n.children) {
		if !c.IsSelected() {
			continue
		}
		if kept {
			c.SetSelected(false)
		}
		kept = true
	}
}

func (n *Node) radioChildSelected(child *Node) {
	if !child.IsSelected() {
		return
	}
	for _, s := range slices.Clone(n.children) {
		if s != child {
			s.SetSelected(false)
		}
	}
	n.onChange.Dispatch(child, Selected)
}

// Selected returns, depth-first, the payloads of every fully selected node
// reachable through selected ancestors. Descent stops at an unselected
// node; indeterminate nodes are skipped but their children are visited.
func (n *Node) Selected() []any {
	if !n.IsSelected() {
		return nil
	}
	var out []any
	if n.Status() == Selected {
		out = append(out, n.Data)
	}
	for _, c := range n.children {
		out = append(out, c.Selected()...)
	}
	return out
}

// Click handles a click on the node row. Only leaves in Single mode react:
// they toggle their selection. It reports whether the click had an effect.
func (n *Node) Click() bool {
	if len(n.children) > 0 || n.SelectionMode() != Single {
		return false
	}
	n.SetSelected(!n.selected)
	return true
}

// ControlChanged handles the user toggling the backing control. A node with
// children pushes the value to each child and lets the aggregate follow; a
// leaf selects itself.
func (n *Node) ControlChanged(checked bool) {
	if len(n.children) == 0 {
		n.SetSelected(checked)
		return
	}
	for _, c := range slices.Clone(n.children) {
		c.SetSelected(checked)
	}
}
