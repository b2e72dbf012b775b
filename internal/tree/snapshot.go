package tree

// Snapshot is a serializable copy of a node and its subtree.
type Snapshot struct {
	ID       string     `json:"id" doc:"Node identifier" example:"n12"`
	Label    string     `json:"label" doc:"Plain-text label"`
	Data     any        `json:"data,omitempty" doc:"Node payload"`
	Mode     string     `json:"mode" doc:"Effective selection mode" enum:"multi,single,radio,radio-group"`
	Status   string     `json:"status" doc:"Selection status" enum:"selected,unselected,indeterminate"`
	Expanded bool       `json:"expanded" doc:"Whether children are shown"`
	Children []Snapshot `json:"children,omitempty" doc:"Child nodes"`
}

// Snapshot copies the node's current state.
func (n *Node) Snapshot() Snapshot {
	s := Snapshot{
		ID:       n.id,
		Label:    n.Text(),
		Data:     n.Data,
		Mode:     n.SelectionMode().String(),
		Status:   n.Status().String(),
		Expanded: n.expanded,
	}
	for _, c := range n.children {
		s.Children = append(s.Children, c.Snapshot())
	}
	return s
}

// Snapshot copies every root.
func (t *Tree) Snapshot() []Snapshot {
	out := make([]Snapshot, 0, len(t.roots))
	for _, r := range t.roots {
		out = append(out, r.Snapshot())
	}
	return out
}
