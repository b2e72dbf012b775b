package tree

// Action is an icon shown next to a node label. Only authorized actions are
// rendered; activating one calls Callback with the node payload.
type Action struct {
	Icon       string
	Authorized bool
	Callback   func(data any)

	listeners []func()
}

func (a *Action) addListener(fn func()) {
	a.listeners = append(a.listeners, fn)
}

// Changed tells every node carrying the action to re-render, e.g. after
// Authorized or Icon changed.
func (a *Action) Changed() {
	for _, fn := range a.listeners {
		fn()
	}
}

func (n *Node) actionChanged() {
	n.refresh()
}

// Actions returns the node's actions.
func (n *Node) Actions() []*Action {
	return n.actions
}

// Activate invokes the i-th action if it exists and is authorized, and
// reports whether it did.
func (n *Node) Activate(i int) bool {
	if i < 0 || i >= len(n.actions) {
		return false
	}
	a := n.actions[i]
	if a == nil || !a.Authorized || a.Callback == nil {
		return false
	}
	a.Callback(n.Data)
	return true
}
