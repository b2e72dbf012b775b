package tree

import "slices"

// Handler receives selection status changes. The node is the source of the
// event, which is not always the node that owns the dispatcher: pass-through
// and radio group nodes relay events of their children.
type Handler func(n *Node, status SelectionStatus)

type subscriber struct {
	key any
	fn  Handler
}

// Dispatcher is an ordered observer list. Subscribers are identified by a
// comparable key (parents use themselves), so removal does not depend on
// comparing handler funcs.
type Dispatcher struct {
	subs []subscriber
}

// Subscribe registers fn under key. A key that is already subscribed has its
// handler replaced and keeps its position.
func (d *Dispatcher) Subscribe(key any, fn Handler) {
	for i := range d.subs {
		if d.subs[i].key == key {
			d.subs[i].fn = fn
			return
		}
	}
	d.subs = append(d.subs, subscriber{key: key, fn: fn})
}

// Unsubscribe removes the handler registered under key and reports whether
// there was one.
func (d *Dispatcher) Unsubscribe(key any) bool {
	for i := range d.subs {
		if d.subs[i].key == key {
			d.subs = slices.Delete(slices.Clone(d.subs), i, i+1)
			return true
		}
	}
	return false
}

// Subscribed reports whether key currently holds a handler.
func (d *Dispatcher) Subscribed(key any) bool {
	for _, s := range d.subs {
		if s.key == key {
			return true
		}
	}
	return false
}

// Len returns the number of subscribers.
func (d *Dispatcher) Len() int {
	return len(d.subs)
}

// Dispatch calls every subscriber synchronously in subscription order.
// Handlers may subscribe or unsubscribe while the dispatch is running; the
// change applies to the next dispatch.
func (d *Dispatcher) Dispatch(n *Node, status SelectionStatus) {
	for _, s := range slices.Clone(d.subs) {
		s.fn(n, status)
	}
}
