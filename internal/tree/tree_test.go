package tree

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() (*Tree, map[string]*Node) {
	nodes := map[string]*Node{}
	mk := func(name string, kids ...*Node) *Node {
		n := New(name, kids, Params{})
		nodes[name] = n
		return n
	}
	root := mk("Overlays", mk("Traffic", mk("Roads"), mk("Rail")), mk("Water", mk("Rivers")))
	return NewTree(Multi, root), nodes
}

func TestTreeFindAndRoots(t *testing.T) {
	tr, nodes := sampleTree()
	require.Len(t, tr.Roots(), 1)
	assert.Same(t, nodes["Rail"], tr.Find(nodes["Rail"].ID()))
	assert.Nil(t, tr.Find("nope"))
	assert.Equal(t, -1, tr.Width())
	assert.Equal(t, -1, New("x", nil, Params{}).Width())

	tr.SetWidth(320)
	assert.Equal(t, 320, nodes["Rivers"].Width())
}

func TestTreeRelaysRootEvents(t *testing.T) {
	tr, nodes := sampleTree()
	got := record(tr.OnSelectionChange())

	nodes["Roads"].SetSelected(true)
	require.NotEmpty(t, *got)
	last := (*got)[len(*got)-1]
	assert.Same(t, nodes["Overlays"], last.node)
	assert.Equal(t, Indeterminate, last.status)

	assert.Equal(t, []any{"Roads"}, tr.Selected())
}

func TestTreeSetRoots(t *testing.T) {
	tr, nodes := sampleTree()
	old := nodes["Overlays"]
	water := nodes["Water"]

	tr.SetRoots(water)
	assert.Nil(t, old.Tree())
	assert.False(t, old.OnSelectionChange().Subscribed(tr))
	assert.Nil(t, water.Parent())
	assert.Same(t, tr, nodes["Rivers"].Tree())
	assert.Equal(t, 1, water.Depth())

	tr.AddRoot(New("Base", nil, Params{}))
	assert.Len(t, tr.Roots(), 2)
}

func TestFprint(t *testing.T) {
	tr, nodes := sampleTree()
	nodes["Roads"].SetSelected(true)
	nodes["Water"].SetSelected(true)

	var buf bytes.Buffer
	require.NoError(t, tr.Fprint(&buf))
	assert.Equal(t, `[-] Overlays
  [-] Traffic
    [x] Roads
    [ ] Rail
  [x] Water
    [x] Rivers
`, buf.String())

	g := NewRadioGroup("Base", []*Node{New("OSM", nil, Params{Selected: true}), New("Aerial", nil, Params{})}, Params{})
	buf.Reset()
	require.NoError(t, NewTree(Single, g).Fprint(&buf))
	assert.Equal(t, "- Base\n  (*) OSM\n  ( ) Aerial\n", buf.String())
}

func TestSnapshot(t *testing.T) {
	tr, nodes := sampleTree()
	nodes["Rail"].SetSelected(true)
	nodes["Traffic"].Expand()

	snaps := tr.Snapshot()
	require.Len(t, snaps, 1)
	root := snaps[0]
	assert.Equal(t, "Overlays", root.Label)
	assert.Equal(t, "indeterminate", root.Status)
	assert.Equal(t, "multi", root.Mode)

	traffic := root.Children[0]
	assert.True(t, traffic.Expanded)
	assert.Equal(t, nodes["Traffic"].ID(), traffic.ID)
	assert.Equal(t, "selected", traffic.Children[1].Status)
	assert.Equal(t, "unselected", traffic.Children[0].Status)
}

func TestDispatcher(t *testing.T) {
	var d Dispatcher
	var order []string
	d.Subscribe("a", func(*Node, SelectionStatus) { order = append(order, "a") })
	d.Subscribe("b", func(*Node, SelectionStatus) {
		order = append(order, "b")
		d.Unsubscribe("c")
	})
	d.Subscribe("c", func(*Node, SelectionStatus) { order = append(order, "c") })
	d.Subscribe("a", func(*Node, SelectionStatus) { order = append(order, "A") })

	d.Dispatch(nil, Selected)
	assert.Equal(t, []string{"A", "b", "c"}, order)
	assert.Equal(t, 2, d.Len())
	assert.False(t, d.Subscribed("c"))
	assert.False(t, d.Unsubscribe("c"))

	order = nil
	d.Dispatch(nil, Selected)
	assert.Equal(t, []string{"A", "b"}, order)
}
