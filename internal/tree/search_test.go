package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type layer struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Thema string
}

func TestSelectNodePath(t *testing.T) {
	d := New("D", nil, Params{})
	c := New("C", []*Node{d}, Params{})
	b := New("B", nil, Params{})
	a := New("A", []*Node{b, c}, Params{})

	path := a.SelectNode("D", "")
	require.Equal(t, []*Node{d, c, a}, path)
	assert.True(t, d.IsSelected())
	assert.False(t, b.IsSelected())

	assert.Nil(t, a.SelectNode("Z", ""))
}

func TestSelectNodeByField(t *testing.T) {
	roads := New(map[string]any{"label": "Roads"}, nil, Params{})
	rivers := New(&layer{ID: "r1", Label: "Rivers", Thema: "Water"}, nil, Params{})
	root := New("root", []*Node{roads, rivers}, Params{Mode: Multi})

	path := root.SelectNode("Rivers", "label")
	require.Len(t, path, 2)
	assert.Same(t, rivers, path[0])
	assert.Equal(t, Indeterminate, root.Status())

	assert.Same(t, roads, root.FindNode("Roads", "label"))
	assert.False(t, roads.IsSelected())

	assert.Same(t, rivers, root.FindNode("Water", "thema"))
	assert.Same(t, rivers, root.FindNode("r1", "ID"))
	assert.Nil(t, root.FindNode("r1", "missing"))
}

func TestSelectNodeToleratesUncomparableData(t *testing.T) {
	n := New(map[string]any{"tags": []string{"a"}}, nil, Params{})
	root := New([]int{1}, []*Node{n}, Params{})
	assert.Nil(t, root.SelectNode([]string{"a"}, "tags"))
}

func TestTreeSelectNodeAcrossRoots(t *testing.T) {
	first := New("first", nil, Params{})
	x := New("x", nil, Params{})
	second := New("second", []*Node{x}, Params{})
	tr := NewTree(Single, first, second)

	path := tr.SelectNode("x", "")
	assert.Equal(t, []*Node{x, second}, path)
	assert.Equal(t, []any{"x"}, second.Children()[0].Selected())
}
