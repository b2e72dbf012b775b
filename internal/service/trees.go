package service

import (
	"fmt"
	"html/template"

	"github.com/joeblew999/plat-mapview/internal/tree"
)

// Tree names used by sessions and the HTTP API.
const (
	TreeBase     = "base"
	TreeOverlays = "overlays"
)

// Folder is the payload of grouping nodes: the tree roots and the themes.
type Folder struct {
	Name string `json:"name"`
}

// Labels of the root nodes.
const (
	BaseRootLabel    = "Base layers"
	OverlayRootLabel = "Overlays"
)

// layerRenderer labels layer nodes with their icon and abstract; other
// nodes get the default label.
type layerRenderer struct{}

func (layerRenderer) Text(n *tree.Node) string {
	if l, ok := LayerOf(n); ok {
		return l.Label
	}
	return tree.Label(n.Data, "name")
}

func (r layerRenderer) Render(n *tree.Node) template.HTML {
	l, ok := LayerOf(n)
	if !ok {
		return tree.TooltipLabel(r.Text(n))
	}
	title := l.Abstract
	if title == "" {
		title = l.Label
	}
	icon := ""
	if l.Img != "" {
		icon = fmt.Sprintf(`<img class="layer-icon" src="%s" alt="">`, template.HTMLEscapeString(l.Img))
	}
	return template.HTML(fmt.Sprintf(`<div class="tooltip" title="%s" data-tooltip="%s">%s%s</div>`,
		template.HTMLEscapeString(title), template.HTMLEscapeString(title), icon, template.HTMLEscapeString(l.Label)))
}

// LayerRenderer renders layer and folder nodes.
var LayerRenderer tree.Renderer = layerRenderer{}

// LayerOf returns the layer carried by a node.
func LayerOf(n *tree.Node) (*LayerDescription, bool) {
	if n == nil {
		return nil, false
	}
	l, ok := n.Data.(*LayerDescription)
	return l, ok
}

// Trees are the two selection trees of a viewer.
type Trees struct {
	Base     *tree.Tree
	Overlays *tree.Tree

	BaseGroup   *tree.Node
	OverlayRoot *tree.Node

	legend *string
}

// Legend returns the legend URL last requested through a layer's legend
// action, or "".
func (t Trees) Legend() string {
	if t.legend == nil {
		return ""
	}
	return *t.legend
}

// LegendAction is the index of the legend action on overlay layer nodes.
const LegendAction = 0

// BuildTrees creates the base layer radio group and the overlay tree for a
// map description. preselect holds layer labels to select (the ?layers=
// URL parameter); the paths to preselected overlays are expanded. Without a
// preselected base layer the first one is selected.
func BuildTrees(desc MapDescription, preselect []string) Trees {
	group := tree.NewRadioGroup(&Folder{Name: BaseRootLabel}, newBaseNodes(desc.BaseLayers), tree.Params{Renderer: LayerRenderer})
	group.Expand()
	legend := new(string)
	root := tree.New(&Folder{Name: OverlayRootLabel}, newThemeNodes(desc.Overlays, legend), tree.Params{Renderer: LayerRenderer, Mode: tree.Multi})
	root.Expand()

	t := Trees{
		Base:        tree.NewTree(tree.Single, group),
		Overlays:    tree.NewTree(tree.Multi, root),
		BaseGroup:   group,
		OverlayRoot: root,
		legend:      legend,
	}

	baseChosen := false
	for _, label := range preselect {
		if label == "" {
			continue
		}
		if n := group.FindNode(label, "label"); n != nil && !baseChosen {
			n.SetSelected(true)
			baseChosen = true
			continue
		}
		path := root.SelectNode(label, "label")
		for _, p := range path[min(1, len(path)):] {
			p.Expand()
		}
	}
	if !baseChosen {
		selectFirst(group)
	}
	return t
}

func selectFirst(group *tree.Node) {
	if kids := group.Children(); len(kids) > 0 {
		kids[0].SetSelected(true)
	}
}

func newLayerNode(l LayerDescription) *tree.Node {
	return tree.New(&l, nil, tree.Params{Renderer: LayerRenderer})
}

// newOverlayNode creates an overlay layer node with a legend action that
// stores the layer's legend URL in legend.
func newOverlayNode(l LayerDescription, legend *string) *tree.Node {
	a := &tree.Action{
		Icon:       "icon-legend",
		Authorized: l.URLLegend != "",
		Callback: func(data any) {
			if l, ok := data.(*LayerDescription); ok {
				*legend = l.URLLegend
			}
		},
	}
	return tree.New(&l, nil, tree.Params{Renderer: LayerRenderer, Actions: []*tree.Action{a}})
}

func newThemeNode(name string) *tree.Node {
	return tree.New(&Folder{Name: name}, nil, tree.Params{Renderer: LayerRenderer, HideEmptyNode: true})
}

func newBaseNodes(layers []LayerDescription) []*tree.Node {
	nodes := make([]*tree.Node, 0, len(layers))
	for _, l := range layers {
		nodes = append(nodes, newLayerNode(l))
	}
	return nodes
}

func newThemeNodes(overlays []LayerDescription, legend *string) []*tree.Node {
	themes := GroupThemes(overlays)
	nodes := make([]*tree.Node, 0, len(themes))
	for _, th := range themes {
		n := newThemeNode(th.Name)
		for _, l := range th.Layers {
			// Fresh nodes cannot form a cycle.
			_ = n.AddChild(newOverlayNode(l, legend))
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// findLayerNode returns the node carrying the layer with the given ID.
func findLayerNode(t *tree.Tree, id string) *tree.Node {
	var found *tree.Node
	t.Walk(func(n *tree.Node) bool {
		if l, ok := LayerOf(n); ok && l.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// findTheme returns the theme node with the given name under root.
func findTheme(root *tree.Node, name string) *tree.Node {
	for _, c := range root.Children() {
		if f, ok := c.Data.(*Folder); ok && f.Name == name {
			return c
		}
	}
	return nil
}

// layerNodes returns every layer node of t.
func layerNodes(t *tree.Tree) []*tree.Node {
	var out []*tree.Node
	t.Walk(func(n *tree.Node) bool {
		if _, ok := LayerOf(n); ok {
			out = append(out, n)
		}
		return true
	})
	return out
}

// selectedLayers returns the layers selected in t, in tree order.
func selectedLayers(t *tree.Tree) []LayerDescription {
	var out []LayerDescription
	for _, d := range t.Selected() {
		if l, ok := d.(*LayerDescription); ok {
			out = append(out, *l)
		}
	}
	return out
}
