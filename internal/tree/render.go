package tree

import (
	"fmt"
	"html/template"
)

// Renderer maps a node to its label markup.
type Renderer interface {
	Render(n *Node) template.HTML
}

// Texter is implemented by renderers that can also produce a plain-text
// label, used by snapshots and text output.
type Texter interface {
	Text(n *Node) string
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(n *Node) template.HTML

func (f RendererFunc) Render(n *Node) template.HTML { return f(n) }

// FieldRenderer labels a node with its payload when the payload is a
// string, else with the named field of the payload.
type FieldRenderer string

// DefaultRenderer labels nodes by their textual payload or "name" field.
var DefaultRenderer Renderer = FieldRenderer("name")

func (f FieldRenderer) Text(n *Node) string {
	return Label(n.Data, string(f))
}

func (f FieldRenderer) Render(n *Node) template.HTML {
	return TooltipLabel(f.Text(n))
}

// TooltipLabel is the default label markup: a div carrying the text as its
// tooltip.
func TooltipLabel(text string) template.HTML {
	esc := template.HTMLEscapeString(text)
	return template.HTML(fmt.Sprintf(`<div class="tooltip" title="%s" data-tooltip="%s">%s</div>`, esc, esc, esc))
}

// Label returns data itself when it is a string, else the given field of
// data formatted as text.
func Label(data any, field string) string {
	if s, ok := data.(string); ok {
		return s
	}
	if v, ok := fieldValue(data, field); ok {
		return toString(v)
	}
	return ""
}

// Text returns the plain-text label of the node.
func (n *Node) Text() string {
	if t, ok := n.renderer.(Texter); ok {
		return t.Text(n)
	}
	return Label(n.Data, "name")
}

// Layout holds the lengths used to indent tree rows.
type Layout struct {
	IconWidth    string
	IconDistance string
	TreePadding  string
}

// CSS is the layout applied to every tree.
var CSS = Layout{
	IconWidth:    "0.950rem",
	IconDistance: "0.18rem",
	TreePadding:  "0.3rem",
}

// Indent returns the CSS padding for a row at the given column.
func (l Layout) Indent(col int) string {
	return fmt.Sprintf("calc(%d * (%s + %s) + %s)", col, l.IconWidth, l.IconDistance, l.TreePadding)
}

// ActionView is an authorized action as shown on a row.
type ActionView struct {
	Index int
	Icon  string
}

// View is the materialized representation of a node. It is created once
// per node by Render and updated in place afterwards.
type View struct {
	ID          string
	NodeID      string
	Depth       int
	Indent      string
	Leaf        bool
	HasChildren bool
	Expanded    bool
	Hidden      bool
	Selected    bool
	Clickable   bool
	Mode        SelectionMode
	Control     *Control
	Label       template.HTML
	Actions     []ActionView
	Children    []*View
}

// Materialized reports whether the node has a view.
func (n *Node) Materialized() bool { return n.view != nil }

// View returns the node's view without rendering, or nil.
func (n *Node) View() *View { return n.view }

// Render materializes the node's view on first use and brings the whole
// subtree up to date. Views of existing nodes are reused.
func (n *Node) Render() *View {
	if n.view == nil {
		n.view = &View{
			ID:     fmt.Sprintf("treerow%d", n.seq),
			NodeID: n.id,
		}
	}
	n.refresh()

	children := make([]*View, 0, len(n.children))
	for _, c := range n.children {
		children = append(children, c.Render())
	}
	n.view.Children = children
	return n.view
}

// Rerender re-renders a materialized node; it does nothing otherwise.
func (n *Node) Rerender() {
	if n.view != nil {
		n.Render()
	}
}

// refresh updates the node's own view fields, leaving child views alone.
func (n *Node) refresh() {
	v := n.view
	if v == nil {
		return
	}
	depth := n.Depth()
	mode := n.SelectionMode()

	v.Depth = depth
	v.Mode = mode
	v.HasChildren = len(n.children) > 0
	v.Leaf = !v.HasChildren && depth > 1
	v.Expanded = v.HasChildren && n.expanded
	v.Hidden = n.hideEmpty && len(n.children) == 0
	v.Clickable = !v.HasChildren && mode == Single
	v.Selected = n.selected
	if v.HasChildren || mode == Radio {
		v.Indent = CSS.Indent(depth - 1)
	} else {
		v.Indent = CSS.Indent(depth)
	}
	v.Control = n.ensureControl()
	v.Label = n.renderer.Render(n)

	v.Actions = nil
	for i, a := range n.actions {
		if a != nil && a.Authorized {
			v.Actions = append(v.Actions, ActionView{Index: i, Icon: a.Icon})
		}
	}
}

// Dispose drops the view of the node and its subtree.
func (n *Node) Dispose() {
	n.view = nil
	for _, c := range n.children {
		c.Dispose()
	}
}
