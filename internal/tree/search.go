package tree

import (
	"fmt"
	"reflect"
	"strings"
)

// SelectNode searches the subtree depth-first for a node whose payload field
// equals value, or whose payload itself equals value. The first match is
// selected and returned together with its ancestors up to and including n,
// leaf first. It returns nil when nothing matches.
func (n *Node) SelectNode(value any, field string) []*Node {
	if n.matches(value, field) {
		n.SetSelected(true)
		return []*Node{n}
	}
	for _, c := range n.children {
		if path := c.SelectNode(value, field); path != nil {
			return append(path, n)
		}
	}
	return nil
}

// FindNode returns the first node in the subtree matching like SelectNode,
// without selecting it.
func (n *Node) FindNode(value any, field string) *Node {
	var found *Node
	n.Walk(func(x *Node) bool {
		if x.matches(value, field) {
			found = x
			return false
		}
		return true
	})
	return found
}

func (n *Node) matches(value any, field string) bool {
	if field != "" {
		if v, ok := fieldValue(n.Data, field); ok && equal(v, value) {
			return true
		}
	}
	return equal(n.Data, value)
}

// fieldValue looks up a field of a payload: a string-keyed map entry, or an
// exported struct field matched by json tag or case-insensitive name.
func fieldValue(data any, field string) (any, bool) {
	switch d := data.(type) {
	case nil:
		return nil, false
	case map[string]any:
		v, ok := d[field]
		return v, ok
	case map[string]string:
		v, ok := d[field]
		return v, ok
	}

	rv := reflect.ValueOf(data)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		mv := rv.MapIndex(reflect.ValueOf(field).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true

	case reflect.Struct:
		t := rv.Type()
		for i := range t.NumField() {
			sf := t.Field(i)
			if !sf.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
			if name == field || strings.EqualFold(sf.Name, field) {
				return rv.Field(i).Interface(), true
			}
		}
	}
	return nil, false
}

// equal compares two payload values without panicking on uncomparable
// types.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}
