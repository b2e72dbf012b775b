package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joeblew999/plat-mapview/internal/metrics"
	"github.com/joeblew999/plat-mapview/internal/tree"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNodeNotFound    = errors.New("node not found")
	ErrUnknownTree     = errors.New("unknown tree")
)

// Viewer is one browser session: its own base and overlay trees. The trees
// are not safe for concurrent use, so every access goes through the
// viewer's mutex.
type Viewer struct {
	id      string
	created time.Time
	bus     *EventBus
	metrics *metrics.Metrics

	mu       sync.Mutex
	lastSeen time.Time
	trees    Trees
}

func (v *Viewer) ID() string { return v.id }

func (v *Viewer) Created() time.Time { return v.created }

// LastSeen returns the time of the last access.
func (v *Viewer) LastSeen() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeen
}

// Do runs fn with exclusive access to the trees.
func (v *Viewer) Do(fn func(t Trees) error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastSeen = time.Now()
	return fn(v.trees)
}

func (v *Viewer) treeByName(name string) (*tree.Tree, error) {
	switch name {
	case TreeBase:
		return v.trees.Base, nil
	case TreeOverlays:
		return v.trees.Overlays, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTree, name)
}

func (v *Viewer) node(treeName, nodeID string) (*tree.Node, error) {
	t, err := v.treeByName(treeName)
	if err != nil {
		return nil, err
	}
	n := t.Find(nodeID)
	if n == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrNodeNotFound, treeName, nodeID)
	}
	return n, nil
}

// withNode runs fn on a node under the viewer lock.
func (v *Viewer) withNode(treeName, nodeID string, fn func(n *tree.Node)) error {
	return v.Do(func(Trees) error {
		n, err := v.node(treeName, nodeID)
		if err != nil {
			return err
		}
		fn(n)
		return nil
	})
}

// Snapshot copies the state of a tree.
func (v *Viewer) Snapshot(treeName string) ([]tree.Snapshot, error) {
	var out []tree.Snapshot
	err := v.Do(func(Trees) error {
		t, err := v.treeByName(treeName)
		if err != nil {
			return err
		}
		out = t.Snapshot()
		return nil
	})
	return out, err
}

// Toggle applies a change of a node's checkbox or radio button.
func (v *Viewer) Toggle(treeName, nodeID string, checked bool) error {
	return v.withNode(treeName, nodeID, func(n *tree.Node) { n.ControlChanged(checked) })
}

// SetSelected requests a selection change on a node.
func (v *Viewer) SetSelected(treeName, nodeID string, selected bool) error {
	return v.withNode(treeName, nodeID, func(n *tree.Node) { n.SetSelected(selected) })
}

// Click handles a click on a node row and reports whether it changed
// anything.
func (v *Viewer) Click(treeName, nodeID string) (bool, error) {
	var changed bool
	err := v.withNode(treeName, nodeID, func(n *tree.Node) { changed = n.Click() })
	return changed, err
}

// Expand toggles a node open or closed and returns the new state.
func (v *Viewer) Expand(treeName, nodeID string) (bool, error) {
	var open bool
	err := v.withNode(treeName, nodeID, func(n *tree.Node) { open = n.ToggleExpanded() })
	return open, err
}

// Activate invokes the i-th action of a node and reports whether it ran.
func (v *Viewer) Activate(treeName, nodeID string, i int) (bool, error) {
	var ran bool
	err := v.withNode(treeName, nodeID, func(n *tree.Node) { ran = n.Activate(i) })
	return ran, err
}

// Legend returns the legend URL last requested through a legend action.
func (v *Viewer) Legend() string {
	var url string
	_ = v.Do(func(t Trees) error {
		url = t.Legend()
		return nil
	})
	return url
}

// SelectNode selects the first node whose payload field equals value and
// expands its ancestors. It returns the node IDs of the path, leaf first.
func (v *Viewer) SelectNode(treeName string, value any, field string) ([]string, error) {
	var ids []string
	err := v.Do(func(Trees) error {
		t, err := v.treeByName(treeName)
		if err != nil {
			return err
		}
		path := t.SelectNode(value, field)
		if path == nil {
			return fmt.Errorf("%w: %v", ErrNodeNotFound, value)
		}
		for i, n := range path {
			if i > 0 {
				n.Expand()
			}
			ids = append(ids, n.ID())
		}
		return nil
	})
	return ids, err
}

// SelectLayer selects a layer by ID in whichever tree holds it and returns
// that tree's name.
func (v *Viewer) SelectLayer(id string) (string, error) {
	for _, name := range []string{TreeOverlays, TreeBase} {
		_, err := v.SelectNode(name, id, "id")
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, ErrNodeNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: layer %q", ErrNodeNotFound, id)
}

// SelectedLayers returns the selected overlay layers.
func (v *Viewer) SelectedLayers() []LayerDescription {
	var out []LayerDescription
	_ = v.Do(func(t Trees) error {
		out = selectedLayers(t.Overlays)
		return nil
	})
	return out
}

// BaseLayer returns the selected base layer.
func (v *Viewer) BaseLayer() (LayerDescription, bool) {
	var (
		out LayerDescription
		ok  bool
	)
	_ = v.Do(func(t Trees) error {
		for _, n := range t.BaseGroup.Children() {
			if l, isLayer := LayerOf(n); isLayer && n.IsSelected() {
				out, ok = *l, true
				break
			}
		}
		return nil
	})
	return out, ok
}

// Fprint writes both trees as text.
func (v *Viewer) Fprint(w io.Writer) error {
	return v.Do(func(t Trees) error {
		if err := t.Base.Fprint(w); err != nil {
			return err
		}
		return t.Overlays.Fprint(w)
	})
}

// watch publishes the selection changes of a layer node.
func (v *Viewer) watch(n *tree.Node, treeName string) {
	n.OnSelectionChange().Subscribe(v, func(src *tree.Node, status tree.SelectionStatus) {
		l, ok := LayerOf(src)
		if !ok {
			return
		}
		v.metrics.SelectionChanged(treeName, status.String())
		if v.bus != nil {
			v.bus.Publish(Event{Resource: ResourceSelection, Action: status.String(), ID: l.ID, Session: v.id})
		}
	})
}

func (v *Viewer) watchAll() {
	for _, n := range layerNodes(v.trees.Base) {
		v.watch(n, TreeBase)
	}
	for _, n := range layerNodes(v.trees.Overlays) {
		v.watch(n, TreeOverlays)
	}
}

// The methods below keep the trees in step with the catalogue. The caller
// holds the viewer lock.

func (v *Viewer) addLayer(l LayerDescription) {
	root := v.trees.OverlayRoot
	theme := findTheme(root, l.ThemeName())
	if theme == nil {
		theme = newThemeNode(l.ThemeName())
		_ = root.AddChild(theme)
	}
	n := newOverlayNode(l, v.trees.legend)
	v.watch(n, TreeOverlays)
	_ = theme.AddChild(n)
}

func (v *Viewer) updateLayer(l LayerDescription) {
	n := findLayerNode(v.trees.Overlays, l.ID)
	if n == nil {
		v.addLayer(l)
		return
	}
	cur, _ := LayerOf(n)
	moved := cur.ThemeName() != l.ThemeName()
	*cur = l
	if a := n.Actions(); len(a) > LegendAction {
		a[LegendAction].Authorized = l.URLLegend != ""
		a[LegendAction].Changed()
	}
	if !moved {
		n.Rerender()
		return
	}

	root := v.trees.OverlayRoot
	theme := findTheme(root, l.ThemeName())
	if theme == nil {
		theme = newThemeNode(l.ThemeName())
		_ = root.AddChild(theme)
	}
	prev := n.Parent()
	_ = theme.AddChild(n)
	v.pruneTheme(prev)
}

func (v *Viewer) removeLayer(id string) {
	if n := findLayerNode(v.trees.Overlays, id); n != nil {
		prev := n.Parent()
		n.Remove()
		v.pruneTheme(prev)
	}
}

// pruneTheme drops a theme that lost its last layer.
func (v *Viewer) pruneTheme(theme *tree.Node) {
	if theme == nil || theme.Parent() != v.trees.OverlayRoot || len(theme.Children()) > 0 {
		return
	}
	v.trees.OverlayRoot.RemoveChild(theme)
}

// rebuild replaces the tree contents after a reload, keeping the selected
// layers selected where they still exist.
func (v *Viewer) rebuild(desc MapDescription) {
	keep := map[string]bool{}
	for _, l := range selectedLayers(v.trees.Overlays) {
		keep[l.ID] = true
	}
	var baseID string
	for _, n := range v.trees.BaseGroup.Children() {
		if l, ok := LayerOf(n); ok && n.IsSelected() {
			baseID = l.ID
		}
	}

	_ = v.trees.OverlayRoot.SetChildren(newThemeNodes(desc.Overlays, v.trees.legend))
	for _, n := range layerNodes(v.trees.Overlays) {
		if l, _ := LayerOf(n); keep[l.ID] {
			n.SetSelected(true)
		}
	}

	group := v.trees.BaseGroup
	_ = group.SetChildren(newBaseNodes(desc.BaseLayers))
	if n := findLayerNode(v.trees.Base, baseID); baseID != "" && n != nil {
		n.SetSelected(true)
	} else {
		selectFirst(group)
	}

	v.watchAll()
}

// SessionStore owns the live viewers and keeps them in sync with the
// catalogue.
type SessionStore struct {
	catalog *CatalogService
	bus     *EventBus
	metrics *metrics.Metrics
	ttl     time.Duration

	mu      sync.RWMutex
	viewers map[string]*Viewer
}

// NewSessionStore creates a store. Viewers idle for longer than ttl are
// dropped by Run; ttl <= 0 keeps them forever.
func NewSessionStore(catalog *CatalogService, bus *EventBus, m *metrics.Metrics, ttl time.Duration) *SessionStore {
	return &SessionStore{
		catalog: catalog,
		bus:     bus,
		metrics: m,
		ttl:     ttl,
		viewers: make(map[string]*Viewer),
	}
}

// Create starts a viewer with the given layer labels preselected.
func (s *SessionStore) Create(preselect []string) *Viewer {
	now := time.Now()
	v := &Viewer{
		id:       uuid.NewString(),
		created:  now,
		lastSeen: now,
		bus:      s.bus,
		metrics:  s.metrics,
		trees:    BuildTrees(s.catalog.Description(), preselect),
	}
	v.watchAll()

	s.mu.Lock()
	s.viewers[v.id] = v
	n := len(s.viewers)
	s.mu.Unlock()

	s.metrics.SessionCreated()
	s.metrics.SetSessions(n)
	sessionLog.WithField("session", v.id).Debugf("Viewer created, preselect=%v", preselect)
	return v
}

// Get returns a viewer by session ID.
func (s *SessionStore) Get(id string) (*Viewer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.viewers[id]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
}

// Delete drops a viewer.
func (s *SessionStore) Delete(id string) error {
	s.mu.Lock()
	if _, ok := s.viewers[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	delete(s.viewers, id)
	n := len(s.viewers)
	s.mu.Unlock()

	s.metrics.SetSessions(n)
	return nil
}

// Len returns the number of live viewers.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.viewers)
}

func (s *SessionStore) all() []*Viewer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Viewer, 0, len(s.viewers))
	for _, v := range s.viewers {
		out = append(out, v)
	}
	return out
}

// Apply brings every viewer in line with a catalogue event.
func (s *SessionStore) Apply(ev Event) {
	if ev.Resource != ResourceLayers {
		return
	}

	var fn func(v *Viewer)
	switch ev.Action {
	case ActionCreated, ActionUpdated:
		l, err := s.catalog.Get(ev.ID)
		if err != nil {
			sessionLog.WithError(err).Warnf("Cannot apply %s", ev.Action)
			return
		}
		if ev.Action == ActionCreated {
			fn = func(v *Viewer) { v.addLayer(l) }
		} else {
			fn = func(v *Viewer) { v.updateLayer(l) }
		}
	case ActionDeleted:
		fn = func(v *Viewer) { v.removeLayer(ev.ID) }
	case ActionReloaded:
		desc := s.catalog.Description()
		s.metrics.CatalogReloaded(len(desc.Overlays))
		fn = func(v *Viewer) { v.rebuild(desc) }
	default:
		return
	}
	s.metrics.SetCatalogLayers(len(s.catalog.Overlays()))

	viewers := s.all()
	for _, v := range viewers {
		_ = v.Do(func(Trees) error {
			fn(v)
			return nil
		})
	}
	sessionLog.WithField("layer", ev.ID).Debugf("Applied %s to %d viewers", ev.Action, len(viewers))
	if s.bus != nil {
		s.bus.Publish(Event{Resource: ResourceSessions, Action: ActionSynced, ID: ev.ID})
	}
}

// Expire drops viewers idle since before now-ttl and returns how many.
func (s *SessionStore) Expire(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	var stale []string
	for _, v := range s.all() {
		if now.Sub(v.LastSeen()) > s.ttl {
			stale = append(stale, v.id)
		}
	}
	for _, id := range stale {
		_ = s.Delete(id)
	}
	if len(stale) > 0 {
		sessionLog.Infof("Expired %d idle viewers", len(stale))
	}
	return len(stale)
}

// Run applies catalogue events to the viewers and expires idle ones until
// ctx is cancelled.
func (s *SessionStore) Run(ctx context.Context) {
	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	var tick <-chan time.Time
	if s.ttl > 0 {
		t := time.NewTicker(min(s.ttl/2, time.Minute))
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case ev := <-ch:
			s.Apply(ev)
		case now := <-tick:
			s.Expire(now)
		case <-ctx.Done():
			return
		}
	}
}
