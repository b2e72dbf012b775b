package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultCatalogFile is the map description file name inside the data dir.
const DefaultCatalogFile = "layerdef.json"

var (
	ErrLayerNotFound = errors.New("layer not found")
	ErrLayerExists   = errors.New("layer already exists")
)

// CatalogService holds the map description and persists overlay changes
// back to the description file, as JSON or YAML depending on its extension.
type CatalogService struct {
	path string
	bus  *EventBus

	mu        sync.RWMutex
	desc      MapDescription
	lastSaved []byte
}

// NewCatalogService loads file (relative to dataDir unless absolute). A
// missing file yields an empty catalogue with the default view.
func NewCatalogService(dataDir, file string, bus *EventBus) (*CatalogService, error) {
	if file == "" {
		file = DefaultCatalogFile
	}
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(dataDir, file)
	}

	s := &CatalogService{
		path: path,
		bus:  bus,
		desc: MapDescription{View: DefaultView},
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the description file path.
func (s *CatalogService) Path() string { return s.path }

// Load (re)reads the description file and publishes a reload event.
func (s *CatalogService) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		catalogLog.Infof("No map description at %s, starting empty", s.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read map description: %w", err)
	}

	var desc MapDescription
	if isYAML(s.path) {
		err = yaml.Unmarshal(data, &desc)
	} else {
		err = json.Unmarshal(data, &desc)
	}
	if err != nil {
		return fmt.Errorf("parse map description %s: %w", filepath.Base(s.path), err)
	}
	normalize(&desc)

	s.mu.Lock()
	s.desc = desc
	s.lastSaved = data
	s.mu.Unlock()

	catalogLog.WithField("base", len(desc.BaseLayers)).WithField("overlays", len(desc.Overlays)).Info("Map description loaded")
	s.publish(Event{Resource: ResourceLayers, Action: ActionReloaded})
	return nil
}

// Description returns a copy of the whole map description.
func (s *CatalogService) Description() MapDescription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.desc
	d.BaseLayers = append([]LayerDescription(nil), s.desc.BaseLayers...)
	d.Overlays = append([]LayerDescription(nil), s.desc.Overlays...)
	return d
}

// Overlays returns the overlay layers in file order.
func (s *CatalogService) Overlays() []LayerDescription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]LayerDescription(nil), s.desc.Overlays...)
}

// BaseLayers returns the base layers in file order.
func (s *CatalogService) BaseLayers() []LayerDescription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]LayerDescription(nil), s.desc.BaseLayers...)
}

// Themes returns the overlays grouped by thema.
func (s *CatalogService) Themes() []Theme {
	return GroupThemes(s.Overlays())
}

// Get returns an overlay layer by ID.
func (s *CatalogService) Get(id string) (LayerDescription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.desc.Overlays[i], nil
	}
	return LayerDescription{}, fmt.Errorf("%w: %q", ErrLayerNotFound, id)
}

// Create appends an overlay layer. The ID is derived from the label when
// empty.
func (s *CatalogService) Create(layer LayerDescription) (LayerDescription, error) {
	s.mu.Lock()
	if layer.ID == "" {
		layer.ID = generateID(layer.Label)
	}
	if s.indexOf(layer.ID) >= 0 || s.baseIndexOf(layer.ID) >= 0 {
		s.mu.Unlock()
		return LayerDescription{}, fmt.Errorf("%w: %q", ErrLayerExists, layer.ID)
	}

	old := s.desc.Overlays
	s.desc.Overlays = append(append([]LayerDescription(nil), old...), layer)
	if err := s.save(); err != nil {
		s.desc.Overlays = old
		s.mu.Unlock()
		return LayerDescription{}, err
	}
	s.mu.Unlock()

	s.publish(Event{Resource: ResourceLayers, Action: ActionCreated, ID: layer.ID})
	return layer, nil
}

// Update replaces an overlay layer, keeping its ID and position.
func (s *CatalogService) Update(id string, layer LayerDescription) (LayerDescription, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return LayerDescription{}, fmt.Errorf("%w: %q", ErrLayerNotFound, id)
	}

	layer.ID = id
	old := s.desc.Overlays
	s.desc.Overlays = append([]LayerDescription(nil), old...)
	s.desc.Overlays[i] = layer
	if err := s.save(); err != nil {
		s.desc.Overlays = old
		s.mu.Unlock()
		return LayerDescription{}, err
	}
	s.mu.Unlock()

	s.publish(Event{Resource: ResourceLayers, Action: ActionUpdated, ID: id})
	return layer, nil
}

// Delete removes an overlay layer.
func (s *CatalogService) Delete(id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrLayerNotFound, id)
	}

	old := s.desc.Overlays
	s.desc.Overlays = append(append([]LayerDescription(nil), old[:i]...), old[i+1:]...)
	if err := s.save(); err != nil {
		s.desc.Overlays = old
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.publish(Event{Resource: ResourceLayers, Action: ActionDeleted, ID: id})
	return nil
}

func (s *CatalogService) indexOf(id string) int {
	for i, l := range s.desc.Overlays {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (s *CatalogService) baseIndexOf(id string) int {
	for i, l := range s.desc.BaseLayers {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// save writes the description file. The caller holds the write lock.
func (s *CatalogService) save() error {
	var (
		data []byte
		err  error
	)
	if isYAML(s.path) {
		data, err = yaml.Marshal(&s.desc)
	} else {
		data, err = json.MarshalIndent(&s.desc, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode map description: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write map description: %w", err)
	}
	s.lastSaved = data
	return nil
}

// savedContent reports whether data equals what this service last read or
// wrote, so the watcher can skip its own writes.
func (s *CatalogService) savedContent(data []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSaved != nil && string(s.lastSaved) == string(data)
}

func (s *CatalogService) publish(e Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// normalize fills in the default view and gives every layer a unique ID.
func normalize(desc *MapDescription) {
	if desc.View.IsZero() {
		desc.View = DefaultView
	}
	seen := map[string]bool{}
	assign := func(layers []LayerDescription) {
		for i := range layers {
			id := layers[i].ID
			if id == "" {
				id = generateID(layers[i].Label)
			}
			base := id
			for n := 2; seen[id]; n++ {
				id = base + "_" + strconv.Itoa(n)
			}
			seen[id] = true
			layers[i].ID = id
		}
	}
	assign(desc.BaseLayers)
	assign(desc.Overlays)
}

var umlauts = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

// generateID creates a URL-safe ID from a label.
func generateID(label string) string {
	id := umlauts.Replace(strings.ToLower(label))
	var b strings.Builder
	for _, r := range id {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "layer"
	}
	return b.String()
}
