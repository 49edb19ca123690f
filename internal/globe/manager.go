package globe

import (
	"fmt"
	"log"
	"sync"
)

// Manager tracks the layers attached to a viewport and mediates remove/
// show/hide operations. Membership is always checked against the viewport
// before mutating it.
type Manager struct {
	viewport Viewport

	mu     sync.RWMutex
	layers map[string]*Layer
}

// NewManager creates a Manager over the given viewport.
func NewManager(viewport Viewport) *Manager {
	return &Manager{
		viewport: viewport,
		layers:   make(map[string]*Layer),
	}
}

// Track records a layer that was attached to the viewport.
func (m *Manager) Track(layer *Layer) {
	if layer == nil {
		return
	}
	m.mu.Lock()
	m.layers[layer.ID] = layer
	m.mu.Unlock()
}

// Layers returns a copy of all tracked layers.
func (m *Manager) Layers() []*Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Layer, 0, len(m.layers))
	for _, l := range m.layers {
		copied := *l
		result = append(result, &copied)
	}
	return result
}

// Remove detaches a layer. Removing a layer the viewport no longer holds
// is a no-op, not an error.
func (m *Manager) Remove(layerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.layers[layerID]; !ok {
		return fmt.Errorf("unknown layer: %s", layerID)
	}

	if m.viewport.Contains(layerID) {
		if err := m.viewport.RemoveLayer(layerID); err != nil {
			return fmt.Errorf("remove layer %s: %w", layerID, err)
		}
	} else {
		log.Printf("[Globe] Layer %s already absent from viewport", layerID)
	}

	delete(m.layers, layerID)
	return nil
}

// SetVisible shows or hides a layer.
func (m *Manager) SetVisible(layerID string, visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	layer, ok := m.layers[layerID]
	if !ok {
		return fmt.Errorf("unknown layer: %s", layerID)
	}
	if !m.viewport.Contains(layerID) {
		return fmt.Errorf("layer %s is not attached", layerID)
	}

	if err := m.viewport.SetLayerVisible(layerID, visible); err != nil {
		return fmt.Errorf("set layer %s visibility: %w", layerID, err)
	}
	layer.Visible = visible
	return nil
}
