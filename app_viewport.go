package main

import (
	"sync"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"detection-desktop/internal/globe"
	"detection-desktop/internal/tiles"
)

// eventViewport bridges the globe viewport to the frontend over wails
// events. The frontend owns the rendering scene; the backend only tracks
// which layers it has pushed across and whether the scene exists yet.
type eventViewport struct {
	app *App

	mu     sync.RWMutex
	ready  bool
	layers map[string]bool
}

func newEventViewport(app *App) *eventViewport {
	return &eventViewport{app: app, layers: make(map[string]bool)}
}

// markReady is called once the frontend reports its scene is initialized.
func (v *eventViewport) markReady() {
	v.mu.Lock()
	v.ready = true
	v.mu.Unlock()
}

func (v *eventViewport) SceneReady() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ready
}

func (v *eventViewport) AddLayer(layer *globe.Layer) error {
	v.mu.Lock()
	v.layers[layer.ID] = true
	v.mu.Unlock()

	v.emit("globe:add-layer", layer)
	return nil
}

func (v *eventViewport) Contains(layerID string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.layers[layerID]
}

func (v *eventViewport) RemoveLayer(layerID string) error {
	v.mu.Lock()
	delete(v.layers, layerID)
	v.mu.Unlock()

	v.emit("globe:remove-layer", layerID)
	return nil
}

func (v *eventViewport) SetLayerVisible(layerID string, visible bool) error {
	v.emit("globe:layer-visibility", map[string]interface{}{
		"id":      layerID,
		"visible": visible,
	})
	return nil
}

func (v *eventViewport) FlyTo(extents tiles.Extents) {
	v.emit("globe:fly-to", extents)
}

func (v *eventViewport) emit(event string, payload interface{}) {
	if v.app.ctx != nil {
		wailsRuntime.EventsEmit(v.app.ctx, event, payload)
	}
}
