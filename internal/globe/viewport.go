package globe

import (
	"detection-desktop/internal/tiles"
)

// Layer is one imagery layer attached to the globe, scoped to a geographic
// rectangle and a zoom range.
type Layer struct {
	ID          string        `json:"id"`
	Label       string        `json:"label"`
	URLTemplate string        `json:"urlTemplate"`
	Extents     tiles.Extents `json:"extents"`
	MinZoom     int           `json:"minZoom"`
	MaxZoom     int           `json:"maxZoom"`
	Visible     bool          `json:"visible"`
}

// Viewport is the boundary to the rendering scene. The production
// implementation bridges to the frontend globe; rendering semantics live
// entirely on the other side of this interface.
type Viewport interface {
	// SceneReady reports whether the rendering scene has initialized. The
	// viewport may not exist yet when an attach is requested right after a
	// UI action.
	SceneReady() bool

	// AddLayer attaches an imagery layer to the scene.
	AddLayer(layer *Layer) error

	// Contains reports whether the scene currently holds the layer. This is
	// the sole membership check before any remove/show/hide mutation, since
	// removing an absent layer is an error.
	Contains(layerID string) bool

	// RemoveLayer detaches a layer from the scene.
	RemoveLayer(layerID string) error

	// SetLayerVisible shows or hides an attached layer.
	SetLayerVisible(layerID string, visible bool) error

	// FlyTo navigates the camera to the extents rectangle.
	FlyTo(extents tiles.Extents)
}
