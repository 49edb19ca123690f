package globe

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"detection-desktop/internal/creds"
	"detection-desktop/internal/tiles"
)

// Attacher attaches tile imagery layers to a viewport and navigates the
// camera to them. It is independent of how the tiles were produced.
type Attacher struct {
	minZoom int
	maxZoom int

	sceneRetries    int
	sceneRetryDelay time.Duration
	flyDelay        time.Duration

	onAlert creds.AlertFunc
}

// AttacherOptions configure an Attacher. Zero retry/delay values fall back
// to the defaults used in the app.
type AttacherOptions struct {
	MinZoom         int
	MaxZoom         int
	SceneRetries    int
	SceneRetryDelay time.Duration
	FlyDelay        time.Duration
	OnAlert         creds.AlertFunc
}

// NewAttacher creates an Attacher.
func NewAttacher(opts AttacherOptions) *Attacher {
	if opts.SceneRetries <= 0 {
		opts.SceneRetries = 20
	}
	if opts.SceneRetryDelay <= 0 {
		opts.SceneRetryDelay = 500 * time.Millisecond
	}
	if opts.FlyDelay <= 0 {
		opts.FlyDelay = time.Second
	}

	return &Attacher{
		minZoom:         opts.MinZoom,
		maxZoom:         opts.MaxZoom,
		sceneRetries:    opts.SceneRetries,
		sceneRetryDelay: opts.SceneRetryDelay,
		flyDelay:        opts.FlyDelay,
		onAlert:         opts.OnAlert,
	}
}

// Attach waits for the viewport's scene to initialize, adds an imagery layer
// for the tile URL template, and flies the camera to the extents after a
// short delay so the first tiles can begin loading.
func (a *Attacher) Attach(ctx context.Context, vp Viewport, urlTemplate string, extents tiles.Extents, label string) (*Layer, error) {
	if err := a.waitForScene(ctx, vp); err != nil {
		return nil, err
	}

	layer := &Layer{
		ID:          uuid.NewString(),
		Label:       label,
		URLTemplate: urlTemplate,
		Extents:     extents,
		MinZoom:     a.minZoom,
		MaxZoom:     a.maxZoom,
		Visible:     true,
	}

	if err := vp.AddLayer(layer); err != nil {
		// Local tile serving never needs cloud credentials, but the
		// surrounding call chain does, so this path stays guarded.
		if creds.IsCredentialError(err) {
			log.Printf("[Attacher] Credential error adding layer %q: %v", label, err)
			if a.onAlert != nil {
				a.onAlert(err.Error())
			}
			return nil, nil
		}
		return nil, fmt.Errorf("add imagery layer %q: %w", label, err)
	}

	select {
	case <-ctx.Done():
		return layer, nil
	case <-time.After(a.flyDelay):
	}
	vp.FlyTo(extents)

	log.Printf("[Attacher] Attached layer %q (%s)", label, layer.ID)
	return layer, nil
}

func (a *Attacher) waitForScene(ctx context.Context, vp Viewport) error {
	for i := 0; i < a.sceneRetries; i++ {
		if vp.SceneReady() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.sceneRetryDelay):
		}
	}
	if vp.SceneReady() {
		return nil
	}
	return fmt.Errorf("scene not initialized after %d attempts", a.sceneRetries)
}
