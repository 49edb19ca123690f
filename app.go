package main

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/posthog/posthog-go"
	"github.com/redis/go-redis/v9"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"detection-desktop/internal/config"
	"detection-desktop/internal/globe"
	"detection-desktop/internal/imagery"
	"detection-desktop/internal/job"
	"detection-desktop/internal/metrics"
	"detection-desktop/internal/queue"
	"detection-desktop/internal/tiles"
)

//go:embed scripts/calculate_extents.py
var extentsScript []byte

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// sourceImageExtensions are the raster formats offered in the image picker.
var sourceImageExtensions = map[string]bool{
	".tif":  true,
	".tiff": true,
	".ntf":  true,
	".nitf": true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// App composes the two engines (job submission/monitoring and the tile
// pipeline) with the globe viewport and exposes them to the frontend.
type App struct {
	ctx      context.Context
	devMode  bool
	phClient posthog.Client

	env      config.Environment
	settings *config.UserSettings

	metrics    *metrics.Metrics
	submitter  *job.Submitter
	monitor    *job.Monitor
	registry   *job.Registry
	pipeline   *tiles.Pipeline
	tileServer *tiles.Server
	attacher   *globe.Attacher
	layers     *globe.Manager
	viewport   *eventViewport

	// watchCtx bounds all monitor goroutines; cancelled on shutdown.
	watchCtx    context.Context
	cancelWatch context.CancelFunc
}

// NewApp creates a new App application struct
func NewApp() *App {
	settings, err := config.LoadSettings()
	if err != nil {
		log.Printf("Failed to load settings, using defaults: %v", err)
		settings = config.DefaultSettings()
	}
	log.Printf("Settings loaded from: %s", config.GetSettingsPath())

	env := config.LoadEnvironment()

	var phClient posthog.Client
	if PostHogKey != "" {
		client, err := posthog.NewWithConfig(PostHogKey, posthog.Config{Endpoint: PostHogHost})
		if err != nil {
			log.Printf("Failed to initialize PostHog: %v", err)
		} else {
			phClient = client
		}
	}

	a := &App{
		env:      env,
		settings: settings,
		phClient: phClient,
		metrics:  metrics.New(),
	}
	a.watchCtx, a.cancelWatch = context.WithCancel(context.Background())

	rdb := redis.NewClient(&redis.Options{Addr: env.RedisAddr})
	requestQueue := queue.NewRedisQueue(rdb, env.RequestQueue)
	statusQueue := queue.NewRedisQueue(rdb, env.StatusQueue)

	a.submitter = job.NewSubmitter(requestQueue, env, a.credentialAlert)
	a.monitor = job.NewMonitor(statusQueue, env, a.credentialAlert)
	a.registry = job.NewRegistry(func(st job.RequestState) {
		a.emit("image-request-update", st)
	})

	a.tileServer = tiles.NewServer(settings.TileDir, a.metrics)
	a.pipeline = tiles.NewPipeline(tiles.NewDockerRunner(), a.metrics, tiles.PipelineOptions{
		ImageDir:  settings.ImageDir,
		TileDir:   settings.TileDir,
		ScriptDir: settings.ScriptDir,
		ToolImage: env.ToolchainImage,
		MinZoom:   env.MinZoom,
		MaxZoom:   env.MaxZoom,
		Origin:    a.tileServer.URL,
	})

	a.viewport = newEventViewport(a)
	a.layers = globe.NewManager(a.viewport)
	a.attacher = globe.NewAttacher(globe.AttacherOptions{
		MinZoom: env.MinZoom,
		MaxZoom: env.MaxZoom,
		OnAlert: a.credentialAlert,
	})

	return a
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	for _, dir := range []string{a.settings.ImageDir, a.settings.TileDir, a.settings.ScriptDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("Failed to create %s: %v", dir, err)
		}
	}

	// The extents helper runs inside the work environment; keep the copy in
	// the mounted script directory current.
	scriptPath := filepath.Join(a.settings.ScriptDir, "calculate_extents.py")
	if err := os.WriteFile(scriptPath, extentsScript, 0755); err != nil {
		log.Printf("Failed to install extents script: %v", err)
	}

	if err := a.tileServer.Start(); err != nil {
		wailsRuntime.LogError(ctx, fmt.Sprintf("Failed to start tile server: %v", err))
	}

	a.TrackEvent("app_started", map[string]interface{}{
		"version": AppVersion,
	})
}

// shutdown cleans up resources
func (a *App) shutdown(ctx context.Context) {
	a.cancelWatch()
	if a.phClient != nil {
		a.phClient.Close()
	}
}

// GetAppVersion returns the current application version
func (a *App) GetAppVersion() string {
	return AppVersion
}

// GetTileServerURL returns the local tile server origin
func (a *App) GetTileServerURL() string {
	return a.tileServer.URL()
}

// SceneInitialized is called by the frontend once the globe scene exists.
func (a *App) SceneInitialized() {
	a.viewport.markReady()
	log.Printf("[App] Globe scene initialized")
}

// SubmitImage builds a processing request from the submission form, enqueues
// it, starts monitoring its status, and loads the source image onto the
// globe while the job runs.
func (a *App) SubmitImage(params job.SubmitParams) (job.RequestState, error) {
	req, err := a.submitter.Submit(a.watchCtx, params)
	if err != nil {
		return job.RequestState{}, err
	}

	a.metrics.JobsSubmitted.Inc()
	a.registry.Begin(req)
	a.TrackEvent("job_submitted", map[string]interface{}{
		"model": params.Model,
		"mode":  params.InvocationMode,
	})

	go a.watchJob(req)
	go a.loadSourceImage(req)

	st, _ := a.registry.Get(req.JobID)
	return st, nil
}

// watchJob drains the monitor's update channel into the registry.
func (a *App) watchJob(req *job.Request) {
	for u := range a.monitor.Watch(a.watchCtx, req) {
		if u.Err != nil {
			log.Printf("[App] Monitoring aborted for job %s: %v", req.JobID, u.Err)
			a.emitNotification("Monitoring failed",
				fmt.Sprintf("Lost track of job %s: %v", req.JobName, u.Err), "error")
			continue
		}

		a.registry.Apply(u)

		switch u.State {
		case job.StateSuccess:
			a.metrics.JobsSucceeded.Inc()
			a.TrackEvent("job_succeeded", map[string]interface{}{"duration": u.ProcessingDuration})
		case job.StateError:
			a.metrics.JobsFailed.Inc()
			a.TrackEvent("job_failed", nil)
		case job.StateWarning:
			a.metrics.JobsPartial.Inc()
		case job.StateTimeout:
			a.metrics.JobsTimedOut.Inc()
			a.emitNotification("Job timed out",
				fmt.Sprintf("No terminal status for %s within the polling budget", req.JobName), "warning")
		}
	}
}

// loadSourceImage tiles the submitted image and attaches it to the globe so
// the user sees what the job is processing.
func (a *App) loadSourceImage(req *job.Request) {
	if len(req.Images) == 0 {
		return
	}
	name := filepath.Base(req.Images[0])
	if _, err := os.Stat(filepath.Join(a.settings.ImageDir, name)); err != nil {
		log.Printf("[App] Source image %s not present locally, skipping globe load", name)
		return
	}
	if _, err := a.LoadImage(name); err != nil {
		log.Printf("[App] Failed to load source image %s: %v", name, err)
		a.emitNotification("Image load failed", err.Error(), "error")
	}
}

// LoadImage materializes a tile pyramid for a local image and attaches it
// to the globe.
func (a *App) LoadImage(fileName string) (*globe.Layer, error) {
	urlTemplate, extents, err := a.pipeline.Materialize(a.watchCtx, fileName)
	if err != nil {
		return nil, err
	}

	layer, err := a.attacher.Attach(a.watchCtx, a.viewport, urlTemplate, extents, tiles.BaseName(fileName))
	if err != nil || layer == nil {
		return nil, err
	}
	a.layers.Track(layer)
	return layer, nil
}

// LoadResults records the number of features loaded for a finished job.
// Repeated calls for the same job are no-ops.
func (a *App) LoadResults(jobID string, featureCount int) error {
	if err := a.registry.SetFeatureCount(jobID, featureCount); err != nil {
		return err
	}
	a.TrackEvent("results_loaded", map[string]interface{}{"features": featureCount})
	return nil
}

// DismissJob returns a finished job's panel entry to idle.
func (a *App) DismissJob(jobID string) {
	a.registry.Dismiss(jobID)
}

// GetJobStates returns the state of every tracked job.
func (a *App) GetJobStates() []job.RequestState {
	return a.registry.All()
}

// GetLayers returns the imagery layers currently tracked on the globe.
func (a *App) GetLayers() []*globe.Layer {
	return a.layers.Layers()
}

// RemoveLayer detaches an imagery layer from the globe.
func (a *App) RemoveLayer(layerID string) error {
	return a.layers.Remove(layerID)
}

// SetLayerVisible shows or hides an imagery layer.
func (a *App) SetLayerVisible(layerID string, visible bool) error {
	return a.layers.SetVisible(layerID, visible)
}

// ListSourceImages returns the raster files available in the image directory.
func (a *App) ListSourceImages() ([]string, error) {
	entries, err := os.ReadDir(a.settings.ImageDir)
	if err != nil {
		return nil, fmt.Errorf("read image directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(tiles.BaseName(name), "_warped") {
			continue
		}
		if sourceImageExtensions[strings.ToLower(filepath.Ext(name))] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// GetImagePreview returns a downscaled preview of a local source image.
func (a *App) GetImagePreview(fileName string) (*imagery.Preview, error) {
	if fileName != filepath.Base(fileName) {
		return nil, fmt.Errorf("invalid image name: %q", fileName)
	}
	return imagery.GeneratePreview(filepath.Join(a.settings.ImageDir, fileName), imagery.MaxPreviewDimension)
}

// TrackEvent sends an event to PostHog
func (a *App) TrackEvent(event string, props map[string]interface{}) {
	if a.phClient != nil {
		a.phClient.Enqueue(posthog.Capture{
			DistinctId: "backend_user",
			Event:      event,
			Properties: props,
		})
	}
}

// credentialAlert surfaces an expired-credential condition to the UI so the
// user can refresh and retry the next operation.
func (a *App) credentialAlert(reason string) {
	log.Printf("[App] Credential alert: %s", reason)
	a.emit("credential-alert", map[string]interface{}{"reason": reason})
}

func (a *App) emitNotification(title, message, notifType string) {
	a.emit("system-notification", map[string]interface{}{
		"title":   title,
		"message": message,
		"type":    notifType,
	})
}

func (a *App) emit(event string, payload interface{}) {
	if a.devMode {
		log.Printf("[App] Emitting %s: %+v", event, payload)
	}
	if a.ctx != nil {
		wailsRuntime.EventsEmit(a.ctx, event, payload)
	}
}
