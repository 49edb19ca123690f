package tiles

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"detection-desktop/internal/metrics"
)

// Container-side paths the work environment mounts the local directories on.
const (
	containerImageDir  = "/images"
	containerTileDir   = "/tiles"
	containerScriptDir = "/scripts"
)

// fallbackOrigin serves tile URLs when the local tile server has not
// reported an origin yet (e.g. very early in startup).
const fallbackOrigin = "http://localhost:34115"

// extentsScriptName is the helper script executed inside the environment to
// compute geographic extents. It prints one line of JSON to stdout.
const extentsScriptName = "calculate_extents.py"

// Pipeline converts a raw source image into a locally servable tile pyramid
// by orchestrating the external raster toolchain: reproject to a geographic
// frame, compute extents, generate tiles. Results are cached per image base
// name so expensive work runs at most once per image.
type Pipeline struct {
	runner  Runner
	cache   *Cache
	metrics *metrics.Metrics

	imageDir  string
	tileDir   string
	scriptDir string

	toolImage string
	minZoom   int
	maxZoom   int

	// origin returns the tile server origin to root URL templates at.
	origin func() string

	// Per-base-name locks guard the miss -> generate -> store sequence so
	// concurrent materialize calls for the same image cannot race.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	ImageDir  string
	TileDir   string
	ScriptDir string
	ToolImage string
	MinZoom   int
	MaxZoom   int
	Origin    func() string
}

// NewPipeline creates a Pipeline. The cache lives under opts.TileDir.
func NewPipeline(runner Runner, m *metrics.Metrics, opts PipelineOptions) *Pipeline {
	origin := opts.Origin
	if origin == nil {
		origin = func() string { return "" }
	}

	return &Pipeline{
		runner:    runner,
		cache:     NewCache(opts.TileDir),
		metrics:   m,
		imageDir:  opts.ImageDir,
		tileDir:   opts.TileDir,
		scriptDir: opts.ScriptDir,
		toolImage: opts.ToolImage,
		minZoom:   opts.MinZoom,
		maxZoom:   opts.MaxZoom,
		origin:    origin,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Cache exposes the pipeline's tile cache.
func (p *Pipeline) Cache() *Cache {
	return p.cache
}

// Materialize ensures a tile pyramid exists for the named source image (a
// file inside the image directory) and returns the tile URL template plus
// the image's geographic extents.
func (p *Pipeline) Materialize(ctx context.Context, sourceImage string) (string, Extents, error) {
	base := BaseName(sourceImage)
	if base == "" {
		return "", Extents{}, fmt.Errorf("invalid source image name: %q", sourceImage)
	}

	lock := p.lockFor(base)
	lock.Lock()
	defer lock.Unlock()

	if ext, ok := p.cache.Lookup(base); ok {
		log.Printf("[TilePipeline] Cache hit for %s", base)
		p.metrics.TileCacheHits.Inc()
		return p.urlTemplate(base), ext, nil
	}
	p.metrics.TileCacheMisses.Inc()

	if err := p.runner.Pull(ctx, p.toolImage); err != nil {
		return "", Extents{}, err
	}

	envName := "tilework-" + uuid.NewString()[:8]
	mounts := []Mount{
		{Host: p.imageDir, Container: containerImageDir},
		{Host: p.tileDir, Container: containerTileDir},
		{Host: p.scriptDir, Container: containerScriptDir},
	}
	if err := p.runner.Start(ctx, envName, p.toolImage, mounts); err != nil {
		return "", Extents{}, err
	}

	p.metrics.PipelineRuns.Inc()
	ext, err := p.generate(ctx, envName, base, sourceImage)

	// Cleanup is unconditional and ordered before any failure surfaces:
	// the work environment never outlives the run, and the warped
	// intermediate file is never left behind.
	if stopErr := p.runner.Stop(ctx, envName); stopErr != nil {
		log.Printf("[TilePipeline] Failed to stop work environment %s: %v", envName, stopErr)
	}
	p.removeWarped(base)

	if err != nil {
		p.metrics.PipelineFailures.Inc()
		return "", Extents{}, err
	}

	return p.urlTemplate(base), ext, nil
}

// generate runs the three ordered toolchain steps and stores the cache
// entry. Steps are strictly sequential: each depends on the previous step's
// output file.
func (p *Pipeline) generate(ctx context.Context, envName, base, sourceImage string) (Extents, error) {
	srcPath := containerImageDir + "/" + sourceImage
	warpedPath := containerImageDir + "/" + warpedName(base)

	// Reproject to an axis-aligned geographic frame. Source imagery may be
	// in an arbitrary projected or rotated frame, and the tiler requires
	// EPSG:4326 input.
	log.Printf("[TilePipeline] Warping %s", sourceImage)
	if _, err := p.runner.Exec(ctx, envName,
		"gdalwarp",
		"-t_srs", "EPSG:4326",
		"-r", "bilinear",
		"-dstalpha",
		"-co", "TILED=YES",
		srcPath, warpedPath,
	); err != nil {
		return Extents{}, fmt.Errorf("reproject %s: %w", sourceImage, err)
	}

	log.Printf("[TilePipeline] Computing extents for %s", base)
	out, err := p.runner.Exec(ctx, envName,
		"python3", containerScriptDir+"/"+extentsScriptName, warpedPath,
	)
	if err != nil {
		return Extents{}, fmt.Errorf("compute extents for %s: %w", base, err)
	}
	ext, err := ParseExtents(lastLine(out))
	if err != nil {
		return Extents{}, fmt.Errorf("extents output for %s: %w", base, err)
	}

	log.Printf("[TilePipeline] Generating tiles for %s (zoom %d-%d)", base, p.minZoom, p.maxZoom)
	if _, err := p.runner.Exec(ctx, envName,
		"gdal2tiles.py",
		"-z", fmt.Sprintf("%d-%d", p.minZoom, p.maxZoom),
		"--tilesize", "256",
		"-w", "none",
		warpedPath, containerTileDir+"/"+base,
	); err != nil {
		return Extents{}, fmt.Errorf("generate tiles for %s: %w", base, err)
	}

	if err := p.cache.Store(base, ext); err != nil {
		log.Printf("[TilePipeline] Failed to persist extents for %s: %v", base, err)
	}

	return ext, nil
}

// urlTemplate builds the tile URL template for a generated pyramid.
func (p *Pipeline) urlTemplate(base string) string {
	origin := p.origin()
	if origin == "" {
		origin = fallbackOrigin
	}
	return fmt.Sprintf("%s/tiles/%s/{z}/{x}/{reverseY}.png", origin, base)
}

func (p *Pipeline) removeWarped(base string) {
	path := filepath.Join(p.imageDir, warpedName(base))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("[TilePipeline] Failed to remove warped intermediate %s: %v", path, err)
	}
}

func (p *Pipeline) lockFor(base string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.locks[base]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[base] = lock
	}
	return lock
}

func warpedName(base string) string {
	return base + "_warped.tif"
}

// BaseName strips the directory and extension from a source image name.
func BaseName(sourceImage string) string {
	name := filepath.Base(sourceImage)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
