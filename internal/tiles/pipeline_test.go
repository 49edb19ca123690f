package tiles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"detection-desktop/internal/metrics"
)

type fakeRunner struct {
	pulls  []string
	starts []string
	execs  [][]string
	stops  []string

	pullErr  error
	startErr error

	// onExec lets a test decide per-command behavior.
	onExec func(name string, args []string) (string, error)
}

func (r *fakeRunner) Pull(ctx context.Context, image string) error {
	r.pulls = append(r.pulls, image)
	return r.pullErr
}

func (r *fakeRunner) Start(ctx context.Context, name, image string, mounts []Mount) error {
	r.starts = append(r.starts, name)
	return r.startErr
}

func (r *fakeRunner) Exec(ctx context.Context, name string, args ...string) (string, error) {
	r.execs = append(r.execs, args)
	if r.onExec != nil {
		return r.onExec(name, args)
	}
	return "", nil
}

func (r *fakeRunner) Stop(ctx context.Context, name string) error {
	r.stops = append(r.stops, name)
	return nil
}

// testHarness wires a pipeline over temp directories with a fake runner
// whose default behavior mimics a successful toolchain run.
type testHarness struct {
	pipeline *Pipeline
	runner   *fakeRunner
	imageDir string
	tileDir  string
}

const testExtentsJSON = `{"west": 20.0, "south": 9.5, "east": 21.0, "north": 10.5}`

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	h := &testHarness{
		runner:   &fakeRunner{},
		imageDir: t.TempDir(),
		tileDir:  t.TempDir(),
	}

	h.runner.onExec = func(name string, args []string) (string, error) {
		switch args[0] {
		case "gdalwarp":
			// The warp writes its output into the mounted image directory.
			warped := filepath.Base(args[len(args)-1])
			if err := os.WriteFile(filepath.Join(h.imageDir, warped), []byte("warped"), 0644); err != nil {
				return "", err
			}
			return "", nil
		case "python3":
			return testExtentsJSON + "\n", nil
		case "gdal2tiles.py":
			// The tiler creates zoom-level subdirectories under the tile dir.
			base := filepath.Base(args[len(args)-1])
			return "", os.MkdirAll(filepath.Join(h.tileDir, base, "0"), 0755)
		}
		return "", nil
	}

	h.pipeline = NewPipeline(h.runner, metrics.New(), PipelineOptions{
		ImageDir:  h.imageDir,
		TileDir:   h.tileDir,
		ScriptDir: t.TempDir(),
		ToolImage: "gdal:test",
		MinZoom:   0,
		MaxZoom:   12,
		Origin:    func() string { return "http://127.0.0.1:9999" },
	})

	if err := os.WriteFile(filepath.Join(h.imageDir, "scene1.tif"), []byte("raster"), 0644); err != nil {
		t.Fatal(err)
	}

	return h
}

func (h *testHarness) warpedPath() string {
	return filepath.Join(h.imageDir, "scene1_warped.tif")
}

func TestMaterializeGeneratesOnMiss(t *testing.T) {
	h := newHarness(t)

	urlTemplate, ext, err := h.pipeline.Materialize(context.Background(), "scene1.tif")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "http://127.0.0.1:9999/tiles/scene1/{z}/{x}/{reverseY}.png"
	if urlTemplate != want {
		t.Errorf("unexpected url template: %q", urlTemplate)
	}
	if ext.North != 10.5 || ext.West != 20.0 {
		t.Errorf("unexpected extents: %+v", ext)
	}

	if len(h.runner.pulls) != 1 || len(h.runner.starts) != 1 || len(h.runner.stops) != 1 {
		t.Errorf("expected one pull/start/stop, got %d/%d/%d",
			len(h.runner.pulls), len(h.runner.starts), len(h.runner.stops))
	}
	if len(h.runner.execs) != 3 {
		t.Fatalf("expected 3 toolchain steps, got %d", len(h.runner.execs))
	}
	if h.runner.execs[0][0] != "gdalwarp" || h.runner.execs[1][0] != "python3" || h.runner.execs[2][0] != "gdal2tiles.py" {
		t.Errorf("steps out of order: %v", h.runner.execs)
	}

	// Extents were persisted and the warped intermediate removed.
	if _, err := os.Stat(filepath.Join(h.tileDir, "scene1", extentsFileName)); err != nil {
		t.Errorf("extents file not persisted: %v", err)
	}
	if _, err := os.Stat(h.warpedPath()); !os.IsNotExist(err) {
		t.Error("warped intermediate file left behind")
	}
}

func TestMaterializeSecondCallHitsCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, first, err := h.pipeline.Materialize(ctx, "scene1.tif")
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}

	execsBefore := len(h.runner.execs)
	_, second, err := h.pipeline.Materialize(ctx, "scene1.tif")
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}

	if second != first {
		t.Errorf("cached extents differ: %+v vs %+v", second, first)
	}
	if len(h.runner.execs) != execsBefore {
		t.Error("second call must not invoke the toolchain")
	}
	if len(h.runner.starts) != 1 {
		t.Errorf("second call must not start a work environment, got %d starts", len(h.runner.starts))
	}
}

func TestMaterializeCleanupOnStepFailure(t *testing.T) {
	steps := []string{"gdalwarp", "python3", "gdal2tiles.py"}

	for _, failAt := range steps {
		t.Run(failAt, func(t *testing.T) {
			h := newHarness(t)
			base := h.runner.onExec
			h.runner.onExec = func(name string, args []string) (string, error) {
				if args[0] == failAt {
					// Even a failing warp may leave a partial output behind.
					if failAt == "gdalwarp" {
						os.WriteFile(h.warpedPath(), []byte("partial"), 0644)
					}
					return "", errors.New("exit status 1")
				}
				return base(name, args)
			}

			_, _, err := h.pipeline.Materialize(context.Background(), "scene1.tif")
			if err == nil {
				t.Fatal("expected failure to surface")
			}

			if len(h.runner.stops) != 1 {
				t.Errorf("work environment torn down %d times, want exactly once", len(h.runner.stops))
			}
			if _, statErr := os.Stat(h.warpedPath()); !os.IsNotExist(statErr) {
				t.Error("warped intermediate file left behind after failure")
			}
		})
	}
}

func TestMaterializeMalformedExtentsOutput(t *testing.T) {
	h := newHarness(t)
	base := h.runner.onExec
	h.runner.onExec = func(name string, args []string) (string, error) {
		if args[0] == "python3" {
			return "ERROR: could not open dataset\n", nil
		}
		return base(name, args)
	}

	_, _, err := h.pipeline.Materialize(context.Background(), "scene1.tif")
	if err == nil {
		t.Fatal("expected parse failure to surface")
	}
	if !strings.Contains(err.Error(), "extents") {
		t.Errorf("unexpected error: %v", err)
	}
	if len(h.runner.stops) != 1 {
		t.Errorf("expected exactly one teardown, got %d", len(h.runner.stops))
	}
}

func TestMaterializeUsesUniqueEnvironmentNames(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, _, err := h.pipeline.Materialize(ctx, "scene1.tif"); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(h.imageDir, "scene2.tif"), []byte("raster"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := h.pipeline.Materialize(ctx, "scene2.tif"); err != nil {
		t.Fatal(err)
	}

	if len(h.runner.starts) != 2 || h.runner.starts[0] == h.runner.starts[1] {
		t.Errorf("expected two uniquely named environments, got %v", h.runner.starts)
	}
}

func TestBaseName(t *testing.T) {
	cases := map[string]string{
		"scene1.tif":     "scene1",
		"dir/scene1.ntf": "scene1",
		"scene1":         "scene1",
		"scene.one.tif":  "scene.one",
	}
	for in, want := range cases {
		if got := BaseName(in); got != want {
			t.Errorf("BaseName(%q) = %q, want %q", in, got, want)
		}
	}
}
