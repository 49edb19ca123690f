package tiles

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"detection-desktop/internal/metrics"
)

// Server serves generated tile pyramids over a local HTTP origin so the
// globe frontend can load them with a plain URL template.
type Server struct {
	tileDir string
	metrics *metrics.Metrics

	mu  sync.RWMutex
	url string
}

// NewServer creates a tile server over the given tile root directory.
func NewServer(tileDir string, m *metrics.Metrics) *Server {
	return &Server{tileDir: tileDir, metrics: m}
}

// URL returns the server origin, or "" before Start has completed.
func (s *Server) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.url
}

// Handler builds the router. Split out from Start for tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)
	r.Get("/tiles/{image}/{z}/{x}/{y}", s.handleTile)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	return r
}

// Start listens on a random local port and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to start tile server: %w", err)
	}

	port := listener.Addr().(*net.TCPAddr).Port
	s.mu.Lock()
	s.url = fmt.Sprintf("http://127.0.0.1:%d", port)
	s.mu.Unlock()
	log.Printf("[TileServer] Listening on %s", s.URL())

	server := &http.Server{Handler: s.Handler()}
	go func() {
		if err := server.Serve(listener); err != nil {
			log.Printf("[TileServer] Stopped: %v", err)
		}
	}()

	return nil
}

// handleTile serves one tile image from the pyramid on disk.
// URL format: /tiles/{image}/{z}/{x}/{y} where y carries a .png suffix.
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	image := chi.URLParam(r, "image")
	zStr := chi.URLParam(r, "z")
	xStr := chi.URLParam(r, "x")
	yStr := chi.URLParam(r, "y")

	yStr = trimPNG(yStr)

	if _, err := strconv.Atoi(zStr); err != nil {
		http.Error(w, "Invalid zoom level", http.StatusBadRequest)
		return
	}
	if _, err := strconv.Atoi(xStr); err != nil {
		http.Error(w, "Invalid X coordinate", http.StatusBadRequest)
		return
	}
	if _, err := strconv.Atoi(yStr); err != nil {
		http.Error(w, "Invalid Y coordinate", http.StatusBadRequest)
		return
	}
	if image != filepath.Base(image) || image == "." || image == ".." {
		http.Error(w, "Invalid image name", http.StatusBadRequest)
		return
	}

	path := filepath.Join(s.tileDir, image, zStr, xStr, yStr+".png")
	data, err := os.ReadFile(path)
	if err != nil {
		s.metrics.TileServerMisses.Inc()
		http.NotFound(w, r)
		return
	}

	s.metrics.TilesServed.Inc()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Write(data)
}

func trimPNG(y string) string {
	if len(y) > 4 && y[len(y)-4:] == ".png" {
		return y[:len(y)-4]
	}
	return y
}

// corsMiddleware adds CORS headers so the wails:// frontend origin can load
// tiles from the local server.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
