package web

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/cjeanneret/RasterGo/internal/debug"
	"github.com/cjeanneret/RasterGo/internal/logic/geometry"
	"github.com/cjeanneret/RasterGo/internal/logic/scan"
)

// Rig is the part of the scanner the panel can see and drive.
type Rig interface {
	// Press delivers one edge to the run latch, exactly like the physical button.
	Press()
	Running() bool
	Snapshot() scan.Snapshot
	Resolution() int
	SetResolution(percent int) error
	Plan(percent int) *geometry.GridPlan
}

// ResolutionRequest is the body of POST /resolution.
type ResolutionRequest struct {
	ResolutionPercent int `json:"resolution_percent"`
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	scan.Snapshot
	Running bool `json:"running"`
}

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// minPressInterval rejects button presses arriving faster than this, so a
// double click does not start and immediately abort a scan.
const minPressInterval = 500 * time.Millisecond

// ValidateResolution checks a requested resolution.
func ValidateResolution(req ResolutionRequest) error {
	if req.ResolutionPercent < 1 || req.ResolutionPercent > 100 {
		return fmt.Errorf("resolution_percent must be between 1 and 100, got %d", req.ResolutionPercent)
	}
	return nil
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Rig         Rig
	staticFS    fs.FS

	pressMu   sync.Mutex
	lastPress time.Time
	now       func() time.Time
}

// NewHandlers creates handlers with the given dependencies.
// If rig is nil, every endpoint except the index and the stream returns 503.
func NewHandlers(broadcaster *StatusBroadcaster, rig Rig, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Rig:         rig,
		staticFS:    staticFS,
		now:         time.Now,
	}
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleRun handles POST /run: one virtual press of the run/stop button.
// Whether it starts or aborts a scan depends on the current run state.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Rig == nil {
		http.Error(w, "rig not configured", http.StatusServiceUnavailable)
		return
	}

	h.pressMu.Lock()
	now := h.now()
	if !h.lastPress.IsZero() && now.Sub(h.lastPress) < minPressInterval {
		h.pressMu.Unlock()
		http.Error(w, "button pressed too fast", http.StatusTooManyRequests)
		return
	}
	h.lastPress = now
	h.pressMu.Unlock()

	h.Rig.Press()
	running := h.Rig.Running()
	if running {
		h.Broadcaster.BroadcastMsg("Run requested from web panel")
	} else {
		h.Broadcaster.BroadcastMsg("Stop requested from web panel")
	}
	debug.Info("Web panel press, run flag now %v", running)

	writeJSON(w, http.StatusAccepted, map[string]bool{"running": running})
}

// HandleResolution handles POST /resolution. The value applies from the
// next scan.
func (h *Handlers) HandleResolution(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Rig == nil {
		http.Error(w, "rig not configured", http.StatusServiceUnavailable)
		return
	}

	var req ResolutionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := ValidateResolution(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.Rig.SetResolution(req.ResolutionPercent); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.Broadcaster.BroadcastMsg(fmt.Sprintf("Resolution set to %d%%", req.ResolutionPercent))

	writeJSON(w, http.StatusOK, h.Rig.Plan(req.ResolutionPercent))
}

// HandleConfig returns the grid plan for the current resolution.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if h.Rig == nil {
		http.Error(w, "rig not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, h.Rig.Plan(h.Rig.Resolution()))
}

// HandleState returns the scan machine snapshot.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	if h.Rig == nil {
		http.Error(w, "rig not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{Snapshot: h.Rig.Snapshot(), Running: h.Rig.Running()})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
