package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mcdev12/trialclock/go/internal/events"
	"github.com/mcdev12/trialclock/go/internal/session"
	"github.com/mcdev12/trialclock/go/internal/timer"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for run streams
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	runs              *session.Manager
	factory           *events.Factory
}

func NewWebSocketHandler(cm *ConnectionManager, runs *session.Manager, factory *events.Factory) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		runs:              runs,
		factory:           factory,
	}
}

// HandleRunConnection handles GET /ws/runs/{runID}. The current render state
// is the first frame on the socket.
func (h *WebSocketHandler) HandleRunConnection(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		http.Error(w, "invalid run id format", http.StatusBadRequest)
		return
	}

	run, err := h.runs.Get(runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	// The upgrader has already answered the client when this fails.
	conn, err := h.connectionManager.UpgradeConnection(w, r, runID)
	if err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID.String()).
			Msg("failed to upgrade WebSocket connection")
		return
	}

	// Snapshot and join under the engine lock so no render slips between them.
	err = run.Engine.Attach(func(state timer.RenderState) error {
		initial, err := h.factory.Render(runID, state)
		if err != nil {
			return err
		}
		return h.connectionManager.Join(conn, initial)
	})
	if err != nil {
		log.Warn().
			Err(err).
			Str("run_id", runID.String()).
			Str("connection_id", conn.ID).
			Msg("WebSocket client could not join run")
		h.connectionManager.Reject(conn, "run unavailable")
	}
}

// HandleConnectionStats handles GET /ws/stats
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectionManager.Stats())
}

func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/runs/{runID}", h.HandleRunConnection)
	r.Get("/ws/stats", h.HandleConnectionStats)
}
