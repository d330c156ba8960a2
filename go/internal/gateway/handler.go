package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mcdev12/trialclock/go/internal/session"
	"github.com/mcdev12/trialclock/go/internal/setup"
	"github.com/mcdev12/trialclock/go/internal/timer"
	"github.com/rs/zerolog/log"
)

// Handler serves the run REST API.
type Handler struct {
	runs *session.Manager
}

func NewHandler(runs *session.Manager) *Handler {
	return &Handler{runs: runs}
}

// RunResponse is returned by every endpoint that touches a single run.
type RunResponse struct {
	RunID string            `json:"run_id"`
	State timer.RenderState `json:"state"`
	Error string            `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/runs", func(r chi.Router) {
		r.Get("/", h.HandleListRuns)
		r.Post("/", h.HandleCreateRun)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/state", h.HandleGetState)
			r.Post("/commands/{command}", h.HandleCommand)
			r.Delete("/", h.HandleDeleteRun)
		})
	})
}

// HandleCreateRun handles POST /api/runs. The plan comes from the JSON body
// or, when the body is empty, from the setup query string.
func (h *Handler) HandleCreateRun(w http.ResponseWriter, r *http.Request) {
	plan, err := planFromRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	run, err := h.runs.Create(plan)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if !isPlanError(err) {
			status = http.StatusServiceUnavailable
		}
		log.Warn().Err(err).Msg("failed to create run")
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, RunResponse{RunID: run.ID.String(), State: run.Engine.Snapshot()})
}

// HandleListRuns handles GET /api/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.runs.List())
}

// HandleGetState handles GET /api/runs/{runID}/state
func (h *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{RunID: run.ID.String(), State: run.Engine.Snapshot()})
}

// HandleCommand handles POST /api/runs/{runID}/commands/{command}. Ignored
// transitions answer 409 with the unchanged state.
func (h *Handler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}

	cmd := session.Command(chi.URLParam(r, "command"))
	var target *session.Target
	if cmd == session.CommandSelect {
		target = &session.Target{}
		if err := json.NewDecoder(r.Body).Decode(target); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "select needs a JSON body with party and id"})
			return
		}
	}

	err := run.Apply(cmd, target)
	resp := RunResponse{RunID: run.ID.String(), State: run.Engine.Snapshot()}
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, session.ErrUnknownCommand):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, session.ErrBadTarget):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case timer.IsIgnored(err):
		resp.Error = err.Error()
		writeJSON(w, http.StatusConflict, resp)
	default:
		log.Error().Err(err).Str("run_id", run.ID.String()).Str("command", string(cmd)).Msg("command failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "command failed"})
	}
}

// HandleDeleteRun handles DELETE /api/runs/{runID}
func (h *Handler) HandleDeleteRun(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid run id"})
		return
	}
	if err := h.runs.Remove(runID); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*session.Run, bool) {
	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid run id"})
		return nil, false
	}
	run, err := h.runs.Get(runID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return nil, false
	}
	return run, true
}

func planFromRequest(r *http.Request) (*setup.Plan, error) {
	if r.URL.Query().Has("blocks") {
		return setup.FromQuery(r.URL.Query())
	}
	plan, err := setup.DecodeJSON(r.Body)
	if errors.Is(err, io.EOF) {
		return setup.DefaultPlan(), nil
	}
	return plan, err
}

func isPlanError(err error) bool {
	return errors.Is(err, setup.ErrNoBlocks) ||
		errors.Is(err, setup.ErrDuplicateBlock) ||
		errors.Is(err, setup.ErrPartyCount)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
