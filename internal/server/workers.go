package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-fleet/internal/registry"
	"github.com/rxtech-lab/argo-fleet/internal/types"
	"github.com/rxtech-lab/argo-fleet/pkg/errors"
)

type startWorkerRequest struct {
	ConfigID string               `json:"config_id"`
	Config   types.StrategyConfig `json:"config"`
}

type workerKeyResponse struct {
	TenantID string `json:"tenant_id"`
	ConfigID string `json:"config_id"`
}

func keyResponse(key types.WorkerKey) workerKeyResponse {
	return workerKeyResponse{TenantID: key.TenantID, ConfigID: key.ConfigID}
}

func workerKey(r *http.Request) types.WorkerKey {
	vars := mux.Vars(r)

	return types.NewWorkerKey(vars["tenant"], vars["config_id"])
}

// selector builds a registry selector from the config_id and symbol query parameters.
func selector(r *http.Request) registry.Selector {
	sel := registry.All()
	query := r.URL.Query()

	if id := query.Get("config_id"); id != "" {
		sel.ConfigID = optional.Some(id)
	}

	if symbol := query.Get("symbol"); symbol != "" {
		sel.Symbol = optional.Some(symbol)
	}

	return sel
}

func (s *Server) handleStartWorker(w http.ResponseWriter, r *http.Request) {
	var req startWorkerRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)

		return
	}

	key, err := s.registry.Start(r.Context(), mux.Vars(r)["tenant"], req.Config, req.ConfigID)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, keyResponse(key))
}

func (s *Server) handleWorkerStatus(w http.ResponseWriter, r *http.Request) {
	snaps := s.registry.Status(mux.Vars(r)["tenant"], selector(r))
	if snaps.IsNone() {
		s.writeError(w, errors.New(errors.ErrCodeWorkerNotFound, "no matching worker"))

		return
	}

	writeJSON(w, http.StatusOK, snaps.Unwrap())
}

func (s *Server) handleListWorkers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleStopWorkers(w http.ResponseWriter, r *http.Request) {
	stopped, err := s.registry.Stop(r.Context(), mux.Vars(r)["tenant"], selector(r))
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"stopped": stopped})
}

func (s *Server) handleReconfigure(w http.ResponseWriter, r *http.Request) {
	var update types.StrategyConfigUpdate
	if err := decodeBody(r, &update); err != nil {
		s.writeError(w, err)

		return
	}

	merged, err := s.registry.Reconfigure(r.Context(), workerKey(r), update)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, merged)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	key := workerKey(r)
	if err := s.registry.Restart(r.Context(), key); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, keyResponse(key))
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	key := workerKey(r)
	if err := s.registry.Pause(key); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, keyResponse(key))
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	key := workerKey(r)
	if err := s.registry.Resume(key); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, keyResponse(key))
}
