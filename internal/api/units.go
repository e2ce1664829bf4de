package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hugo-lorenzo-mato/lifeline/internal/supervise"
)

// StackResponse carries a captured goroutine stack for one unit.
type StackResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stack string `json:"stack"`
}

func (s *Server) handleListUnits(w http.ResponseWriter, _ *http.Request) {
	statuses := s.units.Snapshot()
	if statuses == nil {
		statuses = []supervise.UnitStatus{}
	}
	respondJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleGetUnit(w http.ResponseWriter, r *http.Request) {
	u, ok := s.units.Lookup(chi.URLParam(r, "unitID"))
	if !ok {
		respondError(w, http.StatusNotFound, "unit not found")
		return
	}
	respondJSON(w, http.StatusOK, u.Status())
}

func (s *Server) handleUnitStack(w http.ResponseWriter, r *http.Request) {
	u, ok := s.units.Lookup(chi.URLParam(r, "unitID"))
	if !ok {
		respondError(w, http.StatusNotFound, "unit not found")
		return
	}

	stack, ok := u.StackTrace()
	if !ok {
		respondError(w, http.StatusNotFound, "stack trace unavailable")
		return
	}
	respondJSON(w, http.StatusOK, StackResponse{
		ID:    u.ID(),
		Name:  u.Name(),
		Stack: stack,
	})
}

func (s *Server) handleTerminateUnit(w http.ResponseWriter, r *http.Request) {
	u, ok := s.units.Lookup(chi.URLParam(r, "unitID"))
	if !ok {
		respondError(w, http.StatusNotFound, "unit not found")
		return
	}

	// API callers are never the unit itself, so the caller token is zero.
	if err := s.units.Terminate(u, supervise.Token{}); err != nil {
		if errors.Is(err, supervise.ErrStillAlive) {
			respondError(w, http.StatusGatewayTimeout, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, u.Status())
}
