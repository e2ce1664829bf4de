package api

import (
	"net/http"
	"strconv"
	"time"
)

const defaultArtifactLimit = 50

// FatalResponse describes the most recent fatal captured by the
// diagnostic writer.
type FatalResponse struct {
	Time       time.Time `json:"time"`
	Error      string    `json:"error"`
	ReportPath string    `json:"report_path,omitempty"`
}

// ArtifactResponse is one indexed diagnostic artifact.
type ArtifactResponse struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	Base      string    `json:"base"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleLastFatal(w http.ResponseWriter, _ *http.Request) {
	rec := s.diag.LastFatal()
	if rec == nil {
		respondError(w, http.StatusNotFound, "no fatal recorded")
		return
	}

	resp := FatalResponse{
		Time:       rec.Time,
		ReportPath: rec.ReportPath,
	}
	if rec.Err != nil {
		resp.Error = rec.Err.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		respondError(w, http.StatusServiceUnavailable, "artifact index disabled")
		return
	}

	base := r.URL.Query().Get("base")
	limit := defaultArtifactLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	artifacts, err := s.index.List(r.Context(), base, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := make([]ArtifactResponse, 0, len(artifacts))
	for _, a := range artifacts {
		resp = append(resp, ArtifactResponse(a))
	}
	respondJSON(w, http.StatusOK, resp)
}
