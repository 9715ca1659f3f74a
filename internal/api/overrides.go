package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fieldpoint/fieldpoint-core/internal/override"
)

type overrideRequest struct {
	// Pattern is a glob over device topics, e.g. "devices/Campus/*".
	Pattern string `json:"pattern"`

	// Duration is how long the override holds, in seconds. Zero or absent
	// means indefinite.
	Duration float64 `json:"duration"`
}

// handleListOverrides returns the live patterns and the devices they block.
func (s *Server) handleListOverrides(w http.ResponseWriter, _ *http.Request) {
	if s.overrides == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"patterns": []string{},
			"devices":  []string{},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"patterns": s.overrides.Patterns(),
		"devices":  s.overrides.Devices(),
	})
}

func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	if s.overrides == nil {
		writeInternalError(w, "override manager not configured")
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Pattern == "" {
		writeBadRequest(w, "pattern is required")
		return
	}

	duration := time.Duration(req.Duration * float64(time.Second))
	if err := s.overrides.Set(r.Context(), req.Pattern, duration); err != nil {
		if errors.Is(err, override.ErrInvalidPattern) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"pattern": req.Pattern,
		"devices": s.overrides.Devices(),
	})
}

func (s *Server) handleClearOverride(w http.ResponseWriter, r *http.Request) {
	if s.overrides == nil {
		writeInternalError(w, "override manager not configured")
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Pattern == "" {
		writeBadRequest(w, "pattern is required")
		return
	}

	if err := s.overrides.Clear(r.Context(), req.Pattern); err != nil {
		if errors.Is(err, override.ErrUnknownPattern) {
			writeNotFound(w, err.Error())
			return
		}
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": req.Pattern})
}

func (s *Server) handleClearAllOverrides(w http.ResponseWriter, r *http.Request) {
	if s.overrides == nil {
		writeInternalError(w, "override manager not configured")
		return
	}
	if err := s.overrides.ClearAll(r.Context()); err != nil {
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": "all"})
}
