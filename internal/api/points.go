package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fieldpoint/fieldpoint-core/internal/dispatch"
	"github.com/fieldpoint/fieldpoint-core/internal/point"
)

// selectRequest is the shared selector body of every point command.
type selectRequest struct {
	// Topics are topic selectors: exact points, container prefixes, or
	// paths with "-" wildcard segments. Empty means every point.
	Topics []string `json:"topics"`

	// Pattern optionally filters the selected set with a regular expression.
	Pattern string `json:"pattern"`
}

type setRequest struct {
	selectRequest

	// Value is written to every selected point when Values is absent.
	Value any `json:"value"`

	// Values maps full point topics to individual values. Selected points
	// absent from the map are skipped.
	Values map[string]any `json:"values"`
}

type lastRequest struct {
	selectRequest

	// Value and Updated trim the response; both default to true.
	Value   *bool `json:"value"`
	Updated *bool `json:"updated"`
}

// commandResponse is the per-point outcome of a command.
type commandResponse struct {
	Results map[string]any    `json:"results"`
	Errors  map[string]string `json:"errors"`
}

func toResponse(res dispatch.Result) commandResponse {
	out := commandResponse{
		Results: res.Values,
		Errors:  make(map[string]string, len(res.Errors)),
	}
	for topic, err := range res.Errors {
		out.Errors[topic] = err.Error()
	}
	return out
}

// writeResolveError maps selector resolution failures onto HTTP statuses.
func writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, point.ErrNoMatch):
		writeNotFound(w, "no points match the given selectors")
	case errors.Is(err, point.ErrInvalidRegex):
		writeBadRequest(w, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}

// handleListPoints returns the registered point inventory.
func (s *Server) handleListPoints(w http.ResponseWriter, _ *http.Request) {
	type pointInfo struct {
		Topic        string  `json:"topic"`
		Device       string  `json:"device"`
		Interval     float64 `json:"interval_seconds"`
		StaleTimeout float64 `json:"stale_timeout_seconds"`
		Writable     bool    `json:"writable"`
		Units        string  `json:"units,omitempty"`
		Active       bool    `json:"active"`
	}

	points := s.registry.Points()
	out := make([]pointInfo, 0, len(points))
	for _, p := range points {
		out = append(out, pointInfo{
			Topic:        p.Topic,
			Device:       p.DeviceTopic,
			Interval:     p.Interval.Seconds(),
			StaleTimeout: p.StaleTimeout.Seconds(),
			Writable:     p.Writable,
			Units:        p.Units,
			Active:       p.Active(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"points": out,
		"count":  len(out),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.handleActivate(w, r, true)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.handleActivate(w, r, false)
}

// handleActivate flips the scheduler activation flag on the selected points.
// Inactive points are skipped by the poller but stay resolvable.
func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request, active bool) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	points, err := s.registry.Resolve(req.Topics, req.Pattern)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	topics := make([]string, 0, len(points))
	for _, p := range points {
		p.SetActive(active)
		topics = append(topics, p.Topic)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active": active,
		"topics": topics,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res, err := s.dispatcher.Get(r.Context(), req.Topics, req.Pattern)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil && req.Values == nil {
		writeBadRequest(w, "either value or values is required")
		return
	}

	res, err := s.dispatcher.Set(r.Context(), req.Topics, req.Pattern, req.Value, req.Values)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res, err := s.dispatcher.Revert(r.Context(), req.Topics, req.Pattern)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (s *Server) handleLast(w http.ResponseWriter, r *http.Request) {
	var req lastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	includeValue := req.Value == nil || *req.Value
	includeUpdated := req.Updated == nil || *req.Updated

	entries, errs, err := s.dispatcher.Last(req.Topics, req.Pattern, includeValue, includeUpdated)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	type lastEntry struct {
		Value   any    `json:"value,omitempty"`
		Updated string `json:"updated,omitempty"`
	}
	results := make(map[string]lastEntry, len(entries))
	for topic, e := range entries {
		out := lastEntry{Value: e.Value}
		if includeUpdated && !e.Updated.IsZero() {
			out.Updated = e.Updated.UTC().Format(time.RFC3339Nano)
		}
		results[topic] = out
	}
	errOut := make(map[string]string, len(errs))
	for topic, e := range errs {
		errOut[topic] = e.Error()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"errors":  errOut,
	})
}
