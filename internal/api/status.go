package api

import (
	"net/http"
	"time"
)

// handleStatus reports the polling topology, per-point progress and cache
// occupancy.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	type groupInfo struct {
		ID     string `json:"id"`
		State  string `json:"state"`
		Driver string `json:"driver"`
		Points int    `json:"points"`
	}
	type pointStatus struct {
		Topic       string `json:"topic"`
		Active      bool   `json:"active"`
		LastAttempt string `json:"last_attempt,omitempty"`
		LastSuccess string `json:"last_success,omitempty"`
	}
	type deviceStatus struct {
		Topic              string        `json:"topic"`
		FirstRoundComplete bool          `json:"first_round_complete"`
		Points             []pointStatus `json:"points"`
	}

	groups := s.groups.All()
	out := make([]groupInfo, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupInfo{
			ID:     g.ID,
			State:  string(g.State()),
			Driver: g.Descriptor.Type,
			Points: len(g.Points),
		})
	}

	var rounds map[string]bool
	if s.rounds != nil {
		rounds = s.rounds.RoundsComplete()
	}

	devices := s.registry.Devices()
	devOut := make([]deviceStatus, 0, len(devices))
	for _, d := range devices {
		ds := deviceStatus{
			Topic:              d.Topic,
			FirstRoundComplete: rounds[d.Topic],
			Points:             make([]pointStatus, 0, len(d.Points)),
		}
		for _, pt := range d.Points {
			ps := pointStatus{Topic: pt.Topic, Active: pt.Active()}
			if at := pt.LastRequested(); !at.IsZero() {
				ps.LastAttempt = at.UTC().Format(time.RFC3339Nano)
			}
			if _, updated, ok := s.cache.Get(pt.Topic); ok {
				ps.LastSuccess = updated.UTC().Format(time.RFC3339Nano)
			}
			ds.Points = append(ds.Points, ps)
		}
		devOut = append(devOut, ds)
	}

	resp := map[string]any{
		"devices":       devOut,
		"points":        s.registry.Len(),
		"remote_groups": out,
		"cache_entries": s.cache.Len(),
	}
	if s.overrides != nil {
		resp["override_patterns"] = s.overrides.Patterns()
	}
	if s.hub != nil {
		resp["websocket_clients"] = s.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}
