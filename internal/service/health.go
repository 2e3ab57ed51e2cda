package service

import (
	"context"
	"time"
)

// Health is the readiness report. It is informational and never blocks startup.
type Health struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	DBConnected bool              `json:"db_connected"`
	FTSEnabled  *bool             `json:"fts_enabled,omitempty"`
	Warnings    []string          `json:"warnings"`
	Agents      map[string]string `json:"agents"`
}

type ftsReporter interface {
	FTSEnabled() bool
}

// Health pings the store and collects configuration warnings.
func (s *Service) Health(ctx context.Context) *Health {
	h := &Health{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Warnings:  s.config.Warnings(),
		Agents:    map[string]string{},
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.store.Ping(pingCtx); err != nil {
		s.obs.Log().Error().Err(err).Msg("health check: database unreachable")
		h.Status = "degraded"
	} else {
		h.DBConnected = true
	}

	if r, ok := s.store.(ftsReporter); ok {
		enabled := r.FTSEnabled()
		h.FTSEnabled = &enabled
		if !enabled {
			h.Warnings = append(h.Warnings, "full-text index unavailable; document search uses substring matching")
		}
	}

	for _, a := range s.ListAgents() {
		h.Agents[string(a.Task)] = a.Status
	}
	return h
}
