package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/lightrelay/internal/audit"
)

// healthCheckTimeout bounds the database probe in /health.
const healthCheckTimeout = 2 * time.Second

// Health status values.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusDown     = "down"
)

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Devices    int               `json:"devices"`
	Components map[string]string `json:"components,omitempty"`
}

// handleHealth reports "ok", or "degraded" when an optional component is
// down. The relay keeps serving chat commands either way, so the status
// code is always 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     statusOK,
		Version:    s.version,
		Devices:    len(s.devices.Addresses()),
		Components: map[string]string{},
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		resp.Components["database"] = statusOK
		if err := s.db.HealthCheck(ctx); err != nil {
			resp.Components["database"] = statusDown
			resp.Status = statusDegraded
		}
	}
	if s.mqtt != nil {
		resp.Components["mqtt"] = statusOK
		if !s.mqtt.IsConnected() {
			resp.Components["mqtt"] = statusDown
			resp.Status = statusDegraded
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ColorResponse is one entry of GET /api/v1/colors.
type ColorResponse struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	RGB   string `json:"rgb"`
	Value uint32 `json:"value"`
}

// handleListColors returns the color table in enumeration order, the same
// order the colors chat command prints.
func (s *Server) handleListColors(w http.ResponseWriter, _ *http.Request) {
	listing := s.colors.Enumerate()
	out := make([]ColorResponse, 0, len(listing))
	for _, l := range listing {
		rgb, _ := s.colors.Resolve(l.Name)
		out = append(out, ColorResponse{
			Index: l.Index,
			Name:  l.Name,
			RGB:   rgb.String(),
			Value: uint32(rgb.Pack()),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"colors": out,
		"count":  len(out),
	})
}

// DeviceResponse is one entry of GET /api/v1/devices.
type DeviceResponse struct {
	Index        int        `json:"index"`
	Address      string     `json:"address"`
	Requests     uint64     `json:"requests"`
	Failures     uint64     `json:"failures"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
	Closed       bool       `json:"closed"`
}

// handleListDevices returns the attached devices in dispatch order with
// their transport counters.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	stats := s.devices.Stats()
	out := make([]DeviceResponse, 0, len(stats))
	for i, st := range stats {
		d := DeviceResponse{
			Index:    i,
			Address:  st.Address,
			Requests: st.Requests,
			Failures: st.Failures,
			Closed:   st.Closed,
		}
		if !st.LastActivity.IsZero() {
			at := st.LastActivity.UTC()
			d.LastActivity = &at
		}
		out = append(out, d)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": out,
		"count":   len(out),
	})
}

// handleListCommands serves the command history.
//
// Query parameters: command, source, user, since (RFC 3339), limit, offset.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeUnavailable(w, "command history is disabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:   audit.ActionCommand,
		EntityID: q.Get("command"),
		Source:   q.Get("source"),
		UserID:   q.Get("user"),
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}
	if since := q.Get("since"); since != "" {
		if filter.Since, err = time.Parse(time.RFC3339, since); err != nil {
			writeBadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing command history failed", "error", err)
		writeInternalError(w, "failed to list command history")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// intParam parses an optional integer query parameter; "" is 0.
func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
