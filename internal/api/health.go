package api

import "net/http"

// handleHealth returns the server health status. The gateway reports
// "degraded" while the MQTT broker is unreachable; directives still get
// answered, with BRIDGE_UNREACHABLE errors.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	mqttConnected := s.broker == nil || s.broker.IsConnected()
	if !mqttConnected {
		status = "degraded"
	}

	resp := map[string]any{
		"status":         status,
		"version":        s.version,
		"mqtt_connected": mqttConnected,
		"account_linked": s.link != nil && s.link.Connected(),
		"endpoints":      len(s.devices.List()),
	}
	if s.streams != nil {
		resp["active_streams"] = s.streams.Active()
	}
	if s.hub != nil {
		resp["websocket_clients"] = s.hub.ClientCount()
		resp["feed_dropped"] = s.hub.Dropped()
	}
	writeJSON(w, http.StatusOK, resp)
}
