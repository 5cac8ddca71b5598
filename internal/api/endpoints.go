package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
)

// EndpointView is one entry of the endpoint list.
type EndpointView struct {
	EndpointID   string   `json:"endpoint_id"`
	FriendlyName string   `json:"friendly_name"`
	Family       string   `json:"family"`
	Categories   []string `json:"categories"`
	Interfaces   []string `json:"interfaces"`
	Points       []string `json:"points"`
	Error        string   `json:"error,omitempty"`
}

// handleListEndpoints lists every registered endpoint with the interfaces
// it would announce at discovery.
func (s *Server) handleListEndpoints(w http.ResponseWriter, r *http.Request) {
	adapters := s.devices.List()
	views := make([]EndpointView, 0, len(adapters))

	for _, a := range adapters {
		v := EndpointView{
			EndpointID:   a.EndpointID(),
			FriendlyName: a.FriendlyName(),
			Family:       a.Family(),
			Points:       a.Points(),
		}
		ep, err := a.Describe(r.Context())
		if err != nil {
			v.Error = err.Error()
		} else {
			v.Categories = ep.DisplayCategories
			v.Interfaces = interfaceNames(ep.Capabilities)
		}
		views = append(views, v)
	}

	caller := ""
	if c := claimsFromContext(r.Context()); c != nil {
		caller = c.Subject
	}
	s.logger.Debug("endpoints listed", "count", len(views), "subject", caller)

	writeJSON(w, http.StatusOK, map[string]any{
		"endpoints": views,
		"count":     len(views),
	})
}

func interfaceNames(caps []alexa.Capability) []string {
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		name := c.Interface
		if c.Instance != "" {
			name += "/" + c.Instance
		}
		out = append(out, name)
	}
	return out
}
