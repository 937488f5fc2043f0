// ABOUTME: HTTP handlers for the module registry endpoints
// ABOUTME: Provides GET /api/v1/modules and GET /api/v1/modules/{name}

package server

import (
	"errors"
	"net/http"

	"github.com/mindevis/QMServer/internal/modules"
)

// handleListModules handles GET /api/v1/modules requests.
// It returns every known module keyed by name, including entries whose
// pipeline failed or was never configured.
func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.manager.Registry().List())
}

// handleModuleDetail handles GET /api/v1/modules/{name} requests.
func (s *Server) handleModuleDetail(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	info, err := s.manager.Registry().Get(name)
	if err != nil {
		if errors.Is(err, modules.ErrModuleNotFound) {
			s.sendJSONError(w, http.StatusNotFound, "Module not found")
			return
		}
		s.sendJSONError(w, http.StatusInternalServerError, "failed to look up module")
		return
	}

	s.sendJSON(w, http.StatusOK, info)
}
