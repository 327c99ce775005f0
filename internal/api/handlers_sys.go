package api

import (
	"net/http"

	"github.com/org/skillgate/pkg/models"
)

// HealthHandler handles GET /v1/sys/health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": Version,
	})
}

// InfoHandler handles GET /v1/sys/info. Unauthenticated discovery: tells a
// caller what this gateway serves without exposing per-skill internals.
func (s *Server) InfoHandler(w http.ResponseWriter, r *http.Request) {
	catalog := s.registry.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "skillgate",
		"version": Version,
		"skills": map[string]any{
			"total":   catalog.Len(),
			"free":    len(catalog.List(models.TierFree)),
			"premium": len(catalog.List(models.TierPremium)),
		},
	})
}

// ReloadHandler handles POST /v1/sys/reload. Rebuilds the catalog from the
// registration source and swaps it in atomically; in-flight calls keep the
// snapshot they started with.
func (s *Server) ReloadHandler(w http.ResponseWriter, r *http.Request) {
	warnings := s.registry.Reload()
	s.updateCatalogGauges()

	writeJSON(w, http.StatusOK, map[string]any{
		"skills":   s.registry.Snapshot().Len(),
		"warnings": warnings,
	})
}
