package accesshttp

import "github.com/go-chi/chi/v5"

// MountRoutes registers the security endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/security/role", h.handleCurrentRole)
	r.Get("/security", h.handleAssignments)
	r.Post("/security/assignments", h.handleAddAssignment)
	r.Delete("/security/assignments/{userID}", h.handleRemoveAssignment)
	r.Put("/security/default-role", h.handleSetDefaultRole)
}
