package runbookshttp

import "github.com/go-chi/chi/v5"

// MountRoutes registers the runbook endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Route("/runbooks", func(rr chi.Router) {
		rr.Get("/", h.handleList)
		rr.Post("/", h.handleCreate)
		rr.Route("/{runbookID}", func(rb chi.Router) {
			rb.Get("/", h.handleGet)
			rb.Put("/", h.handleUpdate)
			rb.Delete("/", h.handleDelete)
			rb.Post("/archive", h.handleArchive)
			rb.Get("/export.csv", h.handleExportTasks)
			rb.Post("/tasks", h.handleAddTask)
			rb.Route("/tasks/{taskID}", func(rt chi.Router) {
				rt.Put("/", h.handleUpdateTask)
				rt.Put("/completion", h.handleTaskCompletion)
				rt.Delete("/", h.handleDeleteTask)
				rt.Post("/restore", h.handleRestoreTask)
			})
		})
	})
}
