package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	accesshttp "github.com/runbook-hub/runbook-hub/internal/access/http"
	audithttp "github.com/runbook-hub/runbook-hub/internal/audit/http"
	"github.com/runbook-hub/runbook-hub/internal/auth"
	runbookshttp "github.com/runbook-hub/runbook-hub/internal/runbooks/http"
	"github.com/runbook-hub/runbook-hub/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	Accounts        AccountResolver
	AuthHandler     *auth.Handler
	SecurityHandler *accesshttp.Handler
	AuditHandler    *audithttp.Handler
	RunbooksHandler *runbookshttp.Handler
}

// NewRouter constructs the chi.Router with Runbook Hub defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Accounts:       params.Accounts,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		params.AuthHandler.MountRoutes(api)
		params.SecurityHandler.MountRoutes(api)
		params.AuditHandler.MountRoutes(api)
		params.RunbooksHandler.MountRoutes(api)
	})

	return r
}
