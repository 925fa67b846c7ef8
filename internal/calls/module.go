// Package calls provides the call tracking domain module: the record store,
// the event correlation engine and the read-only call endpoints.
package calls

import (
	"autodial_backend/internal/calls/handler"
	"autodial_backend/internal/calls/repository"
	"autodial_backend/internal/calls/service"
	"autodial_backend/internal/events"
	apphttp "autodial_backend/internal/http"
	"autodial_backend/platform/config"
	"autodial_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the calls domain module.
type Module struct {
	handler *handler.Handler

	// Repo and Engine are exported for wiring: the campaign module reads
	// call records through Repo, the composition root feeds manager events
	// into Engine.
	Repo   *repository.Repository
	Engine *service.Service
}

// NewModule creates a new calls module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, tracker service.CampaignTracker, bus events.Bus, cfg config.EngineConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	engine := service.New(repo, tracker, bus, cfg, log)
	h := handler.New(repo)

	return &Module{
		handler: h,
		Repo:    repo,
		Engine:  engine,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "calls"
}

// RegisterRoutes registers the module's routes under /api/v1/calls.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	calls := ctx.Protected.Group("/calls")
	m.handler.RegisterRoutes(calls)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
