// Package campaigns provides the campaign domain module: intake, lifecycle
// control, live progress tracking and the campaign endpoints.
package campaigns

import (
	"autodial_backend/internal/campaigns/aggregator"
	"autodial_backend/internal/campaigns/handler"
	"autodial_backend/internal/campaigns/repository"
	"autodial_backend/internal/campaigns/service"
	"autodial_backend/internal/events"
	apphttp "autodial_backend/internal/http"
	"autodial_backend/platform/config"
	"autodial_backend/platform/logger"
	"autodial_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the campaigns domain module.
type Module struct {
	handler *handler.Handler

	// Repo, Service and Tracker are exported for wiring: the dispatch worker
	// loads campaigns through Repo and drives counters through Tracker, the
	// composition root connects Tracker to the call engine.
	Repo    *repository.Repository
	Service *service.Service
	Tracker *aggregator.Aggregator
}

// Deps are the cross-module dependencies of the campaigns module, satisfied
// by adapters at the composition root.
type Deps struct {
	Calls    service.CallRecordStore
	Enqueuer service.DispatchEnqueuer
	Archiver service.IntakeArchiver // optional
	Defaults service.DialDefaultsReader
	Routes   service.RouteChecker
	Notifier aggregator.ProgressNotifier // optional
}

// NewModule creates a new campaigns module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, deps Deps, bus events.Bus, cfg config.CampaignConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	agg := aggregator.NewAggregator(deps.Notifier, cfg.GetProgressEditInterval(), log)
	svc := service.New(repo, deps.Calls, agg, deps.Enqueuer, deps.Archiver, deps.Defaults, deps.Routes, bus, cfg, log)
	agg.OnComplete(svc.SettleCompletion)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		Repo:    repo,
		Service: svc,
		Tracker: agg,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "campaigns"
}

// RegisterRoutes registers the module's routes under /api/v1/campaigns.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	campaigns := ctx.Protected.Group("/campaigns")
	m.handler.RegisterRoutes(campaigns)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
