// Package operators provides the operator domain module: API-key token
// exchange and per-operator dial settings.
package operators

import (
	apphttp "autodial_backend/internal/http"
	"autodial_backend/internal/operators/handler"
	"autodial_backend/internal/operators/repository"
	"autodial_backend/internal/operators/service"
	"autodial_backend/platform/config"
	"autodial_backend/platform/logger"
	"autodial_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the operators domain module.
type Module struct {
	handler *handler.Handler

	// Repo and Service are exported for wiring: the composition root adapts
	// them into the dial-defaults readers of campaigns and dispatch.
	Repo    *repository.Repository
	Service *service.Service
}

// NewModule creates a new operators module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, cfg config.OperatorAuthConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, cfg, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		Repo:    repo,
		Service: svc,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "operators"
}

// RegisterRoutes mounts the token exchange on the public group behind the
// auth rate limiter, and the account routes on the protected group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	auth := ctx.V1.Group("/auth")
	auth.Use(ctx.AuthRateLimiter.RateLimit())
	m.handler.RegisterAuthRoutes(auth)

	operators := ctx.Protected.Group("/operators")
	m.handler.RegisterRoutes(operators)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
