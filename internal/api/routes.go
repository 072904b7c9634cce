// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/markdown-sidecar/backend/internal/config"
	"github.com/markdown-sidecar/backend/internal/convert"
	"github.com/markdown-sidecar/backend/internal/scheduler"
	"github.com/markdown-sidecar/backend/internal/upload"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Config    *config.Config
	Logger    *zap.Logger
	Scheduler *scheduler.Scheduler
	Streamer  *upload.Streamer
	Router    *convert.Router
	Runner    convert.Runner
}

// Handlers holds all handler instances
type Handlers struct {
	Convert *ConvertHandler
	Health  *HealthHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Convert: NewConvertHandler(deps.Config, deps.Scheduler, deps.Streamer, deps.Router, deps.Runner, deps.Logger),
		Health:  NewHealthHandler(deps.Router.Descriptors()),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	e.HTTPErrorHandler = ErrorHandler

	e.POST("/convert", handlers.Convert.HandleConvert)
	e.GET("/health", handlers.Health.HandleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
