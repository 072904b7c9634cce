// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/markdown-sidecar/backend/internal/convert"
)

// HealthHandler reports reachability of each converter collaborator. The
// probe never touches the scheduler's request path.
type HealthHandler struct {
	descriptors map[string]convert.Descriptor
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(descriptors map[string]convert.Descriptor) *HealthHandler {
	return &HealthHandler{descriptors: descriptors}
}

// HandleHealth returns service status plus one boolean per converter
func (h *HealthHandler) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status": "ok",
	}
	for name, available := range convert.Availability(h.descriptors) {
		resp[name] = available
	}
	return c.JSON(http.StatusOK, resp)
}
