// handlers_health_test.go - Tests for the health endpoint
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdown-sidecar/backend/internal/convert"
)

func TestHandleHealth(t *testing.T) {
	descriptors := map[string]convert.Descriptor{
		convert.NamePandoc:   {Name: convert.NamePandoc, Command: "sh"},
		convert.NameAntiword: {Name: convert.NameAntiword, Command: "no-such-converter-binary"},
	}
	handler := NewHealthHandler(descriptors)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	require.NoError(t, handler.HandleHealth(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, true, resp[convert.NamePandoc])
	assert.Equal(t, false, resp[convert.NameAntiword])
}
