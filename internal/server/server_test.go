package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"usersapi/internal/logger"
	"usersapi/internal/repositories"
	"usersapi/internal/server"
	"usersapi/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newApp(accessLog io.Writer) *fiber.App {
	log := logger.Discard()
	return server.New(server.Options{
		Service:     services.NewUserService(repositories.NewMemoryUserRepository(), bcrypt.MinCost, nil, log),
		Logger:      log,
		Registry:    prometheus.NewRegistry(),
		AccessLog:   accessLog,
		CORSOrigins: "http://localhost:3000",
		DBDriver:    "memory",
	})
}

func TestHealth(t *testing.T) {
	app := newApp(nil)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "memory", body["database"])
	assert.Equal(t, "disabled", body["events"])
}

func TestMiddlewareStack(t *testing.T) {
	var accessLog bytes.Buffer
	app := newApp(&accessLog)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set(fiber.HeaderOrigin, "http://localhost:3000")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	requestID := resp.Header.Get(fiber.HeaderXRequestID)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Contains(t, accessLog.String(), requestID)
	assert.Contains(t, accessLog.String(), "/users")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	metrics, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(metrics), `http_requests_total{method="GET",route="/users`)
}
