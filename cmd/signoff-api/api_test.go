package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/signoff/pkg/capability"
	"github.com/dukex/signoff/pkg/mocks"
	"github.com/dukex/signoff/pkg/otelhelper"
	"github.com/dukex/signoff/pkg/persistence/file"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	app := NewAPI(
		slog.Default(),
		file.NewPersistence(t.TempDir()),
		&mocks.MockEventBus{},
		capability.NewRoles("admin"),
		otelhelper.NoopTracer(),
	)

	return app.App()
}

func TestAPI_RootEndpoint(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "signoff API", string(body))
}

func TestAPI_Endpoints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path   string
		status int
	}{
		{path: "/livez", status: http.StatusOK},
		{path: "/readyz", status: http.StatusOK},
		{path: "/health", status: http.StatusOK},
		{path: "/templates", status: http.StatusOK},
		{path: "/submissions", status: http.StatusOK},
		{path: "/documents", status: http.StatusOK},
		{path: "/documents/missing", status: http.StatusNotFound},
	}

	app := setupTestApp(t)

	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
		require.NoError(t, err)

		_ = resp.Body.Close()

		assert.Equal(t, tt.status, resp.StatusCode, tt.path)
	}
}
