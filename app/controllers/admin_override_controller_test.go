package controllers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/inkwell-app/InkWell/internal/pkg/guard"
	"github.com/inkwell-app/InkWell/internal/pkg/tier"
	"github.com/inkwell-app/InkWell/internal/pkg/usage"
	"github.com/inkwell-app/InkWell/internal/pkg/usercontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminID = 1

func newOverrideTestApp(actorID uint) (*fiber.App, *memBillingRepo) {
	repo := newMemBillingRepo()
	g := guard.New(repo, tier.DefaultPolicy(), usage.NewLedger(usage.NewMemoryStore()), func(id uint) bool { return id == adminID })
	ac := NewAdminOverrideController(g)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		usercontext.Set(c, usercontext.UserContext{UserID: actorID, IsLoggedIn: true, IsAdmin: actorID == adminID})
		return c.Next()
	})
	app.Put("/api/v1/admin/users/:id/override", ac.HandleSet)
	app.Delete("/api/v1/admin/users/:id/override", ac.HandleClear)
	app.Get("/api/v1/admin/users/:id/override", ac.HandleGet)
	return app, repo
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp.StatusCode, parsed
}

func TestOverrideLifecycle(t *testing.T) {
	app, repo := newOverrideTestApp(adminID)

	status, _ := doJSON(t, app, "PUT", "/api/v1/admin/users/42/override", `{"tier":"pro","expires_in_hours":24}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "pro", repo.records[42].AdminOverrideTier)
	assert.NotNil(t, repo.records[42].AdminOverrideExpiresAt)

	status, state := doJSON(t, app, "GET", "/api/v1/admin/users/42/override", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, state["active"])
	assert.Equal(t, "pro", state["tier"])

	status, _ = doJSON(t, app, "DELETE", "/api/v1/admin/users/42/override", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, repo.records[42].AdminOverrideTier)

	status, state = doJSON(t, app, "GET", "/api/v1/admin/users/42/override", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, state["active"])
}

func TestOverrideForbiddenForNonAdmin(t *testing.T) {
	app, repo := newOverrideTestApp(2)

	status, parsed := doJSON(t, app, "PUT", "/api/v1/admin/users/42/override", `{"tier":"pro"}`)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "forbidden", parsed["error"])
	assert.Empty(t, repo.records)

	status, _ = doJSON(t, app, "DELETE", "/api/v1/admin/users/42/override", "")
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = doJSON(t, app, "GET", "/api/v1/admin/users/42/override", "")
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestOverrideValidation(t *testing.T) {
	app, _ := newOverrideTestApp(adminID)

	status, parsed := doJSON(t, app, "PUT", "/api/v1/admin/users/42/override", `{"tier":"platinum"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_request", parsed["error"])

	status, parsed = doJSON(t, app, "PUT", "/api/v1/admin/users/42/override", `{"tier":"pro","expires_in_hours":-1}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_request", parsed["error"])

	status, parsed = doJSON(t, app, "PUT", "/api/v1/admin/users/abc/override", `{"tier":"pro"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_user_id", parsed["error"])
}
