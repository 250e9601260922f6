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

func newUsageTestApp(loggedInUser uint) *fiber.App {
	repo := newMemBillingRepo()
	g := guard.New(repo, tier.DefaultPolicy(), usage.NewLedger(usage.NewMemoryStore()), func(uint) bool { return false })
	uc := NewUsageController(g)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if loggedInUser != 0 {
			usercontext.Set(c, usercontext.UserContext{UserID: loggedInUser, IsLoggedIn: true})
		}
		return c.Next()
	})
	app.Post("/api/v1/usage/check", uc.HandleCheck)
	app.Post("/api/v1/usage/reserve", uc.HandleReserve)
	app.Post("/api/v1/usage/decrement", uc.HandleDecrement)
	return app
}

func postUsage(t *testing.T, app *fiber.App, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp.StatusCode, parsed
}

func TestUsageEndpointsRequireAuth(t *testing.T) {
	app := newUsageTestApp(0)
	status, parsed := postUsage(t, app, "/api/v1/usage/reserve", `{"action":"generate_content"}`)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", parsed["error"])
}

func TestUsageEndpointRejectsUnknownAction(t *testing.T) {
	app := newUsageTestApp(5)
	status, parsed := postUsage(t, app, "/api/v1/usage/reserve", `{"action":"mine_bitcoin"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "unknown_action", parsed["error"])
}

func TestUsageReserveContract(t *testing.T) {
	app := newUsageTestApp(5)

	// Omitted amount defaults to one; five generations pass on free.
	for i := 0; i < 5; i++ {
		status, parsed := postUsage(t, app, "/api/v1/usage/reserve", `{"action":"generate_content"}`)
		require.Equal(t, fiber.StatusOK, status)
		require.Equal(t, true, parsed["allowed"], "generation %d", i+1)
	}

	status, parsed := postUsage(t, app, "/api/v1/usage/reserve", `{"action":"generate_content"}`)
	assert.Equal(t, fiber.StatusOK, status, "a denial is still a successful API call")
	assert.Equal(t, false, parsed["allowed"])
	assert.Equal(t, "limit reached", parsed["reason"])
	assert.Equal(t, float64(5), parsed["limit"])
	assert.Equal(t, float64(0), parsed["remaining"])
	assert.Equal(t, "5", parsed["limit_display"])
}

func TestUsageCheckDoesNotConsume(t *testing.T) {
	app := newUsageTestApp(5)

	status, parsed := postUsage(t, app, "/api/v1/usage/check", `{"action":"generate_content"}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, parsed["allowed"])

	status, parsed = postUsage(t, app, "/api/v1/usage/check", `{"action":"generate_content"}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(0), parsed["current"], "check left the counter alone")
}

func TestUsageDecrementClamps(t *testing.T) {
	app := newUsageTestApp(5)

	status, parsed := postUsage(t, app, "/api/v1/usage/decrement", `{"action":"use_storage","amount":500}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(0), parsed["current"])
}
