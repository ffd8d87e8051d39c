package apiv1

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubServer records which handler ran and with which path parameter.
type stubServer struct {
	called string
	token  string
}

func (s *stubServer) ok(c *fiber.Ctx, name string) error {
	s.called = name
	return c.JSON(fiber.Map{"handler": name})
}

func (s *stubServer) GetPing(c *fiber.Ctx) error { return s.ok(c, "ping") }

func (s *stubServer) PostCancelSession(c *fiber.Ctx) error { return s.ok(c, "start") }
func (s *stubServer) GetCancelSession(c *fiber.Ctx, token string) error {
	s.token = token
	return s.ok(c, "fetch")
}
func (s *stubServer) PostCancelSessionSurvey(c *fiber.Ctx, token string) error {
	s.token = token
	return s.ok(c, "survey")
}
func (s *stubServer) PostCancelSessionOffer(c *fiber.Ctx, token string) error {
	s.token = token
	return s.ok(c, "offer")
}
func (s *stubServer) PostCancelSessionComplete(c *fiber.Ctx, token string) error {
	s.token = token
	return s.ok(c, "complete")
}

func (s *stubServer) GetAccountRisk(c *fiber.Ctx) error           { return s.ok(c, "risk") }
func (s *stubServer) GetAccountCases(c *fiber.Ctx) error          { return s.ok(c, "cases") }
func (s *stubServer) GetAccountRecoveredTotal(c *fiber.Ctx) error { return s.ok(c, "total") }
func (s *stubServer) GetAccountFunnel(c *fiber.Ctx) error         { return s.ok(c, "funnel") }

func (s *stubServer) GetRecoveryQueue(c *fiber.Ctx) error { return s.ok(c, "queue") }
func (s *stubServer) PostSimulateRecovery(c *fiber.Ctx, publicID string) error {
	s.token = publicID
	return s.ok(c, "simulate")
}
func (s *stubServer) PostRecompute(c *fiber.Ctx) error   { return s.ok(c, "recompute") }
func (s *stubServer) PostExpirySweep(c *fiber.Ctx) error { return s.ok(c, "sweep") }

func passThrough(c *fiber.Ctx) error { return c.Next() }

func newTestRouter(t *testing.T) (*fiber.App, *stubServer) {
	t.Helper()
	app := fiber.New()
	stub := &stubServer{}
	RegisterHandlers(app.Group("/api/v1"), stub, passThrough, passThrough)
	return app, stub
}

func TestRegisterHandlersWidgetRoutes(t *testing.T) {
	app, stub := newTestRouter(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/cancel-sessions/tok-abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "fetch", stub.called)
	assert.Equal(t, "tok-abc", stub.token)

	resp, err = app.Test(httptest.NewRequest("POST", "/api/v1/cancel-sessions/tok-abc/survey", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "survey", stub.called)

	resp, err = app.Test(httptest.NewRequest("POST", "/api/v1/cancel-sessions/tok-abc/offer-response", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "offer", stub.called)

	resp, err = app.Test(httptest.NewRequest("POST", "/api/v1/cancel-sessions/tok-abc/complete", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "complete", stub.called)
}

func TestRegisterHandlersAccountAndAdminRoutes(t *testing.T) {
	app, stub := newTestRouter(t)

	for _, tc := range []struct {
		method, path, handler string
	}{
		{"GET", "/api/v1/ping", "ping"},
		{"POST", "/api/v1/cancel-sessions/", "start"},
		{"GET", "/api/v1/account/risk", "risk"},
		{"GET", "/api/v1/account/cases", "cases"},
		{"GET", "/api/v1/account/ledger/total", "total"},
		{"GET", "/api/v1/account/funnel", "funnel"},
		{"GET", "/api/v1/admin/recovery-queue", "queue"},
		{"POST", "/api/v1/admin/recompute", "recompute"},
		{"POST", "/api/v1/admin/expiry-sweep", "sweep"},
	} {
		resp, err := app.Test(httptest.NewRequest(tc.method, tc.path, nil))
		require.NoError(t, err, tc.path)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, tc.path)
		assert.Equal(t, tc.handler, stub.called, tc.path)
	}
}

func TestRegisterHandlersSimulateRecoveryParam(t *testing.T) {
	app, stub := newTestRouter(t)

	resp, err := app.Test(httptest.NewRequest("POST", "/api/v1/admin/cases/case-uuid-1/simulate-recovery", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "simulate", stub.called)
	assert.Equal(t, "case-uuid-1", stub.token)
}

func TestRegisterHandlersAuthMiddlewareGuardsAccountRoutes(t *testing.T) {
	app := fiber.New()
	stub := &stubServer{}
	deny := func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	RegisterHandlers(app.Group("/api/v1"), stub, deny, passThrough)

	// widget token routes stay reachable without the API key
	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/cancel-sessions/tok-1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	for _, path := range []string{
		"/api/v1/account/risk",
		"/api/v1/admin/recovery-queue",
	} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err, path)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, path)
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "unauthorized", path)
	}
}

func TestGetPing(t *testing.T) {
	app := fiber.New()
	server := NewAPIServer(nil)
	RegisterHandlers(app.Group("/api/v1"), server, passThrough, passThrough)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ping":"pong"}`, string(body))
}
