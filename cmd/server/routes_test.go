package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"entropy-gate.backend/internal/interfaces/http/handlers"
	"entropy-gate.backend/internal/interfaces/http/middleware"
)

func TestRegisterAPIV1Routes_RegistersKeyRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	registerAPIV1Routes(r, routeDeps{
		authHandler:     &handlers.AuthHandler{},
		apiKeyHandler:   &handlers.ApiKeyHandler{},
		randomHandler:   &handlers.RandomHandler{},
		securityHandler: &handlers.SecurityHandler{},
		usageHandler:    &handlers.UsageHandler{},
		pipeline:        &middleware.SecurityPipeline{},
		authMiddleware: func(c *gin.Context) {
			c.Next()
		},
	})

	expects := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/auth/register"},
		{"POST", "/api/v1/auth/login"},
		{"GET", "/api/v1/auth/me"},
		{"POST", "/api/v1/random/number"},
		{"POST", "/api/v1/random/string"},
		{"POST", "/api/v1/random/bytes"},
		{"GET", "/api/v1/random/health"},
		{"POST", "/api/v1/keys"},
		{"GET", "/api/v1/keys"},
		{"PUT", "/api/v1/keys/:id"},
		{"DELETE", "/api/v1/keys/:id"},
		{"GET", "/api/v1/admin/security/stats"},
		{"GET", "/api/v1/admin/security/events"},
		{"POST", "/api/v1/admin/security/block"},
		{"DELETE", "/api/v1/admin/security/block/:ip"},
		{"GET", "/api/v1/admin/usage/stats"},
	}

	routes := r.Routes()
	for _, want := range expects {
		found := false
		for _, route := range routes {
			if route.Method == want.method && route.Path == want.path {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("route %s %s not registered", want.method, want.path)
		}
	}
}

func TestRegisterHealthRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerHealthRoute(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`"status":"ok"`, `"service":"entropy-gate-backend"`, `"version":"0.1.0"`} {
		if !strings.Contains(body, want) {
			t.Errorf("health body missing %s: %s", want, body)
		}
	}
}
