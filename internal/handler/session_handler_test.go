package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-tracker-api/internal/dto"
)

func sessionRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/api/v2/session", strings.NewReader(body))
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return req
}

func TestSessionHandlerLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := tokenFor(t, 12, "Teacher")

	// Before login the session comes from the token claims alone.
	resp := env.get(t, "/api/v2/session", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var derived dto.SessionResponse
	decodeEnvelope(t, resp, &derived)
	require.Equal(t, "12", derived.UserID)
	require.Equal(t, "teacher", derived.Role)
	require.Equal(t, "User 12", derived.Name)
	require.True(t, derived.ExpiresAt.IsZero())

	resp = env.do(t, sessionRequest(http.MethodPost, `{"name": "  Bu Sari  "}`), token)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var created dto.SessionResponse
	decodeEnvelope(t, resp, &created)
	require.Equal(t, "Bu Sari", created.Name)
	require.False(t, created.ExpiresAt.IsZero())

	resp = env.get(t, "/api/v2/session", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var stored dto.SessionResponse
	decodeEnvelope(t, resp, &stored)
	require.Equal(t, "Bu Sari", stored.Name)
	require.Equal(t, "teacher", stored.Role)

	resp = env.do(t, sessionRequest(http.MethodDelete, ""), token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/api/v2/session", token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var cleared dto.SessionResponse
	decodeEnvelope(t, resp, &cleared)
	require.Equal(t, "User 12", cleared.Name)
}

func TestSessionHandlerValidation(t *testing.T) {
	env := newTestEnv(t)
	token := tokenFor(t, 3, "student")

	resp := env.do(t, sessionRequest(http.MethodPost, `{"name": ""}`), token)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decodeEnvelope(t, resp, nil)
	require.Equal(t, "required", body.Details["name"])

	resp = env.do(t, sessionRequest(http.MethodPost, `{"name":`), token)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/api/v2/session", "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}
