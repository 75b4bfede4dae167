package core

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forkfire/internal/config"
	"forkfire/internal/types"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Admin: config.AdminConfig{APIKey: types.SecretString("test-admin-key-0123456789")},
	}
	cfg.Server.CORSAllowedOrigins = []string{"*"}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := NewServer(cfg, logger)
	require.NoError(t, err)
	return srv
}

// --- Recoverer Tests ---

func TestRecoverer_CatchesPanic(t *testing.T) {
	srv := newTestServer(t)

	handler := srv.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/panic", nil)
	r = r.WithContext(types.WithRequestID(r.Context(), "req_panic"))

	require.NotPanics(t, func() { handler.ServeHTTP(w, r) })

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), resp.Error.Code)
	assert.Equal(t, "req_panic", resp.Error.RequestID)
	assert.NotContains(t, w.Body.String(), "boom", "panic values must not reach the client")
}

func TestRecoverer_PassthroughWithoutPanic(t *testing.T) {
	srv := newTestServer(t)

	handler := srv.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestEscapeJSON(t *testing.T) {
	assert.Equal(t, `a\"b`, escapeJSON(`a"b`))
	assert.Equal(t, `a\\b`, escapeJSON(`a\b`))
	assert.Equal(t, `a\nb`, escapeJSON("a\nb"))
}

// --- RequestID Tests ---

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	var captured string
	handler := RequestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		captured = types.GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, captured)
	assert.Equal(t, captured, w.Header().Get("X-Request-Id"))
}

func TestRequestIDMiddleware_HonorsInboundHeader(t *testing.T) {
	var captured string
	handler := RequestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		captured = types.GetRequestID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-Id", "upstream-id-42")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, "upstream-id-42", captured)
	assert.Equal(t, "upstream-id-42", w.Header().Get("X-Request-Id"))
}

// --- Security Headers Tests ---

func TestSecurityHeadersMiddleware(t *testing.T) {
	handler := SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

// --- CORS Tests ---

func TestCORSMiddleware_Wildcard(t *testing.T) {
	handler := NewCORSMiddleware([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Origin", "https://forkandfire.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_AllowedOrigin(t *testing.T) {
	handler := NewCORSMiddleware([]string{"https://forkandfire.com"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Origin", "https://forkandfire.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, "https://forkandfire.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))
}

func TestCORSMiddleware_DisallowedOrigin(t *testing.T) {
	handler := NewCORSMiddleware([]string{"https://forkandfire.com"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, w.Code, "the request itself still proceeds")
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	handler := NewCORSMiddleware([]string{"*"})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	r := httptest.NewRequest(http.MethodOptions, "/", nil)
	r.Header.Set("Origin", "https://forkandfire.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, called, "preflight must short-circuit")
}

// --- AdminOnly Tests ---

func TestAdminOnly_MissingKey(t *testing.T) {
	srv := newTestServer(t)

	handler := srv.AdminOnly(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/send", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "auth_admin_key_missing", resp.Error.Code)
}

func TestAdminOnly_InvalidKey(t *testing.T) {
	srv := newTestServer(t)

	handler := srv.AdminOnly(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodPost, "/send", nil)
	r.Header.Set("X-Admin-Key", "wrong-key")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "auth_admin_key_invalid", resp.Error.Code)
}

func TestAdminOnly_ValidKey(t *testing.T) {
	srv := newTestServer(t)

	called := false
	handler := srv.AdminOnly(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodPost, "/send", nil)
	r.Header.Set("X-Admin-Key", "test-admin-key-0123456789")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}

// --- Response Capture Tests ---

func TestResponseCapture_DefaultStatus(t *testing.T) {
	w := httptest.NewRecorder()
	rc := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}

	_, err := rc.Write([]byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rc.statusCode)
}

func TestResponseCapture_ExplicitStatus(t *testing.T) {
	w := httptest.NewRecorder()
	rc := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}

	rc.WriteHeader(http.StatusCreated)
	rc.WriteHeader(http.StatusInternalServerError) // second write ignored

	assert.Equal(t, http.StatusCreated, rc.statusCode)
}
