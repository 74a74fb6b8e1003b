package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h *Handler, path string) (int, ReadinessResponse) {
	t.Helper()
	r := chi.NewRouter()
	h.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestReadiness(t *testing.T) {
	t.Run("ready when every check passes", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("backend", func(context.Context) error { return nil })
		h.RegisterCheck("token_store", func(context.Context) error { return nil })

		status, body := serve(t, h, "/health/ready")

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "ready", body.Status)
		assert.Equal(t, map[string]string{"backend": "up", "token_store": "up"}, body.Checks)
	})

	t.Run("not ready when one check fails", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("backend", func(context.Context) error { return errors.New("circuit open") })
		h.RegisterCheck("token_store", func(context.Context) error { return nil })

		status, body := serve(t, h, "/health/ready")

		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, "not_ready", body.Status)
		assert.Equal(t, "down: circuit open", body.Checks["backend"])
	})
}

func TestLiveness(t *testing.T) {
	status, body := serve(t, New("test"), "/health/live")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body.Status)
}
