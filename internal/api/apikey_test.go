package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xamcat/pushrelay/internal/api"
)

func TestAPIKeyMiddleware(t *testing.T) {
	const key = "secret-key"

	handlerCalled := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})
	protected := api.NewAPIKeyMiddleware(key, newTestLogger())(inner)

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		handlerCalled = false
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)
		return w
	}

	t.Run("Accepts key in header", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/notifications", nil)
		req.Header.Set("apikey", key)

		w := serve(req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, handlerCalled)
	})

	t.Run("Accepts key in query parameter", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/notifications?apikey="+key, nil)

		w := serve(req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, handlerCalled)
	})

	t.Run("Header wins over query", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/notifications?apikey=wrong", nil)
		req.Header.Set("apikey", key)

		w := serve(req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Missing key rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/notifications", nil)

		w := serve(req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, handlerCalled)
		assert.Contains(t, w.Body.String(), "no api key provided")
	})

	t.Run("Wrong key rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/notifications", nil)
		req.Header.Set("apikey", "guess")

		w := serve(req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, handlerCalled)
		assert.Contains(t, w.Body.String(), "invalid api key")
	})
}
