package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beast-crm/internal/middleware"
)

func newRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), middleware.UserKey, "agent-1")))
		})
	})
	r.Route("/api/chats", NewHandler(svc).Routes)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestHandler_SendAndHistory(t *testing.T) {
	store := newFakeStore()
	chatID := store.addChat("Ana")
	got, em := recorder()
	h := newRouter(NewService(store, em))

	code, out := do(t, h, http.MethodPost, "/api/chats/"+chatID+"/mensajes", `{"content":"Hola"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "agent-1", out["data"].(map[string]any)["remitente_id"])

	code, out = do(t, h, http.MethodPost, "/api/chats/"+chatID+"/entrantes", `{"content":"Buenas"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.NotContains(t, out["data"].(map[string]any), "remitente_id")
	assert.Len(t, *got, 2)

	code, out = do(t, h, http.MethodGet, "/api/chats/"+chatID+"/mensajes?limit=1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out["data"], 1)
}

func TestHandler_Errors(t *testing.T) {
	store := newFakeStore()
	chatID := store.addChat("Ana")
	h := newRouter(NewService(store, nil))

	tests := []struct {
		name   string
		method string
		target string
		body   string
		code   int
	}{
		{"empty content", http.MethodPost, "/api/chats/" + chatID + "/mensajes", `{"content":""}`, http.StatusBadRequest},
		{"bad body", http.MethodPost, "/api/chats/" + chatID + "/mensajes", `{`, http.StatusBadRequest},
		{"unknown chat", http.MethodPost, "/api/chats/" + uuid.NewString() + "/entrantes", `{"content":"x"}`, http.StatusNotFound},
		{"bad limit", http.MethodGet, "/api/chats/" + chatID + "/mensajes?limit=abc", "", http.StatusBadRequest},
		{"open without contact", http.MethodPost, "/api/chats", `{"nombre":"Eva"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, false, out["success"])
		})
	}
}

func TestHandler_OpenChat(t *testing.T) {
	h := newRouter(NewService(newFakeStore(), nil))

	code, out := do(t, h, http.MethodPost, "/api/chats", `{"nombre":"Eva","telefono":"+34611111111"}`)
	require.Equal(t, http.StatusOK, code)
	data := out["data"].(map[string]any)
	assert.NotEmpty(t, data["id"])
	assert.Equal(t, "Eva", data["contact"].(map[string]any)["nombre"])
}
