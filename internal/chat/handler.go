package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"beast-crm/internal/logging"
	"beast-crm/internal/middleware"
	"beast-crm/internal/respond"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.OpenChat)
	r.Post("/{chatID}/mensajes", h.Send)
	r.Post("/{chatID}/entrantes", h.Receive)
	r.Get("/{chatID}/mensajes", h.History)
}

// OpenChat handles POST /api/chats: find or create the chat of a contact.
func (h *Handler) OpenChat(w http.ResponseWriter, r *http.Request) {
	var req OpenChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Cuerpo de la petición inválido")
		return
	}

	chat, err := h.service.OpenChat(r.Context(), req)
	if err != nil {
		h.fail(w, r, "open chat", err)
		return
	}
	respond.OK(w, http.StatusOK, chat)
}

// Send handles POST /api/chats/{chatID}/mensajes. The caller is the sender.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "No autorizado")
		return
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Cuerpo de la petición inválido")
		return
	}

	msg, err := h.service.Send(r.Context(), chi.URLParam(r, "chatID"), userID, req.Content)
	if err != nil {
		h.fail(w, r, "send message", err)
		return
	}
	respond.OK(w, http.StatusCreated, msg)
}

// Receive handles POST /api/chats/{chatID}/entrantes, used by the messaging
// gateway for messages written by the contact.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Cuerpo de la petición inválido")
		return
	}

	msg, err := h.service.Receive(r.Context(), chi.URLParam(r, "chatID"), req.Content)
	if err != nil {
		h.fail(w, r, "receive message", err)
		return
	}
	respond.OK(w, http.StatusCreated, msg)
}

// History handles GET /api/chats/{chatID}/mensajes?limit=.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "limit debe ser numérico")
			return
		}
		limit = n
	}

	msgs, err := h.service.History(r.Context(), chi.URLParam(r, "chatID"), limit)
	if err != nil {
		h.fail(w, r, "chat history", err)
		return
	}
	respond.OK(w, http.StatusOK, msgs)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrChatNotFound):
		respond.Error(w, http.StatusNotFound, "Chat no encontrado")
	case errors.Is(err, ErrEmptyContent), errors.Is(err, ErrInvalidInput):
		respond.Error(w, http.StatusBadRequest, err.Error())
	default:
		logging.FromContext(r.Context()).Error(op, logging.Err(err), logging.ChatID(chi.URLParam(r, "chatID")))
		respond.Internal(w, "Error interno del servidor", err)
	}
}
