package notification

import (
	"encoding/json"
	"errors"
	"net/http"

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
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Patch("/{id}/leida", h.MarkRead)
}

// Create handles POST /api/notificaciones. user_id defaults to the caller;
// targeting someone else needs a notifier role.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "No autorizado")
		return
	}

	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.Error(w, http.StatusBadRequest, "Cuerpo de la petición inválido")
		return
	}

	n, err := h.service.CreateFor(r.Context(), userID, middleware.RoleFrom(r.Context()), in)
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidType):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		respond.Error(w, http.StatusForbidden, "No autorizado para notificar a otro usuario")
	case err != nil:
		logging.FromContext(r.Context()).Error("create notification", logging.Err(err))
		respond.Internal(w, "Error al crear la notificación", err)
	default:
		respond.OK(w, http.StatusCreated, n)
	}
}

// List handles GET /api/notificaciones[?unread=1].
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "No autorizado")
		return
	}

	unread := r.URL.Query().Get("unread")
	list, err := h.service.List(r.Context(), userID, unread == "1" || unread == "true")
	if err != nil {
		logging.FromContext(r.Context()).Error("list notifications", logging.Err(err))
		respond.Internal(w, "Error al obtener notificaciones", err)
		return
	}
	respond.OK(w, http.StatusOK, list)
}

// MarkRead handles PATCH /api/notificaciones/{id}/leida.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "No autorizado")
		return
	}

	err := h.service.MarkRead(r.Context(), userID, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, "Notificación no encontrada")
	case err != nil:
		logging.FromContext(r.Context()).Error("mark notification read", logging.Err(err))
		respond.Internal(w, "Error al actualizar la notificación", err)
	default:
		respond.JSON(w, http.StatusOK, respond.Body{"success": true})
	}
}
