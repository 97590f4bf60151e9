package middleware

import (
	"context"
	"net/http"
	"strings"

	"beast-crm/internal/auth"
	"beast-crm/internal/logging"
	"beast-crm/internal/respond"
)

type contextKey string

const (
	UserKey  contextKey = "user_id"
	EmailKey contextKey = "email"
	RoleKey  contextKey = "role"
)

// TokenValidator keeps this package independent of how tokens are checked.
type TokenValidator interface {
	ValidateToken(tokenString string) (auth.Claims, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(v TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: v}
}

// Handle rejects requests without a valid token.
func (am *AuthMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := tokenFromRequest(r)
		if tokenString == "" {
			respond.Error(w, http.StatusUnauthorized, "Token de autenticación requerido")
			return
		}

		claims, err := am.validator.ValidateToken(tokenString)
		if err != nil {
			logging.FromContext(r.Context()).Debug("token rejected", logging.Err(err))
			respond.Error(w, http.StatusUnauthorized, "Token inválido")
			return
		}

		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// Optional attaches the identity when a valid token is present and lets
// anonymous requests through otherwise.
func (am *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokenString := tokenFromRequest(r); tokenString != "" {
			if claims, err := am.validator.ValidateToken(tokenString); err == nil {
				r = r.WithContext(withClaims(r.Context(), claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Authorization header first, then ?token= for EventSource and WebSocket
// clients that cannot set headers.
func tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return r.URL.Query().Get("token")
}

func withClaims(ctx context.Context, c auth.Claims) context.Context {
	ctx = context.WithValue(ctx, UserKey, c.UserID)
	ctx = context.WithValue(ctx, EmailKey, c.Email)
	ctx = context.WithValue(ctx, RoleKey, c.Role)
	return logging.WithContext(ctx, logging.FromContext(ctx).With(logging.UserID(c.UserID)))
}

// UserIDFrom returns the authenticated subject, if any.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserKey).(string)
	return id, ok && id != ""
}

// RoleFrom returns the role claim of the authenticated caller.
func RoleFrom(ctx context.Context) string {
	role, _ := ctx.Value(RoleKey).(string)
	return role
}
