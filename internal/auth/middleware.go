package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"tasktrack/internal/middleware"
	"tasktrack/internal/models"
)

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext — сессия, положенная Middleware; nil вне защищённых маршрутов.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}

// Middleware требует Authorization: Bearer <access>. Для EventSource,
// который не умеет заголовки, токен принимается и из ?access_token=.
func Middleware(svc *Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r)
			if raw == "" {
				models.WriteError(w, models.ErrUnauthorized)
				return
			}
			sess, err := svc.Authenticate(r.Context(), raw)
			if err != nil {
				models.WriteError(w, err)
				return
			}
			middleware.SetUserID(r.Context(), sess.UserID)
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

func bearer(r *http.Request) string {
	const p = "Bearer "
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, p) {
		return strings.TrimSpace(strings.TrimPrefix(h, p))
	}
	return r.URL.Query().Get("access_token")
}
