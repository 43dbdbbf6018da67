package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey string

const requestInfoKey ctxKey = "reqinfo"

// requestInfo живёт в контексте запроса; UserID дописывает auth-мидлварь,
// а LoggerMW читает его после обработчика.
type requestInfo struct {
	ID     string
	UserID string
}

func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestInfoKey, &requestInfo{ID: id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func info(ctx context.Context) *requestInfo {
	v, _ := ctx.Value(requestInfoKey).(*requestInfo)
	return v
}

func GetRequestID(r *http.Request) string {
	if ri := info(r.Context()); ri != nil {
		return ri.ID
	}
	return ""
}

// SetUserID помечает запрос пользователем (для строки access-лога).
func SetUserID(ctx context.Context, userID string) {
	if ri := info(ctx); ri != nil {
		ri.UserID = userID
	}
}

func GetUserID(r *http.Request) string {
	if ri := info(r.Context()); ri != nil {
		return ri.UserID
	}
	return ""
}
