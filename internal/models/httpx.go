package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Problem представляет ответ об ошибке в стиле RFC 7807.
type Problem struct {
	Type     string      `json:"type,omitempty"`   // URL с описанием типа проблемы (можно оставить пустым)
	Title    string      `json:"title"`            // краткое название
	Status   int         `json:"status"`           // HTTP код
	Detail   string      `json:"detail,omitempty"` // подробности
	Instance string      `json:"instance,omitempty"`
	Extra    interface{} `json:"extra,omitempty"` // произвольные поля (map/struct)
}

func WriteProblem(w http.ResponseWriter, status int, title, detail string, extra any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Title:  title,
		Status: status,
		Detail: detail,
		Extra:  extra,
	})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Код в extra, по которому клиент принудительно выходит из сессии.
const CodeSessionExpired = "session_expired"

// StatusFor раскладывает ошибку по HTTP-статусам.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError пишет problem+json по таксономии ошибок.
// 5xx не раскрывает текст ошибки, его пишет в лог вызывающий.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		WriteProblem(w, status, http.StatusText(status), "unexpected server error", nil)
		return
	}
	var extra any
	if errors.Is(err, ErrSessionExpired) {
		extra = map[string]any{"code": CodeSessionExpired}
	}
	WriteProblem(w, status, http.StatusText(status), publicMessage(err), extra)
}

func publicMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Msg
	}
	for _, s := range []error{ErrSessionExpired, ErrUnauthorized, ErrForbidden, ErrNotFound, ErrConflict} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}

// DecodeJSON читает тело запроса в v; мусор и лишние поля дают ошибку валидации.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return Invalid("body", fmt.Sprintf("malformed JSON: %v", err))
	}
	return nil
}
