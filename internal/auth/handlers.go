package auth

import (
	"net/http"

	"github.com/gorilla/mux"

	"tasktrack/internal/middleware"
	"tasktrack/internal/models"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes — /api/v1/auth/*. signout и me требуют сессию.
func RegisterRoutes(r *mux.Router, h *Handler) {
	pub := r.PathPrefix("/api/v1/auth").Subrouter()
	pub.HandleFunc("/signup", h.SignUp).Methods(http.MethodPost)
	pub.HandleFunc("/signin", h.SignIn).Methods(http.MethodPost)
	pub.HandleFunc("/refresh", h.Refresh).Methods(http.MethodPost)

	priv := r.PathPrefix("/api/v1/auth").Subrouter()
	priv.Use(Middleware(h.svc))
	priv.HandleFunc("/signout", h.SignOut).Methods(http.MethodPost)
	priv.HandleFunc("/me", h.Me).Methods(http.MethodGet)
	priv.HandleFunc("/me/telegram", h.SetTelegram).Methods(http.MethodPut)
}

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := models.DecodeJSON(r, &in); err != nil {
		models.WriteError(w, err)
		return
	}
	tok, err := h.svc.SignUp(r.Context(), in.Email, in.Password, in.DisplayName, r.UserAgent())
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusCreated, tok)
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := models.DecodeJSON(r, &in); err != nil {
		models.WriteError(w, err)
		return
	}
	tok, err := h.svc.SignIn(r.Context(), in.Email, in.Password, r.UserAgent())
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, tok)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := models.DecodeJSON(r, &in); err != nil {
		models.WriteError(w, err)
		return
	}
	tok, err := h.svc.Refresh(r.Context(), in.RefreshToken, r.UserAgent())
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, tok)
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SignOut(r.Context(), *FromContext(r.Context())); err != nil {
		middleware.Fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Profile(r.Context(), FromContext(r.Context()).UserID)
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) SetTelegram(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ChatID *int64 `json:"chat_id"`
	}
	if err := models.DecodeJSON(r, &in); err != nil {
		models.WriteError(w, err)
		return
	}
	p, err := h.svc.SetTelegramChat(r.Context(), FromContext(r.Context()).UserID, in.ChatID)
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, p)
}
