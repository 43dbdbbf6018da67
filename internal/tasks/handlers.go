package tasks

import (
	"net/http"

	"github.com/gorilla/mux"

	"tasktrack/internal/access"
	"tasktrack/internal/auth"
	"tasktrack/internal/export"
	"tasktrack/internal/logs"
	"tasktrack/internal/middleware"
	"tasktrack/internal/models"
	"tasktrack/internal/views"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes — /api/v1/tasks; r уже закрыт auth.Middleware.
func RegisterRoutes(r *mux.Router, h *Handler) {
	sub := r.PathPrefix("/tasks").Subrouter()
	sub.HandleFunc("", h.List).Methods(http.MethodGet)
	sub.HandleFunc("", h.Create).Methods(http.MethodPost)
	sub.HandleFunc("/progress", h.Progress).Methods(http.MethodGet)
	sub.HandleFunc("/export.xlsx", h.ExportXLSX).Methods(http.MethodGet)
	sub.HandleFunc("/export.csv", h.ExportCSV).Methods(http.MethodGet)
	sub.HandleFunc("/{id}", h.Get).Methods(http.MethodGet)
	sub.HandleFunc("/{id}", h.Update).Methods(http.MethodPatch)
	sub.HandleFunc("/{id}/toggle", h.Toggle).Methods(http.MethodPost)
	sub.HandleFunc("/{id}", h.Delete).Methods(http.MethodDelete)
}

// principal — владелец запроса. Роль здесь не нужна: задачи только свои.
func principal(r *http.Request) access.Principal {
	return access.Principal{UserID: auth.FromContext(r.Context()).UserID}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f, err := views.FilterFromQuery(r.URL.Query())
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	list, err := h.svc.List(r.Context(), principal(r), f)
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Get(r.Context(), principal(r), mux.Vars(r)["id"])
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := models.DecodeJSON(r, &in); err != nil {
		middleware.Fail(w, r, err)
		return
	}
	t, err := h.svc.Create(r.Context(), principal(r), in)
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var p Patch
	if err := models.DecodeJSON(r, &p); err != nil {
		middleware.Fail(w, r, err)
		return
	}
	t, err := h.svc.Update(r.Context(), principal(r), mux.Vars(r)["id"], p)
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Toggle(r.Context(), principal(r), mux.Vars(r)["id"])
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), principal(r), mux.Vars(r)["id"]); err != nil {
		middleware.Fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	days, err := h.svc.Progress(r.Context(), principal(r))
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, days)
}

func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	f, list, ok := h.filtered(w, r)
	if !ok {
		return
	}
	now := h.svc.now()
	book, err := export.TaskWorkbook(list, export.Options{FilterDesc: f.Describe(), GeneratedAt: now})
	if err != nil {
		logs.Logger.WithField("reqid", middleware.GetRequestID(r)).Errorf("task export: %v", err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "export failed", nil)
		return
	}
	defer book.Close()
	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", export.Attachment(export.Filename("tasks", now, f.Describe())))
	if err := book.Write(w); err != nil {
		logs.Logger.WithField("reqid", middleware.GetRequestID(r)).Errorf("task export write: %v", err)
	}
}

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	f, list, ok := h.filtered(w, r)
	if !ok {
		return
	}
	now := h.svc.now()
	name := export.Filename("tasks", now, f.Describe())
	name = name[:len(name)-len(".xlsx")] + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", export.Attachment(name))
	if err := export.TasksCSV(w, list, now.Location()); err != nil {
		logs.Logger.WithField("reqid", middleware.GetRequestID(r)).Errorf("task csv export: %v", err)
	}
}

func (h *Handler) filtered(w http.ResponseWriter, r *http.Request) (views.Filter, []models.Task, bool) {
	f, err := views.FilterFromQuery(r.URL.Query())
	if err != nil {
		middleware.Fail(w, r, err)
		return f, nil, false
	}
	list, err := h.svc.List(r.Context(), principal(r), f)
	if err != nil {
		middleware.Fail(w, r, err)
		return f, nil, false
	}
	return f, list, true
}
