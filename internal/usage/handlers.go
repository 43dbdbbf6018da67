package usage

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

// RegisterRoutes — /api/v1/usage; r уже закрыт auth.Middleware.
func RegisterRoutes(r *mux.Router, h *Handler) {
	sub := r.PathPrefix("/usage").Subrouter()
	sub.HandleFunc("", h.List).Methods(http.MethodGet)
	sub.HandleFunc("", h.Create).Methods(http.MethodPost)
	sub.HandleFunc("/summary", h.Summary).Methods(http.MethodGet)
	sub.HandleFunc("/export.xlsx", h.ExportXLSX).Methods(http.MethodGet)
	sub.HandleFunc("/{id}", h.Get).Methods(http.MethodGet)
	sub.HandleFunc("/{id}", h.Update).Methods(http.MethodPatch)
	sub.HandleFunc("/{id}", h.Delete).Methods(http.MethodDelete)
}

func principal(r *http.Request) access.Principal {
	return access.Principal{UserID: auth.FromContext(r.Context()).UserID}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f, err := views.UsageFilterFromQuery(r.URL.Query())
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

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	f, err := views.UsageFilterFromQuery(r.URL.Query())
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	sum, err := h.svc.Summary(r.Context(), principal(r), f)
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, sum)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), principal(r), mux.Vars(r)["id"])
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, rec)
}

// Create: 201 для новой записи, 200 с полем conflict, если обновлена существующая.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := models.DecodeJSON(r, &in); err != nil {
		middleware.Fail(w, r, err)
		return
	}
	res, err := h.svc.Create(r.Context(), principal(r), in)
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Conflict != nil {
		status = http.StatusOK
	}
	models.WriteJSON(w, status, res)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var p Patch
	if err := models.DecodeJSON(r, &p); err != nil {
		middleware.Fail(w, r, err)
		return
	}
	rec, err := h.svc.Update(r.Context(), principal(r), mux.Vars(r)["id"], p)
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), principal(r), mux.Vars(r)["id"]); err != nil {
		middleware.Fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	f, err := views.UsageFilterFromQuery(r.URL.Query())
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	list, err := h.svc.List(r.Context(), principal(r), f)
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	now := h.svc.now()
	book, err := export.UsageWorkbook(list, views.UsageSummary(list), export.Options{FilterDesc: f.Describe(), GeneratedAt: now})
	if err != nil {
		logs.Logger.WithField("reqid", middleware.GetRequestID(r)).Errorf("usage export: %v", err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "export failed", nil)
		return
	}
	defer book.Close()
	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", export.Attachment(export.Filename("usage", now, f.Describe())))
	if err := book.Write(w); err != nil {
		logs.Logger.WithField("reqid", middleware.GetRequestID(r)).Errorf("usage export write: %v", err)
	}
}
