package admin

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"tasktrack/internal/access"
	"tasktrack/internal/auth"
	"tasktrack/internal/logs"
	"tasktrack/internal/middleware"
	"tasktrack/internal/models"
	"tasktrack/internal/realtime"
	"tasktrack/internal/repo"
)

type Handler struct {
	d Dependencies
}

type ctxKey struct{}

// principalOf — субъект с ролью из профиля. Профиль читается на каждом
// запросе, поэтому снятый флаг is_admin действует сразу.
func (h *Handler) principalOf(ctx context.Context, sess *auth.Session) (access.Principal, *models.Profile, error) {
	p, err := h.d.Profiles.Get(ctx, sess.UserID)
	if err != nil {
		return access.Principal{}, nil, err
	}
	return access.Principal{UserID: sess.UserID, Role: access.RoleOf(p)}, p, nil
}

func (h *Handler) require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := auth.FromContext(r.Context())
		if sess == nil {
			models.WriteError(w, models.ErrUnauthorized)
			return
		}
		pr, _, err := h.principalOf(r.Context(), sess)
		if err != nil {
			middleware.Fail(w, r, err)
			return
		}
		if !access.CanAdminister(pr) {
			h.d.Gate.Deny(sess.FamilyID)
			logs.Logger.WithFields(logrus.Fields{
				"reqid":   middleware.GetRequestID(r),
				"user_id": sess.UserID,
				"uri":     r.RequestURI,
			}).Warn("admin access denied")
			middleware.Fail(w, r, models.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, pr)))
	})
}

func actor(r *http.Request) access.Principal {
	p, _ := r.Context().Value(ctxKey{}).(access.Principal)
	return p
}

// ---------- gate ----------

func (h *Handler) Access(w http.ResponseWriter, r *http.Request) {
	sess := auth.FromContext(r.Context())
	if sess == nil {
		models.WriteError(w, models.ErrUnauthorized)
		return
	}
	var role access.Role
	state, err := h.d.Gate.Check(sess.FamilyID, func() (bool, error) {
		pr, _, err := h.principalOf(r.Context(), sess)
		if err != nil {
			return false, err
		}
		role = pr.Role
		return access.CanAdminister(pr), nil
	})
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	out := map[string]any{"state": state}
	if state == StateGranted && role != access.RoleUser {
		out["role"] = role.String()
	}
	models.WriteJSON(w, http.StatusOK, out)
}

// ---------- stats ----------

type Stats struct {
	Users          int64 `json:"users"`
	Tasks          int64 `json:"tasks"`
	UsageRecords   int64 `json:"usage_records"`
	DeletedRecords int64 `json:"deleted_records"`
	ActiveToday    int64 `json:"active_today"`
	RecentActions  int64 `json:"recent_actions"`
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.d.Now()
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	var st Stats
	steps := []struct {
		dst *int64
		fn  func() (int64, error)
	}{
		{&st.Users, func() (int64, error) { return h.d.Profiles.Count(ctx) }},
		{&st.Tasks, func() (int64, error) { return h.d.Tasks.Count(ctx) }},
		{&st.UsageRecords, func() (int64, error) { return h.d.Usage.Count(ctx) }},
		{&st.DeletedRecords, func() (int64, error) { return h.d.Audit.CountDeleted(ctx) }},
		{&st.ActiveToday, func() (int64, error) { return h.d.Profiles.CountActiveSince(ctx, midnight) }},
		{&st.RecentActions, func() (int64, error) { return h.d.Audit.CountSince(ctx, now.Add(-24*time.Hour)) }},
	}
	for _, s := range steps {
		n, err := s.fn()
		if err != nil {
			middleware.Fail(w, r, err)
			return
		}
		*s.dst = n
	}
	models.WriteJSON(w, http.StatusOK, st)
}

// ---------- audit / deleted ----------

var knownActions = map[models.AuditAction]bool{
	models.ActionInsert:  true,
	models.ActionUpdate:  true,
	models.ActionDelete:  true,
	models.ActionRestore: true,
	models.ActionPurge:   true,
	models.ActionAdmin:   true,
}

func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repo.AuditFilter{Table: strings.TrimSpace(q.Get("table"))}
	if a := strings.ToUpper(strings.TrimSpace(q.Get("action"))); a != "" {
		if !knownActions[models.AuditAction(a)] {
			middleware.Fail(w, r, models.Invalid("action", "unknown action "+a))
			return
		}
		f.Action = models.AuditAction(a)
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	f.Limit = limit
	rows, err := h.d.Audit.List(r.Context(), f)
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, rows)
}

func (h *Handler) Deleted(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	rows, err := h.d.Audit.ListDeleted(r.Context(), limit)
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, rows)
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := deletedID(w, r)
	if !ok {
		return
	}
	who := actor(r)
	res, err := h.d.Audit.Restore(r.Context(), who.UserID, id)
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	logs.Logger.WithFields(logrus.Fields{
		"user_id":   who.UserID,
		"table":     res.Table,
		"record_id": res.RecordID,
		"owner":     res.UserID,
	}).Info("record restored")
	if h.d.Hub != nil {
		h.d.Hub.Publish(res.UserID, realtime.Event{
			Table:    res.Table,
			Action:   realtime.ActionInsert,
			RecordID: res.RecordID,
			At:       h.d.Now(),
		})
	}
	models.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Purge(w http.ResponseWriter, r *http.Request) {
	id, ok := deletedID(w, r)
	if !ok {
		return
	}
	who := actor(r)
	dr, err := h.d.Audit.Purge(r.Context(), who.UserID, id)
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	logs.Logger.WithFields(logrus.Fields{
		"user_id":   who.UserID,
		"table":     dr.Table,
		"record_id": dr.RecordID,
	}).Info("deleted record purged")
	w.WriteHeader(http.StatusNoContent)
}

// ---------- users ----------

func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	rows, err := h.d.Profiles.List(r.Context())
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, rows)
}

func (h *Handler) SetAdmin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		IsAdmin *bool `json:"is_admin"`
	}
	if err := models.DecodeJSON(r, &in); err != nil {
		middleware.Fail(w, r, err)
		return
	}
	if in.IsAdmin == nil {
		middleware.Fail(w, r, models.Invalid("is_admin", "required"))
		return
	}
	who := actor(r)
	target, err := h.d.Profiles.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	if !access.CanSetAdmin(who, target) {
		middleware.Fail(w, r, models.ErrForbidden)
		return
	}
	p, err := h.d.Profiles.SetAdmin(r.Context(), who.UserID, target.ID, *in.IsAdmin)
	if err != nil {
		middleware.Fail(w, r, err)
		return
	}
	logs.Logger.WithFields(logrus.Fields{
		"user_id": who.UserID,
		"target":  p.UserID,
	}).Infof("is_admin set to %v", p.IsAdmin)
	models.WriteJSON(w, http.StatusOK, p)
}

// ---------- utils ----------

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		middleware.Fail(w, r, models.Invalid("limit", "must be a non-negative integer"))
		return 0, false
	}
	return n, true
}

func deletedID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	n, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		middleware.Fail(w, r, models.Invalid("id", "must be numeric"))
		return 0, false
	}
	return uint(n), true
}
