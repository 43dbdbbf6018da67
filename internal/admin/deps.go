package admin

import (
	"time"

	"github.com/gorilla/mux"

	"tasktrack/internal/realtime"
	"tasktrack/internal/repo"
)

type Dependencies struct {
	Profiles *repo.ProfileStore
	Tasks    *repo.TaskStore
	Usage    *repo.UsageStore
	Audit    *repo.AuditStore
	Hub      realtime.Publisher
	Gate     *Gate
	Now      func() time.Time
}

// Attach вешает /admin на уже аутентифицированный роутер /api/v1.
func Attach(r *mux.Router, d Dependencies) {
	if d.Gate == nil {
		d.Gate = NewGate(0)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &Handler{d: d}
	sub := r.PathPrefix("/admin").Subrouter()

	sub.HandleFunc("/access", h.Access).Methods("GET")

	api := sub.NewRoute().Subrouter()
	api.Use(h.require)
	api.HandleFunc("/stats", h.Stats).Methods("GET")
	api.HandleFunc("/audit", h.AuditTrail).Methods("GET")
	api.HandleFunc("/deleted", h.Deleted).Methods("GET")
	api.HandleFunc("/deleted/{id:[0-9]+}/restore", h.Restore).Methods("POST")
	api.HandleFunc("/deleted/{id:[0-9]+}", h.Purge).Methods("DELETE")
	api.HandleFunc("/users", h.Users).Methods("GET")
	api.HandleFunc("/users/{id}/admin", h.SetAdmin).Methods("POST")
}
