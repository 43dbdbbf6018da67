package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"tasktrack/internal/auth"
	"tasktrack/internal/db"
	"tasktrack/internal/models"
	"tasktrack/internal/realtime"
	"tasktrack/internal/repo"
)

type fixture struct {
	router   *mux.Router
	deps     Dependencies
	hub      *realtime.Hub
	root     *models.Profile
	alice    *models.Profile
	bob      *models.Profile
	sessions map[string]*auth.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d, err := db.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Migrate(d); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if sqlDB, err := d.DB(); err == nil {
			sqlDB.Close()
		}
	})

	ctx := context.Background()
	profiles := repo.NewProfileStore(d)
	mk := func(email string) *models.Profile {
		p := &models.Profile{DisplayName: email}
		if err := profiles.CreateUser(ctx, &models.User{Email: email, PasswordHash: "x"}, p); err != nil {
			t.Fatal(err)
		}
		return p
	}
	f := &fixture{
		hub:      realtime.NewHub(),
		root:     mk("root@example.com"),
		alice:    mk("alice@example.com"),
		bob:      mk("bob@example.com"),
		sessions: map[string]*auth.Session{},
	}
	if ok, err := profiles.BootstrapSuperAdmin(ctx, "root@example.com"); err != nil || !ok {
		t.Fatalf("bootstrap: %v %v", ok, err)
	}
	if _, err := profiles.SetAdmin(ctx, f.root.UserID, f.bob.ID, true); err != nil {
		t.Fatal(err)
	}

	f.deps = Dependencies{
		Profiles: profiles,
		Tasks:    repo.NewTaskStore(d),
		Usage:    repo.NewUsageStore(d),
		Audit:    repo.NewAuditStore(d),
		Hub:      f.hub,
		Gate:     NewGate(time.Hour),
		Now:      func() time.Time { return time.Now() },
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess := f.sessions[req.Header.Get("X-Test-Session")]
			if sess == nil {
				models.WriteError(w, models.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, req.WithContext(auth.WithSession(req.Context(), sess)))
		})
	})
	Attach(api, f.deps)
	f.router = r
	return f
}

// login регистрирует новую сессию профиля и возвращает её id.
func (f *fixture) login(p *models.Profile, sid string) string {
	f.sessions[sid] = &auth.Session{UserID: p.UserID, SessionID: sid, FamilyID: sid}
	return sid
}

func (f *fixture) do(t *testing.T, sid, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-Test-Session", sid)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func gateState(t *testing.T, rr *httptest.ResponseRecorder) State {
	t.Helper()
	var out struct {
		State State `json:"state"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode access: %v (%s)", err, rr.Body.String())
	}
	return out.State
}

func TestGateDeniedIsTerminalForSession(t *testing.T) {
	f := newFixture(t)
	sid := f.login(f.alice, "alice-1")

	if st := gateState(t, f.do(t, sid, "GET", "/api/v1/admin/access", "")); st != StateDenied {
		t.Fatalf("plain user: state = %s", st)
	}
	if rr := f.do(t, sid, "GET", "/api/v1/admin/stats", ""); rr.Code != http.StatusForbidden {
		t.Fatalf("stats for plain user: %d", rr.Code)
	}

	if _, err := f.deps.Profiles.SetAdmin(context.Background(), f.root.UserID, f.alice.ID, true); err != nil {
		t.Fatal(err)
	}
	if st := gateState(t, f.do(t, sid, "GET", "/api/v1/admin/access", "")); st != StateDenied {
		t.Fatalf("denied must stick for the session, got %s", st)
	}
	fresh := f.login(f.alice, "alice-2")
	if st := gateState(t, f.do(t, fresh, "GET", "/api/v1/admin/access", "")); st != StateGranted {
		t.Fatalf("new session after promotion: %s", st)
	}
}

func TestGateCheckErrorsAreNotCached(t *testing.T) {
	g := NewGate(time.Hour)
	if _, err := g.Check("s", func() (bool, error) { return false, errors.New("db down") }); err == nil {
		t.Fatal("expected error")
	}
	if g.Peek("s") != StateChecking {
		t.Fatal("failed check must leave the session in checking")
	}
	st, _ := g.Check("s", func() (bool, error) { return true, nil })
	if st != StateGranted {
		t.Fatalf("state = %s", st)
	}
	g.Deny("s")
	st, _ = g.Check("s", func() (bool, error) { return true, nil })
	if st != StateDenied {
		t.Fatalf("deny must win, got %s", st)
	}
}

func TestGateEntryIsExtendedOnUse(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	g := NewGate(time.Hour)
	g.now = func() time.Time { return now }

	g.Deny("fam")
	for i := 0; i < 3; i++ {
		now = now.Add(50 * time.Minute)
		st, err := g.Check("fam", func() (bool, error) { return true, nil })
		if err != nil || st != StateDenied {
			t.Fatalf("step %d: state = %s, %v", i, st, err)
		}
	}

	now = now.Add(2 * time.Hour)
	if g.Peek("fam") != StateChecking {
		t.Fatal("idle family must expire")
	}
}

func TestStatsAndRestoreFlow(t *testing.T) {
	f := newFixture(t)
	root := f.login(f.root, "root-1")
	ctx := context.Background()

	task := &models.Task{UserID: f.alice.UserID, Title: "lost", Priority: models.PriorityLow}
	if err := f.deps.Tasks.Create(ctx, f.alice.UserID, task); err != nil {
		t.Fatal(err)
	}
	if _, err := f.deps.Tasks.Delete(ctx, f.alice.UserID, f.alice.UserID, task.ID); err != nil {
		t.Fatal(err)
	}

	rr := f.do(t, root, "GET", "/api/v1/admin/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("stats: %d %s", rr.Code, rr.Body.String())
	}
	var st Stats
	_ = json.Unmarshal(rr.Body.Bytes(), &st)
	if st.Users != 3 || st.Tasks != 0 || st.DeletedRecords != 1 || st.RecentActions == 0 {
		t.Fatalf("stats = %+v", st)
	}

	rr = f.do(t, root, "GET", "/api/v1/admin/deleted", "")
	var deleted []models.DeletedRecord
	_ = json.Unmarshal(rr.Body.Bytes(), &deleted)
	if len(deleted) != 1 {
		t.Fatalf("deleted = %s", rr.Body.String())
	}

	events, cancel := f.hub.Subscribe(f.alice.UserID)
	defer cancel()

	rr = f.do(t, root, "POST", "/api/v1/admin/deleted/"+itoa(deleted[0].ID)+"/restore", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("restore: %d %s", rr.Code, rr.Body.String())
	}
	var res repo.Restored
	_ = json.Unmarshal(rr.Body.Bytes(), &res)
	if res.UserID != f.alice.UserID || res.RecordID == task.ID {
		t.Fatalf("restored = %+v", res)
	}
	select {
	case ev := <-events:
		if ev.RecordID != res.RecordID || ev.Table != models.TableTasks {
			t.Fatalf("event = %+v", ev)
		}
	default:
		t.Fatal("owner must be notified about the restore")
	}

	rr = f.do(t, root, "GET", "/api/v1/admin/audit?action=restore", "")
	var trail []models.AuditLog
	_ = json.Unmarshal(rr.Body.Bytes(), &trail)
	if len(trail) != 1 || trail[0].ActorID != f.root.UserID {
		t.Fatalf("trail = %s", rr.Body.String())
	}
	if rr := f.do(t, root, "GET", "/api/v1/admin/audit?action=DROP", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown action: %d", rr.Code)
	}
	if rr := f.do(t, root, "DELETE", "/api/v1/admin/deleted/"+itoa(deleted[0].ID), ""); rr.Code != http.StatusNotFound {
		t.Fatalf("purge of restored record: %d", rr.Code)
	}
}

func TestPurge(t *testing.T) {
	f := newFixture(t)
	bob := f.login(f.bob, "bob-1")
	ctx := context.Background()

	rec := &models.UsageRecord{UserID: f.alice.UserID, Date: "2025-01-10", StartBalance: 5, EndBalance: 1, Office: "HQ"}
	_ = f.deps.Usage.Create(ctx, f.alice.UserID, rec)
	_, _ = f.deps.Usage.Delete(ctx, f.alice.UserID, f.alice.UserID, rec.ID)
	deleted, _ := f.deps.Audit.ListDeleted(ctx, 0)

	if rr := f.do(t, bob, "DELETE", "/api/v1/admin/deleted/"+itoa(deleted[0].ID), ""); rr.Code != http.StatusNoContent {
		t.Fatalf("purge: %d %s", rr.Code, rr.Body.String())
	}
	if n, _ := f.deps.Audit.CountDeleted(ctx); n != 0 {
		t.Fatalf("deleted left: %d", n)
	}
}

func TestSetAdminRules(t *testing.T) {
	f := newFixture(t)
	root := f.login(f.root, "root-1")
	bob := f.login(f.bob, "bob-1")

	if rr := f.do(t, bob, "POST", "/api/v1/admin/users/"+f.alice.ID+"/admin", `{"is_admin":true}`); rr.Code != http.StatusForbidden {
		t.Fatalf("plain admin must not grant admin: %d", rr.Code)
	}
	if rr := f.do(t, root, "POST", "/api/v1/admin/users/"+f.root.ID+"/admin", `{"is_admin":false}`); rr.Code != http.StatusForbidden {
		t.Fatalf("super admin flag is immutable: %d", rr.Code)
	}
	if rr := f.do(t, root, "POST", "/api/v1/admin/users/"+f.alice.ID+"/admin", `{}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing flag: %d", rr.Code)
	}

	rr := f.do(t, root, "POST", "/api/v1/admin/users/"+f.bob.ID+"/admin", `{"is_admin":false}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("revoke: %d %s", rr.Code, rr.Body.String())
	}
	// права проверяются на каждом запросе, без кэша гейта
	if rr := f.do(t, bob, "GET", "/api/v1/admin/users", ""); rr.Code != http.StatusForbidden {
		t.Fatalf("revoked admin still served: %d", rr.Code)
	}

	rr = f.do(t, root, "GET", "/api/v1/admin/users", "")
	var users []models.Profile
	_ = json.Unmarshal(rr.Body.Bytes(), &users)
	if len(users) != 3 {
		t.Fatalf("users = %s", rr.Body.String())
	}
}

func itoa(n uint) string {
	return strconv.FormatUint(uint64(n), 10)
}
