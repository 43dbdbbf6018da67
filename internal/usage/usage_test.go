package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/xuri/excelize/v2"

	"tasktrack/internal/access"
	"tasktrack/internal/auth"
	"tasktrack/internal/db"
	"tasktrack/internal/models"
	"tasktrack/internal/realtime"
	"tasktrack/internal/repo"
	"tasktrack/internal/views"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	d, err := db.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := d.DB(); err == nil {
			sqlDB.Close()
		}
	})
	svc := NewService(repo.NewUsageStore(d), realtime.NewHub())
	svc.now = func() time.Time { return time.Date(2025, 1, 10, 18, 30, 0, 0, time.UTC) }
	return svc
}

func fp(v float64) *float64 { return &v }

var alice = access.Principal{UserID: "alice"}

func TestDuplicateDateOfficeUpdatesExisting(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, alice, Input{Date: "2025-01-10", Office: "HQ", StartBalance: fp(50), EndBalance: fp(35)})
	if err != nil {
		t.Fatal(err)
	}
	if first.Conflict != nil || first.Record.Usage != 15 {
		t.Fatalf("first = %+v", first.Record)
	}

	second, err := svc.Create(ctx, alice, Input{Date: "2025-01-10", Office: "hq", StartBalance: fp(50), EndBalance: fp(30)})
	if err != nil {
		t.Fatal(err)
	}
	if second.Conflict == nil || second.Conflict.ExistingID != first.Record.ID {
		t.Fatalf("expected conflict on the first record, got %+v", second.Conflict)
	}
	if second.Record.ID != first.Record.ID || second.Record.Usage != 20 || second.Record.Office != "HQ" {
		t.Fatalf("second = %+v", second.Record)
	}

	list, _ := svc.List(ctx, alice, views.UsageFilter{})
	if len(list) != 1 {
		t.Fatalf("expected one record, have %d", len(list))
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []Input{
		{Date: "2025-13-01", Office: "HQ", StartBalance: fp(1), EndBalance: fp(0)},
		{Date: "2025-01-10", Office: "HQ", EndBalance: fp(0)},
		{Date: "2025-01-10", Office: "HQ", StartBalance: fp(-1), EndBalance: fp(0)},
		{Date: "2025-01-10", Office: "  ", StartBalance: fp(1), EndBalance: fp(0)},
		{Date: "2025-01-10", Office: "HQ", StartBalance: fp(1), EndBalance: fp(0), WorkHours: fp(-2)},
	}
	for _, in := range cases {
		if _, err := svc.Create(ctx, alice, in); !models.IsValidation(err) {
			t.Errorf("Create(%+v): want validation error, got %v", in, err)
		}
	}
}

func TestUpdateRecomputesUsage(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	res, _ := svc.Create(ctx, alice, Input{Date: "2025-01-10", Office: "HQ", StartBalance: fp(50), EndBalance: fp(35), WorkHours: fp(8)})
	got, err := svc.Update(ctx, alice, res.Record.ID, Patch{StartBalance: fp(60)})
	if err != nil {
		t.Fatal(err)
	}
	if got.Usage != 25 || got.WorkHours != 8 {
		t.Fatalf("usage after start change = %v (hours %v)", got.Usage, got.WorkHours)
	}
	got, _ = svc.Update(ctx, alice, res.Record.ID, Patch{EndBalance: fp(10)})
	if got.Usage != 50 {
		t.Fatalf("usage after end change = %v", got.Usage)
	}
}

func TestMovingOntoExistingDateOfficeConflicts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _ = svc.Create(ctx, alice, Input{Date: "2025-01-10", Office: "HQ", StartBalance: fp(5), EndBalance: fp(1)})
	other, _ := svc.Create(ctx, alice, Input{Date: "2025-01-11", Office: "HQ", StartBalance: fp(5), EndBalance: fp(1)})

	_, err := svc.Update(ctx, alice, other.Record.ID, Patch{Date: stringp("2025-01-10"), Office: stringp("hq")})
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("want conflict, got %v", err)
	}
}

func stringp(s string) *string { return &s }

// ============================================================
// HTTP
// ============================================================

func newRouter(svc *Service) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithSession(req.Context(), &auth.Session{UserID: "alice"})))
		})
	})
	RegisterRoutes(api, NewHandler(svc))
	return r
}

func TestHTTPCreateConflictAndExport(t *testing.T) {
	svc := newTestService(t)
	r := newRouter(svc)
	post := func(body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/usage", strings.NewReader(body)))
		return rr
	}

	if rr := post(`{"date":"2025-01-10","office":"HQ","start_balance":50,"end_balance":35}`); rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body)
	}
	rr := post(`{"date":"2025-01-10","office":"hq","start_balance":50,"end_balance":40}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("duplicate: %d %s", rr.Code, rr.Body)
	}
	var res Result
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Conflict == nil || res.Record.Usage != 10 {
		t.Fatalf("duplicate result = %+v", res)
	}
	if rr := post(`{"date":"2025-01-11","office":"Branch","start_balance":"x","end_balance":1}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric balance: %d", rr.Code)
	}
	_ = post(`{"date":"2025-01-11","office":"Branch","start_balance":9,"end_balance":1}`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/usage/export.xlsx?office=HQ", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rr.Code, rr.Body)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "usage_2025-01-10_1830_hq.xlsx") {
		t.Fatalf("content-disposition = %q", cd)
	}
	book, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	defer book.Close()
	rows, _ := book.GetRows("Summary")
	found := false
	for _, row := range rows {
		if len(row) >= 2 && row[0] == "Total Records" {
			found = row[1] == "1"
		}
	}
	if !found {
		t.Fatalf("summary rows = %v", rows)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/usage/summary", nil))
	var sum views.Summary
	_ = json.Unmarshal(rr.Body.Bytes(), &sum)
	if sum.TotalRecords != 2 || sum.Offices != 2 {
		t.Fatalf("summary = %+v", sum)
	}
}
