package repo

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"tasktrack/internal/db"
	"tasktrack/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
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
	return d
}

func strp(s string) *string { return &s }

// ============================================================
// Tasks
// ============================================================

func TestTaskCreateListOrderAndAudit(t *testing.T) {
	d := newTestDB(t)
	s := NewTaskStore(d)
	ctx := context.Background()

	base := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	for i, title := range []string{"first", "second"} {
		task := &models.Task{UserID: "u1", Title: title, Priority: models.PriorityLow, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.Create(ctx, "u1", task); err != nil {
			t.Fatalf("create: %v", err)
		}
		if task.ID == "" {
			t.Fatal("expected generated id")
		}
	}
	if err := s.Create(ctx, "u2", &models.Task{UserID: "u2", Title: "foreign", Priority: models.PriorityHigh}); err != nil {
		t.Fatal(err)
	}

	tasks, err := s.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 || tasks[0].Title != "second" {
		t.Fatalf("unexpected list: %+v", tasks)
	}

	logs, err := NewAuditStore(d).List(ctx, AuditFilter{Table: models.TableTasks, Action: models.ActionInsert})
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 INSERT audit rows, got %d", len(logs))
	}
}

func TestTaskUpdateOwnershipAndSnapshots(t *testing.T) {
	d := newTestDB(t)
	s := NewTaskStore(d)
	ctx := context.Background()

	task := &models.Task{UserID: "u1", Title: "old", Priority: models.PriorityMedium}
	if err := s.Create(ctx, "u1", task); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Update(ctx, "u2", "u2", task.ID, func(*models.Task) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign update: want ErrNotFound, got %v", err)
	}

	got, err := s.Update(ctx, "u1", "u1", task.ID, func(t *models.Task) error {
		t.Title = "new"
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "new" {
		t.Fatalf("title = %q", got.Title)
	}

	logs, _ := NewAuditStore(d).List(ctx, AuditFilter{Action: models.ActionUpdate})
	if len(logs) != 1 {
		t.Fatalf("expected 1 UPDATE row, got %d", len(logs))
	}
	var before, after models.Task
	_ = json.Unmarshal(logs[0].OldData, &before)
	_ = json.Unmarshal(logs[0].NewData, &after)
	if before.Title != "old" || after.Title != "new" {
		t.Fatalf("snapshots: before=%q after=%q", before.Title, after.Title)
	}
}

func TestTaskUpdateMutateErrorRollsBack(t *testing.T) {
	d := newTestDB(t)
	s := NewTaskStore(d)
	ctx := context.Background()

	task := &models.Task{UserID: "u1", Title: "keep", Priority: models.PriorityLow}
	_ = s.Create(ctx, "u1", task)

	boom := models.Invalid("title", "boom")
	_, err := s.Update(ctx, "u1", "u1", task.ID, func(t *models.Task) error {
		t.Title = "changed"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want mutate error, got %v", err)
	}
	cur, _ := s.Get(ctx, "u1", task.ID)
	if cur.Title != "keep" {
		t.Fatalf("title changed despite error: %q", cur.Title)
	}
}

func TestTaskDeleteCapturesAndRestores(t *testing.T) {
	d := newTestDB(t)
	s := NewTaskStore(d)
	audit := NewAuditStore(d)
	ctx := context.Background()

	task := &models.Task{UserID: "u1", Title: "restore me", Category: "home", Priority: models.PriorityHigh, Description: strp("d")}
	_ = s.Create(ctx, "u1", task)

	if _, err := s.Delete(ctx, "u2", "u2", task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete must be not found, got %v", err)
	}
	if _, err := s.Delete(ctx, "u1", "u1", task.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "u1", task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("task still present: %v", err)
	}

	deleted, err := audit.ListDeleted(ctx, 0)
	if err != nil || len(deleted) != 1 {
		t.Fatalf("deleted = %v, %v", deleted, err)
	}
	if deleted[0].DeletedBy != "u1" || deleted[0].UserID != "u1" {
		t.Fatalf("unexpected deleted record: %+v", deleted[0])
	}

	res, err := audit.Restore(ctx, "admin", deleted[0].ID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if res.RecordID == task.ID || res.RecordID == "" {
		t.Fatalf("restored row must get a fresh id, got %q", res.RecordID)
	}
	back, err := s.Get(ctx, "u1", res.RecordID)
	if err != nil {
		t.Fatal(err)
	}
	if back.Title != "restore me" || back.Category != "home" || back.Description == nil || *back.Description != "d" {
		t.Fatalf("restored data mismatch: %+v", back)
	}
	if n, _ := audit.CountDeleted(ctx); n != 0 {
		t.Fatalf("deleted record must be removed after restore, have %d", n)
	}
	if logs, _ := audit.List(ctx, AuditFilter{Action: models.ActionRestore}); len(logs) != 1 {
		t.Fatalf("expected RESTORE audit row, got %d", len(logs))
	}
}

func TestPurge(t *testing.T) {
	d := newTestDB(t)
	s := NewUsageStore(d)
	audit := NewAuditStore(d)
	ctx := context.Background()

	r := &models.UsageRecord{UserID: "u1", Date: "2025-01-10", StartBalance: 10, EndBalance: 4, Office: "HQ"}
	_ = s.Create(ctx, "u1", r)
	_, _ = s.Delete(ctx, "u1", "u1", r.ID)

	deleted, _ := audit.ListDeleted(ctx, 10)
	if len(deleted) != 1 {
		t.Fatalf("deleted = %d", len(deleted))
	}
	if _, err := audit.Purge(ctx, "admin", deleted[0].ID); err != nil {
		t.Fatal(err)
	}
	if _, err := audit.Purge(ctx, "admin", deleted[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second purge: %v", err)
	}
	if rows, _ := s.ListByUser(ctx, "u1"); len(rows) != 0 {
		t.Fatal("purge must not restore anything")
	}
}

// ============================================================
// Usage
// ============================================================

func TestUsageDerivedFieldsAndCaseInsensitiveLookup(t *testing.T) {
	d := newTestDB(t)
	s := NewUsageStore(d)
	ctx := context.Background()

	r := &models.UsageRecord{UserID: "u1", Date: "2025-01-10", StartBalance: 50, EndBalance: 35, Office: "HQ"}
	if err := s.Create(ctx, "u1", r); err != nil {
		t.Fatal(err)
	}
	if r.Usage != 15 {
		t.Fatalf("usage = %v", r.Usage)
	}

	found, err := s.FindByDateOffice(ctx, "u1", "2025-01-10", "hq")
	if err != nil || found.ID != r.ID {
		t.Fatalf("lookup: %v %v", found, err)
	}

	dup := &models.UsageRecord{UserID: "u1", Date: "2025-01-10", StartBalance: 1, EndBalance: 0, Office: " hq "}
	if err := s.Create(ctx, "u1", dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate insert must conflict, got %v", err)
	}

	up, err := s.Update(ctx, "u1", "u1", r.ID, func(r *models.UsageRecord) error {
		r.EndBalance = 20
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if up.Usage != 30 {
		t.Fatalf("usage after update = %v", up.Usage)
	}
}

// ============================================================
// Profiles & sessions
// ============================================================

func TestBootstrapSuperAdminOnlyOnce(t *testing.T) {
	d := newTestDB(t)
	s := NewProfileStore(d)
	ctx := context.Background()

	for _, email := range []string{"root@example.com", "other@example.com"} {
		if err := s.CreateUser(ctx, &models.User{Email: email, PasswordHash: "x"}, &models.Profile{DisplayName: email}); err != nil {
			t.Fatal(err)
		}
	}

	ok, err := s.BootstrapSuperAdmin(ctx, "ROOT@example.com")
	if err != nil || !ok {
		t.Fatalf("bootstrap: %v %v", ok, err)
	}
	ok, err = s.BootstrapSuperAdmin(ctx, "other@example.com")
	if err != nil || ok {
		t.Fatalf("second bootstrap must be a no-op: %v %v", ok, err)
	}
	ok, err = s.BootstrapSuperAdmin(ctx, "nobody@example.com")
	if err != nil || ok {
		t.Fatalf("unknown email: %v %v", ok, err)
	}

	var supers int64
	d.Model(&models.Profile{}).Where("is_super_admin = ?", true).Count(&supers)
	if supers != 1 {
		t.Fatalf("expected exactly one super admin, got %d", supers)
	}
}

func TestDuplicateEmailConflicts(t *testing.T) {
	d := newTestDB(t)
	s := NewProfileStore(d)
	ctx := context.Background()

	_ = s.CreateUser(ctx, &models.User{Email: "a@example.com", PasswordHash: "x"}, &models.Profile{})
	err := s.CreateUser(ctx, &models.User{Email: "a@example.com", PasswordHash: "y"}, &models.Profile{})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("want conflict, got %v", err)
	}
}

func TestSessionSweep(t *testing.T) {
	d := newTestDB(t)
	s := NewSessionStore(d)
	ctx := context.Background()
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	live := &models.AuthSession{UserID: "u", TokenHash: "a", ExpiresAt: now.Add(time.Hour)}
	expired := &models.AuthSession{UserID: "u", TokenHash: "b", ExpiresAt: now.Add(-time.Hour)}
	revoked := &models.AuthSession{UserID: "u", TokenHash: "c", ExpiresAt: now.Add(time.Hour)}
	for _, as := range []*models.AuthSession{live, expired, revoked} {
		if err := s.Create(ctx, as); err != nil {
			t.Fatal(err)
		}
	}
	_ = s.Revoke(ctx, revoked.ID, now)

	n, err := s.DeleteExpired(ctx, now)
	if err != nil || n != 2 {
		t.Fatalf("swept %d, %v", n, err)
	}
	if _, err := s.FindByHash(ctx, "a"); err != nil {
		t.Fatalf("live session removed: %v", err)
	}
}
