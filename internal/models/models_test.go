package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func strp(s string) *string { return &s }

func TestSetCompletedKeepsTimestampInSync(t *testing.T) {
	at := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	task := Task{Title: "x"}

	task.SetCompleted(true, at)
	if !task.Completed || task.CompletedAt == nil || !task.CompletedAt.Equal(at) {
		t.Fatalf("completing: %+v", task)
	}
	task.SetCompleted(false, at.Add(time.Hour))
	if task.Completed || task.CompletedAt != nil {
		t.Fatalf("reopening: %+v", task)
	}
}

func TestDueInstantPrecedence(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	sched := time.Date(2025, 1, 12, 7, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		task Task
		want time.Time
		ok   bool
	}{
		{"none", Task{}, time.Time{}, false},
		{"scheduled wins", Task{ScheduledAt: &sched, DueDate: strp("2025-01-09"), Time: strp("10:00")}, sched, true},
		{"date and time", Task{DueDate: strp("2025-01-09"), DueTime: strp("09:00")}, time.Date(2025, 1, 9, 9, 0, 0, 0, time.UTC), true},
		{"date only is end of day", Task{DueDate: strp("2025-01-09")}, time.Date(2025, 1, 9, 23, 59, 59, 0, time.UTC), true},
		{"legacy time is today", Task{Time: strp("18:15")}, time.Date(2025, 1, 10, 18, 15, 0, 0, time.UTC), true},
		{"garbage date falls through to legacy", Task{DueDate: strp("soon"), Time: strp("06:00")}, time.Date(2025, 1, 10, 6, 0, 0, 0, time.UTC), true},
	}
	for _, tc := range cases {
		got, ok := tc.task.DueInstant(now)
		if ok != tc.ok || !got.Equal(tc.want) {
			t.Errorf("%s: got (%v, %v), want (%v, %v)", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParsePriority(t *testing.T) {
	if p, ok := ParsePriority(" HIGH "); !ok || p != PriorityHigh {
		t.Fatalf("HIGH -> %q %v", p, ok)
	}
	if _, ok := ParsePriority("urgent"); ok {
		t.Fatal("urgent should be rejected")
	}
}

func TestRecomputeUsage(t *testing.T) {
	r := UsageRecord{StartBalance: 50, EndBalance: 35, Office: "  Main Office "}
	r.Recompute()
	if r.Usage != 15 {
		t.Fatalf("usage = %v", r.Usage)
	}
	if r.OfficeKey != "main office" || OfficeKey("MAIN OFFICE") != r.OfficeKey {
		t.Fatalf("office key = %q", r.OfficeKey)
	}
}

func TestWriteErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		detail string
	}{
		{Invalid("office", "must not be empty"), http.StatusBadRequest, "office: must not be empty"},
		{fmt.Errorf("delete task: %w", ErrNotFound), http.StatusNotFound, "not found"},
		{NewError(ErrUnauthorized, "invalid login credentials"), http.StatusUnauthorized, "invalid login credentials"},
		{ErrForbidden, http.StatusForbidden, "forbidden"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "unexpected server error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		WriteError(rec, tc.err)
		if rec.Code != tc.status {
			t.Errorf("%v: status %d, want %d", tc.err, rec.Code, tc.status)
		}
		var p Problem
		if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
			t.Fatal(err)
		}
		if p.Detail != tc.detail {
			t.Errorf("%v: detail %q, want %q", tc.err, p.Detail, tc.detail)
		}
	}
}

func TestWriteErrorSessionExpiredCode(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("authenticate: %w", ErrSessionExpired))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	var p struct {
		Extra map[string]string `json:"extra"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.Extra["code"] != CodeSessionExpired {
		t.Fatalf("extra = %v", p.Extra)
	}
}
