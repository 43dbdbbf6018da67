package views

import (
	"math"
	"net/url"
	"testing"
	"time"

	"tasktrack/internal/models"
)

func sp(s string) *string { return &s }

var now = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

func TestClassify(t *testing.T) {
	sched := func(d time.Duration) *time.Time { v := now.Add(d); return &v }

	cases := []struct {
		name string
		task models.Task
		want Bucket
	}{
		{"no date", models.Task{}, BucketAll},
		{"overdue date+time", models.Task{DueDate: sp("2025-01-09"), DueTime: sp("09:00")}, BucketOverdue},
		{"completed in the past", models.Task{DueDate: sp("2025-01-09"), DueTime: sp("09:00"), Completed: true}, BucketAll},
		{"date only is end of day", models.Task{DueDate: sp("2025-01-10")}, BucketToday},
		{"tomorrow", models.Task{DueDate: sp("2025-01-11"), DueTime: sp("08:00")}, BucketTomorrow},
		{"two days is week", models.Task{DueDate: sp("2025-01-12")}, BucketWeek},
		{"six days is week", models.Task{DueDate: sp("2025-01-16")}, BucketWeek},
		{"seven days is future", models.Task{DueDate: sp("2025-01-17")}, BucketFuture},
		{"legacy time is today", models.Task{Time: sp("18:30")}, BucketToday},
		{"schedule wins over due date", models.Task{ScheduledAt: sched(-time.Hour), DueDate: sp("2025-01-20")}, BucketOverdue},
		{"schedule tomorrow", models.Task{ScheduledAt: sched(30 * time.Hour)}, BucketTomorrow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.task, now); got != tc.want {
				t.Fatalf("Classify = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestClassifyIsTotalAndExclusive(t *testing.T) {
	var tasks []models.Task
	for d := -10; d <= 10; d++ {
		day := now.AddDate(0, 0, d).Format(models.DateLayout)
		for _, done := range []bool{false, true} {
			tasks = append(tasks,
				models.Task{DueDate: sp(day), Completed: done},
				models.Task{DueDate: sp(day), DueTime: sp("12:00"), Completed: done},
			)
		}
	}
	tasks = append(tasks, models.Task{}, models.Task{Completed: true})

	buckets := []Bucket{BucketOverdue, BucketToday, BucketTomorrow, BucketWeek, BucketFuture}
	covered := 0
	for _, b := range buckets {
		covered += len(ByDate(tasks, b, now))
	}
	rest := 0
	for _, task := range tasks {
		if Classify(task, now) == BucketAll {
			rest++
		}
	}
	if covered+rest != len(tasks) {
		t.Fatalf("buckets cover %d of %d tasks", covered+rest, len(tasks))
	}
	for _, task := range ByDate(tasks, BucketOverdue, now) {
		if task.Completed {
			t.Fatal("overdue must exclude completed tasks")
		}
	}
	if len(ByDate(tasks, BucketAll, now)) != len(tasks) {
		t.Fatal("all must return everything")
	}
}

func TestSearchAndFilters(t *testing.T) {
	tasks := []models.Task{
		{Title: "Buy milk", Category: "home", Priority: models.PriorityLow},
		{Title: "Report", Description: sp("quarterly MILK numbers"), Category: "work", Priority: models.PriorityHigh, Completed: true},
		{Title: "Call", Category: "Work", Priority: models.PriorityHigh},
	}
	if got := Search(tasks, "milk"); len(got) != 2 {
		t.Fatalf("search = %d", len(got))
	}
	if got := ByCategory(tasks, "work"); len(got) != 1 {
		t.Fatalf("category must be exact, got %d", len(got))
	}
	if got := ByPriority(tasks, "HIGH"); len(got) != 2 {
		t.Fatalf("priority must ignore case, got %d", len(got))
	}

	f, err := FilterFromQuery(url.Values{"q": {"milk"}, "priority": {"High"}, "status": {"completed"}})
	if err != nil {
		t.Fatal(err)
	}
	got := Apply(tasks, f, now)
	if len(got) != 1 || got[0].Title != "Report" {
		t.Fatalf("apply = %+v", got)
	}
	if d := f.Describe(); d != "search-milk high completed" {
		t.Fatalf("describe = %q", d)
	}

	if _, err := FilterFromQuery(url.Values{"date": {"someday"}}); !models.IsValidation(err) {
		t.Fatalf("bad bucket: %v", err)
	}
	if _, err := FilterFromQuery(url.Values{"priority": {"urgent"}}); !models.IsValidation(err) {
		t.Fatalf("bad priority: %v", err)
	}
}

func TestProgress(t *testing.T) {
	at := func(days int) time.Time { return now.Add(12*time.Hour).AddDate(0, 0, days) }
	tasks := []models.Task{
		{CreatedAt: at(0), Completed: true},
		{CreatedAt: at(0)},
		{CreatedAt: at(0)},
		{CreatedAt: at(-6), Completed: true},
		{CreatedAt: at(-7), Completed: true},
	}
	got := Progress(tasks, now.Add(15*time.Hour))
	if len(got) != 7 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Date != "2025-01-04" || got[6].Date != "2025-01-10" {
		t.Fatalf("window = %s..%s", got[0].Date, got[6].Date)
	}
	if got[6].Total != 3 || got[6].Completed != 1 || got[6].Percentage != 33 {
		t.Fatalf("today = %+v", got[6])
	}
	if got[0].Percentage != 100 {
		t.Fatalf("oldest day = %+v", got[0])
	}
	for _, d := range got[1:6] {
		if d.Total != 0 || d.Percentage != 0 {
			t.Fatalf("empty day must be 0%%: %+v", d)
		}
	}
}

func TestDueSoon(t *testing.T) {
	in := func(d time.Duration) *time.Time { v := now.Add(d); return &v }
	tasks := []models.Task{
		{Title: "soon", ScheduledAt: in(10 * time.Minute)},
		{Title: "edge", ScheduledAt: in(15 * time.Minute)},
		{Title: "later", ScheduledAt: in(16 * time.Minute)},
		{Title: "past", ScheduledAt: in(-time.Minute)},
		{Title: "done", ScheduledAt: in(5 * time.Minute), Completed: true},
	}
	got := DueSoon(tasks, now, 15*time.Minute)
	if len(got) != 2 || got[0].Title != "soon" || got[1].Title != "edge" {
		t.Fatalf("due soon = %+v", got)
	}
}

func usage(date, office string, start, end, hours float64) models.UsageRecord {
	r := models.UsageRecord{Date: date, Office: office, StartBalance: start, EndBalance: end, WorkHours: hours}
	r.Recompute()
	return r
}

func TestUsageSummaryAndGroups(t *testing.T) {
	records := []models.UsageRecord{
		usage("2025-01-10", "Main Office", 50, 35, 8),
		usage("2025-01-11", "main office", 35, 30, 2),
		usage("2025-02-01", "Branch", 30, 10, 10),
	}
	s := UsageSummary(records)
	if s.TotalRecords != 3 || s.TotalUsage != 40 || s.MaxUsage != 20 || s.Offices != 2 {
		t.Fatalf("summary = %+v", s)
	}
	if math.Abs(s.UsagePerHour-2) > 1e-9 || s.FirstDate != "2025-01-10" || s.LastDate != "2025-02-01" {
		t.Fatalf("summary = %+v", s)
	}

	offices := ByOffice(records)
	if len(offices) != 2 {
		t.Fatalf("offices = %+v", offices)
	}
	for _, g := range offices {
		if g.Key == "main office" && (g.Records != 2 || g.Label != "Main Office") {
			t.Fatalf("main office group = %+v", g)
		}
	}
	if months := ByMonth(records); len(months) != 2 || months[0].Key != "2025-01" {
		t.Fatalf("months = %+v", months)
	}

	if got := FilterUsage(records, UsageFilter{Office: "MAIN OFFICE"}); len(got) != 2 {
		t.Fatalf("office filter = %d", len(got))
	}
	if got := FilterUsage(records, UsageFilter{Month: "2025-02"}); len(got) != 1 {
		t.Fatalf("month filter = %d", len(got))
	}
	if got := FilterUsage(records, UsageFilter{From: "2025-01-11", To: "2025-01-31"}); len(got) != 1 {
		t.Fatalf("range filter = %d", len(got))
	}
	if UsageSummary(nil).AverageUsage != 0 {
		t.Fatal("empty summary must not divide by zero")
	}
}
