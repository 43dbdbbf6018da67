package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"tasktrack/internal/models"
	"tasktrack/internal/views"
)

const (
	SheetTasks      = "Tasks"
	SheetByCategory = "By Category"
)

var taskHeader = []string{"Title", "Description", "Category", "Priority", "Due Date", "Due Time", "Scheduled At", "Status", "Created At", "Completed At"}

func taskRow(t models.Task, loc *time.Location) []string {
	ts := func(v *time.Time) string {
		if v == nil {
			return ""
		}
		return v.In(loc).Format("2006-01-02 15:04")
	}
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	status := "Active"
	if t.Completed {
		status = "Completed"
	}
	due := deref(t.DueTime)
	if due == "" {
		due = deref(t.Time)
	}
	return []string{
		t.Title,
		deref(t.Description),
		t.Category,
		string(t.Priority),
		deref(t.DueDate),
		due,
		ts(t.ScheduledAt),
		status,
		t.CreatedAt.In(loc).Format("2006-01-02 15:04"),
		ts(t.CompletedAt),
	}
}

func priorityLevel(p models.Priority) Level {
	switch p {
	case models.PriorityHigh:
		return LevelHigh
	case models.PriorityMedium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// TaskWorkbook — "Tasks" + "Summary" (+ "By Category", если категорий больше одной).
func TaskWorkbook(tasks []models.Task, opt Options) (*excelize.File, error) {
	f, st, err := newBook(SheetTasks)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			f.Close()
		}
	}()

	now := opt.GeneratedAt
	if now.IsZero() {
		now = time.Now()
	}
	loc := now.Location()

	header := make([]any, len(taskHeader))
	for i, h := range taskHeader {
		header[i] = h
	}
	rows := make([][]any, 0, len(tasks))
	levels := make([]Level, 0, len(tasks))
	completed, overdue := 0, 0
	for _, t := range tasks {
		cells := taskRow(t, loc)
		row := make([]any, len(cells))
		for i, c := range cells {
			row[i] = c
		}
		rows = append(rows, row)
		levels = append(levels, priorityLevel(t.Priority))
		if t.Completed {
			completed++
		}
		if views.Classify(t, now) == views.BucketOverdue {
			overdue++
		}
	}
	if err := table(f, SheetTasks, st, header, rows); err != nil {
		return nil, err
	}
	if err := styleColumn(f, SheetTasks, st, 4, levels); err != nil {
		return nil, err
	}

	if err := addSheet(f, SheetSummary); err != nil {
		return nil, err
	}
	rate := 0.0
	if len(tasks) > 0 {
		rate = round2(float64(completed) * 100 / float64(len(tasks)))
	}
	summaryRows := [][]any{
		{"Total Records", len(tasks)},
		{"Completed", completed},
		{"Active", len(tasks) - completed},
		{"Overdue", overdue},
		{"Completion Rate %", rate},
		{"Filter", opt.FilterDesc},
		{"Generated", stamp(now)},
	}
	if err := table(f, SheetSummary, st, []any{"Metric", "Value"}, summaryRows); err != nil {
		return nil, err
	}

	if cats := views.Categories(tasks); len(cats) > 1 {
		if err := addSheet(f, SheetByCategory); err != nil {
			return nil, err
		}
		rows := make([][]any, 0, len(cats))
		for _, c := range cats {
			in := views.ByCategory(tasks, c)
			done := len(views.ByStatus(in, views.StatusCompleted))
			rows = append(rows, []any{c, len(in), done, len(in) - done})
		}
		if err := table(f, SheetByCategory, st, []any{"Category", "Total", "Completed", "Active"}, rows); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	ok = true
	return f, nil
}

// TasksCSV пишет задачи в csv: заголовок + строка на задачу.
func TasksCSV(w io.Writer, tasks []models.Task, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(taskHeader); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	for _, t := range tasks {
		if err := cw.Write(taskRow(t, loc)); err != nil {
			return fmt.Errorf("csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
