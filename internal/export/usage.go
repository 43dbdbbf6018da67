package export

import (
	"github.com/xuri/excelize/v2"

	"tasktrack/internal/models"
	"tasktrack/internal/views"
)

const (
	SheetUsage    = "Usage Records"
	SheetSummary  = "Summary"
	SheetByOffice = "By Office"
	SheetByMonth  = "By Month"
)

// UsageWorkbook — книга по записям расхода. "By Office" и "By Month"
// добавляются, только если групп больше одной. Вызывающий закрывает файл.
func UsageWorkbook(records []models.UsageRecord, summary views.Summary, opt Options) (*excelize.File, error) {
	f, st, err := newBook(SheetUsage)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			f.Close()
		}
	}()

	rows := make([][]any, 0, len(records))
	levels := make([]Level, 0, len(records))
	for _, r := range records {
		notes := ""
		if r.Notes != nil {
			notes = *r.Notes
		}
		rows = append(rows, []any{r.Date, r.Office, r.StartBalance, r.EndBalance, round2(r.Usage), r.WorkHours, notes})
		levels = append(levels, UsageLevel(r.Usage))
	}
	header := []any{"Date", "Office", "Start Balance", "End Balance", "Usage", "Work Hours", "Notes"}
	if err := table(f, SheetUsage, st, header, rows); err != nil {
		return nil, err
	}
	if err := styleColumn(f, SheetUsage, st, 5, levels); err != nil {
		return nil, err
	}

	if err := addSheet(f, SheetSummary); err != nil {
		return nil, err
	}
	dateRange := ""
	if summary.FirstDate != "" {
		dateRange = summary.FirstDate + " to " + summary.LastDate
	}
	summaryRows := [][]any{
		{"Total Records", summary.TotalRecords},
		{"Total Usage", round2(summary.TotalUsage)},
		{"Average Usage", round2(summary.AverageUsage)},
		{"Max Usage", round2(summary.MaxUsage)},
		{"Total Work Hours", round2(summary.TotalWorkHours)},
		{"Usage per Hour", round2(summary.UsagePerHour)},
		{"Offices", summary.Offices},
		{"Date Range", dateRange},
		{"Filter", opt.FilterDesc},
		{"Generated", stamp(opt.GeneratedAt)},
	}
	if err := table(f, SheetSummary, st, []any{"Metric", "Value"}, summaryRows); err != nil {
		return nil, err
	}

	groupHeader := []any{"Group", "Records", "Usage", "Work Hours", "Average Usage"}
	for _, g := range []struct {
		sheet  string
		groups []views.Group
	}{
		{SheetByOffice, views.ByOffice(records)},
		{SheetByMonth, views.ByMonth(records)},
	} {
		if len(g.groups) < 2 {
			continue
		}
		if err := addSheet(f, g.sheet); err != nil {
			return nil, err
		}
		rows := make([][]any, 0, len(g.groups))
		levels := make([]Level, 0, len(g.groups))
		for _, grp := range g.groups {
			avg := grp.Usage / float64(grp.Records)
			rows = append(rows, []any{grp.Label, grp.Records, round2(grp.Usage), round2(grp.WorkHours), round2(avg)})
			levels = append(levels, UsageLevel(avg))
		}
		if err := table(f, g.sheet, st, groupHeader, rows); err != nil {
			return nil, err
		}
		if err := styleColumn(f, g.sheet, st, 5, levels); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	ok = true
	return f, nil
}
