package views

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"tasktrack/internal/models"
)

// UsageFilter — фильтры списка записей расхода. Пустые поля не фильтруют.
type UsageFilter struct {
	Office string // без учёта регистра
	From   string // YYYY-MM-DD включительно
	To     string // YYYY-MM-DD включительно
	Month  string // YYYY-MM
	Query  string // подстрока в office/notes
}

func UsageFilterFromQuery(v url.Values) (UsageFilter, error) {
	f := UsageFilter{
		Office: strings.TrimSpace(v.Get("office")),
		From:   strings.TrimSpace(v.Get("from")),
		To:     strings.TrimSpace(v.Get("to")),
		Month:  strings.TrimSpace(v.Get("month")),
		Query:  strings.TrimSpace(v.Get("q")),
	}
	for field, val := range map[string]string{"from": f.From, "to": f.To} {
		if val == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, val); err != nil {
			return f, models.Invalid(field, "must be YYYY-MM-DD")
		}
	}
	if f.Month != "" {
		if _, err := time.Parse("2006-01", f.Month); err != nil {
			return f, models.Invalid("month", "must be YYYY-MM")
		}
	}
	return f, nil
}

func (f UsageFilter) Describe() string {
	var parts []string
	if f.Office != "" {
		parts = append(parts, f.Office)
	}
	if f.Month != "" {
		parts = append(parts, f.Month)
	}
	if f.From != "" || f.To != "" {
		parts = append(parts, f.From+" to "+f.To)
	}
	if f.Query != "" {
		parts = append(parts, "search-"+f.Query)
	}
	return strings.Join(parts, " ")
}

// FilterUsage. Даты в формате YYYY-MM-DD сравниваются как строки.
func FilterUsage(records []models.UsageRecord, f UsageFilter) []models.UsageRecord {
	office := models.OfficeKey(f.Office)
	q := strings.ToLower(f.Query)
	out := make([]models.UsageRecord, 0, len(records))
	for _, r := range records {
		if office != "" && models.OfficeKey(r.Office) != office {
			continue
		}
		if f.From != "" && r.Date < f.From {
			continue
		}
		if f.To != "" && r.Date > f.To {
			continue
		}
		if f.Month != "" && !strings.HasPrefix(r.Date, f.Month+"-") {
			continue
		}
		if q != "" {
			hit := strings.Contains(strings.ToLower(r.Office), q)
			if !hit && r.Notes != nil {
				hit = strings.Contains(strings.ToLower(*r.Notes), q)
			}
			if !hit {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// Summary — сводные показатели по набору записей.
type Summary struct {
	TotalRecords   int     `json:"total_records"`
	TotalUsage     float64 `json:"total_usage"`
	AverageUsage   float64 `json:"average_usage"`
	TotalWorkHours float64 `json:"total_work_hours"`
	UsagePerHour   float64 `json:"usage_per_hour"`
	MaxUsage       float64 `json:"max_usage"`
	Offices        int     `json:"offices"`
	FirstDate      string  `json:"first_date,omitempty"`
	LastDate       string  `json:"last_date,omitempty"`
}

func UsageSummary(records []models.UsageRecord) Summary {
	s := Summary{TotalRecords: len(records)}
	offices := make(map[string]bool)
	for i, r := range records {
		s.TotalUsage += r.Usage
		s.TotalWorkHours += r.WorkHours
		if i == 0 || r.Usage > s.MaxUsage {
			s.MaxUsage = r.Usage
		}
		offices[models.OfficeKey(r.Office)] = true
		if s.FirstDate == "" || r.Date < s.FirstDate {
			s.FirstDate = r.Date
		}
		if r.Date > s.LastDate {
			s.LastDate = r.Date
		}
	}
	s.Offices = len(offices)
	if s.TotalRecords > 0 {
		s.AverageUsage = s.TotalUsage / float64(s.TotalRecords)
	}
	if s.TotalWorkHours > 0 {
		s.UsagePerHour = s.TotalUsage / s.TotalWorkHours
	}
	return s
}

// Group — агрегат по офису или месяцу.
type Group struct {
	Key       string  `json:"key"`
	Label     string  `json:"label"`
	Records   int     `json:"records"`
	Usage     float64 `json:"usage"`
	WorkHours float64 `json:"work_hours"`
}

// ByOffice группирует без учёта регистра; подписью служит первое встреченное написание.
func ByOffice(records []models.UsageRecord) []Group {
	return group(records, func(r models.UsageRecord) (string, string) {
		return models.OfficeKey(r.Office), strings.TrimSpace(r.Office)
	})
}

// ByMonth группирует по YYYY-MM.
func ByMonth(records []models.UsageRecord) []Group {
	return group(records, func(r models.UsageRecord) (string, string) {
		if len(r.Date) >= 7 {
			return r.Date[:7], r.Date[:7]
		}
		return r.Date, r.Date
	})
}

func group(records []models.UsageRecord, keyOf func(models.UsageRecord) (string, string)) []Group {
	idx := make(map[string]int)
	var out []Group
	for _, r := range records {
		key, label := keyOf(r)
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, Group{Key: key, Label: label})
		}
		out[i].Records++
		out[i].Usage += r.Usage
		out[i].WorkHours += r.WorkHours
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
