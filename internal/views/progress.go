package views

import (
	"time"

	"tasktrack/internal/models"
)

// DayProgress — задачи, созданные в этот день, и сколько из них выполнено.
type DayProgress struct {
	Date       string `json:"date"`
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

const progressDays = 7

// Progress — последние 7 дней (от старого к сегодняшнему) по дате создания.
// День без задач даёт 0%.
func Progress(tasks []models.Task, now time.Time) []DayProgress {
	loc := now.Location()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	out := make([]DayProgress, progressDays)
	index := make(map[string]int, progressDays)
	for i := 0; i < progressDays; i++ {
		day := today.AddDate(0, 0, i-(progressDays-1)).Format(models.DateLayout)
		out[i] = DayProgress{Date: day}
		index[day] = i
	}
	for _, t := range tasks {
		i, ok := index[t.CreatedAt.In(loc).Format(models.DateLayout)]
		if !ok {
			continue
		}
		out[i].Total++
		if t.Completed {
			out[i].Completed++
		}
	}
	for i := range out {
		out[i].Percentage = percent(out[i].Completed, out[i].Total)
	}
	return out
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return (part*100 + total/2) / total
}
