// Package export строит выгрузки: xlsx (excelize) и csv.
package export

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Options — общие параметры выгрузки.
type Options struct {
	FilterDesc  string    // описание активных фильтров, попадает в Summary и имя файла
	GeneratedAt time.Time // "сейчас" для отчёта
}

// Пороги раскраски значений расхода.
const (
	LowBelow    = 5.0
	MediumBelow = 15.0
)

type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// UsageLevel: <5 — low, <15 — medium, иначе high.
func UsageLevel(v float64) Level {
	switch {
	case v < LowBelow:
		return LevelLow
	case v < MediumBelow:
		return LevelMedium
	default:
		return LevelHigh
	}
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Filename: <prefix>_<YYYY-MM-DD>_<HHMM>[_<slug фильтра>].xlsx
func Filename(prefix string, at time.Time, filterDesc string) string {
	name := fmt.Sprintf("%s_%s_%s", prefix, at.Format("2006-01-02"), at.Format("1504"))
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(filterDesc), "-"), "-")
	if len(slug) > 40 {
		slug = strings.TrimRight(slug[:40], "-")
	}
	if slug != "" {
		name += "_" + slug
	}
	return name + ".xlsx"
}

// styles — идентификаторы стилей одной книги.
type styles struct {
	header int
	levels map[Level]int
}

func newStyles(f *excelize.File) (*styles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#4472C4"}},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	s := &styles{header: header, levels: make(map[Level]int, 3)}
	for lvl, color := range map[Level]string{
		LevelLow:    "#C6EFCE",
		LevelMedium: "#FFEB9C",
		LevelHigh:   "#FFC7CE",
	} {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		if err != nil {
			return nil, fmt.Errorf("%s style: %w", lvl, err)
		}
		s.levels[lvl] = id
	}
	return s, nil
}

// table пишет заголовок и строки начиная с A1.
func table(f *excelize.File, sheet string, st *styles, header []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, st.header); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	return f.SetColWidth(sheet, "A", lastCol, 16)
}

// styleColumn красит ячейки столбца col (1-based) в строках 2.. по уровню.
func styleColumn(f *excelize.File, sheet string, st *styles, col int, levels []Level) error {
	for i, lvl := range levels {
		cell, err := excelize.CoordinatesToCellName(col, i+2)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, st.levels[lvl]); err != nil {
			return fmt.Errorf("%s style %s: %w", sheet, cell, err)
		}
	}
	return nil
}

// newBook создаёт книгу, переименовав лист по умолчанию в first.
func newBook(first string) (*excelize.File, *styles, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), first); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("rename sheet: %w", err)
	}
	st, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, st, nil
}

func addSheet(f *excelize.File, name string) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("new sheet %s: %w", name, err)
	}
	return nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func stamp(at time.Time) string {
	if at.IsZero() {
		at = time.Now()
	}
	return at.Format("2006-01-02 15:04")
}

const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Attachment — значение Content-Disposition для скачивания файла.
func Attachment(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}
