package schedule

import (
	"strconv"
	"time"

	"timecast/internal/model"
)

// GridCells is the fixed size of a month grid: six rows of seven days.
const GridCells = 42

// BuildGrid returns the 42 cell labels for a month. Padding cells are "".
//
// The leading padding equals the ISO weekday (1=Monday..7=Sunday) of the
// first of the month, so a month starting on Sunday gets a full blank row.
func BuildGrid(year int, month time.Month) []string {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := ISOWeekday(first)
	days := DaysIn(year, month)

	cells := make([]string, 0, GridCells)
	for i := 1; i <= GridCells; i++ {
		if i <= offset || i > days+offset {
			cells = append(cells, "")
			continue
		}
		cells = append(cells, strconv.Itoa(i-offset))
	}
	return cells
}

// TaskSummaryByDay maps "day-of-month" to the comma-joined titles of the
// events in that month, in encounter order.
func TaskSummaryByDay(year int, month time.Month, events []model.Event) map[string]string {
	summary := make(map[string]string)
	for _, ev := range events {
		if ev.Date.Year() != year || ev.Date.Month() != month {
			continue
		}
		key := strconv.Itoa(ev.Date.Day())
		if cur, ok := summary[key]; ok && cur != "" {
			summary[key] = cur + ", " + ev.Title
		} else {
			summary[key] = ev.Title
		}
	}
	return summary
}

// MonthCell pairs a grid label with its task summary.
type MonthCell struct {
	Label string
	Tasks string
}

// MonthView is a rendered month grid.
type MonthView struct {
	Year   int
	Month  time.Month
	Header string
	Cells  []MonthCell
}

// BuildMonthView combines BuildGrid and TaskSummaryByDay.
func BuildMonthView(year int, month time.Month, events []model.Event) MonthView {
	grid := BuildGrid(year, month)
	tasks := TaskSummaryByDay(year, month, events)

	cells := make([]MonthCell, len(grid))
	for i, label := range grid {
		cells[i] = MonthCell{Label: label}
		if label != "" {
			cells[i].Tasks = tasks[label]
		}
	}
	return MonthView{
		Year:   year,
		Month:  month,
		Header: MonthLabel(year, month),
		Cells:  cells,
	}
}

// ShiftMonth moves (year, month) by n months.
func ShiftMonth(year int, month time.Month, n int) (int, time.Month) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return t.Year(), t.Month()
}
