package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"timecast/internal/model"
	"timecast/internal/schedule"
	"timecast/internal/weather"
)

var (
	purple = lipgloss.Color("#7C3AED")
	green  = lipgloss.Color("#10B981")
	red    = lipgloss.Color("#EF4444")
	amber  = lipgloss.Color("#F59E0B")
	blue   = lipgloss.Color("#3B82F6")
	gray   = lipgloss.Color("#6B7280")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(purple)
	dimStyle    = lipgloss.NewStyle().Foreground(gray)
	okStyle     = lipgloss.NewStyle().Foreground(green)
	warnStyle   = lipgloss.NewStyle().Foreground(amber)
	errStyle    = lipgloss.NewStyle().Bold(true).Foreground(red)

	typeColors = map[model.EventType]lipgloss.Color{
		model.TypeWork:     blue,
		model.TypePersonal: green,
		model.TypeFamily:   purple,
		model.TypeOutdoor:  amber,
		model.TypeOther:    gray,
	}
)

const (
	pad       = "  "
	cellWidth = 12
)

func typeTag(t model.EventType) string {
	c, ok := typeColors[t]
	if !ok {
		c = gray
	}
	return lipgloss.NewStyle().Foreground(c).Render(fmt.Sprintf("%-8s", t))
}

// truncate cuts s to at most n visible characters.
func truncate(s string, n int) string {
	if lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return string(r[:min(len(r), n)])
	}
	return string(r[:n-1]) + "…"
}

func padRight(s string, n int) string {
	return s + strings.Repeat(" ", max(0, n-lipgloss.Width(s)))
}

// renderEvent is the one-line form used by list and write confirmations.
func renderEvent(ev model.Event) string {
	line := fmt.Sprintf("%s %s %s %s %s",
		dimStyle.Render(ev.ID),
		ev.Date.Format(schedule.DateLayout),
		ev.FormattedTimeRange(),
		typeTag(ev.Type),
		ev.Title,
	)
	if ev.Location != "" {
		line += dimStyle.Render(" @ " + ev.Location)
	}
	if ev.ReminderLead != model.ReminderNone {
		line += dimStyle.Render(" (" + ev.ReminderLead.String() + ")")
	}
	return line
}

func renderEvents(events []model.Event) string {
	var b strings.Builder
	b.WriteString(pad + headerStyle.Render(fmt.Sprintf("%d event(s)", len(events))) + "\n")
	if len(events) == 0 {
		b.WriteString(pad + dimStyle.Render("Nothing scheduled.") + "\n")
		return b.String()
	}
	for _, ev := range events {
		b.WriteString(pad + renderEvent(ev) + "\n")
	}
	return b.String()
}

// renderTimeline draws one label row per step; an event is listed on the
// row its offset falls into.
func renderTimeline(b *strings.Builder, blocks []schedule.Block, win schedule.Window, step int) {
	sep := dimStyle.Render("│")
	for m := win.StartMinutes; m <= win.EndMinutes; m += step {
		label := dimStyle.Render(schedule.FormatClock(m))
		var titles []string
		for _, blk := range blocks {
			start := win.StartMinutes + blk.OffsetMinutes
			if start >= m && start < m+step {
				titles = append(titles, fmt.Sprintf("%s %s %s",
					typeTag(blk.Event.Type), blk.Event.Title,
					dimStyle.Render(fmt.Sprintf("(%s, %d min)", blk.Event.FormattedTimeRange(), blk.DurationMinutes))))
			}
		}
		if len(titles) == 0 {
			fmt.Fprintf(b, "%s%s %s\n", pad, label, sep)
			continue
		}
		for i, t := range titles {
			if i > 0 {
				label = strings.Repeat(" ", 5)
			}
			fmt.Fprintf(b, "%s%s %s %s\n", pad, label, sep, t)
		}
	}
}

func renderDay(day time.Time, blocks []schedule.Block, win schedule.Window, step int) string {
	var b strings.Builder
	b.WriteString(pad + headerStyle.Render(day.Format("Monday, Jan 2 2006")) + "\n\n")
	renderTimeline(&b, blocks, win, step)
	return b.String()
}

func renderWeek(start time.Time, cols []schedule.DayColumn) string {
	var b strings.Builder
	b.WriteString(pad + headerStyle.Render(schedule.WeekRangeLabel(start)) + "\n")
	for _, c := range cols {
		b.WriteString("\n" + pad + lipgloss.NewStyle().Bold(true).Render(c.Day.Format("Mon Jan 2")) + "\n")
		if len(c.Blocks) == 0 {
			b.WriteString(pad + pad + dimStyle.Render("-") + "\n")
			continue
		}
		for _, blk := range c.Blocks {
			fmt.Fprintf(&b, "%s%s%s %s %s\n", pad, pad, blk.Event.FormattedTimeRange(), typeTag(blk.Event.Type), blk.Event.Title)
		}
	}
	return b.String()
}

// monthWeekdays heads the grid columns. The leading padding of a month is
// its first day's ISO weekday, so column 0 is Sunday.
var monthWeekdays = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func renderMonth(view schedule.MonthView) string {
	var b strings.Builder
	b.WriteString(pad + headerStyle.Render(view.Header) + "\n\n")

	b.WriteString(pad)
	for _, d := range monthWeekdays {
		b.WriteString(dimStyle.Render(padRight(d, cellWidth)))
	}
	b.WriteString("\n")

	for row := 0; row*7 < len(view.Cells); row++ {
		cells := view.Cells[row*7 : min(len(view.Cells), row*7+7)]
		labels, tasks := pad, pad
		for _, c := range cells {
			labels += padRight(c.Label, cellWidth)
			tasks += warnStyle.Render(padRight(truncate(c.Tasks, cellWidth-1), cellWidth))
		}
		b.WriteString(strings.TrimRight(labels, " ") + "\n")
		b.WriteString(strings.TrimRight(tasks, " ") + "\n")
	}
	return b.String()
}

func renderForecast(f *weather.Forecast, loc *time.Location, alerts []weather.Alert) string {
	var b strings.Builder
	b.WriteString(pad + headerStyle.Render("Forecast "+f.Timezone) + "\n")
	for _, d := range f.Days(loc) {
		fmt.Fprintf(&b, "%s%s %-16s %5.1f° / %5.1f°  %3d%%\n", pad,
			d.Date.Format("Mon Jan 2"),
			weather.Description(d.WeatherCode),
			d.TemperatureMax, d.TemperatureMin,
			d.PrecipitationProbabilityMax)
	}
	if len(alerts) == 0 {
		b.WriteString("\n" + pad + okStyle.Render("No weather alerts for outdoor events.") + "\n")
		return b.String()
	}
	b.WriteString("\n")
	for _, a := range alerts {
		b.WriteString(pad + warnStyle.Render(a.Title()+": ") + a.Message() + "\n")
	}
	return b.String()
}
