package web

import (
	"net/http"
	"time"

	"timecast/internal/schedule"
)

const labelStepMinutes = 30

type windowDTO struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	HeightPx  int    `json:"height_px"`
	LabelStep int    `json:"label_step_minutes"`
}

type blockDTO struct {
	Event           eventDTO `json:"event"`
	OffsetMinutes   int      `json:"offset_minutes"`
	DurationMinutes int      `json:"duration_minutes"`
	TopPx           int      `json:"top_px"`
	HeightPx        int      `json:"height_px"`
}

type dayResponse struct {
	Date   string     `json:"date"`
	Window windowDTO  `json:"window"`
	Labels []string   `json:"labels"`
	Blocks []blockDTO `json:"blocks"`
}

type weekColumnDTO struct {
	Date    string     `json:"date"`
	Weekday string     `json:"weekday"`
	Blocks  []blockDTO `json:"blocks"`
}

type weekResponse struct {
	Start  string          `json:"start"`
	Label  string          `json:"label"`
	Window windowDTO       `json:"window"`
	Labels []string        `json:"labels"`
	Days   []weekColumnDTO `json:"days"`
}

type yearMonth struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type monthCellDTO struct {
	Label string `json:"label"`
	Tasks string `json:"tasks,omitempty"`
}

type monthResponse struct {
	Year   int            `json:"year"`
	Month  int            `json:"month"`
	Header string         `json:"header"`
	Cells  []monthCellDTO `json:"cells"`
	Prev   yearMonth      `json:"prev"`
	Next   yearMonth      `json:"next"`
}

func (s *Server) windowDTO() windowDTO {
	win := s.svc.Window()
	return windowDTO{
		Start:     schedule.FormatClock(win.StartMinutes),
		End:       schedule.FormatClock(win.EndMinutes),
		HeightPx:  s.scale.Pixels(win.Length()),
		LabelStep: labelStepMinutes,
	}
}

func (s *Server) blockDTOs(blocks []schedule.Block) []blockDTO {
	out := make([]blockDTO, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, blockDTO{
			Event:           toEventDTO(b.Event),
			OffsetMinutes:   b.OffsetMinutes,
			DurationMinutes: b.DurationMinutes,
			TopPx:           s.scale.Pixels(b.OffsetMinutes),
			HeightPx:        s.scale.Pixels(b.DurationMinutes),
		})
	}
	return out
}

// dateParam reads ?date=yyyy-MM-dd, defaulting to today.
func (s *Server) dateParam(r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return schedule.DayKey(s.svc.Now()), true
	}
	d, err := time.ParseInLocation(schedule.DateLayout, raw, s.svc.Location())
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// GET /api/day?date=2024-01-01
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	day, ok := s.dateParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid date, expected yyyy-MM-dd")
		return
	}
	writeJSON(w, http.StatusOK, dayResponse{
		Date:   day.Format(schedule.DateLayout),
		Window: s.windowDTO(),
		Labels: s.svc.Window().Labels(labelStepMinutes),
		Blocks: s.blockDTOs(s.svc.Day(day)),
	})
}

// GET /api/week?date=2024-01-03 returns the week containing date.
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	day, ok := s.dateParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid date, expected yyyy-MM-dd")
		return
	}

	start := s.svc.WeekStartOf(day)
	cols := s.svc.Week(day)
	days := make([]weekColumnDTO, 0, len(cols))
	for _, c := range cols {
		days = append(days, weekColumnDTO{
			Date:    c.Day.Format(schedule.DateLayout),
			Weekday: c.Day.Format("Mon"),
			Blocks:  s.blockDTOs(c.Blocks),
		})
	}
	writeJSON(w, http.StatusOK, weekResponse{
		Start:  start.Format(schedule.DateLayout),
		Label:  schedule.WeekRangeLabel(start),
		Window: s.windowDTO(),
		Labels: s.svc.Window().Labels(labelStepMinutes),
		Days:   days,
	})
}

// GET /api/month?year=2024&month=9
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	now := s.svc.Now()
	q := r.URL.Query()
	year := parseIntDefault(q.Get("year"), now.Year())
	month := parseIntDefault(q.Get("month"), int(now.Month()))
	if month < 1 || month > 12 || year < 1 {
		writeError(w, http.StatusBadRequest, "month must be within 1-12")
		return
	}

	view := s.svc.Month(year, time.Month(month))
	cells := make([]monthCellDTO, 0, len(view.Cells))
	for _, c := range view.Cells {
		cells = append(cells, monthCellDTO{Label: c.Label, Tasks: c.Tasks})
	}
	py, pm := schedule.ShiftMonth(year, time.Month(month), -1)
	ny, nm := schedule.ShiftMonth(year, time.Month(month), 1)

	writeJSON(w, http.StatusOK, monthResponse{
		Year:   view.Year,
		Month:  int(view.Month),
		Header: view.Header,
		Cells:  cells,
		Prev:   yearMonth{Year: py, Month: int(pm)},
		Next:   yearMonth{Year: ny, Month: int(nm)},
	})
}
