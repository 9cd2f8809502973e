package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"timecast/internal/model"
)

// Window is the visible minute range of a timeline, e.g. 08:00–20:00 is
// {StartMinutes: 480, EndMinutes: 1200}.
type Window struct {
	StartMinutes int
	EndMinutes   int
}

// DefaultWindow is the 08:00–20:00 day view.
var DefaultWindow = Window{StartMinutes: 8 * 60, EndMinutes: 20 * 60}

// NewWindow parses "HH:MM" bounds.
func NewWindow(start, end string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	w := Window{StartMinutes: s, EndMinutes: e}
	if w.Length() <= 0 {
		return Window{}, fmt.Errorf("timeline window %s-%s is empty", start, end)
	}
	return w, nil
}

func (w Window) Length() int {
	return w.EndMinutes - w.StartMinutes
}

// Labels returns "HH:MM" labels every step minutes from start to end inclusive.
func (w Window) Labels(step int) []string {
	if step <= 0 {
		return nil
	}
	var out []string
	for m := w.StartMinutes; m <= w.EndMinutes; m += step {
		out = append(out, FormatClock(m))
	}
	return out
}

// Position is where an event sits inside a window, in minutes.
type Position struct {
	OffsetMinutes   int
	DurationMinutes int
}

// Layout maps an event's wall-clock start/end onto w.
//
// Events starting before the window, or after its end, are dropped rather
// than clipped at the head. Events running past the end are truncated so
// that offset+duration equals the window length. ok is false when nothing
// remains to draw.
func Layout(ev model.Event, w Window) (pos Position, ok bool) {
	startMinutes := model.MinutesOfDay(ev.Start)
	endMinutes := model.MinutesOfDay(ev.End)

	offset := startMinutes - w.StartMinutes
	duration := endMinutes - startMinutes
	length := w.Length()

	if offset < 0 || offset > length {
		return Position{}, false
	}
	if offset+duration > length {
		duration = length - offset
	}
	if duration <= 0 {
		return Position{}, false
	}
	return Position{OffsetMinutes: offset, DurationMinutes: duration}, true
}

// Block is a laid-out event in a day column.
type Block struct {
	Event model.Event
	Position
}

// LayoutDay filters events to day and lays out each one, ordered by start.
func LayoutDay(day time.Time, events []model.Event, w Window) []Block {
	blocks := make([]Block, 0)
	for _, ev := range events {
		if !SameDay(day, ev.Date) {
			continue
		}
		pos, ok := Layout(ev, w)
		if !ok {
			continue
		}
		blocks = append(blocks, Block{Event: ev, Position: pos})
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].OffsetMinutes < blocks[j].OffsetMinutes
	})
	return blocks
}

// DayColumn is one day of a week view.
type DayColumn struct {
	Day    time.Time
	Blocks []Block
}

// LayoutWeek builds seven columns starting at weekStart.
func LayoutWeek(weekStart time.Time, events []model.Event, w Window) []DayColumn {
	cols := make([]DayColumn, 0, 7)
	for i := 0; i < 7; i++ {
		day := AddDays(DayKey(weekStart), i)
		cols = append(cols, DayColumn{Day: day, Blocks: LayoutDay(day, events, w)})
	}
	return cols
}

// ErrDropOutsideDay is returned when a drop would move the event off its day.
var ErrDropOutsideDay = errors.New("dropped event would not fit on a single day")

// Reposition moves ev so that it starts dropOffsetMinutes below the top of
// w on day, keeping its original duration. Date follows the new start.
func Reposition(ev model.Event, day time.Time, dropOffsetMinutes int, w Window) (model.Event, error) {
	if dropOffsetMinutes < 0 {
		return model.Event{}, fmt.Errorf("drop offset %d is above the timeline", dropOffsetMinutes)
	}
	newStartMinutes := w.StartMinutes + dropOffsetMinutes
	if newStartMinutes >= 24*60 {
		return model.Event{}, ErrDropOutsideDay
	}

	duration := ev.End.Sub(ev.Start)
	start := AtMinutes(day, newStartMinutes)
	end := start.Add(duration)
	if !SameDay(start, end) {
		return model.Event{}, ErrDropOutsideDay
	}

	moved := ev
	moved.Start = start
	moved.End = end
	moved.Date = DayKey(start)
	return moved, nil
}

// Scale converts layout minutes to pixels: minutes × px/min × density.
type Scale struct {
	PixelsPerMinute float64
	Density         float64
}

func (s Scale) Pixels(minutes int) int {
	return int(float64(minutes) * s.PixelsPerMinute * s.Density)
}

// Minutes is the inverse of Pixels, used for drop coordinates.
func (s Scale) Minutes(pixels float64) int {
	if s.PixelsPerMinute <= 0 || s.Density <= 0 {
		return 0
	}
	return int(pixels / (s.PixelsPerMinute * s.Density))
}
