package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"

	"timecast/internal/alarm"
	appLog "timecast/internal/log"
	"timecast/internal/model"
	"timecast/internal/store"
)

// ConflictPolicy decides whether an edit or move is re-checked for overlap.
type ConflictPolicy int

const (
	// AllowOverlap keeps the original behavior: only creation is checked.
	AllowOverlap ConflictPolicy = iota
	// RejectOverlap applies the creation check to edits and moves too.
	RejectOverlap
)

// ParseConflictPolicy maps "allow" / "reject".
func ParseConflictPolicy(s string) ConflictPolicy {
	if s == "reject" {
		return RejectOverlap
	}
	return AllowOverlap
}

// Options configures a Service.
type Options struct {
	Store  store.Store
	Alarms alarm.Scheduler
	Clock  clock.Clock

	Location  *time.Location
	Window    Window
	WeekStart time.Weekday

	EditPolicy ConflictPolicy
	MovePolicy ConflictPolicy

	// NewID overrides id generation, mainly for tests.
	NewID func() string
}

// Service runs the create / edit / move / delete flows against a Store.
// It is synchronous and unlocked; callers serialize writers.
type Service struct {
	store  store.Store
	alarms alarm.Scheduler
	clk    clock.Clock

	loc       *time.Location
	window    Window
	weekStart time.Weekday

	editPolicy ConflictPolicy
	movePolicy ConflictPolicy

	newID func() string
}

func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("schedule: store is required")
	}
	if opts.Alarms == nil {
		opts.Alarms = alarm.Disabled{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Window == (Window{}) {
		opts.Window = DefaultWindow
	}
	if opts.Window.Length() <= 0 {
		return nil, fmt.Errorf("schedule: empty timeline window %+v", opts.Window)
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Service{
		store:      opts.Store,
		alarms:     opts.Alarms,
		clk:        opts.Clock,
		loc:        opts.Location,
		window:     opts.Window,
		weekStart:  opts.WeekStart,
		editPolicy: opts.EditPolicy,
		movePolicy: opts.MovePolicy,
		newID:      opts.NewID,
	}, nil
}

func (s *Service) Window() Window { return s.window }

func (s *Service) Location() *time.Location { return s.loc }

// Now is the service clock in the configured zone.
func (s *Service) Now() time.Time { return s.clk.Now().In(s.loc) }

// List returns every stored event ordered by start time.
func (s *Service) List() []model.Event {
	events := s.store.Load()
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events
}

// Get returns a single event by id.
func (s *Service) Get(id string) (model.Event, error) {
	for _, ev := range s.store.Load() {
		if ev.ID == id {
			return ev, nil
		}
	}
	return model.Event{}, ErrNotFound
}

// Create validates in, rejects overlaps on the same day, persists the new
// event and then asks the alarm facility for its reminder.
//
// A reminder failure is returned as *AlarmError together with the saved
// event; the save is not rolled back.
func (s *Service) Create(in Input) (model.Event, error) {
	f, err := in.parse(s.loc)
	if err != nil {
		return model.Event{}, err
	}

	events := s.store.Load()
	if hit, found := FindConflict(f.date, f.start, f.end, events, ""); found {
		appLog.Info("create rejected: conflict", "title", f.title, "with", hit.ID)
		return model.Event{}, &ConflictError{With: hit.Title}
	}

	ev := model.Event{
		ID:           s.newID(),
		Title:        f.title,
		Description:  f.description,
		Date:         DayKey(f.date),
		Start:        f.start,
		End:          f.end,
		Type:         f.typ,
		Location:     f.location,
		ReminderLead: f.lead,
	}

	events = append(events, ev)
	if err := s.store.SaveAll(events); err != nil {
		appLog.Error("create: save failed", err, "id", ev.ID)
		return model.Event{}, fmt.Errorf("save event: %w", err)
	}
	appLog.Info("event created", "id", ev.ID, "title", ev.Title, "range", ev.FormattedTimeRange())

	if err := s.scheduleReminder(ev); err != nil {
		return ev, err
	}
	return ev, nil
}

// Update replaces the stored event with the given id by the full record
// built from in. The id is kept.
func (s *Service) Update(id string, in Input) (model.Event, error) {
	f, err := in.parse(s.loc)
	if err != nil {
		return model.Event{}, err
	}

	events := s.store.Load()
	idx := indexOf(events, id)
	if idx < 0 {
		return model.Event{}, ErrNotFound
	}

	if s.editPolicy == RejectOverlap {
		if hit, found := FindConflict(f.date, f.start, f.end, events, id); found {
			return model.Event{}, &ConflictError{With: hit.Title}
		}
	}

	prev := events[idx]
	ev := model.Event{
		ID:           id,
		Title:        f.title,
		Description:  f.description,
		Date:         DayKey(f.date),
		Start:        f.start,
		End:          f.end,
		Type:         f.typ,
		Location:     f.location,
		ReminderLead: f.lead,
	}
	events[idx] = ev

	if err := s.store.SaveAll(events); err != nil {
		appLog.Error("update: save failed", err, "id", id)
		return model.Event{}, fmt.Errorf("save event: %w", err)
	}
	appLog.Info("event updated", "id", id, "range", ev.FormattedTimeRange())

	if reminderOf(ev).Same(reminderOf(prev)) {
		return ev, nil
	}
	if ev.ReminderLead == model.ReminderNone {
		s.cancelReminder(id)
		return ev, nil
	}
	if err := s.scheduleReminder(ev); err != nil {
		return ev, err
	}
	return ev, nil
}

// Move repositions an event after a drag-and-drop. day is the column the
// event was dropped on; a zero day keeps the event's own date.
func (s *Service) Move(id string, day time.Time, dropOffsetMinutes int) (model.Event, error) {
	events := s.store.Load()
	idx := indexOf(events, id)
	if idx < 0 {
		return model.Event{}, ErrNotFound
	}

	if day.IsZero() {
		day = events[idx].Date
	}
	moved, err := Reposition(events[idx], day.In(s.loc), dropOffsetMinutes, s.window)
	if err != nil {
		return model.Event{}, &ValidationError{Field: "drop", Reason: err.Error()}
	}

	if s.movePolicy == RejectOverlap {
		if hit, found := FindConflict(moved.Date, moved.Start, moved.End, events, id); found {
			return model.Event{}, &ConflictError{With: hit.Title}
		}
	}

	events[idx] = moved
	if err := s.store.SaveAll(events); err != nil {
		appLog.Error("move: save failed", err, "id", id)
		return model.Event{}, fmt.Errorf("save event: %w", err)
	}
	appLog.Info("event moved", "id", id, "date", moved.Date.Format(DateLayout), "range", moved.FormattedTimeRange())

	if moved.ReminderLead != model.ReminderNone {
		if err := s.scheduleReminder(moved); err != nil {
			return moved, err
		}
	}
	return moved, nil
}

// Delete removes an event by id.
func (s *Service) Delete(id string) error {
	events := s.store.Load()
	idx := indexOf(events, id)
	if idx < 0 {
		return ErrNotFound
	}

	events = append(events[:idx], events[idx+1:]...)
	if err := s.store.SaveAll(events); err != nil {
		appLog.Error("delete: save failed", err, "id", id)
		return fmt.Errorf("delete event: %w", err)
	}
	s.cancelReminder(id)
	appLog.Info("event deleted", "id", id)
	return nil
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Added     int
	Replaced  int
	Conflicts int
}

// Import merges externally sourced events. Events whose id already exists
// are replaced in place; a replacement without a reminder keeps the lead
// set locally. New ones go through the creation conflict check and are
// skipped on overlap. One save covers the whole batch, then the reminders
// of every added or replaced event are armed or canceled. Reminders whose
// fire time has passed are not armed.
func (s *Service) Import(incoming []model.Event) (ImportResult, error) {
	var res ImportResult
	events := s.store.Load()
	var touched []model.Event

	for _, ev := range incoming {
		if !ev.End.After(ev.Start) || !SameDay(ev.Start, ev.End) {
			continue
		}
		ev.Date = DayKey(ev.Start.In(s.loc))
		if idx := indexOf(events, ev.ID); idx >= 0 {
			if ev.ReminderLead == model.ReminderNone {
				ev.ReminderLead = events[idx].ReminderLead
			}
			events[idx] = ev
			touched = append(touched, ev)
			res.Replaced++
			continue
		}
		if hit, found := FindConflict(ev.Date, ev.Start, ev.End, events, ""); found {
			appLog.Debug("import: skipping conflicting event", "id", ev.ID, "with", hit.ID)
			res.Conflicts++
			continue
		}
		events = append(events, ev)
		touched = append(touched, ev)
		res.Added++
	}

	if res.Added == 0 && res.Replaced == 0 {
		return res, nil
	}
	if err := s.store.SaveAll(events); err != nil {
		appLog.Error("import: save failed", err)
		return res, fmt.Errorf("save imported events: %w", err)
	}
	appLog.Info("events imported", "added", res.Added, "replaced", res.Replaced, "conflicts", res.Conflicts)

	now := s.clk.Now()
	for _, ev := range touched {
		if ev.ReminderLead == model.ReminderNone || !ComputeFireTime(ev.Start, ev.ReminderLead).After(now) {
			s.cancelReminder(ev.ID)
			continue
		}
		// Failures are logged by scheduleReminder; the import itself stands.
		_ = s.scheduleReminder(ev)
	}
	return res, nil
}

// Day lays out the events of one day.
func (s *Service) Day(day time.Time) []Block {
	return LayoutDay(DayKey(day.In(s.loc)), s.store.Load(), s.window)
}

// Week lays out the week containing anyDay.
func (s *Service) Week(anyDay time.Time) []DayColumn {
	start := StartOfWeek(anyDay.In(s.loc), s.weekStart)
	return LayoutWeek(start, s.store.Load(), s.window)
}

// WeekStartOf returns the first day of the week containing t.
func (s *Service) WeekStartOf(t time.Time) time.Time {
	return StartOfWeek(t.In(s.loc), s.weekStart)
}

// Month builds the 42-cell grid with per-day task summaries.
func (s *Service) Month(year int, month time.Month) MonthView {
	return BuildMonthView(year, month, s.store.Load())
}

// RearmReminders schedules the reminder of every event whose fire time is
// still ahead. It returns how many were armed; failures are joined.
func (s *Service) RearmReminders() (int, error) {
	now := s.clk.Now()
	armed := 0
	var errs []error
	for _, ev := range s.store.Load() {
		if ev.ReminderLead <= 0 || !ComputeFireTime(ev.Start, ev.ReminderLead).After(now) {
			continue
		}
		if err := s.scheduleReminder(ev); err != nil {
			errs = append(errs, err)
			continue
		}
		armed++
	}
	if armed > 0 {
		appLog.Info("reminders re-armed", "count", armed)
	}
	return armed, errors.Join(errs...)
}

// SyncReminders brings the armed alarms in line with the store: events
// that are gone, lost their reminder or changed it are canceled, and every
// pending reminder not yet armed is scheduled. Other processes may write
// the store, so a long-running server calls this periodically. Without a
// scheduler that reports its alarms this falls back to RearmReminders.
func (s *Service) SyncReminders() (scheduled, canceled int, err error) {
	lister, ok := s.alarms.(alarm.Lister)
	if !ok {
		n, err := s.RearmReminders()
		return n, 0, err
	}

	now := s.clk.Now()
	want := make(map[string]model.Event)
	for _, ev := range s.store.Load() {
		if ev.ReminderLead > 0 && ComputeFireTime(ev.Start, ev.ReminderLead).After(now) {
			want[ev.ID] = ev
		}
	}

	armed := lister.Armed()
	for id, p := range armed {
		if ev, ok := want[id]; ok && reminderOf(ev).Same(p) {
			continue
		}
		s.cancelReminder(id)
		delete(armed, id)
		canceled++
	}

	var errs []error
	for id, ev := range want {
		if _, ok := armed[id]; ok {
			continue
		}
		if err := s.scheduleReminder(ev); err != nil {
			errs = append(errs, err)
			continue
		}
		scheduled++
	}
	if scheduled > 0 || canceled > 0 {
		appLog.Info("reminders synced", "scheduled", scheduled, "canceled", canceled)
	}
	return scheduled, canceled, errors.Join(errs...)
}

// ReminderCurrent reports whether p still matches a stored event's
// reminder. A fired alarm whose event was deleted or rescheduled by
// another process is stale.
func (s *Service) ReminderCurrent(p alarm.Payload) bool {
	events := s.store.Load()
	idx := indexOf(events, p.EventID)
	if idx < 0 {
		return false
	}
	ev := events[idx]
	return ev.ReminderLead > 0 && ComputeFireTime(ev.Start, ev.ReminderLead).Equal(p.At)
}

// reminderOf is the payload an event's reminder is armed with.
func reminderOf(ev model.Event) alarm.Payload {
	p := alarm.Payload{EventID: ev.ID, Title: ev.Title, Description: ev.Description}
	if ev.ReminderLead > 0 {
		p.At = ComputeFireTime(ev.Start, ev.ReminderLead)
	}
	return p
}

func (s *Service) scheduleReminder(ev model.Event) error {
	if ev.ReminderLead <= 0 {
		return nil
	}
	p := reminderOf(ev)
	if err := s.alarms.ScheduleExactOneShot(p.At, p); err != nil {
		appLog.Error("reminder scheduling failed", err, "id", ev.ID, "at", p.At.Format(time.RFC3339))
		return &AlarmError{EventID: ev.ID, Err: err}
	}
	return nil
}

func (s *Service) cancelReminder(id string) {
	if c, ok := s.alarms.(alarm.Canceler); ok {
		c.Cancel(id)
	}
}

func indexOf(events []model.Event, id string) int {
	for i, ev := range events {
		if ev.ID == id {
			return i
		}
	}
	return -1
}
