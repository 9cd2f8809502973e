package schedule

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmhodges/clock"

	"timecast/internal/alarm"
	"timecast/internal/model"
	"timecast/internal/store"
)

type scheduledAlarm struct {
	at      time.Time
	payload alarm.Payload
}

type fakeAlarms struct {
	err       error
	scheduled []scheduledAlarm
	canceled  []string
}

func (f *fakeAlarms) ScheduleExactOneShot(at time.Time, p alarm.Payload) error {
	if f.err != nil {
		return f.err
	}
	f.scheduled = append(f.scheduled, scheduledAlarm{at: at, payload: p})
	return nil
}

func (f *fakeAlarms) Cancel(id string) {
	f.canceled = append(f.canceled, id)
}

type failingStore struct {
	events []model.Event
}

func (f *failingStore) Load() []model.Event { return append([]model.Event(nil), f.events...) }

func (f *failingStore) SaveAll([]model.Event) error { return errors.New("disk full") }

func newTestService(t *testing.T, opts Options) (*Service, *fakeAlarms) {
	t.Helper()
	alarms := &fakeAlarms{}
	if opts.Store == nil {
		opts.Store = store.New(store.NewMemoryBlobs(), time.UTC)
	}
	if opts.Alarms == nil {
		opts.Alarms = alarms
	}
	opts.Location = time.UTC
	n := 0
	opts.NewID = func() string {
		n++
		return fmt.Sprintf("ev-%d", n)
	}
	svc, err := NewService(opts)
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	return svc, alarms
}

func input(title, start, end string) Input {
	return Input{Title: title, Date: "2024-01-01", Start: start, End: end, Type: "Work"}
}

func TestCreateRejectsOverlapScenario(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	if _, err := svc.Create(input("Short sync", "09:30", "09:45")); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	_, err := svc.Create(input("Planning", "09:00", "10:00"))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if msg := UserMessage(err); msg != "Time conflict with another event!" {
		t.Fatalf("UserMessage = %q", msg)
	}

	ev, err := svc.Create(input("Review", "10:00", "10:30"))
	if err != nil {
		t.Fatalf("adjacent Create error: %v", err)
	}
	if ev.ID != "ev-2" || ev.FormattedTimeRange() != "10:00 - 10:30" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if got := len(svc.List()); got != 2 {
		t.Fatalf("stored %d events, want 2", got)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	cases := map[string]Input{
		"missing title":  input("  ", "09:00", "10:00"),
		"bad date":       {Title: "x", Date: "01/02/2024", Start: "09:00", End: "10:00"},
		"bad time":       input("x", "9am", "10:00"),
		"end before":     input("x", "10:00", "09:00"),
		"end equal":      input("x", "10:00", "10:00"),
		"unknown type":   {Title: "x", Date: "2024-01-01", Start: "09:00", End: "10:00", Type: "Gym"},
		"unknown remind": {Title: "x", Date: "2024-01-01", Start: "09:00", End: "10:00", Reminder: "2 days"},
	}
	for name, in := range cases {
		_, err := svc.Create(in)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: expected ValidationError, got %v", name, err)
		}
	}
	if got := len(svc.List()); got != 0 {
		t.Fatalf("validation failures must not persist anything, got %d events", got)
	}
}

func TestCreateSchedulesReminder(t *testing.T) {
	svc, alarms := newTestService(t, Options{})

	in := input("Dentist", "10:00", "11:00")
	in.Description = "bring card"
	in.Reminder = "30 minutes before"
	ev, err := svc.Create(in)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if len(alarms.scheduled) != 1 {
		t.Fatalf("scheduled %d alarms, want 1", len(alarms.scheduled))
	}
	got := alarms.scheduled[0]
	want := time.Date(2024, time.January, 1, 9, 30, 0, 0, time.UTC)
	if !got.at.Equal(want) {
		t.Fatalf("fire time = %v, want %v", got.at, want)
	}
	if got.payload.Title != "Dentist" || got.payload.Description != "bring card" || got.payload.EventID != ev.ID {
		t.Fatalf("unexpected payload %+v", got.payload)
	}
}

func TestCreateNoReminderWhenNone(t *testing.T) {
	svc, alarms := newTestService(t, Options{})
	if _, err := svc.Create(input("Walk", "10:00", "11:00")); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if len(alarms.scheduled) != 0 {
		t.Fatalf("no alarm expected, got %d", len(alarms.scheduled))
	}
}

func TestCreateKeepsEventWhenAlarmFails(t *testing.T) {
	failing := &fakeAlarms{err: alarm.ErrPermissionDenied}
	svc, _ := newTestService(t, Options{Alarms: failing})

	in := input("Dentist", "10:00", "11:00")
	in.Reminder = "5"
	ev, err := svc.Create(in)

	var ae *AlarmError
	if !errors.As(err, &ae) || !errors.Is(err, alarm.ErrPermissionDenied) {
		t.Fatalf("expected AlarmError wrapping permission denied, got %v", err)
	}
	if ev.ID == "" {
		t.Fatalf("saved event should be returned alongside the alarm error")
	}
	if _, err := svc.Get(ev.ID); err != nil {
		t.Fatalf("event should be persisted: %v", err)
	}
}

func TestCreateSaveFailure(t *testing.T) {
	svc, _ := newTestService(t, Options{Store: &failingStore{}})
	_, err := svc.Create(input("x", "09:00", "10:00"))
	if err == nil {
		t.Fatalf("expected save error")
	}
	if msg := UserMessage(err); msg != "Error saving event: save event: disk full" {
		t.Fatalf("UserMessage = %q", msg)
	}
}

func TestUpdateConflictPolicy(t *testing.T) {
	for _, tc := range []struct {
		name    string
		policy  ConflictPolicy
		wantErr bool
	}{
		{"allow", AllowOverlap, false},
		{"reject", RejectOverlap, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestService(t, Options{EditPolicy: tc.policy})
			if _, err := svc.Create(input("A", "09:00", "10:00")); err != nil {
				t.Fatalf("Create A error: %v", err)
			}
			b, err := svc.Create(input("B", "11:00", "12:00"))
			if err != nil {
				t.Fatalf("Create B error: %v", err)
			}

			_, err = svc.Update(b.ID, input("B", "09:30", "10:30"))
			if gotErr := errors.Is(err, ErrConflict); gotErr != tc.wantErr {
				t.Fatalf("Update conflict = %v (err %v), want %v", gotErr, err, tc.wantErr)
			}

			// Editing in place over its own slot never conflicts with itself.
			if _, err := svc.Update(b.ID, input("B renamed", "11:15", "12:00")); err != nil {
				t.Fatalf("self-overlapping Update error: %v", err)
			}
		})
	}
}

func TestUpdateReplacesFullRecord(t *testing.T) {
	svc, alarms := newTestService(t, Options{})
	in := input("A", "09:00", "10:00")
	in.Location = "Office"
	in.Reminder = "10"
	ev, err := svc.Create(in)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	updated, err := svc.Update(ev.ID, input("A2", "13:00", "14:00"))
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.ID != ev.ID || updated.Location != "" || updated.Title != "A2" {
		t.Fatalf("unexpected update %+v", updated)
	}
	if len(alarms.canceled) != 1 || alarms.canceled[0] != ev.ID {
		t.Fatalf("dropping the reminder should cancel the alarm, got %v", alarms.canceled)
	}

	if _, err := svc.Update("missing", input("x", "09:00", "10:00")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMoveKeepsDurationAndPolicy(t *testing.T) {
	svc, _ := newTestService(t, Options{MovePolicy: RejectOverlap})
	a, err := svc.Create(input("A", "09:00", "10:30"))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := svc.Create(input("B", "14:00", "15:00")); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	// 08:00 + 330 minutes = 13:30, would overlap B.
	if _, err := svc.Move(a.ID, time.Time{}, 330); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on move, got %v", err)
	}

	nextDay := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	moved, err := svc.Move(a.ID, nextDay, 330)
	if err != nil {
		t.Fatalf("Move error: %v", err)
	}
	if moved.Start.Day() != 2 || moved.Start.Hour() != 13 || moved.Start.Minute() != 30 {
		t.Fatalf("unexpected start %v", moved.Start)
	}
	if moved.DurationMinutes() != 90 {
		t.Fatalf("duration = %d, want 90", moved.DurationMinutes())
	}

	stored, err := svc.Get(a.ID)
	if err != nil || !stored.Start.Equal(moved.Start) {
		t.Fatalf("move not persisted: %+v %v", stored, err)
	}
}

func TestMoveAllowsOverlapByDefault(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	a, _ := svc.Create(input("A", "09:00", "10:00"))
	if _, err := svc.Create(input("B", "12:00", "13:00")); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := svc.Move(a.ID, time.Time{}, 240); err != nil {
		t.Fatalf("Move onto B should be allowed, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc, alarms := newTestService(t, Options{})
	a, _ := svc.Create(input("A", "09:00", "10:00"))

	if err := svc.Delete(a.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if len(svc.List()) != 0 {
		t.Fatalf("event not removed")
	}
	if len(alarms.canceled) != 1 {
		t.Fatalf("delete should cancel pending alarm")
	}
	if err := svc.Delete(a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestImportReplacesAndSkipsConflicts(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	if _, err := svc.Create(input("Local", "09:00", "10:00")); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	day := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	feed := []model.Event{
		{ID: "ics-1", Title: "Clash", Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)},
		{ID: "ics-2", Title: "Free", Start: day.Add(11 * time.Hour), End: day.Add(12 * time.Hour)},
		{ID: "ics-3", Title: "Overnight", Start: day.Add(23 * time.Hour), End: day.Add(25 * time.Hour)},
	}
	res, err := svc.Import(feed)
	if err != nil {
		t.Fatalf("Import error: %v", err)
	}
	if res.Added != 1 || res.Conflicts != 1 || res.Replaced != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	feed[1].Title = "Free (moved)"
	res, err = svc.Import(feed[1:2])
	if err != nil || res.Replaced != 1 {
		t.Fatalf("re-import should replace, got %+v %v", res, err)
	}
	ev, _ := svc.Get("ics-2")
	if ev.Title != "Free (moved)" || !SameDay(ev.Date, day) {
		t.Fatalf("unexpected imported event %+v", ev)
	}
}

func TestDayWeekMonthViews(t *testing.T) {
	svc, _ := newTestService(t, Options{WeekStart: time.Monday})
	if _, err := svc.Create(input("Early", "07:00", "07:30")); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := svc.Create(input("Standup", "09:00", "09:15")); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	day := time.Date(2024, time.January, 1, 15, 0, 0, 0, time.UTC)
	blocks := svc.Day(day)
	if len(blocks) != 1 || blocks[0].Event.Title != "Standup" || blocks[0].OffsetMinutes != 60 {
		t.Fatalf("unexpected day blocks %+v", blocks)
	}

	// 2024-01-01 is a Monday, first column of a Monday week.
	cols := svc.Week(time.Date(2024, time.January, 4, 0, 0, 0, 0, time.UTC))
	if len(cols[0].Blocks) != 1 || cols[0].Day.Day() != 1 {
		t.Fatalf("unexpected week columns %+v", cols[0])
	}

	month := svc.Month(2024, time.January)
	if month.Cells[1].Label != "1" || month.Cells[1].Tasks != "Early, Standup" {
		t.Fatalf("unexpected month cell %+v", month.Cells[1])
	}
}

func TestRearmRemindersSkipsPastAndNone(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Date(2024, time.January, 1, 9, 50, 0, 0, time.UTC))
	svc, alarms := newTestService(t, Options{Clock: fc})

	past := input("Past", "09:00", "09:30")
	past.Reminder = "10"
	soon := input("Soon", "10:30", "11:00")
	soon.Reminder = "30"
	none := input("Plain", "12:00", "13:00")
	for _, in := range []Input{past, soon, none} {
		if _, err := svc.Create(in); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}
	alarms.scheduled = nil

	armed, err := svc.RearmReminders()
	if err != nil {
		t.Fatalf("RearmReminders error: %v", err)
	}
	// Soon fires at 10:00, still ahead of 09:50.
	if armed != 1 || len(alarms.scheduled) != 1 || alarms.scheduled[0].payload.Title != "Soon" {
		t.Fatalf("armed %d, scheduled %+v", armed, alarms.scheduled)
	}
}

func TestUpdateRearmsWhenPayloadChanges(t *testing.T) {
	svc, alarms := newTestService(t, Options{})
	in := input("Dentist", "10:00", "11:00")
	in.Reminder = "30"
	ev, err := svc.Create(in)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := svc.Update(ev.ID, in); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if len(alarms.scheduled) != 1 {
		t.Fatalf("unchanged update should not re-arm, scheduled %d", len(alarms.scheduled))
	}

	in.Title = "Dentist (Dr. Lee)"
	in.Description = "bring card"
	if _, err := svc.Update(ev.ID, in); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if len(alarms.scheduled) != 2 {
		t.Fatalf("title change should re-arm, scheduled %d", len(alarms.scheduled))
	}
	got := alarms.scheduled[1].payload
	if got.Title != "Dentist (Dr. Lee)" || got.Description != "bring card" {
		t.Fatalf("stale payload %+v", got)
	}
}

func TestImportArmsRemindersAndKeepsLocalLead(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Date(2024, time.January, 1, 7, 0, 0, 0, time.UTC))
	svc, alarms := newTestService(t, Options{Clock: fc})

	day := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	feed := []model.Event{
		{ID: "ics-1", Title: "Review", Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour), ReminderLead: model.Reminder30Min},
		{ID: "ics-2", Title: "Early", Start: day.Add(6 * time.Hour), End: day.Add(7 * time.Hour), ReminderLead: model.Reminder10Min},
		{ID: "ics-3", Title: "Plain", Start: day.Add(11 * time.Hour), End: day.Add(12 * time.Hour)},
	}
	if _, err := svc.Import(feed); err != nil {
		t.Fatalf("Import error: %v", err)
	}
	if len(alarms.scheduled) != 1 || alarms.scheduled[0].payload.EventID != "ics-1" {
		t.Fatalf("only the future reminder should be armed, got %+v", alarms.scheduled)
	}
	if !alarms.scheduled[0].at.Equal(day.Add(8*time.Hour + 30*time.Minute)) {
		t.Fatalf("fire time = %v", alarms.scheduled[0].at)
	}

	// A feed copy without VALARM keeps the reminder set on the event.
	feed[0].ReminderLead = model.ReminderNone
	feed[0].Title = "Review (room 4)"
	if _, err := svc.Import(feed[:1]); err != nil {
		t.Fatalf("re-Import error: %v", err)
	}
	ev, _ := svc.Get("ics-1")
	if ev.ReminderLead != model.Reminder30Min {
		t.Fatalf("local reminder wiped: %+v", ev)
	}
	last := alarms.scheduled[len(alarms.scheduled)-1].payload
	if last.Title != "Review (room 4)" {
		t.Fatalf("replaced event not re-armed, last payload %+v", last)
	}
}

func TestSyncRemindersFollowsOtherWriters(t *testing.T) {
	dir := t.TempDir()
	cliSvc, _ := newTestService(t, Options{
		Store:  store.New(store.NewFileBlobs(dir), time.UTC),
		Alarms: alarm.Deferred{Exact: true},
	})
	cr := alarm.NewCron(alarm.CronOptions{Exact: true, Location: time.UTC})
	cr.Start()
	defer cr.Stop()
	srvSvc, _ := newTestService(t, Options{
		Store:  store.New(store.NewFileBlobs(dir), time.UTC),
		Alarms: cr,
	})

	in := Input{
		Title:    "Standup",
		Date:     time.Now().UTC().AddDate(0, 0, 2).Format(DateLayout),
		Start:    "09:00",
		End:      "09:30",
		Reminder: "5",
	}
	ev, err := cliSvc.Create(in)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if n, _, err := srvSvc.SyncReminders(); err != nil || n != 1 || cr.Pending() != 1 {
		t.Fatalf("sync after create: scheduled=%d pending=%d err=%v", n, cr.Pending(), err)
	}
	stale := cr.Armed()[ev.ID]

	in.Start, in.End = "10:00", "10:30"
	if _, err := cliSvc.Update(ev.ID, in); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if srvSvc.ReminderCurrent(stale) {
		t.Fatalf("payload armed for 08:55 should be stale after the edit")
	}
	if n, c, err := srvSvc.SyncReminders(); err != nil || n != 1 || c != 1 {
		t.Fatalf("sync after edit: scheduled=%d canceled=%d err=%v", n, c, err)
	}
	if p := cr.Armed()[ev.ID]; p.At.UTC().Hour() != 9 || p.At.Minute() != 55 || !srvSvc.ReminderCurrent(p) {
		t.Fatalf("rearmed payload %+v", p)
	}

	if n, c, _ := srvSvc.SyncReminders(); n != 0 || c != 0 {
		t.Fatalf("repeated sync should be a no-op, scheduled=%d canceled=%d", n, c)
	}

	if err := cliSvc.Delete(ev.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, c, err := srvSvc.SyncReminders(); err != nil || c != 1 || cr.Pending() != 0 {
		t.Fatalf("sync after delete: canceled=%d pending=%d err=%v", c, cr.Pending(), err)
	}
}
