package alarm

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	appLog "timecast/internal/log"
)

// oneShot is a cron.Schedule that yields a single activation and then the
// zero time, which cron treats as "never again". cron asks for Next once
// when the entry is added and once after each run, so the first answer is
// the activation: at, or t itself when at has already passed.
type oneShot struct {
	at   time.Time
	used *atomic.Bool
}

func newOneShot(at time.Time) oneShot {
	return oneShot{at: at, used: new(atomic.Bool)}
}

func (o oneShot) Next(t time.Time) time.Time {
	if o.used.Swap(true) {
		return time.Time{}
	}
	if t.Before(o.at) {
		return o.at
	}
	return t
}

// DeliverFunc hands a fired payload to the user, e.g. as a desktop
// notification.
type DeliverFunc func(Payload) error

// CronOptions configures a Cron facility.
type CronOptions struct {
	// Exact mirrors the platform "schedule exact alarm" permission.
	Exact    bool
	Deliver  DeliverFunc
	Location *time.Location
}

// Cron is an in-process exact alarm facility backed by robfig/cron, which
// runs on wall time. Alarms live only as long as the process; callers
// re-arm them on start.
type Cron struct {
	cron    *cron.Cron
	deliver DeliverFunc
	exact   bool

	mu      sync.Mutex
	running bool
	entries map[string]armed
}

type armed struct {
	id      cron.EntryID
	payload Payload
}

// NewCron constructs a stopped facility. Call Start before scheduling.
func NewCron(opts CronOptions) *Cron {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Deliver == nil {
		opts.Deliver = func(p Payload) error {
			appLog.Info("reminder fired", "event_id", p.EventID, "title", p.Title)
			return nil
		}
	}
	return &Cron{
		cron:    cron.New(cron.WithLocation(opts.Location)),
		deliver: opts.Deliver,
		exact:   opts.Exact,
		entries: make(map[string]armed),
	}
}

func (c *Cron) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.cron.Start()
	c.running = true
}

// Stop halts the scheduler and waits for running deliveries to finish.
func (c *Cron) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	<-c.cron.Stop().Done()
}

// ScheduleExactOneShot arms a single firing at at. A pending alarm for the
// same event is replaced. A fire time already in the past is delivered on
// the next scheduler pass.
func (c *Cron) ScheduleExactOneShot(at time.Time, p Payload) error {
	if !c.exact {
		return ErrPermissionDenied
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return ErrSchedulingUnsupported
	}

	if p.EventID != "" {
		c.cancelLocked(p.EventID)
	}

	p.At = at
	if !at.After(time.Now()) {
		appLog.Warn("reminder fire time already passed; delivering now", "event_id", p.EventID, "at", at.Format(time.RFC3339))
	}

	var id cron.EntryID
	id = c.cron.Schedule(newOneShot(at), cron.FuncJob(func() {
		c.mu.Lock()
		if cur, ok := c.entries[p.EventID]; ok && cur.id == id {
			delete(c.entries, p.EventID)
		}
		c.mu.Unlock()
		c.cron.Remove(id)
		c.fire(p)
	}))
	if p.EventID != "" {
		c.entries[p.EventID] = armed{id: id, payload: p}
	}

	appLog.Info("reminder scheduled", "event_id", p.EventID, "at", at.Format(time.RFC3339))
	return nil
}

// Cancel drops the pending alarm of an event, if any.
func (c *Cron) Cancel(eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked(eventID)
}

func (c *Cron) cancelLocked(eventID string) {
	e, ok := c.entries[eventID]
	if !ok {
		return
	}
	delete(c.entries, eventID)
	c.cron.Remove(e.id)
	appLog.Debug("reminder canceled", "event_id", eventID)
}

// Pending reports how many alarms are armed.
func (c *Cron) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Armed returns the pending payloads by event id.
func (c *Cron) Armed() map[string]Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Payload, len(c.entries))
	for id, e := range c.entries {
		out[id] = e.payload
	}
	return out
}

func (c *Cron) fire(p Payload) {
	if err := c.deliver(p); err != nil {
		appLog.Error("reminder delivery failed", err, "event_id", p.EventID)
	}
}
