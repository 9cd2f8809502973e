package cli

import (
	"time"

	"timecast/internal/alarm"
	"timecast/internal/config"
	appLog "timecast/internal/log"
	"timecast/internal/notify"
	"timecast/internal/schedule"
	"timecast/internal/store"
)

// app bundles what a command needs once the config is loaded.
type app struct {
	cfg *config.Config
	loc *time.Location
	svc *schedule.Service

	// cron and notifier are only set for the long-running server.
	cron     *alarm.Cron
	notifier notify.Notifier
	close    func() error
}

// openApp opens the store and builds the service. Short-lived commands
// defer reminders to the server; serving arms them in-process.
func openApp(cfg *config.Config, serving bool) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		appLog.Warn("falling back to local timezone", "reason", err.Error())
	}
	win, err := schedule.NewWindow(cfg.Timeline.Start, cfg.Timeline.End)
	if err != nil {
		return nil, err
	}

	st, closeStore, err := store.Open(cfg.Store, loc)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, loc: loc, close: closeStore}

	var alarms alarm.Scheduler
	switch {
	case !cfg.Reminders.Enabled:
		alarms = alarm.Disabled{}
	case serving:
		a.notifier = buildNotifier(cfg)
		a.cron = alarm.NewCron(alarm.CronOptions{
			Exact:    cfg.Reminders.ExactAlarms,
			Deliver:  a.deliverCurrent(notify.Deliver(a.notifier)),
			Location: loc,
		})
		alarms = a.cron
	default:
		alarms = alarm.Deferred{Exact: cfg.Reminders.ExactAlarms}
	}

	a.svc, err = schedule.NewService(schedule.Options{
		Store:      st,
		Alarms:     alarms,
		Location:   loc,
		Window:     win,
		WeekStart:  cfg.WeekStartDay(),
		EditPolicy: schedule.ParseConflictPolicy(cfg.Conflicts.EditPolicy),
		MovePolicy: schedule.ParseConflictPolicy(cfg.Conflicts.MovePolicy),
	})
	if err != nil {
		_ = closeStore()
		return nil, err
	}
	return a, nil
}

// buildNotifier fans reminders out to every configured channel. A Telegram
// login failure is logged and the channel skipped.
func buildNotifier(cfg *config.Config) notify.Notifier {
	var n notify.Multi
	if cfg.Reminders.Desktop {
		n = append(n, notify.Desktop{})
	}
	if tg := cfg.Reminders.Telegram; tg != nil {
		t, err := notify.NewTelegram(tg.Token, tg.ChatID, tg.Endpoint)
		if err != nil {
			appLog.Error("telegram notifier disabled", err)
		} else {
			n = append(n, t)
		}
	}
	return n
}

// deliverCurrent drops reminders that another process made stale by
// deleting or rescheduling their event after they were armed.
func (a *app) deliverCurrent(next alarm.DeliverFunc) alarm.DeliverFunc {
	return func(p alarm.Payload) error {
		if a.svc != nil && !a.svc.ReminderCurrent(p) {
			appLog.Info("stale reminder dropped", "event_id", p.EventID)
			return nil
		}
		return next(p)
	}
}
