package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"timecast/internal/ics"
	appLog "timecast/internal/log"
	"timecast/internal/notify"
	"timecast/internal/weather"
	"timecast/internal/web"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, reminders and background refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			appLog.Info("effective config",
				"listen", cfg.Listen,
				"timezone", cfg.Timezone,
				"store", cfg.Store.Backend,
				"refresh_minutes", cfg.RefreshMinutes,
				"reminders", cfg.Reminders.Enabled,
				"weather", cfg.Weather.Enabled(),
				"ics_count", len(cfg.ICS),
			)

			a, err := openApp(cfg, true)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

// serve runs until ctx is canceled.
func serve(ctx context.Context, a *app) error {
	if a.cron != nil {
		a.cron.Start()
		defer a.cron.Stop()
		if _, _, err := a.svc.SyncReminders(); err != nil {
			appLog.Error("some reminders could not be re-armed", err)
		}
	}

	var watcher *weather.Watcher
	if a.cfg.Weather.Enabled() {
		watcher = weather.NewWatcher(weather.NewClient(a.cfg.Weather.BaseURL, nil), nil)
		defer watcher.Stop()
	}

	srv := web.NewServer(web.Options{
		Config:  a.cfg,
		Service: a.svc,
		Fetcher: ics.NewFetcher(a.cfg.ICSCacheDir, nil),
		Weather: watcher,
	})

	notifier := a.notifier
	if notifier == nil {
		notifier = buildNotifier(a.cfg)
	}
	r := newRefresher(a, srv, watcher, notifier)

	jobs := cron.New(
		cron.WithLocation(a.loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	spec := fmt.Sprintf("@every %dm", a.cfg.RefreshMinutes)
	if _, err := jobs.AddFunc(spec, func() { r.run(ctx) }); err != nil {
		return fmt.Errorf("schedule refresh %q: %w", spec, err)
	}
	if a.cron != nil {
		// Picks up writes made by other timecast commands.
		if _, err := jobs.AddFunc(reminderSyncSpec, func() { syncReminders(srv) }); err != nil {
			return fmt.Errorf("schedule reminder sync: %w", err)
		}
	}
	jobs.Start()
	defer func() { <-jobs.Stop().Done() }()

	go r.run(ctx)
	return srv.Serve(ctx)
}

const reminderSyncSpec = "@every 1m"

func syncReminders(srv *web.Server) {
	if _, _, err := srv.SyncReminders(); err != nil {
		appLog.Error("some reminders could not be armed", err)
	}
}

// alertLog remembers which alerts were delivered, keyed by event and
// forecast slot. Entries whose slot has passed are pruned.
type alertLog map[string]time.Time

// first records the alert and reports whether it is new.
func (l alertLog) first(eventID string, slot time.Time) bool {
	key := eventID + "|" + slot.UTC().Format(time.RFC3339)
	if _, ok := l[key]; ok {
		return false
	}
	l[key] = slot
	return true
}

func (l alertLog) prune(now time.Time) {
	for k, slot := range l {
		if slot.Before(now) {
			delete(l, k)
		}
	}
}

// refresher re-syncs feeds and re-checks outdoor events. Each alert is
// delivered once per event and forecast slot.
type refresher struct {
	a       *app
	srv     *web.Server
	checker *weather.Checker

	mu      sync.Mutex
	alerted alertLog
}

func newRefresher(a *app, srv *web.Server, watcher *weather.Watcher, n notify.Notifier) *refresher {
	r := &refresher{a: a, srv: srv, alerted: make(alertLog)}
	if watcher != nil {
		r.checker = &weather.Checker{
			Forecaster: watcher,
			Latitude:   a.cfg.Weather.Latitude,
			Longitude:  a.cfg.Weather.Longitude,
			Location:   a.loc,
			Notify: func(al weather.Alert) error {
				if !r.alerted.first(al.EventID, al.Slot.Time) {
					return nil
				}
				return n.Notify(al.Title(), al.Message())
			},
		}
	}
	return r
}

func (r *refresher) run(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.a.cfg.ICS) > 0 {
		res, feedErr, err := r.srv.Sync(ctx, r.srv.DefaultExpandConfig())
		switch {
		case err != nil:
			appLog.Error("background sync failed", err)
		case feedErr == nil:
			appLog.Info("background sync done", "added", res.Added, "replaced", res.Replaced, "conflicts", res.Conflicts)
		}
	}

	if r.checker != nil {
		r.alerted.prune(r.a.svc.Now())
		alerts, err := r.checker.Check(ctx, upcoming(r.a))
		if err != nil {
			appLog.Error("weather check failed", err)
			return
		}
		appLog.Debug("weather check done", "alerts", len(alerts))
	}
}
