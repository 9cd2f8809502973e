package weather

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jmhodges/clock"

	appLog "timecast/internal/log"
)

// ErrSuperseded is delivered to a refresh that a newer refresh replaced.
var ErrSuperseded = errors.New("weather: superseded by a newer refresh")

// Result is the outcome of one refresh.
type Result struct {
	Forecast  *Forecast
	Err       error
	FetchedAt time.Time
}

// Watcher runs forecast fetches in the background and keeps only the
// newest one. Starting a refresh cancels the one in flight; a stale
// completion never overwrites a newer result.
type Watcher struct {
	src Forecaster
	clk clock.Clock

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	last   Result
	has    bool
}

func NewWatcher(src Forecaster, clk clock.Clock) *Watcher {
	if clk == nil {
		clk = clock.New()
	}
	return &Watcher{src: src, clk: clk}
}

// Refresh starts a fetch and returns a channel that receives its single
// result.
func (w *Watcher) Refresh(ctx context.Context, lat, lon float64) <-chan Result {
	w.mu.Lock()
	w.gen++
	gen := w.gen
	if w.cancel != nil {
		w.cancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	out := make(chan Result, 1)
	go func() {
		defer cancel()
		f, err := w.src.Forecast(fctx, lat, lon)
		res := Result{Forecast: f, Err: err, FetchedAt: w.clk.Now()}

		w.mu.Lock()
		if gen != w.gen {
			res = Result{Err: ErrSuperseded, FetchedAt: res.FetchedAt}
		} else {
			w.last, w.has = res, true
			w.cancel = nil
		}
		w.mu.Unlock()

		if res.Err != nil && !errors.Is(res.Err, ErrSuperseded) {
			appLog.Warn("weather refresh failed", "reason", res.Err.Error())
		}
		out <- res
		close(out)
	}()
	return out
}

// Forecast runs a refresh and waits for it, so a Watcher can stand in for
// the Forecaster it wraps while keeping Latest current.
func (w *Watcher) Forecast(ctx context.Context, lat, lon float64) (*Forecast, error) {
	select {
	case res := <-w.Refresh(ctx, lat, lon):
		return res.Forecast, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Latest returns the newest completed result.
func (w *Watcher) Latest() (Result, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last, w.has
}

// Stop cancels the fetch in flight, if any.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.gen++
}
