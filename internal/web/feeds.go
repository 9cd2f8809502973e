package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"timecast/internal/ics"
	appLog "timecast/internal/log"
	"timecast/internal/schedule"
)

const maxImportBytes = 10 << 20

type importResponse struct {
	Added     int    `json:"added"`
	Replaced  int    `json:"replaced"`
	Conflicts int    `json:"conflicts"`
	Warning   string `json:"warning,omitempty"`
}

func toImportResponse(res schedule.ImportResult) importResponse {
	return importResponse{Added: res.Added, Replaced: res.Replaced, Conflicts: res.Conflicts}
}

// GET /api/export.ics
func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	s.exportMu.RLock()
	ec := s.exportCache
	s.exportMu.RUnlock()

	if ec == nil {
		body := ics.Export(s.svc.List(), s.svc.Now())
		ec = &exportCache{body: body, updatedAt: time.Now()}
		s.exportMu.Lock()
		s.exportCache = ec
		s.exportMu.Unlock()
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="timecast.ics"`)
	w.Header().Set("Last-Modified", ec.updatedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ec.body)
}

// expandConfig resolves the import window from ?days= and ?backfill=.
func (s *Server) expandConfig(r *http.Request) ics.ExpandConfig {
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), 365)
	if days <= 0 {
		days = 365
	}
	backfill := parseIntDefault(q.Get("backfill"), 30)
	if backfill < 0 {
		backfill = 0
	}
	return s.expandWindow(days, backfill)
}

func (s *Server) expandWindow(days, backfill int) ics.ExpandConfig {
	now := s.svc.Now()
	return ics.ExpandConfig{
		Location:   s.svc.Location(),
		RangeStart: now.AddDate(0, 0, -backfill),
		RangeEnd:   now.AddDate(0, 0, days),
	}
}

// POST /api/import with a text/calendar body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "calendar too large")
		return
	}

	events, err := ics.ReadEvents(ics.Source{ID: "upload"}, body, s.expandConfig(r))
	if err != nil {
		appLog.Error("api import: parse failed", err)
		writeError(w, http.StatusBadRequest, "invalid calendar data")
		return
	}

	s.writeMu.Lock()
	res, err := s.svc.Import(events)
	s.writeMu.Unlock()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.invalidate()
	writeJSON(w, http.StatusOK, toImportResponse(res))
}

// ErrNoFeeds means no ICS subscription is configured.
var ErrNoFeeds = errors.New("no ICS feeds configured")

// Sync pulls every configured feed into the store under the write lock.
// Feeds that fail are reported in feedErr; the rest are still imported.
func (s *Server) Sync(ctx context.Context, cfg ics.ExpandConfig) (res schedule.ImportResult, feedErr, err error) {
	sources := ics.SourcesFromConfig(s.cfg.ICS)
	if s.fetcher == nil || len(sources) == 0 {
		return res, nil, ErrNoFeeds
	}

	events, feedErr := ics.Sync(ctx, s.fetcher, sources, cfg)
	if feedErr != nil {
		appLog.Error("sync: one or more feeds failed", feedErr, "feeds", len(sources))
	}

	s.writeMu.Lock()
	res, err = s.svc.Import(events)
	s.writeMu.Unlock()
	if err != nil {
		return res, feedErr, err
	}
	s.invalidate()
	return res, feedErr, nil
}

// SyncReminders reconciles armed alarms with the store under the write
// lock, so it never interleaves with an API write.
func (s *Server) SyncReminders() (scheduled, canceled int, err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.svc.SyncReminders()
}

// DefaultExpandConfig is the import window used by background syncs.
func (s *Server) DefaultExpandConfig() ics.ExpandConfig {
	return s.expandWindow(365, 30)
}

// POST /api/sync
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	res, feedErr, err := s.Sync(r.Context(), s.expandConfig(r))
	switch {
	case errors.Is(err, ErrNoFeeds):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeServiceError(w, err)
		return
	}

	resp := toImportResponse(res)
	if feedErr != nil {
		resp.Warning = feedErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
