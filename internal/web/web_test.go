package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/jmhodges/clock"

	"timecast/internal/alarm"
	"timecast/internal/config"
	"timecast/internal/ics"
	"timecast/internal/schedule"
	"timecast/internal/store"
	"timecast/internal/weather"
	"timecast/internal/weather/mock_weather"
)

var testNow = time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)

type fixture struct {
	cfg     *config.Config
	alarms  alarm.Scheduler
	watcher *weather.Watcher
	fetcher *ics.Fetcher
}

func newTestServer(t *testing.T, fx fixture) http.Handler {
	t.Helper()
	if fx.cfg == nil {
		fx.cfg = config.DefaultConfig()
	}
	fc := clock.NewFake()
	fc.Set(testNow)

	n := 0
	svc, err := schedule.NewService(schedule.Options{
		Store:    store.New(store.NewMemoryBlobs(), time.UTC),
		Alarms:   fx.alarms,
		Clock:    fc,
		Location: time.UTC,
		NewID: func() string {
			n++
			return fmt.Sprintf("ev-%d", n)
		},
	})
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	return NewServer(Options{Config: fx.cfg, Service: svc, Weather: fx.watcher, Fetcher: fx.fetcher}).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func eventJSON(title, start, end, typ string) string {
	return fmt.Sprintf(`{"title":%q,"date":"2024-01-01","start":%q,"end":%q,"type":%q}`, title, start, end, typ)
}

func TestBasicAuthSkipsHealth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	h := newTestServer(t, fixture{cfg: cfg})

	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("/health status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/events", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d", rec.Code)
	}
}

func TestCreateAndConflict(t *testing.T) {
	h := newTestServer(t, fixture{})

	rec := do(t, h, http.MethodPost, "/api/events", eventJSON("Standup", "09:00", "10:00", "Work"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body)
	}
	created := decode[eventResponse](t, rec)
	if created.Event.ID != "ev-1" || created.Event.TimeRange != "09:00 - 10:00" || created.Warning != "" {
		t.Fatalf("unexpected create response %+v", created)
	}

	rec = do(t, h, http.MethodPost, "/api/events", eventJSON("Review", "09:30", "10:30", "Work"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("overlap status = %d", rec.Code)
	}
	if msg := decode[map[string]string](t, rec)["error"]; msg != "Time conflict with another event!" {
		t.Fatalf("overlap message = %q", msg)
	}

	list := decode[[]eventDTO](t, do(t, h, http.MethodGet, "/api/events", ""))
	if len(list) != 1 {
		t.Fatalf("list len = %d", len(list))
	}
}

func TestCreateValidation(t *testing.T) {
	h := newTestServer(t, fixture{})

	rec := do(t, h, http.MethodPost, "/api/events", eventJSON("", "09:00", "10:00", "Work"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg := decode[map[string]string](t, rec)["error"]; msg != "Please fill all required fields" {
		t.Fatalf("message = %q", msg)
	}

	if rec := do(t, h, http.MethodPost, "/api/events", `{"title":`); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d", rec.Code)
	}
}

func TestCreateWithoutAlarmPermissionWarns(t *testing.T) {
	h := newTestServer(t, fixture{alarms: alarm.NewCron(alarm.CronOptions{Exact: false})})

	body := `{"title":"Dentist","date":"2024-01-01","start":"11:00","end":"12:00","reminder":"30"}`
	rec := do(t, h, http.MethodPost, "/api/events", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	resp := decode[eventResponse](t, rec)
	if !strings.Contains(resp.Warning, "Cannot schedule exact alarms") {
		t.Fatalf("warning = %q", resp.Warning)
	}
	if resp.Event.ReminderMin != 30 {
		t.Fatalf("reminder = %d", resp.Event.ReminderMin)
	}
}

func TestUpdateGetAndDelete(t *testing.T) {
	h := newTestServer(t, fixture{})
	do(t, h, http.MethodPost, "/api/events", eventJSON("Standup", "09:00", "10:00", "Work"))

	rec := do(t, h, http.MethodPut, "/api/events/ev-1", eventJSON("Standup (moved)", "13:00", "13:15", "Personal"))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body=%s", rec.Code, rec.Body)
	}

	got := decode[eventDTO](t, do(t, h, http.MethodGet, "/api/events/ev-1", ""))
	if got.Title != "Standup (moved)" || got.Start != "13:00" || got.Type != "Personal" {
		t.Fatalf("unexpected event %+v", got)
	}

	if rec := do(t, h, http.MethodDelete, "/api/events/ev-1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/events/ev-1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/events/ev-1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
}

func TestMoveByPixels(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timeline.PixelsPerMinute = 2
	h := newTestServer(t, fixture{cfg: cfg})
	do(t, h, http.MethodPost, "/api/events", eventJSON("Gym", "09:00", "10:30", "Personal"))

	// 240px at 2px/min is two hours below the 08:00 top.
	rec := do(t, h, http.MethodPost, "/api/events/ev-1/move", `{"date":"2024-01-02","offset_pixels":240}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("move status = %d body=%s", rec.Code, rec.Body)
	}
	moved := decode[eventResponse](t, rec).Event
	if moved.Date != "2024-01-02" || moved.TimeRange != "10:00 - 11:30" {
		t.Fatalf("unexpected move %+v", moved)
	}

	if rec := do(t, h, http.MethodPost, "/api/events/ev-1/move", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing offset status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/events/ev-1/move", `{"offset_minutes":-5}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("negative offset status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/events/nope/move", `{"offset_minutes":5}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d", rec.Code)
	}
}

func TestDayWeekAndMonthViews(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timeline.PixelsPerMinute = 2
	h := newTestServer(t, fixture{cfg: cfg})
	do(t, h, http.MethodPost, "/api/events", eventJSON("Standup", "09:00", "09:30", "Work"))
	do(t, h, http.MethodPost, "/api/events", eventJSON("Lunch", "12:00", "13:00", "Family"))

	day := decode[dayResponse](t, do(t, h, http.MethodGet, "/api/day?date=2024-01-01", ""))
	if len(day.Blocks) != 2 || day.Blocks[0].OffsetMinutes != 60 || day.Blocks[0].TopPx != 120 || day.Blocks[1].HeightPx != 120 {
		t.Fatalf("unexpected day %+v", day)
	}
	if day.Window.Start != "08:00" || day.Window.End != "20:00" || len(day.Labels) != 25 {
		t.Fatalf("unexpected window %+v labels=%v", day.Window, day.Labels)
	}

	if rec := do(t, h, http.MethodGet, "/api/day?date=01/01/2024", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d", rec.Code)
	}

	week := decode[weekResponse](t, do(t, h, http.MethodGet, "/api/week?date=2024-01-03", ""))
	if week.Start != "2023-12-31" || week.Label != "Dec 31 - Jan 6" || len(week.Days) != 7 {
		t.Fatalf("unexpected week %+v", week)
	}
	if len(week.Days[1].Blocks) != 2 || week.Days[1].Weekday != "Mon" {
		t.Fatalf("monday column %+v", week.Days[1])
	}

	month := decode[monthResponse](t, do(t, h, http.MethodGet, "/api/month?year=2024&month=1", ""))
	if month.Header != "January 2024" || len(month.Cells) != schedule.GridCells {
		t.Fatalf("unexpected month %+v", month)
	}
	// January 2024 starts on a Monday: one padding cell.
	if month.Cells[0].Label != "" || month.Cells[1].Label != "1" || month.Cells[1].Tasks != "Standup, Lunch" {
		t.Fatalf("unexpected first cells %+v", month.Cells[:2])
	}
	if month.Prev != (yearMonth{Year: 2023, Month: 12}) || month.Next != (yearMonth{Year: 2024, Month: 2}) {
		t.Fatalf("prev/next = %+v %+v", month.Prev, month.Next)
	}

	if rec := do(t, h, http.MethodGet, "/api/month?year=2024&month=13", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad month status = %d", rec.Code)
	}
}

func TestExportFollowsWrites(t *testing.T) {
	h := newTestServer(t, fixture{})
	do(t, h, http.MethodPost, "/api/events", eventJSON("Standup", "09:00", "09:30", "Work"))

	rec := do(t, h, http.MethodGet, "/api/export.ics", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar") {
		t.Fatalf("export status = %d type=%q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "SUMMARY:Standup") {
		t.Fatalf("export body missing event:\n%s", rec.Body)
	}

	do(t, h, http.MethodDelete, "/api/events/ev-1", "")
	if body := do(t, h, http.MethodGet, "/api/export.ics", "").Body.String(); strings.Contains(body, "SUMMARY:Standup") {
		t.Fatalf("export still lists a deleted event:\n%s", body)
	}
}

const retroFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:retro@example.com
DTSTAMP:20240101T000000Z
DTSTART:20240102T090000Z
DTEND:20240102T100000Z
SUMMARY:Retro
END:VEVENT
END:VCALENDAR
`

func TestImportCalendarBody(t *testing.T) {
	h := newTestServer(t, fixture{})
	feed := strings.ReplaceAll(retroFeed, "\n", "\r\n")

	rec := do(t, h, http.MethodPost, "/api/import", feed)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d body=%s", rec.Code, rec.Body)
	}
	if res := decode[importResponse](t, rec); res.Added != 1 {
		t.Fatalf("unexpected import %+v", res)
	}

	// Same UID again replaces instead of duplicating.
	if res := decode[importResponse](t, do(t, h, http.MethodPost, "/api/import", feed)); res.Replaced != 1 || res.Added != 0 {
		t.Fatalf("unexpected re-import %+v", res)
	}
	if list := decode[[]eventDTO](t, do(t, h, http.MethodGet, "/api/events", "")); len(list) != 1 || list[0].Title != "Retro" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestSyncConfiguredFeeds(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(strings.ReplaceAll(retroFeed, "\n", "\r\n")))
	}))
	defer feed.Close()

	cfg := config.DefaultConfig()
	cfg.ICS = []config.ICSConfig{{ID: "team", URL: feed.URL + "/team.ics"}}
	h := newTestServer(t, fixture{cfg: cfg, fetcher: ics.NewFetcher(t.TempDir(), feed.Client())})

	rec := do(t, h, http.MethodPost, "/api/sync", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if res := decode[importResponse](t, rec); res.Added != 1 || res.Warning != "" {
		t.Fatalf("unexpected sync %+v", res)
	}
}

func TestSyncWithoutFeeds(t *testing.T) {
	h := newTestServer(t, fixture{})
	if rec := do(t, h, http.MethodPost, "/api/sync", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWeatherEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mock_weather.NewMockForecaster(ctrl)
	forecast := &weather.Forecast{
		Timezone: "UTC",
		Hourly: weather.Hourly{
			Time:                     []string{"2024-01-01T09:00", "2024-01-01T12:00"},
			Temperature:              []float64{12, 14},
			WeatherCode:              []int{1, 61},
			PrecipitationProbability: []int{10, 80},
		},
		Daily: weather.Daily{
			Time:                        []string{"2024-01-01"},
			WeatherCode:                 []int{61},
			TemperatureMax:              []float64{15},
			TemperatureMin:              []float64{8},
			PrecipitationProbabilityMax: []int{80},
		},
	}
	src.EXPECT().Forecast(gomock.Any(), 52.5, 13.4).Return(forecast, nil).Times(1)

	cfg := config.DefaultConfig()
	cfg.Weather.Latitude = 52.5
	cfg.Weather.Longitude = 13.4
	h := newTestServer(t, fixture{cfg: cfg, watcher: weather.NewWatcher(src, nil)})
	do(t, h, http.MethodPost, "/api/events", eventJSON("Picnic", "12:00", "14:00", "Outdoor"))
	do(t, h, http.MethodPost, "/api/events", eventJSON("Standup", "09:00", "09:30", "Work"))

	rec := do(t, h, http.MethodGet, "/api/weather", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	resp := decode[weatherResponse](t, rec)
	if len(resp.Days) != 1 || resp.Days[0].Description != "Slight rain" {
		t.Fatalf("unexpected days %+v", resp.Days)
	}
	if len(resp.Alerts) != 1 || resp.Alerts[0].EventID != "ev-1" {
		t.Fatalf("unexpected alerts %+v", resp.Alerts)
	}

	// The cached forecast is reused and checked against new outdoor events.
	rec = do(t, h, http.MethodPost, "/api/events", eventJSON("Hike", "11:00", "11:45", "Outdoor"))
	if created := decode[eventResponse](t, rec); created.Alert == nil || created.Alert.EventID != "ev-3" {
		t.Fatalf("expected a weather alert on create, got %+v", created)
	}
	if rec := do(t, h, http.MethodGet, "/api/weather", ""); rec.Code != http.StatusOK {
		t.Fatalf("cached status = %d", rec.Code)
	}
}

func TestWeatherNotConfigured(t *testing.T) {
	h := newTestServer(t, fixture{})
	if rec := do(t, h, http.MethodGet, "/api/weather", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
