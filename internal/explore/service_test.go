package explore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"

	"backend-fogtrek/internal/history"
	"backend-fogtrek/internal/shared/geo"
	"backend-fogtrek/internal/stats"
	"backend-fogtrek/internal/stream"
)

// metersLat converts a northward offset in meters to degrees of latitude.
func metersLat(m float64) float64 {
	return m / 111194.93
}

func testService(now *int64) *Service {
	engine := stats.NewEngineWithClock(25,
		func() int64 { return *now },
		func() string { return "session-test" })
	return NewService(engine, nil, nil, nil)
}

func TestOfferFixInvalid(t *testing.T) {
	now := int64(0)
	svc := testService(&now)

	_, err := svc.OfferFix(context.Background(), "device-1", geo.GeoFix{Lat: 99, Lng: 0, Timestamp: 1})
	if !errors.Is(err, ErrInvalidFix) {
		t.Fatalf("expected ErrInvalidFix, got %v", err)
	}
}

func TestOfferFixFirstAccepted(t *testing.T) {
	now := int64(0)
	svc := testService(&now)

	result, err := svc.OfferFix(context.Background(), "device-1", geo.GeoFix{Lat: 40, Lng: -74, Timestamp: 0})
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if !result.Accepted || !result.StartsNewSession || result.ConnectsToPrevious {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestOfferFixDuplicateRejected(t *testing.T) {
	now := int64(0)
	svc := testService(&now)
	ctx := context.Background()

	if _, err := svc.OfferFix(ctx, "device-1", geo.GeoFix{Lat: 40, Lng: -74, Timestamp: 0}); err != nil {
		t.Fatalf("offer: %v", err)
	}
	result, err := svc.OfferFix(ctx, "device-1", geo.GeoFix{Lat: 40, Lng: -74, Timestamp: 5000})
	if err != nil {
		t.Fatalf("offer duplicate: %v", err)
	}
	if result.Accepted {
		t.Fatalf("duplicate burst fix should be rejected")
	}
}

func TestOfferFixWalkAccruesDistance(t *testing.T) {
	now := int64(0)
	svc := testService(&now)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		fix := geo.GeoFix{Lat: 40 + metersLat(float64(i)*50), Lng: -74, Timestamp: int64(i) * 60000}
		result, err := svc.OfferFix(ctx, "device-1", fix)
		if err != nil {
			t.Fatalf("offer %d: %v", i, err)
		}
		if i > 0 && !result.ConnectsToPrevious {
			t.Fatalf("fix %d disconnected: %s", i, result.DisconnectionReason)
		}
	}

	summary, err := svc.Summary(ctx, "device-1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Total.DistanceM < 145 || summary.Total.DistanceM > 155 {
		t.Fatalf("distance %v", summary.Total.DistanceM)
	}
	if summary.Session.DistanceM != summary.Total.DistanceM {
		t.Fatalf("session distance diverged")
	}
	if summary.Formatted.TotalDistance == "" || summary.Formatted.SessionTimer == "" {
		t.Fatalf("formatted stats missing: %+v", summary.Formatted)
	}
}

func TestOfferFixTeleportReported(t *testing.T) {
	now := int64(0)
	svc := testService(&now)
	ctx := context.Background()

	_, _ = svc.OfferFix(ctx, "device-1", geo.GeoFix{Lat: 40, Lng: -74, Timestamp: 0})
	result, err := svc.OfferFix(ctx, "device-1", geo.GeoFix{Lat: 41, Lng: -74, Timestamp: 60000})
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if result.ConnectsToPrevious || result.DisconnectionReason == "" {
		t.Fatalf("teleport should disconnect with a reason: %+v", result)
	}

	summary, _ := svc.Summary(ctx, "device-1")
	if summary.Total.DistanceM != 0 {
		t.Fatalf("teleport distance counted: %v", summary.Total.DistanceM)
	}
}

func TestSessionLifecycleThroughService(t *testing.T) {
	now := int64(1000)
	svc := testService(&now)
	ctx := context.Background()

	summary, err := svc.StartSession(ctx, "device-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if summary.CurrentSession.StartTime != 1000 {
		t.Fatalf("session start %d", summary.CurrentSession.StartTime)
	}

	now = 5000
	summary, err = svc.EndSession(ctx, "device-1")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if summary.CurrentSession.EndTime != 5000 {
		t.Fatalf("session end %d", summary.CurrentSession.EndTime)
	}

	now = 6000
	if _, err = svc.Pause(ctx, "device-1"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	now = 9000
	summary, err = svc.Resume(ctx, "device-1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if summary.CurrentSession.TotalPausedTimeMs != 3000 {
		t.Fatalf("paused ledger %d", summary.CurrentSession.TotalPausedTimeMs)
	}
}

func TestClearHistoryResets(t *testing.T) {
	now := int64(0)
	svc := testService(&now)
	ctx := context.Background()

	_, _ = svc.OfferFix(ctx, "device-1", geo.GeoFix{Lat: 40, Lng: -74, Timestamp: 0})
	_, _ = svc.OfferFix(ctx, "device-1", geo.GeoFix{Lat: 40 + metersLat(50), Lng: -74, Timestamp: 60000})

	if err := svc.ClearHistory(ctx, "device-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	summary, _ := svc.Summary(ctx, "device-1")
	if summary.Total.DistanceM != 0 || summary.Total.ActiveTimeMs != 0 {
		t.Fatalf("totals survived clear: %+v", summary.Total)
	}
}

func TestOfferFixBroadcastsFeedEvent(t *testing.T) {
	now := int64(0)
	hub := stream.NewHub(nil)
	engine := stats.NewEngineWithClock(25, func() int64 { return now }, nil)
	svc := NewService(engine, nil, nil, hub)

	client := hub.Register("device-1")
	defer hub.Unregister(client)

	if _, err := svc.OfferFix(context.Background(), "device-1", geo.GeoFix{Lat: 40, Lng: -74, Timestamp: 0}); err != nil {
		t.Fatalf("offer: %v", err)
	}

	select {
	case payload := <-client.Send:
		var event FeedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("unmarshal feed event: %v", err)
		}
		if event.DeviceID != "device-1" || !event.Fix.StartsNewSession {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("no feed event broadcast")
	}
}

func TestOfferFixPersistsHistory(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	// First touch loads persisted history, then the fix is appended.
	mock.ExpectQuery(`SELECT lat, lng, recorded_at_ms`).
		WithArgs("device-1").
		WillReturnRows(pgxmock.NewRows([]string{"lat", "lng", "recorded_at_ms"}))
	mock.ExpectExec(`INSERT INTO device_fixes`).
		WithArgs("device-1", 40.0, -74.0, int64(0)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	now := int64(0)
	engine := stats.NewEngineWithClock(25, func() int64 { return now }, nil)
	svc := NewService(engine, history.NewStore(mock), nil, nil)

	if _, err := svc.OfferFix(context.Background(), "device-1", geo.GeoFix{Lat: 40, Lng: -74, Timestamp: 0}); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRebuildMatchesIncrementalDistance(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"lat", "lng", "recorded_at_ms"}).
		AddRow(40.0, -74.0, int64(0)).
		AddRow(40+metersLat(50), -74.0, int64(60000)).
		AddRow(40+metersLat(100), -74.0, int64(120000))
	mock.ExpectQuery(`SELECT lat, lng, recorded_at_ms`).
		WithArgs("device-1").
		WillReturnRows(rows)

	now := int64(0)
	engine := stats.NewEngineWithClock(25, func() int64 { return now }, nil)
	svc := NewService(engine, history.NewStore(mock), nil, nil)

	summary, err := svc.Rebuild(context.Background(), "device-1")
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if summary.Total.DistanceM < 98 || summary.Total.DistanceM > 102 {
		t.Fatalf("rebuilt distance %v", summary.Total.DistanceM)
	}
	if summary.Total.ActiveTimeMs != 120000 {
		t.Fatalf("rebuilt active time %d", summary.Total.ActiveTimeMs)
	}
}
