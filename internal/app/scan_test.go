package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"stayscan/internal/adapters/replay"
	"stayscan/internal/app"
	"stayscan/internal/domain"
	"stayscan/internal/scan"
)

// ---- fakes ----

type fakeScanRepo struct {
	mu   sync.Mutex
	pass *fakePass
	runs []domain.ScanRun
}

func (f *fakeScanRepo) BeginPass(ctx context.Context) (domain.CalendarPass, error) {
	if f.pass == nil {
		f.pass = newFakePass()
	}
	return f.pass, nil
}

// called concurrently by scan workers
func (f *fakeScanRepo) RecordScanRun(ctx context.Context, run domain.ScanRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeScanRepo) ListDays(ctx context.Context, roomID string, q domain.DaysQuery) ([]domain.DayRecord, error) {
	return nil, nil
}

func (f *fakeScanRepo) ListTransitions(ctx context.Context, roomID string, day time.Time, limit int) ([]domain.Transition, error) {
	return nil, nil
}

// ---- fixture plumbing ----

func cellLabel(day time.Time, tail string) string {
	return day.Format("2, Monday, January 2006") + ". " + tail
}

func unavailableRoom(day time.Time) replay.RoomFixture {
	return replay.RoomFixture{
		Months: []replay.MonthFixture{
			{Month: day.Format("2006-01"), Cells: []string{cellLabel(day, "Unavailable.")}},
			{Month: day.AddDate(0, 1, 0).Format("2006-01"), Cells: nil},
		},
	}
}

// ---- tests ----

func TestScanRooms_FailingRoomDoesNotAbortBatch(t *testing.T) {
	checkIn := time.Date(2025, 12, 30, 0, 0, 0, 0, time.UTC)
	checkOut := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	plainDay := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)

	fixture := &replay.Fixture{Rooms: map[string]replay.RoomFixture{
		"r1": {
			Months: []replay.MonthFixture{
				{Month: "2025-12", Cells: []string{cellLabel(checkIn, "Available. 3-night minimum stay.")}},
				{Month: "2026-01", Cells: []string{cellLabel(checkOut, "This day is only available for checkout.")}},
			},
			Pricing: map[string][]string{
				"2025-12-30|2026-01-02": {"€100 per night", "Cleaning fee €25"},
			},
		},
		"r2": unavailableRoom(plainDay),
		"r3": unavailableRoom(plainDay),
		"r4": unavailableRoom(plainDay),
		// r5 has no fixture entry: opening its listing fails
	}}

	repo := &fakeScanRepo{}
	cache := &fakeCache{store: map[string]any{
		"calendar:r1": []domain.DayRecord{},
		"calendar:r2": []domain.DayRecord{},
	}}

	svc := app.NewScanService(
		replay.NewFactory(fixture),
		repo,
		cache,
		app.NewReconciler(0),
		app.ScanConfig{
			BatchSize: 5,
			Scan:      scan.Config{LookaheadMonths: 1, PaneRetries: 1, PaneBackoff: time.Millisecond},
		},
	)

	reconciled, err := svc.ScanRooms(context.Background(), []string{"r1", "r2", "r3", "r4", "r5"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if reconciled != 4 {
		t.Fatalf("reconciled: %d", reconciled)
	}

	if repo.pass == nil || !repo.pass.committed {
		t.Fatalf("pass never committed")
	}
	if len(repo.pass.transitions) != 4 {
		t.Fatalf("transitions: %d", len(repo.pass.transitions))
	}
	for _, tr := range repo.pass.transitions {
		if tr.TransitionType != domain.TransitionNewDateRecorded {
			t.Fatalf("first pass must only record new dates, got %s", tr.TransitionType)
		}
	}

	// the priced room's record made it through reconciliation intact
	stored, _ := repo.pass.GetLatest(context.Background(), "r1", checkIn)
	if stored == nil || stored.Price == nil || !stored.Price.Equal(*decp("100")) {
		t.Fatalf("stored r1 record: %+v", stored)
	}

	// every room got a bookkeeping row; only the fixture-less one failed
	if len(repo.runs) != 5 {
		t.Fatalf("runs: %d", len(repo.runs))
	}
	var failed int
	for _, run := range repo.runs {
		if run.ScannerName != app.ScannerName || run.FinishedAt == nil {
			t.Fatalf("malformed run: %+v", run)
		}
		if !run.Success {
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("failed runs: %d", failed)
	}

	// touched rooms' cached calendars are invalidated
	if _, ok := cache.store["calendar:r1"]; ok {
		t.Fatalf("r1 cache entry must be invalidated")
	}
	if _, ok := cache.store["calendar:r2"]; ok {
		t.Fatalf("r2 cache entry must be invalidated")
	}
}

func TestScanRooms_EmptySinkCommitsNothing(t *testing.T) {
	repo := &fakeScanRepo{}
	svc := app.NewScanService(
		replay.NewFactory(&replay.Fixture{Rooms: map[string]replay.RoomFixture{}}),
		repo,
		&fakeCache{},
		app.NewReconciler(0),
		app.ScanConfig{BatchSize: 2, Scan: scan.Config{LookaheadMonths: 1, PaneRetries: 1, PaneBackoff: time.Millisecond}},
	)

	reconciled, err := svc.ScanRooms(context.Background(), []string{"ghost"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if reconciled != 0 {
		t.Fatalf("reconciled: %d", reconciled)
	}
	if repo.pass != nil {
		t.Fatalf("no records means no storage pass")
	}
}
