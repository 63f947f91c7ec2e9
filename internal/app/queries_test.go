package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stayscan/internal/app"
	"stayscan/internal/domain"
)

// ---- fakes ----

type fakeQueryRepo struct {
	days        []domain.DayRecord
	transitions []domain.Transition

	listDaysCalls  int
	lastTransLimit int
}

func (f *fakeQueryRepo) BeginPass(ctx context.Context) (domain.CalendarPass, error) {
	return nil, nil
}
func (f *fakeQueryRepo) RecordScanRun(ctx context.Context, run domain.ScanRun) error { return nil }
func (f *fakeQueryRepo) ListDays(ctx context.Context, roomID string, q domain.DaysQuery) ([]domain.DayRecord, error) {
	f.listDaysCalls++
	return f.days, nil
}
func (f *fakeQueryRepo) ListTransitions(ctx context.Context, roomID string, day time.Time, limit int) ([]domain.Transition, error) {
	f.lastTransLimit = limit
	return f.transitions, nil
}

type fakeCache struct {
	store map[string]any
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if d, ok := dst.(*[]domain.DayRecord); ok {
		*d = v.([]domain.DayRecord)
	}
	return true, nil
}
func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.store, key)
	return nil
}

// ---- tests ----

func TestGetCalendar_CacheMissThenHit(t *testing.T) {
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeQueryRepo{
		days: []domain.DayRecord{{
			RoomID:      "room-1",
			CalendarDay: day,
			State:       domain.StateAvailable,
			Price:       decp("120.00"),
		}},
	}
	cache := &fakeCache{}
	q := app.NewQueryService(repo, cache, 10*time.Minute)

	// Miss (first time, populates cache)
	out, err := q.GetCalendar(context.Background(), "room-1", domain.DaysQuery{})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(out) != 1 || out[0].State != domain.StateAvailable {
		t.Fatalf("unexpected days: %+v", out)
	}

	// Mutate repo to prove the second read comes from cache
	repo.days[0].State = domain.StateUnavailable

	out2, err := q.GetCalendar(context.Background(), "room-1", domain.DaysQuery{})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if out2[0].State != domain.StateAvailable {
		t.Fatalf("expected cached state AVAILABLE, got %s", out2[0].State)
	}
	if repo.listDaysCalls != 1 {
		t.Fatalf("expected one repo read, got %d", repo.listDaysCalls)
	}
}

func TestGetCalendar_BoundedQueryBypassesCache(t *testing.T) {
	repo := &fakeQueryRepo{}
	cache := &fakeCache{}
	q := app.NewQueryService(repo, cache, 10*time.Minute)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := q.GetCalendar(context.Background(), "room-1", domain.DaysQuery{From: from}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if _, err := q.GetCalendar(context.Background(), "room-1", domain.DaysQuery{From: from}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if repo.listDaysCalls != 2 {
		t.Fatalf("bounded queries must hit the repo every time, got %d calls", repo.listDaysCalls)
	}
	if len(cache.store) != 0 {
		t.Fatalf("bounded query must not populate cache: %v", cache.store)
	}
}

func TestListTransitions_LimitClamp(t *testing.T) {
	repo := &fakeQueryRepo{}
	q := app.NewQueryService(repo, &fakeCache{}, time.Minute)
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	for _, tc := range []struct{ in, want int }{
		{0, 50},
		{-3, 50},
		{201, 50},
		{120, 120},
	} {
		if _, err := q.ListTransitions(context.Background(), "room-1", day, tc.in); err != nil {
			t.Fatalf("err: %v", err)
		}
		if repo.lastTransLimit != tc.want {
			t.Fatalf("limit %d: want clamp %d, got %d", tc.in, tc.want, repo.lastTransLimit)
		}
	}
}

func decp(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
