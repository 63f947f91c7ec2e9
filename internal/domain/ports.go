package domain

import (
	"context"
	"time"
)

// MonthPane is a handle to one of the month grids currently visible in the
// listing's calendar widget. Exactly two panes are visible at a time; Index 0
// is the earlier month.
type MonthPane struct {
	Index int
	Month time.Month
	Year  int
}

// DayCell is one cell of a month pane. Label carries the full accessibility
// text ("12, Friday, December 2025. Available. ..."); pad cells have an empty
// label.
type DayCell struct {
	Pane  int
	Index int
	Label string
}

// CalendarBrowser is the surface the scan orchestrator drives. Implementations
// wrap a live browser session or a scripted fixture; any call may fail with
// ErrTransient while the view is mid-transition.
type CalendarBrowser interface {
	OpenListing(ctx context.Context, roomID string) error
	VisibleMonthPanes(ctx context.Context) ([]MonthPane, error)
	DayCells(ctx context.Context, pane MonthPane) ([]DayCell, error)
	SelectDay(ctx context.Context, cell DayCell) error
	PricingPanelLines(ctx context.Context) ([]string, error)
	ClearSelection(ctx context.Context) error
	AdvanceMonth(ctx context.Context) error
	Close() error
}

// BrowserFactory opens one browser session per room worker. No process-wide
// shared driver state: each worker owns its session for the whole scan.
type BrowserFactory interface {
	NewSession(ctx context.Context) (CalendarBrowser, error)
}

// CalendarPass is one reconciliation pass over storage. All writes of a pass
// share one transaction; nothing is durable until Commit.
type CalendarPass interface {
	GetLatest(ctx context.Context, roomID string, day time.Time) (*DayRecord, error)
	Upsert(ctx context.Context, rec DayRecord) error
	AppendTransition(ctx context.Context, t Transition) error
	Commit() error
	Rollback() error
}

// CalendarRepository is the persistence port. Write paths go through a pass;
// read paths serve the API.
type CalendarRepository interface {
	BeginPass(ctx context.Context) (CalendarPass, error)
	RecordScanRun(ctx context.Context, run ScanRun) error

	ListDays(ctx context.Context, roomID string, q DaysQuery) ([]DayRecord, error)
	ListTransitions(ctx context.Context, roomID string, day time.Time, limit int) ([]Transition, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// DaysQuery bounds a calendar read. Zero From/To mean unbounded.
type DaysQuery struct {
	From  time.Time
	To    time.Time
	Limit int
}
