package scan_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stayscan/internal/classify"
	"stayscan/internal/domain"
	"stayscan/internal/scan"
)

func utcDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// label renders a day-cell label the way the live calendar widget does.
func label(day time.Time, tail string) string {
	return day.Format("2, Monday, January 2006") + ". " + tail
}

type fakeMonth struct {
	month time.Month
	year  int
	cells []string
}

// fakeBrowser scripts a two-pane calendar widget with injectable failures.
type fakeBrowser struct {
	months  []fakeMonth
	pricing map[string][]string // "<check_in>|<check_out>", YYYY-MM-DD

	window   int
	selected []string

	paneFailures int   // first N VisibleMonthPanes calls fail transiently
	pricingErr   error // forced PricingPanelLines error when set

	opened string
	closed bool
}

func (b *fakeBrowser) OpenListing(ctx context.Context, roomID string) error {
	b.opened = roomID
	return nil
}

func (b *fakeBrowser) VisibleMonthPanes(ctx context.Context) ([]domain.MonthPane, error) {
	if b.paneFailures > 0 {
		b.paneFailures--
		return nil, fmt.Errorf("%w: widget mid-animation", domain.ErrTransient)
	}
	var panes []domain.MonthPane
	for i := 0; i < 2; i++ {
		idx := b.window + i
		if idx >= len(b.months) {
			break
		}
		panes = append(panes, domain.MonthPane{Index: i, Month: b.months[idx].month, Year: b.months[idx].year})
	}
	return panes, nil
}

func (b *fakeBrowser) DayCells(ctx context.Context, pane domain.MonthPane) ([]domain.DayCell, error) {
	idx := b.window + pane.Index
	if idx < 0 || idx >= len(b.months) {
		return nil, fmt.Errorf("%w: pane not visible", domain.ErrTransient)
	}
	cells := make([]domain.DayCell, 0, len(b.months[idx].cells))
	for i, l := range b.months[idx].cells {
		cells = append(cells, domain.DayCell{Pane: pane.Index, Index: i, Label: l})
	}
	return cells, nil
}

func (b *fakeBrowser) SelectDay(ctx context.Context, cell domain.DayCell) error {
	day, err := classify.CellLabelDate(cell.Label)
	if err != nil {
		return err
	}
	b.selected = append(b.selected, day.Format("2006-01-02"))
	return nil
}

func (b *fakeBrowser) PricingPanelLines(ctx context.Context) ([]string, error) {
	if b.pricingErr != nil {
		return nil, b.pricingErr
	}
	if len(b.selected) != 2 {
		return nil, fmt.Errorf("%w: incomplete selection", domain.ErrTransient)
	}
	lines, ok := b.pricing[b.selected[0]+"|"+b.selected[1]]
	if !ok {
		return nil, fmt.Errorf("%w: no panel", domain.ErrTransient)
	}
	return lines, nil
}

func (b *fakeBrowser) ClearSelection(ctx context.Context) error {
	b.selected = nil
	return nil
}

func (b *fakeBrowser) AdvanceMonth(ctx context.Context) error {
	b.window++
	return nil
}

func (b *fakeBrowser) Close() error {
	b.closed = true
	return nil
}

func testCfg() scan.Config {
	return scan.Config{LookaheadMonths: 1, PaneRetries: 3, PaneBackoff: time.Millisecond}
}

func TestScan_CrossMonthCheckout(t *testing.T) {
	checkIn := utcDay(2025, 12, 30)
	checkOut := utcDay(2026, 1, 2)

	b := &fakeBrowser{
		months: []fakeMonth{
			{time.December, 2025, []string{label(checkIn, "Available. 3-night minimum stay.")}},
			{time.January, 2026, []string{label(checkOut, "This day is only available for checkout.")}},
		},
		pricing: map[string][]string{
			"2025-12-30|2026-01-02": {"€100 per night", "Cleaning fee €25"},
		},
	}

	res, err := scan.New(b, testCfg()).Scan(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if b.opened != "room-1" {
		t.Fatalf("listing never opened")
	}
	if len(res.Records) != 1 {
		t.Fatalf("records: %d", len(res.Records))
	}
	rec := res.Records[0]
	if rec.State != domain.StateAvailable || !rec.CalendarDay.Equal(checkIn) {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.MinimumStayNights == nil || *rec.MinimumStayNights != 3 {
		t.Fatalf("nights: %v", rec.MinimumStayNights)
	}
	if rec.Price == nil || !rec.Price.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("price: %v", rec.Price)
	}
	if rec.CleaningFee == nil || !rec.CleaningFee.Equal(decimal.RequireFromString("25")) {
		t.Fatalf("cleaning fee: %v", rec.CleaningFee)
	}
	// a completed pricing read must leave no selection behind
	if len(b.selected) != 0 {
		t.Fatalf("selection leaked: %v", b.selected)
	}
}

func TestScan_TransientPanesRetryThenStable(t *testing.T) {
	day := utcDay(2025, 12, 25)
	b := &fakeBrowser{
		months: []fakeMonth{
			{time.December, 2025, []string{label(day, "Unavailable.")}},
			{time.January, 2026, nil},
		},
		paneFailures: 2,
	}

	res, err := scan.New(b, testCfg()).Scan(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].State != domain.StateUnavailable {
		t.Fatalf("records: %+v", res.Records)
	}
}

func TestScan_UnrecognizedLabelSkipsCell(t *testing.T) {
	good := utcDay(2025, 12, 20)
	bad := utcDay(2025, 12, 21)
	b := &fakeBrowser{
		months: []fakeMonth{
			{time.December, 2025, []string{
				"", // pad cell, skipped silently
				label(good, "Unavailable."),
				label(bad, "Mystery state."),
			}},
			{time.January, 2026, nil},
		},
	}

	res, err := scan.New(b, testCfg()).Scan(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if res.SkippedCells != 1 {
		t.Fatalf("skipped cells: %d", res.SkippedCells)
	}
	if len(res.Records) != 1 || !res.Records[0].CalendarDay.Equal(good) {
		t.Fatalf("records: %+v", res.Records)
	}
}

func TestScan_CheckoutBeyondPanesSkipsQuote(t *testing.T) {
	day := utcDay(2025, 12, 31)
	b := &fakeBrowser{
		months: []fakeMonth{
			// 5-night minimum puts checkout on Jan 5, which has no cell
			{time.December, 2025, []string{label(day, "Available. 5-night minimum stay.")}},
			{time.January, 2026, nil},
		},
	}

	res, err := scan.New(b, testCfg()).Scan(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if res.SkippedQuotes != 1 {
		t.Fatalf("skipped quotes: %d", res.SkippedQuotes)
	}
	if len(res.Records) != 1 {
		t.Fatalf("records: %d", len(res.Records))
	}
	if res.Records[0].Price != nil {
		t.Fatalf("unpriced day must have an absent price")
	}
}

func TestScan_FatalPricingErrorReturnsPartial(t *testing.T) {
	recorded := utcDay(2025, 12, 20)
	failing := utcDay(2025, 12, 22)
	checkout := utcDay(2025, 12, 24)
	b := &fakeBrowser{
		months: []fakeMonth{
			{time.December, 2025, []string{
				label(recorded, "Unavailable."),
				label(failing, "Available. 2-night minimum stay."),
				label(checkout, "This day is only available for checkout."),
			}},
			{time.January, 2026, nil},
		},
		pricingErr: errors.New("session crashed"),
	}

	res, err := scan.New(b, testCfg()).Scan(context.Background(), "room-1")
	if err == nil {
		t.Fatalf("want fatal error")
	}
	// a failed room still contributes everything it observed, including the
	// classified state of the day whose pricing read crashed
	if len(res.Records) != 2 {
		t.Fatalf("records: %+v", res.Records)
	}
	if !res.Records[0].CalendarDay.Equal(recorded) || res.Records[0].State != domain.StateUnavailable {
		t.Fatalf("first record: %+v", res.Records[0])
	}
	last := res.Records[1]
	if !last.CalendarDay.Equal(failing) || last.State != domain.StateAvailable {
		t.Fatalf("failing-day record: %+v", last)
	}
	if last.Price != nil {
		t.Fatalf("crashed pricing read must leave the price absent")
	}
}
