// Package scan drives one browser session across a room's calendar, turning
// visible month grids into typed day records. The scan is a small state
// machine: open listing, wait for a stable pair of month panes, scan the
// earlier pane's cells (selecting check-in/check-out per available day to read
// its minimum-stay price), advance a month, repeat to the horizon.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"stayscan/internal/adapters/observability"
	"stayscan/internal/classify"
	"stayscan/internal/domain"
)

type Config struct {
	// LookaheadMonths is how many months ahead of the first visible one are
	// scanned before the room is considered done.
	LookaheadMonths int
	// PaneRetries bounds how often a pane read is reattempted while the
	// calendar widget settles after an advance.
	PaneRetries int
	PaneBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.LookaheadMonths <= 0 {
		c.LookaheadMonths = 6
	}
	if c.PaneRetries <= 0 {
		c.PaneRetries = 3
	}
	if c.PaneBackoff <= 0 {
		c.PaneBackoff = 250 * time.Millisecond
	}
	return c
}

// Result is one room's completed scan. Records are ordered by calendar day.
// SkippedCells counts labels the classifier rejected; SkippedQuotes counts
// stay windows whose pricing panel could not be read into a quote.
type Result struct {
	Records       []domain.DayRecord
	SkippedCells  int
	SkippedQuotes int
}

// RoomScanner scans one room through one browser session. Not safe for
// concurrent use; the fetch orchestrator gives each worker its own.
type RoomScanner struct {
	browser domain.CalendarBrowser
	cfg     Config
}

func New(b domain.CalendarBrowser, cfg Config) *RoomScanner {
	return &RoomScanner{browser: b, cfg: cfg.withDefaults()}
}

type paneView struct {
	pane  domain.MonthPane
	cells []domain.DayCell
}

// Scan walks the room's calendar to the configured horizon. On a fatal adapter
// error it returns both the records assembled so far and the error: a failed
// room contributes what it managed to observe, nothing more.
func (s *RoomScanner) Scan(ctx context.Context, roomID string) (Result, error) {
	var res Result
	if err := s.browser.OpenListing(ctx, roomID); err != nil {
		return res, fmt.Errorf("open listing %s: %w", roomID, err)
	}

	days := make(map[time.Time]dayObservation)
	var quotes []quote
	var fatal error

	for monthIdx := 0; monthIdx < s.cfg.LookaheadMonths; monthIdx++ {
		panes := s.stablePanes(ctx, roomID)
		if len(panes) == 0 {
			log.Warn().Str("room", roomID).Int("month", monthIdx).Msg("no readable month panes, skipping month")
		} else {
			if err := s.scanMonth(ctx, roomID, panes, days, &quotes, &res); err != nil {
				fatal = err
				break
			}
		}
		if monthIdx+1 < s.cfg.LookaheadMonths {
			if err := s.browser.AdvanceMonth(ctx); err != nil {
				if errors.Is(err, domain.ErrTransient) {
					// The next stablePanes call absorbs a half-finished
					// transition; keep going.
					continue
				}
				fatal = fmt.Errorf("advance month: %w", err)
				break
			}
		}
	}

	res.Records = assemble(roomID, days, quotes)
	if fatal != nil {
		return res, fmt.Errorf("room %s: %w", roomID, fatal)
	}
	return res, nil
}

// stablePanes reads the currently visible pane pair, retrying with a fixed
// backoff while the widget is mid-animation. When retries exhaust it returns
// whatever panes were readable: a month degrades to partial data rather than
// aborting the room.
func (s *RoomScanner) stablePanes(ctx context.Context, roomID string) []paneView {
	var views []paneView
	for attempt := 0; attempt < s.cfg.PaneRetries; attempt++ {
		views = views[:0]
		panes, err := s.browser.VisibleMonthPanes(ctx)
		if err == nil {
			for _, p := range panes {
				cells, cerr := s.browser.DayCells(ctx, p)
				if cerr != nil {
					err = cerr
					break
				}
				views = append(views, paneView{pane: p, cells: cells})
			}
		}
		if err == nil && len(views) >= 2 {
			return views
		}
		if err != nil && !errors.Is(err, domain.ErrTransient) {
			log.Warn().Str("room", roomID).Err(err).Msg("pane read failed")
			return views
		}
		if !sleepCtx(ctx, s.cfg.PaneBackoff) {
			return views
		}
	}
	log.Warn().Str("room", roomID).Int("panes", len(views)).Msg("pane pair never stabilized, proceeding degraded")
	return views
}

func (s *RoomScanner) scanMonth(ctx context.Context, roomID string, panes []paneView, days map[time.Time]dayObservation, quotes *[]quote, res *Result) error {
	for _, cell := range panes[0].cells {
		if cell.Label == "" {
			continue // pad cell
		}
		day, err := classify.CellLabelDate(cell.Label)
		if err != nil {
			res.SkippedCells++
			observability.ObserveScanCell("undated")
			log.Warn().Str("room", roomID).Str("label", cell.Label).Msg("cell label has no parseable date, skipping")
			continue
		}
		state, nights, err := classify.DayLabel(cell.Label)
		if err != nil {
			res.SkippedCells++
			observability.ObserveScanCell("unrecognized")
			log.Warn().Str("room", roomID).Str("label", cell.Label).Msg("unrecognized day label, skipping cell")
			continue
		}
		observability.ObserveScanCell("ok")

		obs := dayObservation{state: state, nights: nights, extras: map[string]string{}}
		// The observation is kept regardless of how pricing goes: a fatal
		// quote failure must not also lose the already-classified day.
		days[day] = obs
		if state == domain.StateAvailable {
			q, qerr := s.priceMinimumStay(ctx, panes, cell, day, nights)
			if qerr != nil {
				res.SkippedQuotes++
				observability.ObserveScanQuote("skipped")
				// Raw panel text survives even when the quote does not.
				for k, v := range q.extras {
					obs.extras[k] = v
				}
				if !errors.Is(qerr, domain.ErrAmbiguousCurrency) && !errors.Is(qerr, errQuoteUnpriceable) {
					return qerr
				}
				log.Warn().Str("room", roomID).Time("day", day).Err(qerr).Msg("minimum-stay quote skipped")
			} else {
				observability.ObserveScanQuote("ok")
				*quotes = append(*quotes, q)
			}
		}
	}
	return nil
}

var errQuoteUnpriceable = errors.New("stay window could not be priced")

// priceMinimumStay selects [day, day+nights) and reads the pricing panel for
// the shortest legal stay starting at day. That is intentionally the cheapest
// available price for that start day, not an average tariff. The checkout cell
// may live in the second visible pane; a checkout past both panes is out of
// the two-month pricing window and yields no quote.
func (s *RoomScanner) priceMinimumStay(ctx context.Context, panes []paneView, checkInCell domain.DayCell, day time.Time, nights int) (quote, error) {
	checkOut := day.AddDate(0, 0, nights)
	q := quote{extras: map[string]string{}}

	checkOutCell, ok := findCellByDate(panes, checkOut)
	if !ok {
		return q, fmt.Errorf("%w: checkout %s beyond visible panes", errQuoteUnpriceable, checkOut.Format("2006-01-02"))
	}

	if err := s.browser.SelectDay(ctx, checkInCell); err != nil {
		return q, selectionFailure(err)
	}
	if err := s.browser.SelectDay(ctx, checkOutCell); err != nil {
		_ = s.browser.ClearSelection(ctx)
		return q, selectionFailure(err)
	}
	lines, err := s.browser.PricingPanelLines(ctx)
	// Always clear, even on failure: a lingering selection corrupts every
	// later pricing read in this session.
	if cerr := s.browser.ClearSelection(ctx); cerr != nil && !errors.Is(cerr, domain.ErrTransient) {
		return q, cerr
	}
	if err != nil {
		return q, selectionFailure(err)
	}
	return buildQuote(lines, day, checkOut)
}

// selectionFailure downgrades transient adapter hiccups to a skipped quote;
// anything else is fatal to the room.
func selectionFailure(err error) error {
	if errors.Is(err, domain.ErrTransient) {
		return fmt.Errorf("%w: %v", errQuoteUnpriceable, err)
	}
	return err
}

func findCellByDate(panes []paneView, want time.Time) (domain.DayCell, bool) {
	for _, pv := range panes {
		for _, cell := range pv.cells {
			if cell.Label == "" {
				continue
			}
			d, err := classify.CellLabelDate(cell.Label)
			if err != nil {
				continue
			}
			if d.Equal(want) {
				return cell, true
			}
		}
	}
	return domain.DayCell{}, false
}

func assemble(roomID string, days map[time.Time]dayObservation, quotes []quote) []domain.DayRecord {
	if len(days) == 0 {
		return nil
	}
	ordered := make([]time.Time, 0, len(days))
	for d := range days {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	out := make([]domain.DayRecord, 0, len(ordered))
	for _, d := range ordered {
		out = append(out, buildDayRecord(roomID, d, days[d], quotes))
	}
	return out
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
