// Package replay implements the calendar-browser port from recorded fixtures:
// month grids as cell-label arrays plus pricing-panel lines keyed by stay
// window. The scan orchestrator never talks to a real browser in this repo;
// replay sessions back both the tests and the scanner binary's dev harness.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"stayscan/internal/classify"
	"stayscan/internal/domain"
)

// Fixture is one recorded listing set, keyed by room id.
type Fixture struct {
	Rooms map[string]RoomFixture `json:"rooms"`
}

type RoomFixture struct {
	// Months in chronological order; exactly two are "visible" at a time.
	Months []MonthFixture `json:"months"`
	// Pricing lines keyed by "<check_in>|<check_out>" (YYYY-MM-DD dates).
	Pricing map[string][]string `json:"pricing"`
}

type MonthFixture struct {
	Month string   `json:"month"` // "2026-01"
	Cells []string `json:"cells"` // day-cell labels, pads empty
}

// Load reads a fixture file.
func Load(path string) (*Fixture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// Factory hands out independent sessions over one shared, read-only fixture.
type Factory struct{ fixture *Fixture }

func NewFactory(f *Fixture) *Factory { return &Factory{fixture: f} }

func (f *Factory) NewSession(ctx context.Context) (domain.CalendarBrowser, error) {
	return &session{fixture: f.fixture}, nil
}

// session is one scripted browser. It keeps the same observable shape as the
// live surface: a two-month sliding window, a day selection of at most two
// dates, and a pricing panel that only renders for a complete selection.
type session struct {
	fixture  *Fixture
	room     *RoomFixture
	window   int
	selected []string // selected day dates, YYYY-MM-DD, max 2
	closed   bool
}

func (s *session) OpenListing(ctx context.Context, roomID string) error {
	r, ok := s.fixture.Rooms[roomID]
	if !ok {
		return fmt.Errorf("replay: no fixture for room %s", roomID)
	}
	s.room = &r
	s.window = 0
	s.selected = nil
	return nil
}

func (s *session) VisibleMonthPanes(ctx context.Context) ([]domain.MonthPane, error) {
	if s.room == nil {
		return nil, fmt.Errorf("replay: no listing open")
	}
	var panes []domain.MonthPane
	for i := 0; i < 2; i++ {
		idx := s.window + i
		if idx >= len(s.room.Months) {
			break
		}
		m, err := time.Parse("2006-01", s.room.Months[idx].Month)
		if err != nil {
			return nil, fmt.Errorf("replay: bad month %q: %w", s.room.Months[idx].Month, err)
		}
		panes = append(panes, domain.MonthPane{Index: i, Month: m.Month(), Year: m.Year()})
	}
	return panes, nil
}

func (s *session) DayCells(ctx context.Context, pane domain.MonthPane) ([]domain.DayCell, error) {
	if s.room == nil {
		return nil, fmt.Errorf("replay: no listing open")
	}
	idx := s.window + pane.Index
	if idx < 0 || idx >= len(s.room.Months) {
		return nil, fmt.Errorf("%w: pane %d not visible", domain.ErrTransient, pane.Index)
	}
	cells := make([]domain.DayCell, 0, len(s.room.Months[idx].Cells))
	for i, label := range s.room.Months[idx].Cells {
		cells = append(cells, domain.DayCell{Pane: pane.Index, Index: i, Label: label})
	}
	return cells, nil
}

func (s *session) SelectDay(ctx context.Context, cell domain.DayCell) error {
	if s.room == nil {
		return fmt.Errorf("replay: no listing open")
	}
	if len(s.selected) >= 2 {
		return fmt.Errorf("replay: selection already complete")
	}
	day, err := classify.CellLabelDate(cell.Label)
	if err != nil {
		return err
	}
	s.selected = append(s.selected, day.Format("2006-01-02"))
	return nil
}

func (s *session) PricingPanelLines(ctx context.Context) ([]string, error) {
	if len(s.selected) != 2 {
		return nil, fmt.Errorf("%w: pricing panel needs a check-in and a checkout", domain.ErrTransient)
	}
	key := s.selected[0] + "|" + s.selected[1]
	lines, ok := s.room.Pricing[key]
	if !ok {
		return nil, fmt.Errorf("%w: no pricing recorded for %s", domain.ErrTransient, key)
	}
	return lines, nil
}

func (s *session) ClearSelection(ctx context.Context) error {
	s.selected = nil
	return nil
}

func (s *session) AdvanceMonth(ctx context.Context) error {
	if s.room == nil {
		return fmt.Errorf("replay: no listing open")
	}
	s.window++
	return nil
}

func (s *session) Close() error {
	s.closed = true
	return nil
}
