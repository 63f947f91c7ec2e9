package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DayState is the closed set of states a calendar day can be observed in.
// An unrecognized label is a classification failure, never a new state.
type DayState string

const (
	StateAvailable              DayState = "AVAILABLE"
	StateAvailableNoCheckout    DayState = "AVAILABLE_NO_CHECKOUT_DATE"
	StateCheckoutOnly           DayState = "CHECKOUT_ONLY"
	StateUnavailable            DayState = "UNAVAILABLE"
	StateUnavailablePastDate    DayState = "UNAVAILABLE_DUE_TO_PAST_DATE"
)

// Valid reports whether s is one of the known day states.
func (s DayState) Valid() bool {
	switch s {
	case StateAvailable, StateAvailableNoCheckout, StateCheckoutOnly,
		StateUnavailable, StateUnavailablePastDate:
		return true
	}
	return false
}

// PriceQuote is one stay interval's nightly-equivalent price. A day covered by
// several overlapping stay windows carries one quote per window. Immutable once
// produced.
type PriceQuote struct {
	CheckIn  time.Time       `json:"check_in"`
	CheckOut time.Time       `json:"check_out"`
	Amount   decimal.Decimal `json:"amount"`
}

// Nights is the length of the quoted stay.
func (q PriceQuote) Nights() int {
	return int(q.CheckOut.Sub(q.CheckIn).Hours() / 24)
}

// Covers reports whether day falls inside [CheckIn, CheckOut).
func (q PriceQuote) Covers(day time.Time) bool {
	return !day.Before(q.CheckIn) && day.Before(q.CheckOut)
}

// DayRecord is the unit the scanner produces and the store persists: one
// observation of one calendar day for one room. Price is the arithmetic mean of
// the covering quotes' amounts; nil (absent), never zero, when there are no
// quotes. Pointer fields are nil when the observation did not carry a value.
type DayRecord struct {
	RoomID            string
	CalendarDay       time.Time
	State             DayState
	MinimumStayNights *int
	Price             *decimal.Decimal
	PriceQuotes       []PriceQuote
	CleaningFee       *decimal.Decimal
	Currency          *string
	ExtraAttributes   map[string]string

	// Persistence bookkeeping, set by the store.
	UpdateCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Transition types that are not a directed "<old> -> <new>" state pair.
const (
	TransitionNewDateRecorded      = "NEW_DATE_RECORDED"
	TransitionAttributesOnlyChange = "ATTRIBUTES_ONLY_CHANGE"
)

// Transition is one append-only audit entry: why a day's record changed, plus a
// snapshot of the merged record's comparable fields at that moment.
type Transition struct {
	RoomID            string
	CalendarDay       time.Time
	CreatedAt         time.Time
	TransitionType    string
	State             DayState
	Price             *decimal.Decimal
	PriceQuotes       []PriceQuote
	MinimumStayNights *int
	CleaningFee       *decimal.Decimal
	Currency          *string
	ExtraAttributes   map[string]string
}

// ScanRun records one per-room scan job for bookkeeping.
type ScanRun struct {
	ScannerName string
	RoomID      string
	StartedAt   time.Time
	FinishedAt  *time.Time
	Success     bool
	Comment     *string
}

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
