package scan

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"stayscan/internal/classify"
	"stayscan/internal/domain"
)

// quote is one priced stay window read from the pricing panel, plus the
// per-quote attributes that ride along with it.
type quote struct {
	stay        domain.PriceQuote
	cleaningFee *decimal.Decimal
	currency    *string
	extras      map[string]string
}

// buildQuote classifies the pricing-panel lines for one [checkIn, checkOut)
// stay into a quote. The nightly amount prefers an explicit per-night line and
// falls back to the per-stay accommodation total (already normalized per
// night). Extras are always populated, even on failure, so raw panel text is
// never discarded. Fails with ErrAmbiguousCurrency when the lines disagree on
// the currency symbol: currency must be uniform per quote.
func buildQuote(lines []string, checkIn, checkOut time.Time) (quote, error) {
	numNights := int(checkOut.Sub(checkIn).Hours() / 24)
	q := quote{
		stay:   domain.PriceQuote{CheckIn: checkIn, CheckOut: checkOut},
		extras: make(map[string]string),
	}

	var nightly, stayTotal *decimal.Decimal
	currencies := make(map[string]struct{})
	for _, line := range lines {
		cl := classify.PriceLine(line, numNights)
		if cl.Currency != "" {
			currencies[cl.Currency] = struct{}{}
		}
		switch cl.Category {
		case classify.LineNightlyRate:
			nightly = cl.Amount
		case classify.LineStayTotal:
			stayTotal = cl.Amount
		case classify.LineCleaningFee:
			q.cleaningFee = cl.Amount
		case classify.LineOther:
			q.extras[cl.Raw] = cl.Raw
		default:
			// Classified but not part of the record proper (discounts,
			// taxes): keep them visible in extras.
			q.extras[string(cl.Category)] = cl.Raw
		}
	}

	if len(currencies) > 1 {
		return q, fmt.Errorf("%w: %d symbols across %d lines", domain.ErrAmbiguousCurrency, len(currencies), len(lines))
	}
	for c := range currencies {
		cc := c
		q.currency = &cc
	}

	switch {
	case nightly != nil:
		q.stay.Amount = *nightly
	case stayTotal != nil:
		q.stay.Amount = *stayTotal
	default:
		return q, fmt.Errorf("%w: panel for %s carried no rate", errQuoteUnpriceable, checkIn.Format("2006-01-02"))
	}
	return q, nil
}

// dayObservation is the per-cell reading before quotes are folded in.
type dayObservation struct {
	state  domain.DayState
	nights int
	extras map[string]string
}

// buildDayRecord folds one day's observation and every quote covering it into
// a DayRecord. Price is the arithmetic mean of the covering quotes' amounts;
// no quotes means an absent price, not zero. Cleaning fee and currency come
// from the quote starting on the day itself (the narrowest applicable
// interval), never averaged. Non-available states carry no quotes.
func buildDayRecord(roomID string, day time.Time, obs dayObservation, quotes []quote) domain.DayRecord {
	rec := domain.DayRecord{
		RoomID:          roomID,
		CalendarDay:     day,
		State:           obs.state,
		ExtraAttributes: map[string]string{},
	}
	if obs.nights > 0 {
		n := obs.nights
		rec.MinimumStayNights = &n
	}
	for k, v := range obs.extras {
		rec.ExtraAttributes[k] = v
	}
	if obs.state != domain.StateAvailable {
		return rec
	}

	sum := decimal.Zero
	for _, q := range quotes {
		if !q.stay.Covers(day) {
			continue
		}
		rec.PriceQuotes = append(rec.PriceQuotes, q.stay)
		sum = sum.Add(q.stay.Amount)
		if q.stay.CheckIn.Equal(day) {
			rec.CleaningFee = q.cleaningFee
			rec.Currency = q.currency
			for k, v := range q.extras {
				rec.ExtraAttributes[k] = v
			}
		}
	}
	if n := len(rec.PriceQuotes); n > 0 {
		sort.Slice(rec.PriceQuotes, func(i, j int) bool {
			return rec.PriceQuotes[i].CheckIn.Before(rec.PriceQuotes[j].CheckIn)
		})
		mean := sum.Div(decimal.NewFromInt(int64(n)))
		rec.Price = &mean
	}
	return rec
}
