package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"stayscan/internal/domain"
)

// DefaultPriceTolerance is the relative price movement treated as noise:
// re-quotes wobble with rounding and with which stay windows happen to cover a
// day, so only moves of at least this fraction count as a change.
const DefaultPriceTolerance = 0.10

// Reconciler merges freshly scanned day records into persisted state and emits
// the immutable transition log. It is the only writer of calendar storage.
type Reconciler struct {
	tolerance decimal.Decimal
	now       func() time.Time
}

func NewReconciler(tolerance float64) *Reconciler {
	if tolerance <= 0 {
		tolerance = DefaultPriceTolerance
	}
	return &Reconciler{tolerance: decimal.NewFromFloat(tolerance), now: time.Now}
}

// Reconcile merges one observed record into the pass. A first observation of a
// (room, day) key persists as-is and yields NEW_DATE_RECORDED. A re-observation
// is diffed against the stored record: a state change yields a directed
// "<old> -> <new>" transition, any other meaningful change yields
// ATTRIBUTES_ONLY_CHANGE, and a no-op refresh yields nil. In every branch an
// absent incoming field is back-filled from the stored record (a value
// disappearing from one observation must not erase what is already known) and
// extra attributes merge with the new keys winning. Re-applying an
// already-merged record therefore emits nothing.
func (r *Reconciler) Reconcile(ctx context.Context, pass domain.CalendarPass, rec domain.DayRecord) (*domain.Transition, error) {
	if rec.RoomID == "" || rec.CalendarDay.IsZero() {
		return nil, fmt.Errorf("%w: room=%q day=%s", domain.ErrMissingKey, rec.RoomID, rec.CalendarDay)
	}
	if !rec.State.Valid() {
		return nil, fmt.Errorf("%w: state %q", domain.ErrMissingKey, rec.State)
	}

	existing, err := pass.GetLatest(ctx, rec.RoomID, rec.CalendarDay)
	if err != nil {
		return nil, fmt.Errorf("get latest %s/%s: %w", rec.RoomID, rec.CalendarDay.Format("2006-01-02"), err)
	}

	if existing == nil {
		if err := pass.Upsert(ctx, rec); err != nil {
			return nil, err
		}
		t := snapshot(rec, domain.TransitionNewDateRecorded, r.now())
		if err := pass.AppendTransition(ctx, t); err != nil {
			return nil, err
		}
		return &t, nil
	}

	stateChanged := existing.State != rec.State
	anyChange := stateChanged ||
		!eqIntPtr(existing.MinimumStayNights, rec.MinimumStayNights) ||
		r.priceChanged(existing.Price, rec.Price) ||
		!eqDecPtr(existing.CleaningFee, rec.CleaningFee) ||
		!eqStrPtr(existing.Currency, rec.Currency)

	merged := backfill(rec, *existing)

	if !anyChange {
		if err := pass.Upsert(ctx, merged); err != nil {
			return nil, err
		}
		return nil, nil
	}

	transitionType := domain.TransitionAttributesOnlyChange
	if stateChanged {
		transitionType = fmt.Sprintf("%s -> %s", existing.State, rec.State)
		if unexpectedReversal(existing.State, rec.State) {
			// The expected lifecycle never walks a past-dated day back to
			// available; record it anyway and leave the judgement to whoever
			// reads the audit trail.
			log.Warn().Str("room", rec.RoomID).Time("day", rec.CalendarDay).
				Str("transition", transitionType).Msg("unexpected backwards state transition recorded")
		}
	}

	if err := pass.Upsert(ctx, merged); err != nil {
		return nil, err
	}
	t := snapshot(merged, transitionType, r.now())
	if err := pass.AppendTransition(ctx, t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Reconciler) priceChanged(old, new *decimal.Decimal) bool {
	if old == nil || old.IsZero() {
		return new != nil
	}
	if new == nil {
		return false // absent re-observation backfills, it is not a move
	}
	return new.Sub(*old).Abs().Div(*old).Cmp(r.tolerance) >= 0
}

// backfill fills absent fields of the incoming record from the stored one and
// merges extra attributes (incoming keys win). Only an explicit new value
// overwrites.
func backfill(rec domain.DayRecord, existing domain.DayRecord) domain.DayRecord {
	if rec.Price == nil {
		rec.Price = existing.Price
	}
	if rec.Currency == nil {
		rec.Currency = existing.Currency
	}
	if rec.CleaningFee == nil {
		rec.CleaningFee = existing.CleaningFee
	}
	if rec.MinimumStayNights == nil {
		rec.MinimumStayNights = existing.MinimumStayNights
	}
	if len(rec.PriceQuotes) == 0 {
		rec.PriceQuotes = existing.PriceQuotes
	}
	extras := make(map[string]string, len(existing.ExtraAttributes)+len(rec.ExtraAttributes))
	for k, v := range existing.ExtraAttributes {
		extras[k] = v
	}
	for k, v := range rec.ExtraAttributes {
		extras[k] = v
	}
	rec.ExtraAttributes = extras
	return rec
}

func snapshot(rec domain.DayRecord, transitionType string, at time.Time) domain.Transition {
	return domain.Transition{
		RoomID:            rec.RoomID,
		CalendarDay:       rec.CalendarDay,
		CreatedAt:         at,
		TransitionType:    transitionType,
		State:             rec.State,
		Price:             rec.Price,
		PriceQuotes:       rec.PriceQuotes,
		MinimumStayNights: rec.MinimumStayNights,
		CleaningFee:       rec.CleaningFee,
		Currency:          rec.Currency,
		ExtraAttributes:   rec.ExtraAttributes,
	}
}

// unexpectedReversal flags a day leaving a terminal past-dated state.
func unexpectedReversal(old, new domain.DayState) bool {
	return old == domain.StateUnavailablePastDate && new != domain.StateUnavailablePastDate
}

func eqIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqDecPtr(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
