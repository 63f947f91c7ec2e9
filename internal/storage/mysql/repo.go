package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"stayscan/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func valDec(p *decimal.Decimal) any {
	if p == nil {
		return nil
	}
	return *p
}

func valJSON(v any) any {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return nil
	}
	return string(b)
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// BeginPass opens one reconciliation pass. Every write of the pass shares the
// transaction; nothing is visible to readers until Commit.
func (r *Repo) BeginPass(ctx context.Context) (domain.CalendarPass, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &pass{tx: tx}, nil
}

type pass struct{ tx *sql.Tx }

func (p *pass) GetLatest(ctx context.Context, roomID string, day time.Time) (*domain.DayRecord, error) {
	row := p.tx.QueryRowContext(ctx, getLatestDaySQL, roomID, domain.Day(day))
	rec, err := scanDayRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (p *pass) Upsert(ctx context.Context, rec domain.DayRecord) error {
	_, err := p.tx.ExecContext(ctx, upsertDaySQL,
		rec.RoomID,
		domain.Day(rec.CalendarDay),
		string(rec.State),
		valDec(rec.Price),
		quotesJSON(rec.PriceQuotes),
		valInt(rec.MinimumStayNights),
		valDec(rec.CleaningFee),
		valStr(rec.Currency),
		extrasJSON(rec.ExtraAttributes),
	)
	return err
}

func (p *pass) AppendTransition(ctx context.Context, t domain.Transition) error {
	var createdAt any
	if !t.CreatedAt.IsZero() {
		createdAt = t.CreatedAt
	}
	_, err := p.tx.ExecContext(ctx, appendTransitionSQL,
		t.RoomID,
		domain.Day(t.CalendarDay),
		createdAt,
		t.TransitionType,
		string(t.State),
		valDec(t.Price),
		quotesJSON(t.PriceQuotes),
		valInt(t.MinimumStayNights),
		valDec(t.CleaningFee),
		valStr(t.Currency),
		extrasJSON(t.ExtraAttributes),
	)
	return err
}

func (p *pass) Commit() error   { return p.tx.Commit() }
func (p *pass) Rollback() error { return p.tx.Rollback() }

func (r *Repo) RecordScanRun(ctx context.Context, run domain.ScanRun) error {
	var finished any
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	_, err := r.db.ExecContext(ctx, insertScanRunSQL,
		run.ScannerName,
		run.RoomID,
		run.StartedAt,
		finished,
		run.Success,
		valStr(run.Comment),
	)
	return err
}

func (r *Repo) ListDays(ctx context.Context, roomID string, q domain.DaysQuery) ([]domain.DayRecord, error) {
	var from, to any
	if !q.From.IsZero() {
		from = domain.Day(q.From)
	}
	if !q.To.IsZero() {
		to = domain.Day(q.To)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.QueryContext(ctx, listDaysSQL, roomID, from, from, to, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DayRecord
	for rows.Next() {
		rec, err := scanDayRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repo) ListTransitions(ctx context.Context, roomID string, day time.Time, limit int) ([]domain.Transition, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, listTransitionsSQL, roomID, domain.Day(day), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transition
	for rows.Next() {
		var (
			t         domain.Transition
			state     string
			price     decimal.NullDecimal
			quotesRaw sql.RawBytes
			nights    sql.NullInt64
			fee       decimal.NullDecimal
			currency  sql.NullString
			extrasRaw sql.RawBytes
		)
		if err := rows.Scan(
			&t.RoomID,
			&t.CalendarDay,
			&t.CreatedAt,
			&t.TransitionType,
			&state,
			&price,
			&quotesRaw,
			&nights,
			&fee,
			&currency,
			&extrasRaw,
		); err != nil {
			return nil, err
		}
		t.State = domain.DayState(state)
		t.Price = fromNullDec(price)
		t.CleaningFee = fromNullDec(fee)
		if nights.Valid {
			n := int(nights.Int64)
			t.MinimumStayNights = &n
		}
		if currency.Valid {
			c := currency.String
			t.Currency = &c
		}
		if len(quotesRaw) > 0 {
			_ = json.Unmarshal(quotesRaw, &t.PriceQuotes)
		}
		if len(extrasRaw) > 0 {
			_ = json.Unmarshal(extrasRaw, &t.ExtraAttributes)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDayRecord(row rowScanner) (domain.DayRecord, error) {
	var (
		rec       domain.DayRecord
		state     string
		price     decimal.NullDecimal
		quotesRaw []byte
		nights    sql.NullInt64
		fee       decimal.NullDecimal
		currency  sql.NullString
		extrasRaw []byte
	)
	if err := row.Scan(
		&rec.RoomID,
		&rec.CalendarDay,
		&state,
		&price,
		&quotesRaw,
		&nights,
		&fee,
		&currency,
		&extrasRaw,
		&rec.UpdateCount,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return domain.DayRecord{}, err
	}
	rec.State = domain.DayState(state)
	rec.Price = fromNullDec(price)
	rec.CleaningFee = fromNullDec(fee)
	if nights.Valid {
		n := int(nights.Int64)
		rec.MinimumStayNights = &n
	}
	if currency.Valid {
		c := currency.String
		rec.Currency = &c
	}
	if len(quotesRaw) > 0 {
		_ = json.Unmarshal(quotesRaw, &rec.PriceQuotes)
	}
	if len(extrasRaw) > 0 {
		_ = json.Unmarshal(extrasRaw, &rec.ExtraAttributes)
	}
	return rec, nil
}

func fromNullDec(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func quotesJSON(quotes []domain.PriceQuote) any {
	if len(quotes) == 0 {
		return nil
	}
	return valJSON(quotes)
}

func extrasJSON(extras map[string]string) any {
	if len(extras) == 0 {
		return nil
	}
	return valJSON(extras)
}
