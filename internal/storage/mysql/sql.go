package mysql

// Use VALUES(col) for broad compatibility; COALESCE keeps the stored value when
// the incoming one is NULL, so a field missing from one observation never
// erases previously known information.
const upsertDaySQL = `
INSERT INTO room_calendar_days
  (room_id, calendar_day, state, price, price_quotes, minimum_stay_nights, cleaning_fee, currency, extra_attributes)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  state               = VALUES(state),
  price               = COALESCE(VALUES(price), room_calendar_days.price),
  price_quotes        = COALESCE(VALUES(price_quotes), room_calendar_days.price_quotes),
  minimum_stay_nights = COALESCE(VALUES(minimum_stay_nights), room_calendar_days.minimum_stay_nights),
  cleaning_fee        = COALESCE(VALUES(cleaning_fee), room_calendar_days.cleaning_fee),
  currency            = COALESCE(VALUES(currency), room_calendar_days.currency),
  extra_attributes    = COALESCE(VALUES(extra_attributes), room_calendar_days.extra_attributes),
  update_count        = room_calendar_days.update_count + 1,
  updated_at          = CURRENT_TIMESTAMP
`

const getLatestDaySQL = `
SELECT
  room_id,
  calendar_day,
  state,
  price,
  price_quotes,
  minimum_stay_nights,
  cleaning_fee,
  currency,
  extra_attributes,
  update_count,
  created_at,
  updated_at
FROM room_calendar_days
WHERE room_id = ? AND calendar_day = ?
`

const listDaysSQL = `
SELECT
  room_id,
  calendar_day,
  state,
  price,
  price_quotes,
  minimum_stay_nights,
  cleaning_fee,
  currency,
  extra_attributes,
  update_count,
  created_at,
  updated_at
FROM room_calendar_days
WHERE room_id = ?
  AND (? IS NULL OR calendar_day >= ?)
  AND (? IS NULL OR calendar_day <= ?)
ORDER BY calendar_day
LIMIT ?
`

// Transitions are append-only: plain INSERT, no ON DUPLICATE clause, and
// nothing in this package ever updates or deletes a row of this table.
const appendTransitionSQL = `
INSERT INTO room_calendar_day_transitions
  (room_id, calendar_day, created_at, transition_type, state, price, price_quotes, minimum_stay_nights, cleaning_fee, currency, extra_attributes)
VALUES
  (?, ?, COALESCE(?, CURRENT_TIMESTAMP), ?, ?, ?, ?, ?, ?, ?, ?)
`

const listTransitionsSQL = `
SELECT
  room_id,
  calendar_day,
  created_at,
  transition_type,
  state,
  price,
  price_quotes,
  minimum_stay_nights,
  cleaning_fee,
  currency,
  extra_attributes
FROM room_calendar_day_transitions
WHERE room_id = ? AND calendar_day = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`

const insertScanRunSQL = `
INSERT INTO scan_runs (scanner_name, room_id, started_at, finished_at, is_success, comment)
VALUES (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  finished_at = VALUES(finished_at),
  is_success  = VALUES(is_success),
  comment     = VALUES(comment)
`
