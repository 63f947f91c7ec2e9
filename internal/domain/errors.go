package domain

import "errors"

var (
	// ErrNotFound: no persisted record for the requested key.
	ErrNotFound = errors.New("not found")

	// ErrUnrecognizedLabel: a day label matched none of the known patterns.
	// The classifier fails closed; the caller skips that cell and continues.
	ErrUnrecognizedLabel = errors.New("unrecognized day label")

	// ErrAmbiguousCurrency: the pricing lines assembled for one quote carried
	// more than one distinct currency symbol.
	ErrAmbiguousCurrency = errors.New("ambiguous currency in pricing panel")

	// ErrTransient: the browser surface was momentarily unreadable (pane
	// transition animation, stale view). Bounded retry, then degrade.
	ErrTransient = errors.New("transient adapter failure")

	// ErrMissingKey: a record arrived at reconciliation without its
	// (room_id, calendar_day) key. Fatal to that record only.
	ErrMissingKey = errors.New("day record missing room id or calendar day")
)
