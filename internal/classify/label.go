// Package classify turns the free-text surface of a listing's calendar (day
// cell labels, pricing panel lines) into the typed model. Pure functions, no
// side effects; unknown phrasing fails closed rather than guessing.
package classify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"stayscan/internal/domain"
)

var (
	reAvailableMinStay  = regexp.MustCompile(`(?i)available[.,]?\s+(\d+)[\s-]night(?:s)?\s+minimum`)
	reNoCheckoutMinStay = regexp.MustCompile(`(?i)no (?:eligible )?check-?out date\D*?(\d+)[\s-]night(?:s)?\s+minimum`)
)

// DayLabel classifies one day-cell label into a day state plus the minimum
// qualifying stay length. nights is 0 for states that carry none. Patterns are
// tried in a fixed priority order and the first match wins; a label matching
// none of them returns ErrUnrecognizedLabel.
func DayLabel(label string) (state domain.DayState, nights int, err error) {
	low := strings.ToLower(label)

	switch {
	// "unavailable" wins over everything, including labels that also contain
	// "available" as a substring of it.
	case strings.Contains(low, "unavailable"):
		return domain.StateUnavailable, 0, nil

	case reAvailableMinStay.MatchString(label):
		m := reAvailableMinStay.FindStringSubmatch(label)
		n, aerr := strconv.Atoi(m[1])
		if aerr != nil || n < 1 {
			return "", 0, fmt.Errorf("%w: %q", domain.ErrUnrecognizedLabel, label)
		}
		return domain.StateAvailable, n, nil

	// Generic "pick me" phrasing with no stay-length hint implies a
	// one-night minimum.
	case strings.Contains(low, "select as check-in date"):
		return domain.StateAvailable, 1, nil

	case reNoCheckoutMinStay.MatchString(label):
		m := reNoCheckoutMinStay.FindStringSubmatch(label)
		n, aerr := strconv.Atoi(m[1])
		if aerr != nil || n < 1 {
			return "", 0, fmt.Errorf("%w: %q", domain.ErrUnrecognizedLabel, label)
		}
		return domain.StateAvailableNoCheckout, n, nil

	case strings.Contains(low, "only available for checkout"):
		return domain.StateCheckoutOnly, 0, nil

	case strings.Contains(low, "in the past") || strings.Contains(low, "past date"):
		return domain.StateUnavailablePastDate, 0, nil
	}

	return "", 0, fmt.Errorf("%w: %q", domain.ErrUnrecognizedLabel, label)
}

const cellDateLayout = "2, Monday, January 2006"

// CellLabelDate extracts the calendar date from a day-cell label. Labels open
// with a date segment before the first period, e.g.
// "12, Friday, December 2025. Available. ..."; today's cell appends ", Today"
// to the segment.
func CellLabelDate(label string) (time.Time, error) {
	seg := label
	if i := strings.Index(seg, "."); i >= 0 {
		seg = seg[:i]
	}
	seg = strings.TrimSpace(seg)
	if i := strings.LastIndex(seg, ","); i >= 0 && strings.EqualFold(strings.TrimSpace(seg[i+1:]), "today") {
		seg = strings.TrimSpace(seg[:i])
	}
	t, err := time.Parse(cellDateLayout, seg)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: undated label %q", domain.ErrUnrecognizedLabel, label)
	}
	return domain.Day(t), nil
}
