package classify

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// LineCategory tags one pricing-panel line.
type LineCategory string

const (
	LineEarlyBirdDiscount  LineCategory = "EARLY_BIRD_DISCOUNT"
	LineLastMinuteDiscount LineCategory = "LAST_MINUTE_DISCOUNT"
	LineStayTotal          LineCategory = "STAY_TOTAL"
	LineNightlyRate        LineCategory = "NIGHTLY_RATE"
	LineWeeklyDiscount     LineCategory = "WEEKLY_DISCOUNT"
	LineMonthlyDiscount    LineCategory = "MONTHLY_DISCOUNT"
	LineCleaningFee        LineCategory = "CLEANING_FEE"
	LineTaxes              LineCategory = "TAXES"
	LineOther              LineCategory = "OTHER"
)

// ClassifiedLine is the structured reading of one pricing-panel line. Amount is
// nil when the line carried no extractable figure; Raw always preserves the
// original text so unclassified lines can surface in extra_attributes.
type ClassifiedLine struct {
	Category LineCategory
	Amount   *decimal.Decimal
	Currency string
	Raw      string
}

// reMoney captures a currency symbol followed by a numeric amount, e.g.
// "€1,234.50" or "$ 85".
var reMoney = regexp.MustCompile(`([€$£¥₹])\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)

var reStayNights = regexp.MustCompile(`(?i)(?:for|x)\s*\d+\s*nights?`)

type lineRule struct {
	category LineCategory
	match    func(low string) bool
	// lastAmount: totals list the unit price first and the stay total last
	// ("€85 x 3 nights: €255"), so those rules read the final figure.
	lastAmount bool
}

// Fixed ordered rule set; first match wins.
var lineRules = []lineRule{
	{LineEarlyBirdDiscount, contains("early bird"), false},
	{LineLastMinuteDiscount, contains("last minute"), false},
	{LineStayTotal, reStayNights.MatchString, true},
	{LineNightlyRate, func(s string) bool {
		return strings.Contains(s, "per night") || strings.Contains(s, "nightly") || strings.Contains(s, "/night")
	}, false},
	{LineWeeklyDiscount, contains("weekly discount"), false},
	{LineMonthlyDiscount, contains("monthly discount"), false},
	{LineCleaningFee, contains("cleaning fee"), false},
	{LineTaxes, contains("tax"), false},
}

func contains(kw string) func(string) bool {
	return func(s string) bool { return strings.Contains(s, kw) }
}

// PriceLine classifies one pricing-panel line. numNights is the length of the
// stay being priced; per-stay accommodation totals are normalized to a nightly
// figure by dividing by it. A line matching no rule, or matching one but
// carrying no extractable amount, comes back as LineOther with the raw text
// kept verbatim. Deterministic: the same line always yields the same result.
func PriceLine(line string, numNights int) ClassifiedLine {
	low := strings.ToLower(line)
	for _, rule := range lineRules {
		if !rule.match(low) {
			continue
		}
		currency, amount, ok := extractMoney(line, rule.lastAmount)
		if !ok {
			break
		}
		if rule.category == LineStayTotal && numNights > 0 {
			amount = amount.Div(decimal.NewFromInt(int64(numNights)))
		}
		return ClassifiedLine{Category: rule.category, Amount: &amount, Currency: currency, Raw: line}
	}
	return ClassifiedLine{Category: LineOther, Raw: line}
}

func extractMoney(line string, last bool) (currency string, amount decimal.Decimal, ok bool) {
	ms := reMoney.FindAllStringSubmatch(line, -1)
	if len(ms) == 0 {
		return "", decimal.Decimal{}, false
	}
	m := ms[0]
	if last {
		m = ms[len(ms)-1]
	}
	amt, err := decimal.NewFromString(strings.ReplaceAll(m[2], ",", ""))
	if err != nil {
		return "", decimal.Decimal{}, false
	}
	// Discounts render negative; the category already says what the figure
	// means, so store magnitudes.
	return m[1], amt.Abs(), true
}
