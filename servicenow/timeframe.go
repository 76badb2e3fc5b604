package servicenow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeframe is used when a tool call names none.
const DefaultTimeframe = "last 30 days"

var (
	lastDays  = regexp.MustCompile(`^(?:last|past) (\d+) days?$`)
	dateRange = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}) ?(?:to|-) ?(\d{4}-\d{2}-\d{2})$`)
)

var namedPeriods = map[string]string{
	"today":        "Today",
	"this week":    "ThisWeek",
	"last week":    "LastWeek",
	"this month":   "ThisMonth",
	"last month":   "LastMonth",
	"this quarter": "ThisQuarter",
	"last quarter": "LastQuarter",
	"this year":    "ThisYear",
	"last year":    "LastYear",
}

// ParseTimeframe converts a natural-language period into an encoded query
// on sys_created_on. Accepted forms:
//
//	last N days, past N days
//	today, this/last week, this/last month, this/last quarter, this/last year
//	YYYY-MM-DD to YYYY-MM-DD (or "-" as separator), both days inclusive
//
// Anything else returns ErrUnknownTimeframe.
func ParseTimeframe(timeframe string) (string, error) {
	tf := strings.Join(strings.Fields(strings.ToLower(timeframe)), " ")

	if period, ok := namedPeriods[tf]; ok {
		return fmt.Sprintf(
			"sys_created_on>=javascript:gs.beginningOf%[1]s()^sys_created_on<=javascript:gs.endOf%[1]s()",
			period,
		), nil
	}

	if m := lastDays.FindStringSubmatch(tf); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return "", fmt.Errorf("%w: %q: day count must be at least 1", ErrUnknownTimeframe, timeframe)
		}
		return fmt.Sprintf(
			"sys_created_on>=javascript:gs.daysAgoStart(%d)^sys_created_on<=javascript:gs.daysAgoEnd(0)",
			n,
		), nil
	}

	if m := dateRange.FindStringSubmatch(tf); m != nil {
		start, err := time.Parse(time.DateOnly, m[1])
		if err != nil {
			return "", fmt.Errorf("%w: %q: bad start date", ErrUnknownTimeframe, timeframe)
		}
		end, err := time.Parse(time.DateOnly, m[2])
		if err != nil {
			return "", fmt.Errorf("%w: %q: bad end date", ErrUnknownTimeframe, timeframe)
		}
		if end.Before(start) {
			return "", fmt.Errorf("%w: %q: end date is before start date", ErrUnknownTimeframe, timeframe)
		}
		return fmt.Sprintf(
			"sys_created_on>=javascript:gs.dateGenerate('%s','00:00:00')^sys_created_on<=javascript:gs.dateGenerate('%s','23:59:59')",
			m[1], m[2],
		), nil
	}

	return "", fmt.Errorf(
		"%w: %q (use 'last N days', 'this month', 'last quarter', 'this year' or 'YYYY-MM-DD to YYYY-MM-DD')",
		ErrUnknownTimeframe, timeframe,
	)
}

func checkTimeframe(v any) error {
	s, _ := v.(string)
	_, err := ParseTimeframe(s)
	return err
}
