package aws

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// descriptorSchedules maps cron descriptor shorthands to their
// five-field equivalents.
var descriptorSchedules = map[string]string{
	"@hourly":   "0 * * * *",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@weekly":   "0 0 * * 0",
	"@monthly":  "0 0 1 * *",
	"@yearly":   "0 0 1 1 *",
	"@annually": "0 0 1 1 *",
}

// translateSchedule converts a schedule expression into the form
// EventBridge accepts. rate(...) and cron(...) pass through untouched.
// Five-field cron gains a year field and exactly one of day-of-month
// and day-of-week becomes "?". Numeric days of week shift from the
// 0-6 convention to EventBridge's 1-7. "@every" durations become
// rate(...) expressions.
func translateSchedule(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "rate(") || strings.HasPrefix(expr, "cron(") {
		return expr, nil
	}
	if d, ok := strings.CutPrefix(expr, "@every "); ok {
		return everyToRate(d)
	}
	if repl, ok := descriptorSchedules[expr]; ok {
		expr = repl
	}

	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return "", fmt.Errorf("unsupported schedule expression %q", expr)
	}
	dom, dow := fields[2], fields[4]
	switch {
	case dow == "*":
		dow = "?"
	case dom == "*":
		dom = "?"
	default:
		return "", fmt.Errorf("schedule %q restricts both day-of-month and day-of-week; EventBridge requires one to be unrestricted", expr)
	}
	fields[2] = dom
	fields[4] = shiftDayOfWeek(dow)
	return fmt.Sprintf("cron(%s *)", strings.Join(fields, " ")), nil
}

// shiftDayOfWeek rewrites numeric day-of-week values from 0-6
// (0 = Sunday) to EventBridge's 1-7 (1 = Sunday). Named days and
// step counts after "/" are left alone.
func shiftDayOfWeek(field string) string {
	if field == "?" || field == "*" {
		return field
	}
	parts := strings.Split(field, ",")
	for i, part := range parts {
		rangePart, step, hasStep := strings.Cut(part, "/")
		bounds := strings.Split(rangePart, "-")
		for j, b := range bounds {
			if n, err := strconv.Atoi(b); err == nil {
				bounds[j] = strconv.Itoa(n%7 + 1)
			}
		}
		rangePart = strings.Join(bounds, "-")
		if hasStep {
			parts[i] = rangePart + "/" + step
		} else {
			parts[i] = rangePart
		}
	}
	return strings.Join(parts, ",")
}

func everyToRate(s string) (string, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid @every duration %q: %w", s, err)
	}
	day := 24 * time.Hour
	switch {
	case d >= day && d%day == 0:
		return rateExpr(int(d/day), "day"), nil
	case d >= time.Hour && d%time.Hour == 0:
		return rateExpr(int(d/time.Hour), "hour"), nil
	case d >= time.Minute && d%time.Minute == 0:
		return rateExpr(int(d/time.Minute), "minute"), nil
	default:
		return "", fmt.Errorf("@every duration %q is finer than one minute", s)
	}
}

func rateExpr(n int, unit string) string {
	if n != 1 {
		unit += "s"
	}
	return fmt.Sprintf("rate(%d %s)", n, unit)
}
