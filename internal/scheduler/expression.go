// Package scheduler turns newly created posts into one-time timers that
// invoke the delivery handler at the post's scheduled wall-clock time.
package scheduler

import (
	"fmt"
	"time"

	"postscheduler/internal/types"
)

// atLayout is the timestamp layout inside an at() expression: UTC, second
// precision, no zone designator.
const atLayout = "2006-01-02T15:04:05"

// PastScheduleError reports a schedule that does not lie at least one whole
// minute in the future. It is a validation failure: the post is rejected
// rather than delivered immediately.
type PastScheduleError struct {
	Target         time.Time
	DeficitMinutes int64
}

func (e *PastScheduleError) Error() string {
	return fmt.Sprintf("scheduled time %s is in the past (%d minutes)",
		e.Target.UTC().Format(time.RFC3339), -e.DeficitMinutes)
}

// Target interprets s as wall-clock time in loc. Out-of-range fields
// normalize the way time.Date does.
func Target(s types.Schedule, loc *time.Location) time.Time {
	return time.Date(s.Year, time.Month(s.Month), s.Day, s.Hour, s.Minute, s.Second, 0, loc)
}

// FireTime computes when a timer for s should fire relative to now. The
// difference is floored to whole minutes and added back to now, so the fire
// time keeps now's sub-minute offset and never lands after the target.
// The arithmetic is done on epoch milliseconds because time.Duration cannot
// span more than about 292 years.
func FireTime(s types.Schedule, now time.Time, loc *time.Location) (time.Time, error) {
	target := Target(s, loc)

	diffMs := target.UnixMilli() - now.UnixMilli()
	diffMinutes := floorDiv(diffMs, 60_000)

	if diffMinutes <= 0 {
		return time.Time{}, &PastScheduleError{Target: target, DeficitMinutes: -diffMinutes}
	}

	subMilli := time.Duration(now.Nanosecond() % int(time.Millisecond))
	fire := time.UnixMilli(now.UnixMilli() + diffMinutes*60_000).Add(subMilli)
	return fire.In(now.Location()), nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// BuildAtExpression returns the at(YYYY-MM-DDTHH:MM:SS) expression for s,
// rendered in UTC with fractional seconds truncated.
func BuildAtExpression(s types.Schedule, now time.Time, loc *time.Location) (string, error) {
	fire, err := FireTime(s, now, loc)
	if err != nil {
		return "", err
	}
	return FormatAt(fire), nil
}

// FormatAt renders t as an at() expression.
func FormatAt(t time.Time) string {
	return "at(" + t.UTC().Format(atLayout) + ")"
}

// ParseAt is the inverse of FormatAt.
func ParseAt(expr string) (time.Time, error) {
	if len(expr) < len("at()") || expr[:3] != "at(" || expr[len(expr)-1] != ')' {
		return time.Time{}, fmt.Errorf("scheduler: %q is not an at() expression", expr)
	}
	t, err := time.ParseInLocation(atLayout, expr[3:len(expr)-1], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("scheduler: parse %q: %w", expr, err)
	}
	return t, nil
}

// ScheduleFromTime breaks t, viewed in loc, into schedule fields.
func ScheduleFromTime(t time.Time, loc *time.Location) types.Schedule {
	t = t.In(loc)
	return types.Schedule{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}

// ScheduleName is the deterministic timer name for a post. Reprocessing the
// same post always targets the same timer.
func ScheduleName(postID string) string {
	return postID + types.ScheduleNameSuffix
}
