package core

import (
	"context"
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// DayRange turns inclusive calendar days into the half-open instant range
// [from 00:00, day after to 00:00) in loc. A missing bound takes the value
// of the other one; both missing means today.
func DayRange(fromDay, toDay string, loc *time.Location, now time.Time) (time.Time, time.Time, error) {
	if fromDay == "" && toDay == "" {
		fromDay = now.In(loc).Format(dayLayout)
	}
	if fromDay == "" {
		fromDay = toDay
	}
	if toDay == "" {
		toDay = fromDay
	}

	from, err := time.ParseInLocation(dayLayout, fromDay, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from %q", ErrInvalidRange, fromDay)
	}
	to, err := time.ParseInLocation(dayLayout, toDay, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to %q", ErrInvalidRange, toDay)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s is after %s", ErrInvalidRange, fromDay, toDay)
	}

	return from, to.AddDate(0, 0, 1), nil
}

// AccessLog returns the lookups recorded on the given calendar days in the
// service timezone, newest first.
func (s *Service) AccessLog(ctx context.Context, fromDay, toDay string) ([]AccessLogEntry, error) {
	from, to, err := DayRange(fromDay, toDay, s.loc, s.now())
	if err != nil {
		return nil, err
	}

	entries, err := s.log.Query(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("query access log: %w", err)
	}
	return entries, nil
}
