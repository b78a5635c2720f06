package lotus

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Lotus serial dates count days from 1899-12-31 and, like the spreadsheets
// that copied them, include a 29 February 1900 that never happened.

var (
	// ErrDateNegative is a serial below zero.
	ErrDateNegative = errors.New("serial date < 0")

	// ErrDateLeapDay is serial 60, the nonexistent 1900-02-29.
	ErrDateLeapDay = errors.New("serial date is 1900-02-29")

	// ErrDateTooLarge is a serial in year 10000 or later.
	ErrDateTooLarge = errors.New("serial date too large")
)

const (
	fakeLeapDay     = 60
	serialTooLarge  = 2958466
	millisecondsDay = 86400000.0
)

var (
	epoch1900       = time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)
	epoch1900Minus1 = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
)

// SerialAsTime converts a Lotus date/time serial to a UTC time. The fraction
// is the time of day with millisecond resolution; 0 <= serial < 1 is a bare
// time on 1899-12-31.
func SerialAsTime(serial float64) (time.Time, error) {
	if serial < 0 || math.IsNaN(serial) {
		return time.Time{}, fmt.Errorf("%w: %v", ErrDateNegative, serial)
	}
	days := int(serial)
	if days >= serialTooLarge {
		return time.Time{}, fmt.Errorf("%w: %v", ErrDateTooLarge, serial)
	}
	if days == fakeLeapDay {
		return time.Time{}, ErrDateLeapDay
	}
	epoch := epoch1900
	if days > fakeLeapDay {
		// every later serial is one day ahead of the calendar
		epoch = epoch1900Minus1
	}
	ms := int64(math.Round((serial - float64(days)) * millisecondsDay))
	return epoch.AddDate(0, 0, days).Add(time.Duration(ms) * time.Millisecond), nil
}

// TimeAsSerial is the inverse of SerialAsTime for times from 1899-12-31 on.
func TimeAsSerial(t time.Time) (float64, error) {
	t = t.UTC()
	if t.Before(epoch1900) {
		return 0, fmt.Errorf("%w: %v", ErrDateNegative, t)
	}
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	days := int((midnight.Unix() - epoch1900.Unix()) / 86400)
	if days >= fakeLeapDay {
		days++
	}
	if days >= serialTooLarge {
		return 0, fmt.Errorf("%w: %v", ErrDateTooLarge, t)
	}
	frac := float64(t.Sub(midnight).Milliseconds()) / millisecondsDay
	return float64(days) + frac, nil
}
