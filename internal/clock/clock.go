// Package clock formats server epochs in the platform's reference timezone
// for cooldown and result timestamps.
package clock

import "time"

// DefaultTimezone is the platform's reference timezone.
const DefaultTimezone = "Asia/Tokyo"

const displayLayout = "2006-01-02 15:04:05 MST"

// Formatter converts server epoch seconds into display strings in a fixed
// location.
type Formatter struct {
	loc *time.Location
}

// NewFormatter loads the named timezone; an empty name selects the default.
func NewFormatter(name string) (*Formatter, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	return &Formatter{loc: loc}, nil
}

// MustFormatter returns the default-timezone formatter, falling back to UTC
// when tzdata is unavailable.
func MustFormatter() *Formatter {
	f, err := NewFormatter(DefaultTimezone)
	if err != nil {
		return &Formatter{loc: time.UTC}
	}
	return f
}

// FromEpoch renders epoch seconds in the reference timezone.
func (f *Formatter) FromEpoch(epoch int64) string {
	return time.Unix(epoch, 0).In(f.loc).Format(displayLayout)
}
