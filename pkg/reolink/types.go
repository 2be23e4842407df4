package reolink

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-openapi/swag"
	"github.com/pkg/errors"
)

// Channel is a zero-based camera channel number
type Channel = int

// BoolNumber is a boolean sent by the device as 0 or 1
type BoolNumber bool

func (b BoolNumber) MarshalJSON() ([]byte, error) {
	if b {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

func (b *BoolNumber) UnmarshalJSON(data []byte) error {
	var n uint8
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrap(err, "expecting 0 or 1")
	}

	*b = n > 0
	return nil
}

// StringUint64 is a number the device sends as a JSON string, eg. file sizes
type StringUint64 uint64

func (n StringUint64) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(n), 10))
}

func (n *StringUint64) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "expecting a numeric string")
	}

	v, err := swag.ConvertUint64(s)
	if err != nil {
		return errors.Wrapf(err, "parsing %q", s)
	}

	*n = StringUint64(v)
	return nil
}

// Time is the device's broken-down local time
type Time struct {
	Year uint16 `json:"year"`
	Mon  uint8  `json:"mon"`
	Day  uint8  `json:"day"`
	Hour uint8  `json:"hour"`
	Min  uint8  `json:"min"`
	Sec  uint8  `json:"sec"`
}

// TimeOf converts t, as seen in its own location, to device time
func TimeOf(t time.Time) Time {
	return Time{
		Year: uint16(t.Year()),
		Mon:  uint8(t.Month()),
		Day:  uint8(t.Day()),
		Hour: uint8(t.Hour()),
		Min:  uint8(t.Minute()),
		Sec:  uint8(t.Second()),
	}
}

// In returns the instant t designates in loc
func (t Time) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(int(t.Year), time.Month(t.Mon), int(t.Day), int(t.Hour), int(t.Min), int(t.Sec), 0, loc)
}

// SameDay reports whether both times fall on the same calendar day
func (t Time) SameDay(o Time) bool {
	return t.Year == o.Year && t.Mon == o.Mon && t.Day == o.Day
}

// ScheduleTable has one digit per day (or hour, for recording schedules), '1'
// meaning recordings exist or recording is enabled
type ScheduleTable string

// Days returns the 1-based indices of the set digits
func (s ScheduleTable) Days() []int {
	var days []int
	for i, c := range s {
		if c != '0' {
			days = append(days, i+1)
		}
	}
	return days
}

// SimpleResult is the response of endpoints that only report an execution status
type SimpleResult struct {
	RspCode int `json:"rspCode"`
}

// Requests without parameters are sent with a null param
type noParams struct{}

func (noParams) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}
