package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DisplayLayout is the format timestamps are rendered in.
const DisplayLayout = "2006-01-02 15:04:05"

var parseLayouts = []string{
	time.RFC3339Nano,
	DisplayLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
}

// Timestamp is a UTC instant that accepts the server's mixed encodings.
type Timestamp struct {
	time.Time
}

// NewTimestamp normalizes t to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// ParseTimestamp accepts RFC3339, the display layout, a bare ISO local time,
// or epoch milliseconds.
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimestamp(t), nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return NewTimestamp(time.UnixMilli(ms)), nil
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Display renders the timestamp in DisplayLayout, or "" when zero.
func (t Timestamp) Display() string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DisplayLayout)
}

// MarshalJSON writes RFC3339 in UTC.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON reads a string in any accepted layout or a number of epoch
// milliseconds.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*t = Timestamp{}
			return nil
		}
		parsed, err := ParseTimestamp(s)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}

	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("unrecognized timestamp %s", data)
	}
	*t = NewTimestamp(time.UnixMilli(ms))
	return nil
}
