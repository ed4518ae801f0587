package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// legacyLayouts are the offset-less ISO-8601 forms found in data files
// written before timestamps carried a zone. They are read in local time.
var legacyLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Timestamp is an ISO-8601 instant persisted as a JSON string.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// ParseTimestamp parses RFC 3339 or an offset-less ISO-8601 value.
func ParseTimestamp(value string) (Timestamp, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return Timestamp{Time: t}, nil
	}
	for _, layout := range legacyLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", value)
}

func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
