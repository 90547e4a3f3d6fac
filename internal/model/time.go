package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FlexTime is a timestamp that accepts both epoch milliseconds (client input)
// and RFC3339 strings on unmarshal, and always marshals as RFC3339 UTC.
type FlexTime struct {
	time.Time
}

// NewFlexTime wraps t as a FlexTime.
func NewFlexTime(t time.Time) FlexTime {
	return FlexTime{Time: t}
}

// UnmarshalJSON accepts either a JSON number (milliseconds since epoch)
// or a JSON string in RFC3339 format.
func (t *FlexTime) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		t.Time = time.Time{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		parsed, err := time.Parse(time.RFC3339Nano, strings.Trim(s, `"`))
		if err != nil {
			return fmt.Errorf("parsing timestamp %s: %w", s, err)
		}
		t.Time = parsed.UTC()
		return nil
	}
	millis, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing epoch millis %s: %w", s, err)
	}
	t.Time = time.UnixMilli(millis).UTC()
	return nil
}

// MarshalJSON emits RFC3339 UTC.
func (t FlexTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339Nano) + `"`), nil
}
