package codec

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// naiveLayout is used for timezone-naive instants — the same layout the
// original project's arq-based serializer round-trips Python's naive
// datetime through (no trailing Z or offset).
const naiveLayout = "2006-01-02T15:04:05.999999999"

// Timestamp preserves the timezone-naive vs timezone-aware distinction
// across encode/decode, matching the original serializer's behavior: two
// instants that print the same wall-clock time but differ in zone-awareness
// are NOT equal after a round trip.
type Timestamp struct {
	Time    time.Time
	HasZone bool
}

// NewTimestamp wraps a time.Time as zone-aware.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t, HasZone: true}
}

// NewNaiveTimestamp wraps a time.Time as zone-naive (the zone is discarded
// on encode; only wall-clock fields round-trip).
func NewNaiveTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t, HasZone: false}
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.HasZone {
		return json.Marshal(ts.Time.Format(time.RFC3339Nano))
	}
	return json.Marshal(ts.Time.Format(naiveLayout))
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if hasZoneSuffix(s) {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("timestamp: parse zoned %q: %w", s, err)
		}
		ts.Time = t
		ts.HasZone = true
		return nil
	}
	t, err := time.Parse(naiveLayout, s)
	if err != nil {
		return fmt.Errorf("timestamp: parse naive %q: %w", s, err)
	}
	ts.Time = t
	ts.HasZone = false
	return nil
}

// hasZoneSuffix reports whether an RFC3339-ish string carries a UTC "Z" or
// a "+HH:MM"/"-HH:MM" offset after the time component.
func hasZoneSuffix(s string) bool {
	if strings.HasSuffix(s, "Z") {
		return true
	}
	tIdx := strings.IndexByte(s, 'T')
	if tIdx < 0 {
		return false
	}
	rest := s[tIdx+1:]
	return strings.ContainsAny(rest, "+") || strings.Count(rest, "-") > 0
}
