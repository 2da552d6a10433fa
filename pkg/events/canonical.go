// Copyright 2025 Archon 72 Project
//
// Canonical JSON encoding shared by all payload types

package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// canonicalJSON encodes v as compact UTF-8 JSON. encoding/json sorts map keys
// lexicographically at every nesting level, which is the canonical-byte
// contract all signable content relies on. HTML escaping is disabled so the
// bytes are plain JSON.
func canonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// isoTimestamp renders an instant as ISO-8601 with an explicit UTC offset and
// microsecond precision, e.g. "2025-03-01T12:00:00.250000+00:00". Instants on
// a whole second carry no fractional part. Timestamps without timezone
// information are treated as UTC.
func isoTimestamp(t time.Time) string {
	t = t.UTC()
	s := t.Format("2006-01-02T15:04:05")
	if us := t.Nanosecond() / 1000; us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return s + "+00:00"
}

// TruncateToCanonical normalizes an instant to the precision and zone the
// canonical encoding can represent. The Writer applies it to every timestamp
// before hashing so a reloaded event reproduces the identical bytes.
func TruncateToCanonical(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
