package presign

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Token lifetime bounds, in minutes.
const (
	MinExpiresIn     = 5
	MaxExpiresIn     = 10080
	DefaultExpiresIn = 60
)

// ClampExpiresIn rounds v to whole minutes and clamps it to [MinExpiresIn, MaxExpiresIn].
// NaN yields DefaultExpiresIn.
func ClampExpiresIn(v float64) int {
	if math.IsNaN(v) {
		return DefaultExpiresIn
	}
	r := math.Round(v)
	switch {
	case r < MinExpiresIn:
		return MinExpiresIn
	case r > MaxExpiresIn:
		return MaxExpiresIn
	default:
		return int(r)
	}
}

// ParseExpiresIn converts a form or query value. Blank or non-numeric input yields
// DefaultExpiresIn; numeric input is clamped.
func ParseExpiresIn(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultExpiresIn
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) {
		return DefaultExpiresIn
	}
	return ClampExpiresIn(f)
}

// ExpiresInFromJSON converts a JSON body value. Numbers and numeric strings are clamped;
// anything else (absent, null, bool, object) yields DefaultExpiresIn.
func ExpiresInFromJSON(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return DefaultExpiresIn
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return ClampExpiresIn(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseExpiresIn(s)
	}
	return DefaultExpiresIn
}
