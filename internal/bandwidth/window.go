package bandwidth

import (
	"fmt"
	"time"
)

// Time windows accepted by the stats and series queries. The set matches the
// intervals the dashboard exposes; anything else is rejected outright rather
// than silently defaulted.
var windows = map[string]time.Duration{
	"1m":  1 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  1 * time.Hour,
	"3h":  3 * time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
	"24h": 24 * time.Hour,
	"3d":  72 * time.Hour,
	"1w":  168 * time.Hour,
}

func ParseWindow(key string) (time.Duration, error) {
	d, ok := windows[key]
	if !ok {
		return 0, fmt.Errorf("unknown time window %q", key)
	}
	return d, nil
}

// WindowKeys returns the accepted window keys, for error messages and docs.
func WindowKeys() []string {
	return []string{"1m", "5m", "15m", "30m", "1h", "3h", "6h", "12h", "24h", "3d", "1w"}
}
