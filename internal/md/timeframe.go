package md

import (
	"fmt"
	"time"
)

type Timeframe struct {
	Name     string
	Duration time.Duration
}

var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

func ParseTimeframe(name string) (Timeframe, error) {
	d, ok := timeframes[name]
	if !ok {
		return Timeframe{}, fmt.Errorf("unsupported timeframe: %s", name)
	}
	return Timeframe{Name: name, Duration: d}, nil
}

// LookbackStart is the start time that yields roughly bars intervals of history.
func LookbackStart(now time.Time, timeframe Timeframe, bars int) time.Time {
	return now.UTC().Add(-time.Duration(bars) * timeframe.Duration)
}
