package rules

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultMaxTrackedKeys bounds the number of (rule, source) windows kept.
	DefaultMaxTrackedKeys = 10000

	unknownSource = "unknown"
)

// thresholdTracker keeps, per (rule id, source ip) key, the timestamps of
// matching evaluations still inside the rule window. It is owned by one
// Engine and only touched from Evaluate.
type thresholdTracker struct {
	entries *lru.Cache[string, []time.Time]
}

func newThresholdTracker(maxKeys int) *thresholdTracker {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxTrackedKeys
	}
	// lru.New only fails for a non-positive size
	cache, _ := lru.New[string, []time.Time](maxKeys)
	return &thresholdTracker{entries: cache}
}

func trackerKey(ruleID, sourceIP string) string {
	if sourceIP == "" {
		sourceIP = unknownSource
	}
	return ruleID + ":" + sourceIP
}

// observe drops timestamps not newer than now-window, records now and
// returns the number of timestamps left in the window.
func (t *thresholdTracker) observe(key string, now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)

	previous, _ := t.entries.Get(key)
	kept := make([]time.Time, 0, len(previous)+1)
	for _, ts := range previous {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)

	t.entries.Add(key, kept)
	return len(kept)
}

func (t *thresholdTracker) keys() int {
	return t.entries.Len()
}
