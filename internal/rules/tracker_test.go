package rules

// count returns the number of timestamps recorded for key, without pruning.
func (t *thresholdTracker) count(key string) int {
	ts, _ := t.entries.Peek(key)
	return len(ts)
}
