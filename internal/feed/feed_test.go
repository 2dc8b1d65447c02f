package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"log-sentinel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_AppendAndSnapshot(t *testing.T) {
	r := NewRing[int](3)

	assert.Equal(t, uint64(0), r.Head())
	assert.Empty(t, r.Snapshot())

	for i := 1; i <= 2; i++ {
		assert.Equal(t, uint64(i), r.Append(i))
	}
	assert.Equal(t, []int{1, 2}, r.Snapshot())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 3, r.Cap())
}

func TestRing_EvictsOldestFirst(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 7; i++ {
		r.Append(i)
		assert.LessOrEqual(t, r.Len(), 3)
	}

	assert.Equal(t, []int{5, 6, 7}, r.Snapshot())
	assert.Equal(t, uint64(7), r.Head())
}

func TestRing_Since(t *testing.T) {
	r := NewRing[int](4)
	for i := 1; i <= 6; i++ {
		r.Append(i * 10)
	}
	// retained: seq 3..6 -> 30..60

	items, next, missed := r.Since(4)
	assert.Equal(t, []int{50, 60}, items)
	assert.Equal(t, uint64(6), next)
	assert.Zero(t, missed)

	items, next, missed = r.Since(0)
	assert.Equal(t, []int{30, 40, 50, 60}, items)
	assert.Equal(t, uint64(6), next)
	assert.Equal(t, uint64(2), missed)

	items, next, missed = r.Since(6)
	assert.Empty(t, items)
	assert.Equal(t, uint64(6), next)
	assert.Zero(t, missed)
}

func TestRing_CapacityFloor(t *testing.T) {
	r := NewRing[string](0)
	r.Append("a")
	r.Append("b")
	assert.Equal(t, []string{"b"}, r.Snapshot())
}

func TestCursor_NoReplayOfHistory(t *testing.T) {
	r := NewRing[int](10)
	r.Append(1)
	r.Append(2)

	c := NewCursor(r)
	r.Append(3)

	items, missed, err := c.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{3}, items)
	assert.Zero(t, missed)
	assert.Equal(t, uint64(3), c.Position())
}

func TestCursor_BlocksUntilAppend(t *testing.T) {
	r := NewRing[int](10)
	c := NewCursor(r)

	got := make(chan []int, 1)
	go func() {
		items, _, err := c.Next(context.Background())
		if err == nil {
			got <- items
		}
	}()

	select {
	case <-got:
		t.Fatal("Next returned before any append")
	case <-time.After(50 * time.Millisecond):
	}

	r.Append(42)

	select {
	case items := <-got:
		assert.Equal(t, []int{42}, items)
	case <-time.After(time.Second):
		t.Fatal("Next did not wake up after append")
	}
}

func TestCursor_ContextCancel(t *testing.T) {
	r := NewRing[int](10)
	c := NewCursor(r)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := c.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCursor_SlowSubscriberDropsBehind(t *testing.T) {
	r := NewRing[int](3)
	c := NewCursor(r)

	for i := 1; i <= 10; i++ {
		r.Append(i)
	}

	items, missed, err := c.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{8, 9, 10}, items)
	assert.Equal(t, uint64(7), missed)
}

func TestCursor_IndependentSubscribers(t *testing.T) {
	r := NewRing[int](100)
	fast := NewCursor(r)
	slow := NewCursor(r)

	r.Append(1)
	r.Append(2)

	items, _, err := fast.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, items)

	r.Append(3)

	items, _, err = fast.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{3}, items)

	items, _, err = slow.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, items)
}

func TestCursor_ConcurrentWriterNoDuplicatesOrGaps(t *testing.T) {
	const total = 2000
	r := NewRing[int](total)

	var wg sync.WaitGroup
	results := make([][]int, 4)
	for i := range results {
		c := NewCursor(r)
		wg.Add(1)
		go func(i int, c *Cursor[int]) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for len(results[i]) < total {
				items, _, err := c.Next(ctx)
				if err != nil {
					return
				}
				results[i] = append(results[i], items...)
			}
		}(i, c)
	}

	for i := 1; i <= total; i++ {
		r.Append(i)
	}
	wg.Wait()

	for _, got := range results {
		require.Len(t, got, total)
		for j, v := range got {
			require.Equal(t, j+1, v)
		}
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	attached map[string]int
	missed   map[string]uint64
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{attached: map[string]int{}, missed: map[string]uint64{}}
}

func (o *recordingObserver) SubscriberAttached(view string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attached[view]++
}

func (o *recordingObserver) SubscriberDetached(view string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attached[view]--
}

func (o *recordingObserver) ItemsMissed(view string, n uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.missed[view] += n
}

func TestFeed_IndependentViews(t *testing.T) {
	obs := newRecordingObserver()
	f := New(2, 1, obs)

	logs := f.SubscribeLogs()
	alerts := f.SubscribeAlerts()
	assert.Equal(t, 1, obs.attached[ViewLogs])
	assert.Equal(t, 1, obs.attached[ViewAlerts])

	for i := 1; i <= 3; i++ {
		f.PublishLog(model.LogRecord{ID: int64(i)})
	}
	f.PublishAlert(model.Alert{ID: 1})
	f.PublishAlert(model.Alert{ID: 2})

	assert.Equal(t, 2, f.Logs().Len())
	assert.Equal(t, 1, f.Alerts().Len())

	gotLogs, missed, err := logs.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), missed)
	require.Len(t, gotLogs, 2)
	assert.Equal(t, int64(2), gotLogs[0].ID)
	assert.Equal(t, int64(3), gotLogs[1].ID)

	gotAlerts, missed, err := alerts.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), missed)
	require.Len(t, gotAlerts, 1)
	assert.Equal(t, int64(2), gotAlerts[0].ID)

	assert.Equal(t, uint64(1), obs.missed[ViewLogs])
	assert.Equal(t, uint64(1), obs.missed[ViewAlerts])

	logs.Close()
	logs.Close()
	alerts.Close()
	assert.Equal(t, 0, obs.attached[ViewLogs])
	assert.Equal(t, 0, obs.attached[ViewAlerts])
}

func TestFeed_DefaultCapacities(t *testing.T) {
	f := New(0, -1, nil)
	assert.Equal(t, DefaultLogCapacity, f.Logs().Cap())
	assert.Equal(t, DefaultAlertCapacity, f.Alerts().Cap())

	c := f.SubscribeLogs()
	c.Close()
}
