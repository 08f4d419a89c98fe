package boundedlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type entry struct {
	val int
	at  time.Time
}

func entryTime(e entry) time.Time { return e.at }

func TestLog_CapTrimsOldestFirst(t *testing.T) {
	now := time.Now()
	l := New(3, 0, entryTime)

	for i := 1; i <= 5; i++ {
		l.Append(now, entry{val: i, at: now})
	}

	got := l.Entries()
	assert.Len(t, got, 3)
	assert.Equal(t, 3, got[0].val)
	assert.Equal(t, 5, got[2].val)
}

func TestLog_RetentionDropsStaleEntries(t *testing.T) {
	now := time.Now()
	l := New(100, time.Hour, entryTime)

	l.Append(now, entry{val: 1, at: now.Add(-2 * time.Hour)})
	l.Append(now, entry{val: 2, at: now.Add(-30 * time.Minute)})
	l.Append(now, entry{val: 3, at: now})

	got := l.Entries()
	assert.Len(t, got, 2)
	assert.Equal(t, 2, got[0].val)
}

func TestLog_RestoreReappliesBounds(t *testing.T) {
	now := time.Now()
	l := New(2, time.Hour, entryTime)

	l.Restore(now, []entry{
		{val: 1, at: now.Add(-2 * time.Hour)}, // stale
		{val: 2, at: now.Add(-10 * time.Minute)},
		{val: 3, at: now.Add(-5 * time.Minute)},
		{val: 4, at: now},
	})

	got := l.Entries()
	assert.Len(t, got, 2)
	assert.Equal(t, 3, got[0].val)
	assert.Equal(t, 4, got[1].val)
}

func TestLog_EntriesReturnsCopy(t *testing.T) {
	now := time.Now()
	l := New(10, 0, entryTime)
	l.Append(now, entry{val: 1, at: now})

	got := l.Entries()
	got[0].val = 99

	assert.Equal(t, 1, l.Entries()[0].val)
	assert.Equal(t, 1, l.Len())
}
