package entries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortNewestFirstFallsBackToJournalDate(t *testing.T) {
	list := []Entry{
		{ID: "a", JournalDate: "2025-01-01", Timestamp: "2025-01-01T10:00:00Z"},
		{ID: "b", JournalDate: "2025-03-01"},
		{ID: "c", JournalDate: "2025-01-01", Timestamp: "2025-02-01T08:30:00.123456"},
	}
	SortNewestFirst(list)
	assert.Equal(t, []string{"b", "c", "a"}, ids(list))
}

func TestNaiveTimestampsAreLocalTime(t *testing.T) {
	saved := time.Local
	time.Local = time.FixedZone("UTC+5", 5*60*60)
	t.Cleanup(func() { time.Local = saved })

	legacy := Entry{ID: "legacy", Timestamp: "2025-01-01T12:00:00"}
	fresh := Entry{ID: "fresh", Timestamp: "2025-01-01T08:00:00Z"}
	assert.True(t, legacy.SortTime().Equal(time.Date(2025, 1, 1, 7, 0, 0, 0, time.UTC)))

	list := []Entry{legacy, fresh}
	SortNewestFirst(list)
	assert.Equal(t, []string{"fresh", "legacy"}, ids(list))
}

func TestSortNewestFirstBreaksTiesOnUpdatedAt(t *testing.T) {
	list := []Entry{
		{ID: "a", Timestamp: "2025-01-01T10:00:00Z"},
		{ID: "b", Timestamp: "2025-01-01T10:00:00Z", UpdatedAt: "2025-01-02T10:00:00Z"},
	}
	SortNewestFirst(list)
	assert.Equal(t, []string{"b", "a"}, ids(list))
}

func TestMergeDeduplicatesAndTagsState(t *testing.T) {
	committed := []Entry{
		{ID: "srv-1", Timestamp: "2025-01-01T10:00:00Z"},
		{ID: "srv-2", Timestamp: "2025-01-03T10:00:00Z"},
	}
	pending := []Entry{
		{ID: "local-1", Timestamp: "2025-01-02T10:00:00Z", Pending: true},
		{ID: "srv-1", Timestamp: "2025-01-05T10:00:00Z", Pending: true},
	}

	records := Merge(committed, pending)
	require.Len(t, records, 3)
	assert.Equal(t, "srv-2", records[0].Entry.ID)
	assert.Equal(t, StateCommitted, records[0].State)
	assert.Equal(t, "local-1", records[1].Entry.ID)
	assert.Equal(t, StatePending, records[1].State)
	assert.True(t, records[1].Entry.Pending)
	assert.Equal(t, "srv-1", records[2].Entry.ID)
	assert.Equal(t, StateCommitted, records[2].State)
	assert.False(t, records[2].Entry.Pending)
}

func TestTechnologiesSetSemantics(t *testing.T) {
	techs := Technologies{" Go ", "go", "JavaScript", "Café"}.Normalize()
	assert.Equal(t, Technologies{"Go", "JavaScript", "Café"}, techs)

	// decomposed e + combining acute accent
	assert.True(t, techs.Contains("cafe\u0301"))
	assert.True(t, techs.Equal(Technologies{"javascript", "CAFÉ", "GO"}))
	assert.False(t, techs.Equal(Technologies{"Go", "JavaScript"}))
	assert.Equal(t, "Go, JavaScript, Café", techs.String())
}

func TestLocalIDs(t *testing.T) {
	id := NewLocalID()
	assert.True(t, IsLocalID(id))
	assert.False(t, IsLocalID("0b6c1c7e-2f7a-4c55-9d7c-bc5f8b1b2a10"))
}

func ids(list []Entry) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.ID
	}
	return out
}
