package entries

import (
	"sort"
	"time"
)

// Timestamps without an offset are wall-clock time on the machine that reads
// them. A date alone is midnight UTC.
var naiveTimestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseInstant(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, true
	}
	for _, layout := range naiveTimestampLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SortTime is the instant used to order entries: the creation timestamp, or
// the journal date when the timestamp is missing or unparseable.
func (e Entry) SortTime() time.Time {
	if t, ok := parseInstant(e.Timestamp); ok {
		return t
	}
	if t, err := time.Parse(DateLayout, e.JournalDate); err == nil {
		return t
	}
	return time.Time{}
}

func newer(a, b Entry) bool {
	ta, tb := a.SortTime(), b.SortTime()
	if !ta.Equal(tb) {
		return ta.After(tb)
	}
	ua, _ := parseInstant(a.UpdatedAt)
	ub, _ := parseInstant(b.UpdatedAt)
	if !ua.Equal(ub) {
		return ua.After(ub)
	}
	return a.ID > b.ID
}

// SortNewestFirst orders entries in place, newest first.
func SortNewestFirst(list []Entry) {
	sort.SliceStable(list, func(i, j int) bool {
		return newer(list[i], list[j])
	})
}

// Merge builds the display list from committed and pending entries. Rows are
// deduplicated by id with committed entries winning, then sorted newest first.
func Merge(committed, pending []Entry) []Record {
	seen := make(map[string]struct{}, len(committed)+len(pending))
	records := make([]Record, 0, len(committed)+len(pending))
	for _, e := range committed {
		if _, ok := seen[e.ID]; ok && e.ID != "" {
			continue
		}
		seen[e.ID] = struct{}{}
		records = append(records, CommittedRecord(e))
	}
	for _, e := range pending {
		if _, ok := seen[e.ID]; ok && e.ID != "" {
			continue
		}
		seen[e.ID] = struct{}{}
		records = append(records, PendingRecord(e))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return newer(records[i].Entry, records[j].Entry)
	})
	return records
}
