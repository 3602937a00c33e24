package entries

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalIDPrefix marks identifiers assigned on the client before the store confirms an entry.
const LocalIDPrefix = "local-"

// DateLayout is the calendar date format used by journalDate.
const DateLayout = "2006-01-02"

// Entry is a single learning journal reflection.
type Entry struct {
	ID              string       `json:"id,omitempty"`
	WeekOfJournal   int          `json:"weekOfJournal" validate:"required,gte=1"`
	JournalName     string       `json:"journalName" validate:"notblank"`
	JournalDate     string       `json:"journalDate" validate:"notblank,datetime=2006-01-02"`
	TaskName        string       `json:"taskName" validate:"notblank"`
	TaskDescription string       `json:"taskDescription" validate:"notblank,minwords=10"`
	Technologies    Technologies `json:"technologies" validate:"min=1,dive,notblank"`
	Timestamp       string       `json:"timestamp,omitempty"`
	UpdatedAt       string       `json:"updatedAt,omitempty"`
	Pending         bool         `json:"pending,omitempty"`
}

// UnmarshalJSON accepts ids written as JSON numbers by older tools and keeps
// them as strings.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	aux := struct {
		*plain
		ID json.RawMessage `json:"id,omitempty"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.ID == nil {
		return nil
	}
	id, err := decodeID(aux.ID)
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
		return "", nil
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("entries: id must be a string or a number, got %s", raw)
	}
	return n.String(), nil
}

// Patch carries a partial update. Nil fields are left untouched.
type Patch struct {
	WeekOfJournal   *int         `json:"weekOfJournal,omitempty"`
	JournalName     *string      `json:"journalName,omitempty"`
	JournalDate     *string      `json:"journalDate,omitempty"`
	TaskName        *string      `json:"taskName,omitempty"`
	TaskDescription *string      `json:"taskDescription,omitempty"`
	Technologies    Technologies `json:"technologies,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.WeekOfJournal == nil && p.JournalName == nil && p.JournalDate == nil &&
		p.TaskName == nil && p.TaskDescription == nil && p.Technologies == nil
}

// Apply returns a copy of e with the patch fields applied. Identity and
// timestamps are not touched.
func (p Patch) Apply(e Entry) Entry {
	if p.WeekOfJournal != nil {
		e.WeekOfJournal = *p.WeekOfJournal
	}
	if p.JournalName != nil {
		e.JournalName = *p.JournalName
	}
	if p.JournalDate != nil {
		e.JournalDate = *p.JournalDate
	}
	if p.TaskName != nil {
		e.TaskName = *p.TaskName
	}
	if p.TaskDescription != nil {
		e.TaskDescription = *p.TaskDescription
	}
	if p.Technologies != nil {
		e.Technologies = p.Technologies.Normalize()
	}
	return e
}

// NewLocalID allocates a client-side identifier for a pending entry.
func NewLocalID() string {
	return LocalIDPrefix + uuid.NewString()
}

// IsLocalID reports whether id was allocated by NewLocalID.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// ForCreate strips the fields the store owns so the entry can be sent as a
// create payload.
func (e Entry) ForCreate() Entry {
	e.ID = ""
	e.Timestamp = ""
	e.UpdatedAt = ""
	e.Pending = false
	return e
}

// Stamp formats t the way entry timestamps are stored.
func Stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// State tags a rendered entry as waiting for the store or confirmed by it.
type State int

const (
	// StateCommitted entries carry a store-assigned id.
	StateCommitted State = iota
	// StatePending entries live in the local queue only.
	StatePending
)

func (s State) String() string {
	switch s {
	case StateCommitted:
		return "committed"
	case StatePending:
		return "pending"
	default:
		return "unknown"
	}
}

// Record is an entry together with its sync state.
type Record struct {
	State State `json:"state"`
	Entry Entry `json:"entry"`
}

// CommittedRecord wraps an entry confirmed by the store.
func CommittedRecord(e Entry) Record {
	e.Pending = false
	return Record{State: StateCommitted, Entry: e}
}

// PendingRecord wraps an entry still held in the local queue.
func PendingRecord(e Entry) Record {
	e.Pending = true
	return Record{State: StatePending, Entry: e}
}
