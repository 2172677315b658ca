package chatsync

import (
	"sort"

	"github.com/noah-isme/lostfound-go-api/internal/dto"
)

// State is the lifecycle tag of a timeline entry.
type State string

const (
	// StatePending marks a locally originated message awaiting persistence.
	StatePending State = "pending"
	// StateConfirmed marks a message carrying its store id and server timestamp.
	StateConfirmed State = "confirmed"
	// StateFailed marks a local message whose persistence failed; it can be retried.
	StateFailed State = "failed"
	// StateRejected marks a local message the store refused outright; it is never retried.
	StateRejected State = "rejected"
)

// Entry is one message in a thread timeline. Pending and failed entries are keyed by
// LocalID; confirmed entries by Message.ID.
type Entry struct {
	State   State                   `json:"state"`
	LocalID string                  `json:"local_id,omitempty"`
	Message dto.ChatMessageResponse `json:"message"`
	Error   string                  `json:"error,omitempty"`
}

// Key returns the identifier that is canonical for the entry's state.
func (e Entry) Key() string {
	if e.State == StateConfirmed {
		return e.Message.ID
	}
	return e.LocalID
}

func (e Entry) before(other Entry) bool {
	if !e.Message.CreatedAt.Equal(other.Message.CreatedAt) {
		return e.Message.CreatedAt.Before(other.Message.CreatedAt)
	}
	return e.Key() < other.Key()
}

func (e Entry) equal(other Entry) bool {
	return e.State == other.State &&
		e.LocalID == other.LocalID &&
		e.Error == other.Error &&
		e.Message.ID == other.Message.ID &&
		e.Message.ThreadID == other.Message.ThreadID &&
		e.Message.SenderID == other.Message.SenderID &&
		e.Message.Content == other.Message.Content &&
		e.Message.ImageURL == other.Message.ImageURL &&
		e.Message.CreatedAt.Equal(other.Message.CreatedAt)
}

// Timeline is an ordered, deduplicated sequence of entries sorted by (created_at, key).
// It is not safe for concurrent use.
type Timeline struct {
	entries []Entry
}

// Len returns the number of entries.
func (t *Timeline) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the timeline in order.
func (t *Timeline) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Find returns the entry stored under key.
func (t *Timeline) Find(key string) (Entry, bool) {
	if idx := t.indexOf(key); idx >= 0 {
		return t.entries[idx], true
	}
	return Entry{}, false
}

// Upsert replaces the entry sharing e's key or inserts e at its sorted position. It
// reports whether the timeline changed, so replaying the same entry is a no-op.
func (t *Timeline) Upsert(e Entry) bool {
	if idx := t.indexOf(e.Key()); idx >= 0 {
		if t.entries[idx].equal(e) {
			return false
		}
		t.removeAt(idx)
	}
	t.insert(e)
	return true
}

// Merge applies a persisted message using the replace-or-insert rule. A local id already
// attached to the confirmed entry is kept, otherwise the one echoed on the message is used.
func (t *Timeline) Merge(message dto.ChatMessageResponse) bool {
	entry := Entry{State: StateConfirmed, LocalID: message.LocalID, Message: message}
	if existing, ok := t.Find(message.ID); ok && existing.LocalID != "" {
		entry.LocalID = existing.LocalID
	}
	return t.Upsert(entry)
}

// Remove deletes the entry stored under key.
func (t *Timeline) Remove(key string) (Entry, bool) {
	idx := t.indexOf(key)
	if idx < 0 {
		return Entry{}, false
	}
	removed := t.entries[idx]
	t.removeAt(idx)
	return removed, true
}

func (t *Timeline) indexOf(key string) int {
	if key == "" {
		return -1
	}
	for i := range t.entries {
		if t.entries[i].Key() == key {
			return i
		}
	}
	return -1
}

func (t *Timeline) insert(e Entry) {
	idx := sort.Search(len(t.entries), func(i int) bool {
		return e.before(t.entries[i])
	})
	t.entries = append(t.entries, Entry{})
	copy(t.entries[idx+1:], t.entries[idx:])
	t.entries[idx] = e
}

func (t *Timeline) removeAt(idx int) {
	t.entries = append(t.entries[:idx], t.entries[idx+1:]...)
}
