package session

// Role identifies who a transcript entry belongs to.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Entry is one line of the conversation transcript.
type Entry struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Transcript is the ordered conversation log. Streaming updates replace
// the newest entry in place while the role is unchanged; a role change
// starts a new entry. The transcript grows for the session lifetime and is
// never truncated.
//
// Transcript is not goroutine-safe; the owning session serializes access.
type Transcript struct {
	entries []Entry
}

// Upsert applies one streaming update: replace the last entry's text when
// the role matches, otherwise append a new entry.
func (t *Transcript) Upsert(role Role, text string) {
	if n := len(t.entries); n > 0 && t.entries[n-1].Role == role {
		t.entries[n-1].Text = text
		return
	}
	t.entries = append(t.entries, Entry{Role: role, Text: text})
}

// Entries returns a copy of the transcript.
func (t *Transcript) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	return len(t.entries)
}

// Last returns the newest entry and true, or a zero Entry and false when
// the transcript is empty.
func (t *Transcript) Last() (Entry, bool) {
	if len(t.entries) == 0 {
		return Entry{}, false
	}
	return t.entries[len(t.entries)-1], true
}
