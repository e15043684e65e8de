package difftest

// Entry is one committed instruction.
type Entry struct {
	PC   uint64
	Inst uint32
}

// History is a bounded ring of the most recent commits.
type History struct {
	entries []Entry
	next    int
	full    bool
}

// NewHistory creates a history holding at most size entries.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{entries: make([]Entry, size)}
}

// Push records a commit, evicting the oldest one when the ring is full.
func (h *History) Push(pc uint64, inst uint32) {
	h.entries[h.next] = Entry{PC: pc, Inst: inst}
	h.next++
	if h.next == len(h.entries) {
		h.next = 0
		h.full = true
	}
}

// Len returns the number of entries held.
func (h *History) Len() int {
	if h.full {
		return len(h.entries)
	}
	return h.next
}

// Entries returns the held commits, oldest first.
func (h *History) Entries() []Entry {
	if !h.full {
		return append([]Entry(nil), h.entries[:h.next]...)
	}

	out := make([]Entry, 0, len(h.entries))
	out = append(out, h.entries[h.next:]...)
	out = append(out, h.entries[:h.next]...)
	return out
}

// Last returns the most recent commit.
func (h *History) Last() (Entry, bool) {
	if h.Len() == 0 {
		return Entry{}, false
	}
	i := h.next - 1
	if i < 0 {
		i = len(h.entries) - 1
	}
	return h.entries[i], true
}
