package agent

// WorkingMemory is a fixed-capacity ring of the most recent round outcomes
// for one run. Unlike the long-term index it is unscored and unembedded: the
// last few entries always appear in prompts verbatim, oldest first, and the
// oldest entry falls off when the ring is full.
type WorkingMemory struct {
	entries []string
	head    int
	size    int
}

// NewWorkingMemory creates a ring with the given capacity. Capacities below
// one get a single slot.
func NewWorkingMemory(capacity int) *WorkingMemory {
	if capacity < 1 {
		capacity = 1
	}

	return &WorkingMemory{entries: make([]string, capacity)}
}

// Push appends an entry, evicting the oldest when full.
func (w *WorkingMemory) Push(entry string) {
	w.entries[w.head] = entry
	w.head = (w.head + 1) % len(w.entries)

	if w.size < len(w.entries) {
		w.size++
	}
}

// Snapshot returns the entries oldest first.
func (w *WorkingMemory) Snapshot() []string {
	out := make([]string, 0, w.size)

	start := w.head - w.size
	if start < 0 {
		start += len(w.entries)
	}

	for i := 0; i < w.size; i++ {
		out = append(out, w.entries[(start+i)%len(w.entries)])
	}

	return out
}

// Len reports how many entries the ring holds.
func (w *WorkingMemory) Len() int {
	return w.size
}
