package memory

// Picker draws uniform indices in [0, n). *rand.Rand from math/rand/v2
// satisfies it; tests pass a seeded or scripted source.
type Picker interface {
	IntN(n int) int
}

// Memory is a parrot's bounded phrase memory. Entries keep insertion order
// until the memory is full; after that slots are overwritten in place.
type Memory struct {
	capacity int
	entries  []string
}

// New creates an empty memory holding at most capacity phrases.
func New(capacity int) *Memory {
	if capacity < 1 {
		panic("memory: capacity must be positive")
	}
	return &Memory{
		capacity: capacity,
		entries:  make([]string, 0, capacity),
	}
}

// Capacity returns the maximum number of phrases.
func (m *Memory) Capacity() int { return m.capacity }

// Count returns the number of phrases currently held.
func (m *Memory) Count() int { return len(m.entries) }

// Empty reports whether nothing has been learned yet.
func (m *Memory) Empty() bool { return len(m.entries) == 0 }

// Insert stores a live-learned phrase. Below capacity the phrase is
// appended; at capacity a uniformly random slot is overwritten. It reports
// whether the memory was empty before the call.
func (m *Memory) Insert(phrase string, rng Picker) bool {
	wasEmpty := m.Empty()
	if len(m.entries) < m.capacity {
		m.append(phrase)
		return wasEmpty
	}
	m.entries[rng.IntN(m.capacity)] = phrase
	return wasEmpty
}

// PickRandom returns a uniformly chosen phrase, or false when empty.
func (m *Memory) PickRandom(rng Picker) (string, bool) {
	if len(m.entries) == 0 {
		return "", false
	}
	return m.entries[rng.IntN(len(m.entries))], true
}

// Merge folds phrases fetched from the durable store into memory: free
// capacity is filled first, then slots are overwritten sequentially from
// index 0 in delivery order. It reports whether the memory was empty before
// the merge.
func (m *Memory) Merge(phrases []string) bool {
	wasEmpty := m.Empty()
	idx := 0
	for _, p := range phrases {
		if len(m.entries) < m.capacity {
			m.append(p)
			continue
		}
		m.entries[idx%m.capacity] = p
		idx++
	}
	return wasEmpty
}

// Entries returns a copy of the phrases in slot order.
func (m *Memory) Entries() []string {
	out := make([]string, len(m.entries))
	copy(out, m.entries)
	return out
}

// append grows the memory by one slot. Callers must have checked capacity.
func (m *Memory) append(phrase string) {
	if len(m.entries) >= m.capacity {
		panic("memory: append past capacity")
	}
	m.entries = append(m.entries, phrase)
}
