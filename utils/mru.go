package utils

import "sync"

// MRU is a bounded list of recently used entries, most recent first.
// Re-adding an entry moves it to the front.
type MRU struct {
	lock    sync.Mutex
	max     int
	entries []string
}

// NewMRU returns a new MRU list that holds at most max entries.
func NewMRU(max int, initial ...string) *MRU {
	m := &MRU{max: max}
	for i := len(initial) - 1; i >= 0; i-- {
		m.Add(initial[i])
	}
	return m
}

// Add moves the entry to the front of the list. Empty entries are ignored.
func (m *MRU) Add(entry string) {
	if entry == "" {
		return
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	for i, existing := range m.entries {
		if existing == entry {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			break
		}
	}
	m.entries = append([]string{entry}, m.entries...)
	if len(m.entries) > m.max {
		m.entries = m.entries[:m.max]
	}
}

// Remove removes the entry from the list.
func (m *MRU) Remove(entry string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for i, existing := range m.entries {
		if existing == entry {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return
		}
	}
}

// Entries returns a copy of the list, most recent first.
func (m *MRU) Entries() []string {
	m.lock.Lock()
	defer m.lock.Unlock()

	return append([]string(nil), m.entries...)
}

// Latest returns the most recent entry.
func (m *MRU) Latest() (string, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if len(m.entries) == 0 {
		return "", false
	}
	return m.entries[0], true
}
