package page

// Manager owns a fixed ring of Pages and tracks which one is active and
// which ones are still waiting on an in-flight flush.
type Manager struct {
	pages   []*Page
	active  int
	pending []bool
}

// NewManager allocates count Pages of blockSize bytes each.
func NewManager(blockSize, count int) (*Manager, error) {
	pages := make([]*Page, count)
	for i := range pages {
		p, err := New(blockSize)
		if err != nil {
			for j := 0; j < i; j++ {
				pages[j].Close()
			}
			return nil, err
		}
		pages[i] = p
	}
	return &Manager{
		pages:   pages,
		pending: make([]bool, count),
	}, nil
}

// Close releases every page in the ring.
func (m *Manager) Close() error {
	var first error
	for _, p := range m.pages {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Active returns the currently active page and its index.
func (m *Manager) Active() (*Page, int) {
	return m.pages[m.active], m.active
}

// Pending reports whether the page at idx still has a flush in flight.
func (m *Manager) Pending(idx int) bool {
	return m.pending[idx]
}

// SetPending marks the page at idx as having (or no longer having) a
// flush in flight.
func (m *Manager) SetPending(idx int, pending bool) {
	m.pending[idx] = pending
}

// Advance marks the current active page as pending and rotates to the
// next page in the ring, returning the index that was just made
// inactive (the one now pending a flush).
func (m *Manager) Advance() int {
	prev := m.active
	m.pending[prev] = true
	m.active = (m.active + 1) % len(m.pages)
	return prev
}

// Len returns the number of pages in the ring.
func (m *Manager) Len() int {
	return len(m.pages)
}

// Page returns the page at idx.
func (m *Manager) Page(idx int) *Page {
	return m.pages[idx]
}
