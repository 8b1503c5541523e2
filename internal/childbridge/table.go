// ABOUTME: Mutex-guarded live table of child bridge statuses.
// ABOUTME: Written only by Seed and ApplyUpdate, read through copies.

package childbridge

import "sync"

// Table holds at most one row per username, in insertion order.
type Table struct {
	mu    sync.RWMutex
	rows  []Status
	index map[string]int
}

func NewTable() *Table {
	return &Table{index: make(map[string]int)}
}

// Seed replaces the whole table. A later duplicate username overwrites the
// earlier row in place.
func (t *Table) Seed(rows []Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rows = make([]Status, 0, len(rows))
	t.index = make(map[string]int, len(rows))
	for _, r := range rows {
		if i, ok := t.index[r.Username]; ok {
			t.rows[i] = r
			continue
		}
		t.index[r.Username] = len(t.rows)
		t.rows = append(t.rows, r)
	}
}

// ApplyUpdate merges u into the row with the same username, or appends a
// new row built from the present fields. It reports whether a row was added.
func (t *Table) ApplyUpdate(u Update) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i, ok := t.index[u.Username]; ok {
		t.rows[i].merge(u)
		return false
	}

	row := Status{Username: u.Username}
	row.merge(u)
	t.index[u.Username] = len(t.rows)
	t.rows = append(t.rows, row)
	return true
}

// ByPlugin returns copies of the rows owned by plugin, in table order.
func (t *Table) ByPlugin(plugin string) []Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Status
	for _, r := range t.rows {
		if r.Plugin == plugin {
			out = append(out, r)
		}
	}
	return out
}

// Get returns the row for username.
func (t *Table) Get(username string) (Status, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	i, ok := t.index[username]
	if !ok {
		return Status{}, false
	}
	return t.rows[i], true
}

// Has reports whether username has a row.
func (t *Table) Has(username string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.index[username]
	return ok
}

// Snapshot returns a copy of every row in table order.
func (t *Table) Snapshot() []Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Status, len(t.rows))
	copy(out, t.rows)
	return out
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Clear drops every row. Called when the session ends.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = nil
	t.index = make(map[string]int)
}

// CountByState tallies rows per status value.
func (t *Table) CountByState() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	counts := make(map[string]int)
	for _, r := range t.rows {
		counts[string(r.Status)]++
	}
	return counts
}
