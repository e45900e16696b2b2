// Package dataset holds the immutable in-memory table of historical trips.
package dataset

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// Schema describes which optional columns a dataset carries.
type Schema struct {
	// Columns lists the header as read, in file order.
	Columns []string
	// Causes lists the cause identifiers in header order.
	Causes []string
	// Extra and Labels list the unrecognized numeric and textual columns.
	Extra  []string
	Labels []string

	present map[string]bool
}

// Has reports whether a column (by name, case-insensitive) exists in the dataset.
func (s Schema) Has(name string) bool {
	return s.present[norm(name)]
}

// CauseColumns returns the full column names of the cause percentages.
func (s Schema) CauseColumns() []string {
	out := make([]string, len(s.Causes))
	for i, id := range s.Causes {
		out[i] = CauseColumn(id)
	}
	return out
}

// Store is the loaded dataset. It is never mutated after Load returns.
type Store struct {
	name     string
	records  []Record
	schema   Schema
	services []string
	loadedAt time.Time
}

// NewStore builds a store from already-typed records. The slice is owned by the store.
func NewStore(name string, schema Schema, records []Record) *Store {
	if schema.present == nil {
		schema.present = map[string]bool{}
		for _, c := range schema.Columns {
			schema.present[norm(c)] = true
		}
		for _, id := range schema.Causes {
			schema.present[norm(CauseColumn(id))] = true
		}
	}
	seen := map[string]bool{}
	var services []string
	for i := range records {
		if s := records[i].Service; s != "" && !seen[s] {
			seen[s] = true
			services = append(services, s)
		}
	}
	sort.Strings(services)
	return &Store{name: name, records: records, schema: schema, services: services, loadedAt: time.Now()}
}

// Name is the base name of the source file.
func (s *Store) Name() string { return s.name }

// Len returns the number of records.
func (s *Store) Len() int { return len(s.records) }

// Record returns a pointer to the i-th record. Callers must not modify it.
func (s *Store) Record(i int) *Record { return &s.records[i] }

// Schema returns the column layout.
func (s *Store) Schema() Schema { return s.schema }

// Services returns the distinct non-empty service values, sorted.
func (s *Store) Services() []string { return append([]string(nil), s.services...) }

// LoadedAt is the wall-clock time the store was built.
func (s *Store) LoadedAt() time.Time { return s.loadedAt }

// Stations returns the sorted union of departure and arrival stations.
func (s *Store) Stations() []string {
	seen := map[string]bool{}
	for i := range s.records {
		seen[s.records[i].Departure] = true
		seen[s.records[i].Arrival] = true
	}
	delete(seen, "")
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DateSpan returns the first and last dated day, ok=false when no record has a date.
func (s *Store) DateSpan() (first, last time.Time, ok bool) {
	for i := range s.records {
		r := &s.records[i]
		if !r.HasDate {
			continue
		}
		if !ok || r.Date.Before(first) {
			first = r.Date
		}
		if !ok || r.Date.After(last) {
			last = r.Date
		}
		ok = true
	}
	return first, last, ok
}

// Holder publishes the current store. Replacing it is a single pointer swap, so a
// request that already obtained a store keeps a consistent snapshot.
type Holder struct {
	p atomic.Pointer[Store]
}

// Load returns the current store, nil if none was published.
func (h *Holder) Load() *Store { return h.p.Load() }

// Swap publishes s and returns the previous store.
func (h *Holder) Swap(s *Store) *Store { return h.p.Swap(s) }

func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return out
}
