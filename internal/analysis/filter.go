// Package analysis filters the record store and computes grouped summaries over the
// resulting views.
package analysis

import (
	"sort"
	"time"

	"github.com/KaramelBytes/tardis-cli/internal/dataset"
)

// Predicates is a conjunction of independent constraints. A zero field matches everything.
type Predicates struct {
	// Start and End bound the record date, inclusive, at day granularity.
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
	// Station matches records departing from or arriving at the station.
	Station string `json:"station,omitempty"`
	// Service is ignored when the store has fewer than two distinct services.
	Service string `json:"service,omitempty"`
}

// IsZero reports whether no predicate is set.
func (p Predicates) IsZero() bool {
	return p.Start == nil && p.End == nil && p.Station == "" && p.Service == ""
}

// View is a read-only projection of a store. It never copies or mutates records.
type View struct {
	store *dataset.Store
	idx   []int
}

// All returns a view over every record of the store.
func All(st *dataset.Store) View {
	idx := make([]int, st.Len())
	for i := range idx {
		idx[i] = i
	}
	return View{store: st, idx: idx}
}

// Filter applies the predicates to the store.
func Filter(st *dataset.Store, p Predicates) View {
	if st == nil {
		return View{}
	}
	if p.IsZero() {
		return All(st)
	}
	var start, end time.Time
	if p.Start != nil {
		start = day(*p.Start)
	}
	if p.End != nil {
		end = day(*p.End)
	}
	service := p.Service
	if len(st.Services()) < 2 {
		service = ""
	}
	idx := make([]int, 0, st.Len())
	for i := 0; i < st.Len(); i++ {
		r := st.Record(i)
		if p.Start != nil && (!r.HasDate || r.Date.Before(start)) {
			continue
		}
		if p.End != nil && (!r.HasDate || r.Date.After(end)) {
			continue
		}
		if p.Station != "" && r.Departure != p.Station && r.Arrival != p.Station {
			continue
		}
		if service != "" && r.Service != service {
			continue
		}
		idx = append(idx, i)
	}
	return View{store: st, idx: idx}
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Len returns the number of records in the view.
func (v View) Len() int { return len(v.idx) }

// Empty reports whether the view has no records.
func (v View) Empty() bool { return len(v.idx) == 0 }

// Store returns the underlying store (nil for the zero View).
func (v View) Store() *dataset.Store { return v.store }

// Record returns the i-th record of the view.
func (v View) Record(i int) *dataset.Record { return v.store.Record(v.idx[i]) }

// Each calls fn for every record in view order.
func (v View) Each(fn func(*dataset.Record)) {
	for _, i := range v.idx {
		fn(v.store.Record(i))
	}
}

// Where narrows the view to records matching keep.
func (v View) Where(keep func(*dataset.Record) bool) View {
	idx := make([]int, 0, len(v.idx))
	for _, i := range v.idx {
		if keep(v.store.Record(i)) {
			idx = append(idx, i)
		}
	}
	return View{store: v.store, idx: idx}
}

// Route narrows the view to the exact (departure, arrival) pair.
func (v View) Route(r dataset.Route) View {
	return v.Where(func(rec *dataset.Record) bool { return rec.Route == r })
}

// HasColumn reports whether the underlying dataset carries the column.
func (v View) HasColumn(name string) bool {
	return v.store != nil && v.store.Schema().Has(name)
}

// Distinct returns the sorted non-empty values of a categorical column.
func (v View) Distinct(label string) []string {
	seen := map[string]bool{}
	v.Each(func(r *dataset.Record) {
		if s := r.Label(label); s != "" {
			seen[s] = true
		}
	})
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
