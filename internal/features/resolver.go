package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/tardis-cli/internal/analysis"
	"github.com/KaramelBytes/tardis-cli/internal/dataset"
)

// Derived feature names filled from the request time.
const (
	FeatureYear  = "Year"
	FeatureMonth = "Month"
)

// DefaultCausePercent is used for a cause-percentage feature with no history at all.
const DefaultCausePercent = 10.0

// ErrInsufficientData is returned when the view holds no record to resolve from.
var ErrInsufficientData = errors.New("insufficient data: no records match the current filters")

// ErrInvalidOverride is returned when a numerical feature is overridden with a
// non-numeric label.
var ErrInvalidOverride = errors.New("invalid override")

// Warning codes attached to a resolution.
const (
	WarnNoRouteHistory  = "no_route_history"
	WarnUnknownOverride = "unknown_override"
	WarnNoConnections   = "no_connections"
)

// Warning is a non-fatal note about how a vector was resolved.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Scope selects the records used by the dataset-wide tier.
type Scope int

const (
	// ScopeView uses the filtered view the request was made against.
	ScopeView Scope = iota
	// ScopeStore uses every record of the underlying store.
	ScopeStore
)

func (s Scope) String() string {
	if s == ScopeStore {
		return "store"
	}
	return "view"
}

// ParseScope reads "view" or "store".
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "view":
		return ScopeView, nil
	case "store":
		return ScopeStore, nil
	}
	return 0, fmt.Errorf("unknown fallback scope %q (want view or store)", s)
}

// Request is one prediction request: the route selection and any explicit values.
type Request struct {
	Route     dataset.Route `json:"route"`
	Overrides Vector        `json:"overrides,omitempty"`
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	ID           uuid.UUID       `json:"id"`
	Route        dataset.Route   `json:"route"`
	Vector       Vector          `json:"vector"`
	Tiers        map[string]Tier `json:"tiers"`
	RouteRecords int             `json:"route_records"`
	Warnings     []Warning       `json:"warnings,omitempty"`
}

// TierCounts counts how many features each tier produced.
func (res *Resolution) TierCounts() map[Tier]int {
	out := map[Tier]int{}
	for _, t := range res.Tiers {
		out[t]++
	}
	return out
}

// Resolver fills the required features of a model.
type Resolver struct {
	numerical   []string
	categorical []string
	now         func() time.Time
	scope       Scope
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock injects the time source used for Year and Month.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithScope selects the dataset-wide fallback records.
func WithScope(s Scope) Option { return func(r *Resolver) { r.scope = s } }

// NewResolver builds a resolver for the given required feature names.
func NewResolver(numerical, categorical []string, opts ...Option) *Resolver {
	r := &Resolver{
		numerical:   append([]string(nil), numerical...),
		categorical: append([]string(nil), categorical...),
		now:         time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Required returns every required feature name, numerical first.
func (r *Resolver) Required() []string {
	return append(append([]string(nil), r.numerical...), r.categorical...)
}

// Resolve returns a vector with exactly the required features. For each feature the
// first applicable source wins: override, route mean, dataset mean or mode, default.
func (r *Resolver) Resolve(view analysis.View, req Request) (*Resolution, error) {
	if view.Empty() {
		return nil, ErrInsufficientData
	}
	routeView := view.Route(req.Route)
	base := view
	if r.scope == ScopeStore && view.Store() != nil {
		base = analysis.All(view.Store())
	}
	res := &Resolution{
		ID:           uuid.New(),
		Route:        req.Route,
		Vector:       make(Vector, len(r.numerical)+len(r.categorical)),
		Tiers:        make(map[string]Tier, len(r.numerical)+len(r.categorical)),
		RouteRecords: routeView.Len(),
	}
	if res.RouteRecords == 0 {
		res.Warnings = append(res.Warnings, Warning{
			Code:    WarnNoRouteHistory,
			Message: fmt.Sprintf("no historical records for route %s; using dataset-wide values", req.Route.Key()),
		})
	}
	now := r.now()
	overrides := lookup(req.Overrides)

	for _, name := range r.numerical {
		if v, ok := derived(name, now); ok {
			res.set(name, v, TierDerived)
			continue
		}
		if v, ok := overrides(name); ok {
			f, num := v.Float()
			if !num || math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("%w: %q expects a finite number, got %q", ErrInvalidOverride, name, v.String())
			}
			if _, cause := dataset.CauseID(name); cause && (f < 0 || f > 100) {
				return nil, fmt.Errorf("%w: %q is a percentage in [0,100], got %v", ErrInvalidOverride, name, f)
			}
			res.set(name, Number(f), TierOverride)
			continue
		}
		if m, ok := mean(routeView, name); ok {
			res.set(name, Number(m), TierRoute)
			continue
		}
		if m, ok := mean(base, name); ok {
			res.set(name, Number(m), TierDataset)
			continue
		}
		res.set(name, Number(numericDefault(name)), TierDefault)
	}

	for _, name := range r.categorical {
		if v, ok := derived(name, now); ok {
			res.set(name, Label(v.String()), TierDerived)
			continue
		}
		if s, ok := selection(name, req.Route); ok {
			res.set(name, Label(s), TierOverride)
			continue
		}
		if v, ok := overrides(name); ok {
			res.set(name, Label(v.String()), TierOverride)
			continue
		}
		if m, ok := mode(routeView, name); ok {
			res.set(name, Label(m), TierRoute)
			continue
		}
		if m, ok := mode(base, name); ok {
			res.set(name, Label(m), TierDataset)
			continue
		}
		res.set(name, Label(""), TierDefault)
	}

	for _, name := range req.Overrides.Names() {
		if !r.requires(name) {
			res.Warnings = append(res.Warnings, Warning{
				Code:    WarnUnknownOverride,
				Message: fmt.Sprintf("override %q is not a model feature and was ignored", name),
			})
		}
	}
	return res, nil
}

func (res *Resolution) set(name string, v Value, t Tier) {
	res.Vector[name] = v
	res.Tiers[name] = t
}

func (r *Resolver) requires(name string) bool {
	for _, n := range r.Required() {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// lookup matches override names exactly first, then case-insensitively.
func lookup(ov Vector) func(string) (Value, bool) {
	return func(name string) (Value, bool) {
		if v, ok := ov[name]; ok {
			return v, true
		}
		for k, v := range ov {
			if strings.EqualFold(k, name) {
				return v, true
			}
		}
		return Value{}, false
	}
}

func derived(name string, now time.Time) (Value, bool) {
	switch {
	case strings.EqualFold(name, FeatureYear):
		return Number(float64(now.Year())), true
	case strings.EqualFold(name, FeatureMonth):
		return Number(float64(now.Month())), true
	}
	return Value{}, false
}

func selection(name string, route dataset.Route) (string, bool) {
	switch {
	case strings.EqualFold(name, dataset.ColDeparture) && route.Departure != "":
		return route.Departure, true
	case strings.EqualFold(name, dataset.ColArrival) && route.Arrival != "":
		return route.Arrival, true
	case strings.EqualFold(name, dataset.ColRoute) && route.Departure != "" && route.Arrival != "":
		return route.Key(), true
	}
	return "", false
}

func numericDefault(name string) float64 {
	if _, ok := dataset.CauseID(name); ok {
		return DefaultCausePercent
	}
	return 0
}

func mean(v analysis.View, name string) (float64, bool) {
	var sum float64
	var n int
	v.Each(func(r *dataset.Record) {
		if val := r.Numeric(name); val.OK {
			sum += val.V
			n++
		}
	})
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// mode returns the most frequent label; ties go to the lexically smallest.
func mode(v analysis.View, name string) (string, bool) {
	counts := map[string]int{}
	v.Each(func(r *dataset.Record) {
		if s := r.Label(name); s != "" {
			counts[s]++
		}
	})
	if len(counts) == 0 {
		return "", false
	}
	labels := make([]string, 0, len(counts))
	for s := range counts {
		labels = append(labels, s)
	}
	sort.Strings(labels)
	best := labels[0]
	for _, s := range labels[1:] {
		if counts[s] > counts[best] {
			best = s
		}
	}
	return best, true
}
