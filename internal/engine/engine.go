// Package engine wires the record store, the filter pipeline, feature resolution and
// the predictor adapter behind one facade that can be reloaded atomically.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KaramelBytes/tardis-cli/internal/analysis"
	"github.com/KaramelBytes/tardis-cli/internal/dataset"
	"github.com/KaramelBytes/tardis-cli/internal/features"
	"github.com/KaramelBytes/tardis-cli/internal/metrics"
	"github.com/KaramelBytes/tardis-cli/internal/model"
)

// ErrUnavailable is returned when the dataset or model needed by an operation is not loaded.
var ErrUnavailable = errors.New("engine unavailable")

// Options locate the dataset and model and tune resolution.
type Options struct {
	DatasetPath string
	Dataset     dataset.Options

	ModelPath     string
	ModelInfoPath string
	// TopImportances is the number of importances reported per prediction.
	TopImportances int

	Scope features.Scope
	// Clock feeds the derived Year and Month features; nil means time.Now.
	Clock func() time.Time
}

// Status describes the outcome of the last load.
type Status struct {
	Dataset      *dataset.LoadReport `json:"dataset,omitempty"`
	DatasetError string              `json:"dataset_error,omitempty"`
	Model        string              `json:"model,omitempty"`
	ModelError   string              `json:"model_error,omitempty"`
	LoadedAt     time.Time           `json:"loaded_at"`

	// Current describes the store being served, which may predate the last load.
	Current *DatasetInfo `json:"current,omitempty"`
}

// DatasetInfo summarizes a loaded store.
type DatasetInfo struct {
	Name     string     `json:"name"`
	Records  int        `json:"records"`
	Stations int        `json:"stations"`
	Services []string   `json:"services,omitempty"`
	First    *time.Time `json:"first_date,omitempty"`
	Last     *time.Time `json:"last_date,omitempty"`
	LoadedAt time.Time  `json:"loaded_at"`
}

func describe(s *dataset.Store) *DatasetInfo {
	info := &DatasetInfo{
		Name:     s.Name(),
		Records:  s.Len(),
		Stations: len(s.Stations()),
		Services: s.Services(),
		LoadedAt: s.LoadedAt(),
	}
	if first, last, ok := s.DateSpan(); ok {
		info.First, info.Last = &first, &last
	}
	return info
}

// Engine serves analytics and predictions from the current store and model.
type Engine struct {
	opts  Options
	data  dataset.Holder
	model atomic.Pointer[model.Adapter]

	mu       sync.Mutex
	status   Status
	dataErr  error
	modelErr error
}

// New returns an engine with nothing loaded.
func New(opts Options) *Engine {
	for _, t := range features.Tiers() {
		metrics.ResolvedFeatures.WithLabelValues(t.String())
	}
	return &Engine{
		opts:     opts,
		dataErr:  errors.New("dataset not loaded"),
		modelErr: errors.New("model not loaded"),
	}
}

// Load reads the dataset and the model. A component that fails keeps serving its
// previous version, if any; the failure is reported in the returned status.
func (e *Engine) Load() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{LoadedAt: time.Now()}
	if e.opts.DatasetPath == "" {
		e.dataErr = errors.New("no dataset configured")
	} else if s, rep, err := dataset.Load(e.opts.DatasetPath, e.opts.Dataset); err != nil {
		metrics.DatasetLoads.WithLabelValues("error").Inc()
		e.dataErr = err
	} else {
		metrics.DatasetLoads.WithLabelValues("ok").Inc()
		metrics.RejectedRows.Add(float64(rep.Rejected))
		metrics.DatasetRecords.Set(float64(s.Len()))
		e.data.Swap(s)
		e.dataErr = nil
		st.Dataset = rep
	}
	if e.dataErr != nil {
		st.DatasetError = e.dataErr.Error()
	}

	switch {
	case e.opts.ModelPath == "" || e.opts.ModelInfoPath == "":
		e.modelErr = errors.New("no model configured")
	default:
		a, err := model.Load(e.opts.ModelPath, e.opts.ModelInfoPath, e.opts.TopImportances)
		if err != nil {
			metrics.ModelLoads.WithLabelValues("error").Inc()
			e.modelErr = err
		} else {
			metrics.ModelLoads.WithLabelValues("ok").Inc()
			e.model.Store(a)
			e.modelErr = nil
		}
	}
	if e.modelErr != nil {
		st.ModelError = e.modelErr.Error()
	}
	if a := e.model.Load(); a != nil {
		st.Model = a.Metadata().ModelName
	}
	e.status = st
	return st
}

// Reload is Load; requests in flight keep the store and model they started with.
func (e *Engine) Reload() Status { return e.Load() }

// SetStore installs an already-built store.
func (e *Engine) SetStore(s *dataset.Store) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data.Swap(s)
	e.dataErr = nil
	metrics.DatasetRecords.Set(float64(s.Len()))
}

// SetModel installs an already-built adapter.
func (e *Engine) SetModel(a *model.Adapter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.model.Store(a)
	e.modelErr = nil
}

// Status returns the outcome of the last Load and the store currently served.
func (e *Engine) Status() Status {
	e.mu.Lock()
	st := e.status
	e.mu.Unlock()
	if s := e.data.Load(); s != nil {
		st.Current = describe(s)
	}
	return st
}

// Store returns the current store or ErrUnavailable.
func (e *Engine) Store() (*dataset.Store, error) {
	if s := e.data.Load(); s != nil {
		return s, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, e.dataErr)
}

// Model returns the current adapter or ErrUnavailable.
func (e *Engine) Model() (*model.Adapter, error) {
	if a := e.model.Load(); a != nil {
		return a, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, e.modelErr)
}

// View filters the current store.
func (e *Engine) View(p analysis.Predicates) (analysis.View, error) {
	s, err := e.Store()
	if err != nil {
		return analysis.View{}, err
	}
	return analysis.Filter(s, p), nil
}
