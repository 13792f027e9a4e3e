package strategy

import (
	"fmt"
	"sync"
	"time"
)

// DetectorInfo holds runtime counters for a registered detector (for status
// APIs).
type DetectorInfo struct {
	Name       string     `json:"name"`
	Runs       int64      `json:"runs"`
	Proposals  int64      `json:"proposals"`
	ErrorCount int64      `json:"error_count"`
	LastError  string     `json:"last_error,omitempty"`
	LastRun    *time.Time `json:"last_run,omitempty"`
}

// Registry holds the detectors of a bot in registration order, which is the
// order they run within a tick. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	detectors []Detector
	info      map[string]*DetectorInfo
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{info: make(map[string]*DetectorInfo)}
}

// Register appends a detector. Names must be unique.
func (r *Registry) Register(d Detector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.info[d.Name()]; ok {
		return fmt.Errorf("strategy: detector %q already registered", d.Name())
	}
	r.detectors = append(r.detectors, d)
	r.info[d.Name()] = &DetectorInfo{Name: d.Name()}
	return nil
}

// Detectors returns the registered detectors in run order.
func (r *Registry) Detectors() []Detector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Detector(nil), r.detectors...)
}

// Record updates the counters of a detector after a run.
func (r *Registry) Record(name string, at time.Time, proposals int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.info[name]
	if !ok {
		return
	}
	info.Runs++
	info.Proposals += int64(proposals)
	info.LastRun = &at
	if err != nil {
		info.ErrorCount++
		info.LastError = err.Error()
	}
}

// ListInfo returns a copy of every detector's counters in run order.
func (r *Registry) ListInfo() []DetectorInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]DetectorInfo, 0, len(r.detectors))
	for _, d := range r.detectors {
		info := *r.info[d.Name()]
		if info.LastRun != nil {
			t := *info.LastRun
			info.LastRun = &t
		}
		out = append(out, info)
	}
	return out
}
