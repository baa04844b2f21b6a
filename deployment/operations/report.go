package operations

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Report is the record of one operation execution.
type Report[IN, OUT any] struct {
	ID        string     `json:"id"`
	Def       Definition `json:"definition"`
	Output    OUT        `json:"output"`
	Input     IN         `json:"input"`
	Timestamp time.Time  `json:"timestamp"`
	Err       string     `json:"error,omitempty"`
}

// NewReport creates a report with a fresh ID.
func NewReport[IN, OUT any](def Definition, input IN, output OUT, err error) Report[IN, OUT] {
	r := Report[IN, OUT]{
		ID:        uuid.New().String(),
		Def:       def,
		Output:    output,
		Input:     input,
		Timestamp: time.Now(),
	}
	if err != nil {
		r.Err = err.Error()
	}
	return r
}

func genericReport[IN, OUT any](r Report[IN, OUT]) Report[any, any] {
	return Report[any, any]{
		ID:        r.ID,
		Def:       r.Def,
		Output:    r.Output,
		Input:     r.Input,
		Timestamp: r.Timestamp,
		Err:       r.Err,
	}
}

// Reporter stores operation reports.
type Reporter interface {
	GetReports() ([]Report[any, any], error)
	AddReport(report Report[any, any]) error
}

// MemoryReporter keeps reports in memory in execution order.
type MemoryReporter struct {
	mu      sync.Mutex
	reports []Report[any, any]
}

var _ Reporter = (*MemoryReporter)(nil)

func NewMemoryReporter() *MemoryReporter {
	return &MemoryReporter{}
}

func (r *MemoryReporter) AddReport(report Report[any, any]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func (r *MemoryReporter) GetReports() ([]Report[any, any], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report[any, any], len(r.reports))
	copy(out, r.reports)
	return out, nil
}
