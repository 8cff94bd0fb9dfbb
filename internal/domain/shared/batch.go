package shared

import (
	"sync"

	"github.com/google/uuid"
)

// BatchReport summarizes a per-customer batch run
type BatchReport struct {
	Processed int         `json:"processed"`
	Failed    int         `json:"failed"`
	FailedIDs []uuid.UUID `json:"failed_ids,omitempty"`
	Affected  int         `json:"affected"`
	Cancelled bool        `json:"cancelled,omitempty"`

	mu sync.Mutex
}

// NewBatchReport creates an empty report
func NewBatchReport() *BatchReport {
	return &BatchReport{FailedIDs: make([]uuid.UUID, 0)}
}

// Success records a processed customer. affected counts rows touched.
func (r *BatchReport) Success(affected int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Processed++
	r.Affected += affected
}

// Failure records a customer whose work failed
func (r *BatchReport) Failure(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Processed++
	r.Failed++
	r.FailedIDs = append(r.FailedIDs, id)
}

// HasFailures reports whether any customer failed
func (r *BatchReport) HasFailures() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Failed > 0
}
