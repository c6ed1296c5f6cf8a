package solve

import (
	"sync"

	"github.com/sells-group/solver-cli/internal/model"
)

// Recorder is an append-only, concurrency-safe collector of attempt
// records for one run. Records are never mutated after append and keep
// their submission order.
type Recorder struct {
	mu      sync.Mutex
	records []model.AttemptRecord
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Append adds a record to the history.
func (r *Recorder) Append(rec model.AttemptRecord) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

// Len reports the number of recorded attempts.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Snapshot returns a point-in-time copy of the history.
func (r *Recorder) Snapshot() []model.AttemptRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.AttemptRecord, len(r.records))
	copy(out, r.records)
	return out
}
