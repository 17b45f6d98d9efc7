package agent

import (
	"sync"

	"github.com/google/uuid"

	"github.com/seenimoa/marketbrief/pkg/models"
)

// EvictionPolicy decides which records a History keeps after an append.
// Prune receives the records oldest first and returns the ones to keep,
// in the same order.
type EvictionPolicy interface {
	Prune(records []*models.AnalysisRecord) []*models.AnalysisRecord
}

// Unbounded keeps every record.
type Unbounded struct{}

func (Unbounded) Prune(records []*models.AnalysisRecord) []*models.AnalysisRecord { return records }

// KeepLast keeps the n most recent records. n <= 0 keeps everything.
type KeepLast int

func (k KeepLast) Prune(records []*models.AnalysisRecord) []*models.AnalysisRecord {
	n := int(k)
	if n <= 0 || len(records) <= n {
		return records
	}
	kept := make([]*models.AnalysisRecord, n)
	copy(kept, records[len(records)-n:])
	return kept
}

// PolicyForLimit maps a configured history limit to a policy; 0 is unbounded.
func PolicyForLimit(limit int) EvictionPolicy {
	if limit <= 0 {
		return Unbounded{}
	}
	return KeepLast(limit)
}

// History is the append-only, insertion-ordered log of completed runs.
// It is safe for concurrent use. Records are shared, not copied, and must
// not be modified once appended.
type History struct {
	mu      sync.RWMutex
	records []*models.AnalysisRecord
	policy  EvictionPolicy
}

// NewHistory creates an empty history. A nil policy means Unbounded.
func NewHistory(policy EvictionPolicy) *History {
	if policy == nil {
		policy = Unbounded{}
	}
	return &History{policy: policy}
}

// Append adds rec as the most recent entry.
func (h *History) Append(rec *models.AnalysisRecord) {
	if rec == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = h.policy.Prune(append(h.records, rec))
}

// All returns the records oldest first. The slice is a copy.
func (h *History) All() []*models.AnalysisRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*models.AnalysisRecord, len(h.records))
	copy(out, h.records)
	return out
}

// Len returns the number of records held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Last returns the most recent record.
func (h *History) Last() (*models.AnalysisRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.records) == 0 {
		return nil, false
	}
	return h.records[len(h.records)-1], true
}

// Get returns the record with the given ID.
func (h *History) Get(id uuid.UUID) (*models.AnalysisRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := len(h.records) - 1; i >= 0; i-- {
		if h.records[i].ID == id {
			return h.records[i], true
		}
	}
	return nil, false
}

// Summaries returns the compact listing of every record, oldest first.
func (h *History) Summaries() []models.RecordSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.RecordSummary, 0, len(h.records))
	for _, r := range h.records {
		out = append(out, r.Summary())
	}
	return out
}
