package controller

import (
	"sync"

	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/model"
)

// history is a bounded, insertion-ordered operation log. The oldest records
// are dropped first once max is exceeded, whatever their status.
type history struct {
	mu      sync.Mutex
	max     int
	records []model.TabOperationRecord
	undoing map[string]bool
}

func newHistory(max int) *history {
	return &history{max: max, undoing: map[string]bool{}}
}

func (h *history) add(r model.TabOperationRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	if over := len(h.records) - h.max; h.max > 0 && over > 0 {
		h.records = append(h.records[:0:0], h.records[over:]...)
	}
}

// update applies fn to the record with id. It reports false when the record
// has already been dropped.
func (h *history) update(id string, fn func(*model.TabOperationRecord)) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.records {
		if h.records[i].ID == id {
			fn(&h.records[i])
			return true
		}
	}
	return false
}

func (h *history) get(id string) (model.TabOperationRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.records {
		if r.ID == id {
			return r, true
		}
	}
	return model.TabOperationRecord{}, false
}

func (h *history) list() []model.TabOperationRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.TabOperationRecord, len(h.records))
	copy(out, h.records)
	return out
}

func (h *history) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = nil
}

// beginUndo claims id for an undo in flight and returns the record as it
// was at claim time. Only undoable success records can be claimed.
func (h *history) beginUndo(id string) (model.TabOperationRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var orig *model.TabOperationRecord
	for i := range h.records {
		if h.records[i].ID == id {
			orig = &h.records[i]
			break
		}
	}
	if orig == nil {
		return model.TabOperationRecord{}, errs.Newf(errs.CodeNotFound, "operation %s not in history", id)
	}
	if orig.Status != model.StatusSuccess || !orig.Undoable {
		return model.TabOperationRecord{}, errs.Newf(errs.CodeInvalidArgument, "operation %s (%s, %s) cannot be undone", orig.ID, orig.Type, orig.Status)
	}
	if h.undoing[id] {
		return model.TabOperationRecord{}, errs.Newf(errs.CodeInvalidArgument, "operation %s is already being undone", id)
	}
	h.undoing[id] = true
	return *orig, nil
}

func (h *history) endUndo(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.undoing, id)
}

// Stats is computed from the current history on every call.
type Stats struct {
	Total      int                         `json:"total"`
	Success    int                         `json:"success"`
	Failed     int                         `json:"failed"`
	Pending    int                         `json:"pending"`
	RolledBack int                         `json:"rolled_back"`
	Undos      int                         `json:"undos"`
	Fallbacks  int                         `json:"fallbacks"`
	ByType     map[model.OperationType]int `json:"by_type"`
	ByBrowser  map[model.BrowserType]int   `json:"by_browser"`
}

func computeStats(records []model.TabOperationRecord) Stats {
	s := Stats{
		Total:     len(records),
		ByType:    map[model.OperationType]int{},
		ByBrowser: map[model.BrowserType]int{},
	}
	for _, r := range records {
		switch r.Status {
		case model.StatusSuccess:
			s.Success++
		case model.StatusFailed:
			s.Failed++
		case model.StatusPendingVerification:
			s.Pending++
		case model.StatusRolledBack:
			s.RolledBack++
		}
		if r.IsUndo {
			s.Undos++
		}
		if r.Fallback {
			s.Fallbacks++
		}
		s.ByType[r.Type]++
		s.ByBrowser[r.Browser]++
	}
	return s
}
