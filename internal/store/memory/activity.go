package memory

import (
	"context"
	"sort"

	"propdesk.io/internal/audit"
	"propdesk.io/internal/ids"
)

type activityTable struct{ s *Store }

func (t activityTable) Append(_ context.Context, e *audit.Entry) error {
	t.s.idMu.Lock()
	defer t.s.idMu.Unlock()
	if e.ID == "" {
		e.ID = ids.New()
	}
	t.s.activity = append(t.s.activity, *e)
	return nil
}

func (t activityTable) Recent(_ context.Context, limit int) ([]audit.Entry, error) {
	return t.page(func(audit.Entry) bool { return true }, limit, 0), nil
}

func (t activityTable) ForAdmin(_ context.Context, adminID string, limit, offset int) ([]audit.Entry, error) {
	return t.page(func(e audit.Entry) bool { return e.AdminID == adminID }, limit, offset), nil
}

// page returns matching entries newest first. Entries with equal timestamps
// are ordered by append position, latest first.
func (t activityTable) page(match func(audit.Entry) bool, limit, offset int) []audit.Entry {
	t.s.idMu.RLock()
	defer t.s.idMu.RUnlock()
	var out []audit.Entry
	for i := len(t.s.activity) - 1; i >= 0; i-- {
		if match(t.s.activity[i]) {
			out = append(out, t.s.activity[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}
