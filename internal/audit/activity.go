package audit

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"propdesk.io/internal/obs"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 200
)

// Entry is an append-only record of an admin action.
type Entry struct {
	ID          string    `json:"id"`
	AdminID     string    `json:"admin_id"`
	Activity    string    `json:"activity"`
	Description string    `json:"description,omitempty"`
	EntityType  string    `json:"entity_type,omitempty"`
	EntityID    string    `json:"entity_id,omitempty"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store appends and reads activity entries. Reads are newest first.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	ForAdmin(ctx context.Context, adminID string, limit, offset int) ([]Entry, error)
}

// Recorder writes and queries the admin activity log.
type Recorder struct {
	store Store
	now   func() time.Time
}

func NewRecorder(store Store, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{store: store, now: now}
}

// LogActivity appends an entry. A failed append is logged as a warning and
// counted but never returned, so it cannot abort the action being recorded.
func (r *Recorder) LogActivity(ctx context.Context, e Entry) {
	e.AdminID = strings.TrimSpace(e.AdminID)
	e.Activity = strings.TrimSpace(e.Activity)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	fields := logrus.Fields{
		"admin_id": e.AdminID,
		"activity": e.Activity,
	}
	if e.AdminID == "" || e.Activity == "" {
		obs.AuditAppendFailed()
		obs.Logger().WithFields(fields).Warn("activity log entry dropped: admin_id and activity are required")
		return
	}
	if err := r.store.Append(ctx, &e); err != nil {
		obs.AuditAppendFailed()
		obs.Logger().WithFields(fields).WithError(err).Warn("activity log append failed")
	}
}

// RecentActivity returns the latest count entries across all admins.
func (r *Recorder) RecentActivity(ctx context.Context, count int) ([]Entry, error) {
	return r.store.Recent(ctx, clampPageSize(count))
}

// ActivityForAdmin returns one page of an admin's entries. Pages start at 1.
func (r *Recorder) ActivityForAdmin(ctx context.Context, adminID string, pageSize, pageNumber int) ([]Entry, error) {
	size := clampPageSize(pageSize)
	if pageNumber < 1 {
		pageNumber = 1
	}
	return r.store.ForAdmin(ctx, strings.TrimSpace(adminID), size, (pageNumber-1)*size)
}

func clampPageSize(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}
