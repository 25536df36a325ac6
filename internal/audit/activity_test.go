package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

type recordingStore struct {
	entries     []Entry
	appendErr   error
	limit       int
	offset      int
	lastAdminID string
}

func (s *recordingStore) Append(_ context.Context, e *Entry) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	e.ID = "entry"
	s.entries = append(s.entries, *e)
	return nil
}

func (s *recordingStore) Recent(_ context.Context, limit int) ([]Entry, error) {
	s.limit = limit
	return s.entries, nil
}

func (s *recordingStore) ForAdmin(_ context.Context, adminID string, limit, offset int) ([]Entry, error) {
	s.lastAdminID, s.limit, s.offset = adminID, limit, offset
	return nil, nil
}

func TestLogActivityStampsTime(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	store := &recordingStore{}
	rec := NewRecorder(store, func() time.Time { return fixed })

	rec.LogActivity(context.Background(), Entry{AdminID: "a1", Activity: "admin.created", EntityType: "system_admin", EntityID: "a2"})

	if len(store.entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(store.entries))
	}
	if got := store.entries[0]; !got.CreatedAt.Equal(fixed) || got.EntityID != "a2" {
		t.Fatalf("unexpected entry %+v", got)
	}
}

func TestLogActivityFailureIsWarningOnly(t *testing.T) {
	buf := captureLog(t)
	rec := NewRecorder(&recordingStore{appendErr: errors.New("disk full")}, nil)

	rec.LogActivity(context.Background(), Entry{AdminID: "a1", Activity: "org.updated"})

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v (%q)", err, line)
	}
	if entry["level"] != "warning" || entry["error"] != "disk full" {
		t.Fatalf("expected warning with error, got %v", entry)
	}
}

func TestActivityForAdminPaging(t *testing.T) {
	store := &recordingStore{}
	rec := NewRecorder(store, nil)
	ctx := context.Background()

	cases := []struct {
		size, page            int
		wantLimit, wantOffset int
	}{
		{10, 1, 10, 0},
		{10, 3, 10, 20},
		{0, 0, DefaultPageSize, 0},
		{1000, 2, MaxPageSize, MaxPageSize},
	}
	for _, tc := range cases {
		if _, err := rec.ActivityForAdmin(ctx, " a1 ", tc.size, tc.page); err != nil {
			t.Fatalf("ActivityForAdmin: %v", err)
		}
		if store.limit != tc.wantLimit || store.offset != tc.wantOffset || store.lastAdminID != "a1" {
			t.Fatalf("size=%d page=%d: got limit=%d offset=%d admin=%q", tc.size, tc.page, store.limit, store.offset, store.lastAdminID)
		}
	}

	if _, err := rec.RecentActivity(ctx, -5); err != nil || store.limit != DefaultPageSize {
		t.Fatalf("RecentActivity default limit: %d %v", store.limit, err)
	}
}
