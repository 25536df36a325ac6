package memory

import (
	"time"

	"propdesk.io/internal/audit"
)

func auditEntry(adminID string, at time.Time) audit.Entry {
	return audit.Entry{AdminID: adminID, Activity: "test", CreatedAt: at}
}
