package pg

import (
	"context"
	"database/sql"

	"propdesk.io/internal/audit"
	"propdesk.io/internal/ids"
)

const activityColumns = `id, admin_id, activity, description, entity_type, entity_id, ip_address, user_agent, created_at`

type activityTable struct{ q querier }

func (t activityTable) Append(ctx context.Context, e *audit.Entry) error {
	if e.ID == "" {
		e.ID = ids.New()
	}
	_, err := t.q.ExecContext(ctx, `
		insert into admin_activity_log (`+activityColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.AdminID, e.Activity, nullIfEmpty(e.Description), nullIfEmpty(e.EntityType), nullIfEmpty(e.EntityID),
		nullIfEmpty(e.IPAddress), nullIfEmpty(e.UserAgent), e.CreatedAt)
	return err
}

func (t activityTable) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	return t.list(ctx, `
		select `+activityColumns+`
		from admin_activity_log
		order by created_at desc, id desc
		limit $1
	`, limit)
}

func (t activityTable) ForAdmin(ctx context.Context, adminID string, limit, offset int) ([]audit.Entry, error) {
	return t.list(ctx, `
		select `+activityColumns+`
		from admin_activity_log
		where admin_id = $1
		order by created_at desc, id desc
		limit $2 offset $3
	`, adminID, limit, offset)
}

func (t activityTable) list(ctx context.Context, query string, args ...any) ([]audit.Entry, error) {
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []audit.Entry
	for rows.Next() {
		var (
			e                                         audit.Entry
			desc, entityType, entityID, ip, userAgent sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.AdminID, &e.Activity, &desc, &entityType, &entityID, &ip, &userAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Description, e.EntityType, e.EntityID = desc.String, entityType.String, entityID.String
		e.IPAddress, e.UserAgent = ip.String, userAgent.String
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
