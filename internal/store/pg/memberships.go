package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"propdesk.io/internal/directory"
	"propdesk.io/internal/ids"
)

const membershipColumns = `id, organization_id, identity_user_id, full_name, email, role, domain, active, last_login_at, created_at, updated_at`

type membershipTable struct{ q querier }

func scanMembership(row scanner) (directory.Membership, error) {
	var (
		m         directory.Membership
		domain    int16
		lastLogin sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.OrganizationID, &m.IdentityUserID, &m.FullName, &m.Email, &m.Role, &domain, &m.Active, &lastLogin, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return directory.Membership{}, err
	}
	m.Domain = directory.Domain(domain)
	m.LastLoginAt = timePtr(lastLogin)
	return m, nil
}

// Create skips the insert when an active membership for the same (identity,
// org) pair already exists and reports ErrConflict. The conflict is resolved
// with ON CONFLICT rather than a unique violation so an enclosing
// transaction stays usable for the follow-up read.
func (t membershipTable) Create(ctx context.Context, m *directory.Membership) error {
	if m.ID == "" {
		m.ID = ids.New()
	}
	res, err := t.q.ExecContext(ctx, `
		insert into memberships (`+membershipColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		on conflict (identity_user_id, organization_id) where active do nothing
	`, m.ID, m.OrganizationID, m.IdentityUserID, m.FullName, m.Email, m.Role, int16(m.Domain), m.Active,
		nullTime(m.LastLoginAt), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return mapWriteErr(err, directory.ErrConflict, directory.ErrNotFound)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: active membership exists for user %s in organization %s", directory.ErrConflict, m.IdentityUserID, m.OrganizationID)
	}
	return nil
}

func (t membershipTable) Get(ctx context.Context, id string) (directory.Membership, error) {
	return t.one(ctx, `select `+membershipColumns+` from memberships where id = $1`, id)
}

func (t membershipTable) FindActive(ctx context.Context, identityUserID, orgID string) (directory.Membership, error) {
	return t.one(ctx, `
		select `+membershipColumns+`
		from memberships
		where identity_user_id = $1 and organization_id = $2 and active
	`, identityUserID, orgID)
}

func (t membershipTable) ListByUser(ctx context.Context, identityUserID string) ([]directory.Membership, error) {
	return t.many(ctx, `
		select `+membershipColumns+`
		from memberships
		where identity_user_id = $1
		order by created_at, id
	`, identityUserID)
}

func (t membershipTable) ListByOrg(ctx context.Context, orgID string) ([]directory.Membership, error) {
	return t.many(ctx, `
		select `+membershipColumns+`
		from memberships
		where organization_id = $1
		order by created_at, id
	`, orgID)
}

func (t membershipTable) Update(ctx context.Context, id string, upd directory.MembershipUpdate) (directory.Membership, error) {
	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	set := func(column string, value any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}
	if upd.Role != nil {
		set("role", *upd.Role)
	}
	if upd.FullName != nil {
		set("full_name", *upd.FullName)
	}
	if upd.Active != nil {
		set("active", *upd.Active)
	}
	if upd.LastLoginAt != nil {
		set("last_login_at", upd.LastLoginAt.UTC())
	}
	if len(setClauses) == 0 {
		return t.Get(ctx, id)
	}
	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id)
	query := fmt.Sprintf(`update memberships set %s where id = $%d returning %s`, strings.Join(setClauses, ", "), idx, membershipColumns)
	m, err := scanMembership(t.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Membership{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Membership{}, mapWriteErr(err, directory.ErrConflict, directory.ErrNotFound)
	}
	return m, nil
}

func (t membershipTable) one(ctx context.Context, query string, args ...any) (directory.Membership, error) {
	m, err := scanMembership(t.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Membership{}, directory.ErrNotFound
	}
	return m, err
}

func (t membershipTable) many(ctx context.Context, query string, args ...any) ([]directory.Membership, error) {
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []directory.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
