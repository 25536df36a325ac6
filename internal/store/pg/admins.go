package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"propdesk.io/internal/auth"
	"propdesk.io/internal/ids"
)

const (
	roleColumns  = `id, name, description, manage_admins, manage_users, manage_companies, view_reports, manage_system, access_billing, manage_support, active, created_at`
	adminColumns = `id, identity_user_id, role_id, is_super_admin, active, created_by, updated_by, created_at, updated_at`
)

type adminTable struct{ q querier }

func scanRole(row scanner) (auth.AdminRole, error) {
	var (
		r    auth.AdminRole
		desc sql.NullString
	)
	err := row.Scan(&r.ID, &r.Name, &desc, &r.ManageAdmins, &r.ManageUsers, &r.ManageCompanies, &r.ViewReports,
		&r.ManageSystem, &r.AccessBilling, &r.ManageSupport, &r.Active, &r.CreatedAt)
	r.Description = desc.String
	return r, err
}

func scanAdmin(row scanner) (auth.SystemAdmin, error) {
	var (
		a                    auth.SystemAdmin
		createdBy, updatedBy sql.NullString
	)
	err := row.Scan(&a.ID, &a.IdentityUserID, &a.RoleID, &a.SuperAdmin, &a.Active, &createdBy, &updatedBy, &a.CreatedAt, &a.UpdatedAt)
	a.CreatedBy, a.UpdatedBy = createdBy.String, updatedBy.String
	return a, err
}

func (t adminTable) ListRoles(ctx context.Context) ([]auth.AdminRole, error) {
	rows, err := t.q.QueryContext(ctx, `select `+roleColumns+` from admin_roles order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.AdminRole
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (t adminTable) GetRole(ctx context.Context, id string) (auth.AdminRole, error) {
	r, err := scanRole(t.q.QueryRowContext(ctx, `select `+roleColumns+` from admin_roles where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.AdminRole{}, auth.ErrNotFound
	}
	return r, err
}

func (t adminTable) CreateAdmin(ctx context.Context, a *auth.SystemAdmin) error {
	if a.ID == "" {
		a.ID = ids.New()
	}
	_, err := t.q.ExecContext(ctx, `
		insert into system_admins (`+adminColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.IdentityUserID, a.RoleID, a.SuperAdmin, a.Active, nullIfEmpty(a.CreatedBy), nullIfEmpty(a.UpdatedBy), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return mapWriteErr(err, auth.ErrConflict, auth.ErrNotFound)
	}
	return nil
}

func (t adminTable) GetAdmin(ctx context.Context, id string) (auth.SystemAdmin, error) {
	a, err := scanAdmin(t.q.QueryRowContext(ctx, `select `+adminColumns+` from system_admins where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.SystemAdmin{}, auth.ErrNotFound
	}
	return a, err
}

func (t adminTable) ListAdmins(ctx context.Context) ([]auth.SystemAdmin, error) {
	rows, err := t.q.QueryContext(ctx, `select `+adminColumns+` from system_admins order by created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.SystemAdmin
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (t adminTable) UpdateAdmin(ctx context.Context, id string, upd auth.AdminUpdate) (auth.SystemAdmin, error) {
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
	if upd.RoleID != nil {
		set("role_id", *upd.RoleID)
	}
	if upd.SuperAdmin != nil {
		set("is_super_admin", *upd.SuperAdmin)
	}
	if upd.Active != nil {
		set("active", *upd.Active)
	}
	set("updated_by", nullIfEmpty(upd.UpdatedBy))
	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id)
	query := fmt.Sprintf(`update system_admins set %s where id = $%d returning %s`, strings.Join(setClauses, ", "), idx, adminColumns)
	a, err := scanAdmin(t.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.SystemAdmin{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.SystemAdmin{}, mapWriteErr(err, auth.ErrConflict, auth.ErrNotFound)
	}
	return a, nil
}

// FindAdminByIdentity loads the admin and its role in one round trip.
func (t adminTable) FindAdminByIdentity(ctx context.Context, identityUserID string) (auth.AdminGrant, error) {
	var (
		g                    auth.AdminGrant
		createdBy, updatedBy sql.NullString
		desc                 sql.NullString
	)
	err := t.q.QueryRowContext(ctx, `
		select a.id, a.identity_user_id, a.role_id, a.is_super_admin, a.active, a.created_by, a.updated_by, a.created_at, a.updated_at,
		       r.id, r.name, r.description, r.manage_admins, r.manage_users, r.manage_companies, r.view_reports,
		       r.manage_system, r.access_billing, r.manage_support, r.active, r.created_at
		from system_admins a
		join admin_roles r on r.id = a.role_id
		where a.identity_user_id = $1
	`, identityUserID).Scan(
		&g.Admin.ID, &g.Admin.IdentityUserID, &g.Admin.RoleID, &g.Admin.SuperAdmin, &g.Admin.Active,
		&createdBy, &updatedBy, &g.Admin.CreatedAt, &g.Admin.UpdatedAt,
		&g.Role.ID, &g.Role.Name, &desc, &g.Role.ManageAdmins, &g.Role.ManageUsers, &g.Role.ManageCompanies,
		&g.Role.ViewReports, &g.Role.ManageSystem, &g.Role.AccessBilling, &g.Role.ManageSupport, &g.Role.Active, &g.Role.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.AdminGrant{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.AdminGrant{}, err
	}
	g.Admin.CreatedBy, g.Admin.UpdatedBy = createdBy.String, updatedBy.String
	g.Role.Description = desc.String
	return g, nil
}
