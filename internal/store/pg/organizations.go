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

const orgColumns = `id, name, legal_name, email, phone, address, domain, active, created_at, updated_at`

type orgTable struct{ q querier }

func scanOrg(row scanner) (directory.Organization, error) {
	var (
		org                          directory.Organization
		legal, email, phone, address sql.NullString
		domain                       int16
	)
	if err := row.Scan(&org.ID, &org.Name, &legal, &email, &phone, &address, &domain, &org.Active, &org.CreatedAt, &org.UpdatedAt); err != nil {
		return directory.Organization{}, err
	}
	org.LegalName, org.Email, org.Phone, org.Address = legal.String, email.String, phone.String, address.String
	org.Domain = directory.Domain(domain)
	return org, nil
}

func (t orgTable) Create(ctx context.Context, org *directory.Organization) error {
	if org.ID == "" {
		org.ID = ids.New()
	}
	_, err := t.q.ExecContext(ctx, `
		insert into organizations (`+orgColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, org.ID, org.Name, nullIfEmpty(org.LegalName), nullIfEmpty(org.Email), nullIfEmpty(org.Phone),
		nullIfEmpty(org.Address), int16(org.Domain), org.Active, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return mapWriteErr(err, directory.ErrConflict, directory.ErrNotFound)
	}
	return nil
}

func (t orgTable) Get(ctx context.Context, id string) (directory.Organization, error) {
	org, err := scanOrg(t.q.QueryRowContext(ctx, `select `+orgColumns+` from organizations where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Organization{}, directory.ErrNotFound
	}
	return org, err
}

func (t orgTable) List(ctx context.Context) ([]directory.Organization, error) {
	rows, err := t.q.QueryContext(ctx, `select `+orgColumns+` from organizations order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []directory.Organization
	for rows.Next() {
		org, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, org)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (t orgTable) Update(ctx context.Context, id string, upd directory.OrganizationUpdate) (directory.Organization, error) {
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
	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.LegalName != nil {
		set("legal_name", nullIfEmpty(*upd.LegalName))
	}
	if upd.Email != nil {
		set("email", nullIfEmpty(*upd.Email))
	}
	if upd.Phone != nil {
		set("phone", nullIfEmpty(*upd.Phone))
	}
	if upd.Address != nil {
		set("address", nullIfEmpty(*upd.Address))
	}
	if upd.Active != nil {
		set("active", *upd.Active)
	}
	if len(setClauses) == 0 {
		return t.Get(ctx, id)
	}
	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id)
	query := fmt.Sprintf(`update organizations set %s where id = $%d returning %s`, strings.Join(setClauses, ", "), idx, orgColumns)
	org, err := scanOrg(t.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Organization{}, directory.ErrNotFound
	}
	return org, err
}
