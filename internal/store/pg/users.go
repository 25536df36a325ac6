package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"propdesk.io/internal/directory"
	"propdesk.io/internal/identity"
	"propdesk.io/internal/ids"
)

const userColumns = `id, email, full_name, password_hash, domain_types, last_membership_ids, last_domain_switch_at, created_at, updated_at`

type userTable struct{ q querier }

func scanUser(row scanner) (identity.User, error) {
	var (
		u        identity.User
		domains  int16
		rawLast  []byte
		switched sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &domains, &rawLast, &switched, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return identity.User{}, err
	}
	u.DomainTypes = directory.Domain(domains)
	u.LastDomainSwitchAt = timePtr(switched)
	if len(rawLast) > 0 {
		if err := json.Unmarshal(rawLast, &u.LastMembershipIDs); err != nil {
			return identity.User{}, fmt.Errorf("decode last_membership_ids: %w", err)
		}
	}
	return u, nil
}

func encodeLast(last map[directory.Domain]string) ([]byte, error) {
	if len(last) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(last)
}

func (t userTable) Create(ctx context.Context, u *identity.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	last, err := encodeLast(u.LastMembershipIDs)
	if err != nil {
		return err
	}
	_, err = t.q.ExecContext(ctx, `
		insert into users (`+userColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, u.ID, u.Email, u.FullName, u.PasswordHash, int16(u.DomainTypes), last, nullTime(u.LastDomainSwitchAt), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return mapWriteErr(err, identity.ErrConflict, identity.ErrNotFound)
	}
	return nil
}

func (t userTable) FindByID(ctx context.Context, id string) (identity.User, error) {
	return t.one(ctx, `select `+userColumns+` from users where id = $1`, id)
}

func (t userTable) FindByEmail(ctx context.Context, email string) (identity.User, error) {
	return t.one(ctx, `select `+userColumns+` from users where lower(email) = lower($1)`, email)
}

func (t userTable) Update(ctx context.Context, u identity.User) error {
	last, err := encodeLast(u.LastMembershipIDs)
	if err != nil {
		return err
	}
	res, err := t.q.ExecContext(ctx, `
		update users
		set email = $1, full_name = $2, password_hash = $3, domain_types = $4,
		    last_membership_ids = $5, last_domain_switch_at = $6, updated_at = $7
		where id = $8
	`, u.Email, u.FullName, u.PasswordHash, int16(u.DomainTypes), last, nullTime(u.LastDomainSwitchAt), u.UpdatedAt, u.ID)
	if err != nil {
		return mapWriteErr(err, identity.ErrConflict, identity.ErrNotFound)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (t userTable) one(ctx context.Context, query string, args ...any) (identity.User, error) {
	u, err := scanUser(t.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return identity.User{}, identity.ErrNotFound
	}
	return u, err
}
