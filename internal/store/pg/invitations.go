package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"propdesk.io/internal/directory"
	"propdesk.io/internal/ids"
	"propdesk.io/internal/onboarding"
)

const invitationColumns = `id, token, email, full_name, organization_id, role, domain, invited_by, status, expires_at, accepted_at, accepted_by, created_at, updated_at`

type invitationTable struct{ q querier }

func scanInvitation(row scanner) (onboarding.Invitation, error) {
	var (
		inv                             onboarding.Invitation
		fullName, invitedBy, acceptedBy sql.NullString
		domain                          int16
		status                          string
		acceptedAt                      sql.NullTime
	)
	if err := row.Scan(&inv.ID, &inv.Token, &inv.Email, &fullName, &inv.OrganizationID, &inv.Role, &domain, &invitedBy,
		&status, &inv.ExpiresAt, &acceptedAt, &acceptedBy, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return onboarding.Invitation{}, err
	}
	parsed, err := onboarding.ParseStatus(status)
	if err != nil {
		return onboarding.Invitation{}, fmt.Errorf("invitation %s: %w", inv.ID, err)
	}
	inv.Status = parsed
	inv.Domain = directory.Domain(domain)
	inv.FullName, inv.InvitedBy, inv.AcceptedBy = fullName.String, invitedBy.String, acceptedBy.String
	inv.AcceptedAt = timePtr(acceptedAt)
	return inv, nil
}

func (t invitationTable) Create(ctx context.Context, inv *onboarding.Invitation) error {
	if inv.ID == "" {
		inv.ID = ids.New()
	}
	_, err := t.q.ExecContext(ctx, `
		insert into invitations (`+invitationColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, inv.ID, inv.Token, inv.Email, nullIfEmpty(inv.FullName), inv.OrganizationID, inv.Role, int16(inv.Domain),
		nullIfEmpty(inv.InvitedBy), inv.Status.String(), inv.ExpiresAt, nullTime(inv.AcceptedAt),
		nullIfEmpty(inv.AcceptedBy), inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return mapWriteErr(err, onboarding.ErrConflict, onboarding.ErrNotFound)
	}
	return nil
}

func (t invitationTable) Get(ctx context.Context, id string) (onboarding.Invitation, error) {
	return t.one(ctx, `select `+invitationColumns+` from invitations where id = $1`, id)
}

func (t invitationTable) FindByToken(ctx context.Context, token string) (onboarding.Invitation, error) {
	return t.one(ctx, `select `+invitationColumns+` from invitations where token = $1`, token)
}

// LockByToken takes a row lock held until the surrounding transaction ends.
func (t invitationTable) LockByToken(ctx context.Context, token string) (onboarding.Invitation, error) {
	return t.one(ctx, `select `+invitationColumns+` from invitations where token = $1 for update`, token)
}

func (t invitationTable) FindPending(ctx context.Context, email, orgID string) (onboarding.Invitation, error) {
	return t.one(ctx, `
		select `+invitationColumns+`
		from invitations
		where organization_id = $1 and email = $2 and status = 'pending'
		order by created_at desc, id desc
		limit 1
	`, orgID, email)
}

func (t invitationTable) ListByOrg(ctx context.Context, orgID string) ([]onboarding.Invitation, error) {
	rows, err := t.q.QueryContext(ctx, `
		select `+invitationColumns+`
		from invitations
		where organization_id = $1
		order by created_at desc, id desc
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []onboarding.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Transition is a compare-and-set on status.
func (t invitationTable) Transition(ctx context.Context, id string, req onboarding.TransitionRequest) (onboarding.Invitation, error) {
	var acceptedAt sql.NullTime
	var acceptedBy sql.NullString
	if req.To == onboarding.StatusAccepted {
		acceptedAt = sql.NullTime{Time: req.At.UTC(), Valid: true}
		acceptedBy = nullIfEmpty(req.AcceptedBy)
	}
	inv, err := scanInvitation(t.q.QueryRowContext(ctx, `
		update invitations
		set status = $1,
		    updated_at = $2,
		    accepted_at = coalesce($3, accepted_at),
		    accepted_by = coalesce($4, accepted_by)
		where id = $5 and status = $6
		returning `+invitationColumns,
		req.To.String(), req.At.UTC(), acceptedAt, acceptedBy, id, req.From.String()))
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return onboarding.Invitation{}, err
	}
	var current string
	err = t.q.QueryRowContext(ctx, `select status from invitations where id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return onboarding.Invitation{}, onboarding.ErrNotFound
	}
	if err != nil {
		return onboarding.Invitation{}, err
	}
	return onboarding.Invitation{}, onboarding.ErrInvalidState
}

func (t invitationTable) one(ctx context.Context, query string, args ...any) (onboarding.Invitation, error) {
	inv, err := scanInvitation(t.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return onboarding.Invitation{}, onboarding.ErrNotFound
	}
	return inv, err
}
