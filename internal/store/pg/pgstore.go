package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"propdesk.io/internal/audit"
	"propdesk.io/internal/auth"
	"propdesk.io/internal/directory"
	"propdesk.io/internal/identity"
	"propdesk.io/internal/onboarding"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// PoolConfig tunes the connection pool. Zero values keep the database/sql
// defaults; config.Load supplies the tuned ones.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type Store struct {
	db *sql.DB
}

func Open(dsn string, pool PoolConfig) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn is a handle on the database, or on the open transaction of a unit of
// work.
type conn struct {
	s  *Store
	q  querier
	tx bool
}

func (s *Store) root() conn { return conn{s: s, q: s.db} }

func (s *Store) atomically(ctx context.Context, fn func(conn) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(conn{s: s, q: tx, tx: true}); err != nil {
		return err
	}
	return tx.Commit()
}

var (
	_ directory.Store  = directoryView{}
	_ onboarding.Store = onboardingView{}
	_ identity.Store   = userTable{}
	_ auth.AdminStore  = adminTable{}
	_ audit.Store      = activityTable{}
)

// Directory adapts the store to directory.Store.
func (s *Store) Directory() directory.Store { return directoryView{s.root()} }

// Onboarding adapts the store to onboarding.Store.
func (s *Store) Onboarding() onboarding.Store { return onboardingView{s.root()} }

func (s *Store) Identities() identity.Store { return userTable{s.db} }

func (s *Store) Admins() auth.AdminStore { return adminTable{s.db} }

func (s *Store) Activity() audit.Store { return activityTable{s.db} }

type directoryView struct{ c conn }

func (d directoryView) Organizations() directory.OrganizationStore { return orgTable{d.c.q} }
func (d directoryView) Memberships() directory.MembershipStore     { return membershipTable{d.c.q} }

func (d directoryView) Atomically(ctx context.Context, fn func(directory.Store) error) error {
	if d.c.tx {
		return fn(d)
	}
	return d.c.s.atomically(ctx, func(c conn) error { return fn(directoryView{c}) })
}

type onboardingView struct{ c conn }

func (o onboardingView) Organizations() directory.OrganizationStore { return orgTable{o.c.q} }
func (o onboardingView) Memberships() directory.MembershipStore     { return membershipTable{o.c.q} }
func (o onboardingView) Invitations() onboarding.InvitationStore    { return invitationTable{o.c.q} }

func (o onboardingView) Atomically(ctx context.Context, fn func(onboarding.Store) error) error {
	if o.c.tx {
		return fn(o)
	}
	return o.c.s.atomically(ctx, func(c conn) error { return fn(onboardingView{c}) })
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// mapWriteErr translates constraint violations into domain errors.
func mapWriteErr(err, conflict, missing error) error {
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return conflict
		case pgErrForeignKeyViolation:
			return missing
		}
	}
	return err
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
