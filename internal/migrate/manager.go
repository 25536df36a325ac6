// Package migrate applies the embedded schema and seed files.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"propdesk.io/internal/obs"
)

const (
	migrationsTable = "schema_migrations"
	seedsTable      = "schema_seeds"

	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// Manager runs schema migrations and seeds. Each file is applied in its own
// transaction together with its bookkeeping row.
type Manager struct {
	db         *sql.DB
	migrations fs.FS
	seeds      fs.FS
	now        func() time.Time
}

// NewManager constructs a Manager. Either file system may be nil.
func NewManager(db *sql.DB, migrations, seeds fs.FS) *Manager {
	return &Manager{db: db, migrations: migrations, seeds: seeds, now: time.Now}
}

// Up applies every pending migration in file name order.
func (m *Manager) Up(ctx context.Context) error {
	return m.applyPending(ctx, m.migrations, upSuffix, migrationsTable)
}

// Seed applies every seed file not yet recorded.
func (m *Manager) Seed(ctx context.Context) error {
	return m.applyPending(ctx, m.seeds, ".sql", seedsTable)
}

// Down reverts the most recently applied migration.
func (m *Manager) Down(ctx context.Context) error {
	applied, err := m.Status(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return errors.New("migrate: no migrations applied")
	}
	last := applied[len(applied)-1]
	down := strings.TrimSuffix(last, upSuffix) + downSuffix
	files, err := listSQL(m.migrations, downSuffix)
	if err != nil {
		return err
	}
	for _, f := range files {
		if path.Base(f) != down {
			continue
		}
		err := m.run(ctx, m.migrations, f, fmt.Sprintf(`delete from %s where name = $1`, migrationsTable), last)
		if err != nil {
			return fmt.Errorf("migrate: revert %s: %w", last, err)
		}
		m.logApplied("reverted", last)
		return nil
	}
	return fmt.Errorf("migrate: no down file for %s", last)
}

// Status lists applied migrations, oldest first.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if err := m.ensureTables(ctx); err != nil {
		return nil, err
	}
	return m.applied(ctx, migrationsTable, " order by applied_at, name")
}

func (m *Manager) applyPending(ctx context.Context, fsys fs.FS, suffix, table string) error {
	if err := m.ensureTables(ctx); err != nil {
		return err
	}
	done, err := m.applied(ctx, table, "")
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(done))
	for _, name := range done {
		seen[name] = true
	}
	files, err := listSQL(fsys, suffix)
	if err != nil {
		return err
	}
	record := fmt.Sprintf(`insert into %s (name, applied_at) values ($1, $2)`, table)
	for _, f := range files {
		name := path.Base(f)
		if seen[name] {
			continue
		}
		if err := m.run(ctx, fsys, f, record, name, m.now().UTC()); err != nil {
			return fmt.Errorf("migrate: apply %s: %w", name, err)
		}
		m.logApplied("applied", name)
	}
	return nil
}

func (m *Manager) ensureTables(ctx context.Context) error {
	for _, table := range []string{migrationsTable, seedsTable} {
		ddl := fmt.Sprintf(`create table if not exists %s (
			name text primary key,
			applied_at timestamptz not null default now()
		)`, table)
		if _, err := m.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

// run executes the statements of file followed by the bookkeeping statement.
func (m *Manager) run(ctx context.Context, fsys fs.FS, file, bookkeeping string, args ...any) error {
	body, err := fs.ReadFile(fsys, file)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(body)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *Manager) applied(ctx context.Context, table, order string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`select name from %s`, table)+order)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (m *Manager) logApplied(action, name string) {
	obs.Logger().WithFields(logrus.Fields{"file": name}).Info("migration " + action)
}

func listSQL(fsys fs.FS, suffix string) ([]string, error) {
	if fsys == nil {
		return nil, nil
	}
	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), suffix) {
			files = append(files, p)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return path.Base(files[i]) < path.Base(files[j]) })
	return files, nil
}

// splitStatements cuts SQL on semicolons outside single-quoted literals and
// drops "--" line comments and empty statements.
func splitStatements(src string) []string {
	var (
		stmts    []string
		current  strings.Builder
		inString bool
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			stmts = append(stmts, s)
		}
		current.Reset()
	}
	for _, line := range strings.Split(src, "\n") {
		for i := 0; i < len(line); i++ {
			c := line[i]
			if !inString && c == '-' && strings.HasPrefix(line[i:], "--") {
				break
			}
			switch {
			case c == '\'':
				inString = !inString
				current.WriteByte(c)
			case c == ';' && !inString:
				flush()
			default:
				current.WriteByte(c)
			}
		}
		current.WriteByte('\n')
	}
	flush()
	return stmts
}
