package rbac

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"rbac-admin/pkg/utils"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepo stores the directory in the tables created by
// migrations/0001_init.sql:
// - page
// - role, role_page_permission
// - account, account_permission
//
// Ids are BIGSERIAL in the database and decimal strings in Go.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const pgUniqueViolation = "23505"

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrConflict
	}
	return err
}

func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	return n, err == nil && n > 0
}

func formatID(n int64) string { return strconv.FormatInt(n, 10) }

// --- pages ---

const pageColumns = `id, title, path, sort_order, COALESCE(description, ''), COALESCE(icon, '')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (Page, error) {
	var (
		p  Page
		id int64
	)
	if err := row.Scan(&id, &p.Title, &p.Path, &p.Order, &p.Description, &p.Icon); err != nil {
		return Page{}, err
	}
	p.ID = formatID(id)
	return p, nil
}

func (r *PostgresRepo) GetPage(ctx context.Context, id string) (Page, error) {
	n, ok := parseID(id)
	if !ok {
		return Page{}, ErrNotFound
	}
	p, err := scanPage(r.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM page WHERE id = $1`, n))
	if errors.Is(err, sql.ErrNoRows) {
		return Page{}, ErrNotFound
	}
	return p, err
}

func (r *PostgresRepo) GetPageByPath(ctx context.Context, path string) (Page, error) {
	p, err := scanPage(r.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM page WHERE path = $1`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return Page{}, ErrNotFound
	}
	return p, err
}

// ListPages returns pages in definition (id) order.
func (r *PostgresRepo) ListPages(ctx context.Context) ([]Page, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+pageColumns+` FROM page ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Page{}
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CreatePage(ctx context.Context, p Page) (Page, error) {
	const q = `
INSERT INTO page (title, path, sort_order, description, icon)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`
	var id int64
	if err := r.db.QueryRowContext(ctx, q,
		p.Title, p.Path, p.Order, utils.NullString(p.Description), utils.NullString(p.Icon),
	).Scan(&id); err != nil {
		return Page{}, mapWriteErr(err)
	}
	p.ID = formatID(id)
	return p, nil
}

func (r *PostgresRepo) UpdatePage(ctx context.Context, p Page) (Page, error) {
	n, ok := parseID(p.ID)
	if !ok {
		return Page{}, ErrNotFound
	}
	const q = `
UPDATE page
SET title = $2, path = $3, sort_order = $4, description = $5, icon = $6
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q,
		n, p.Title, p.Path, p.Order, utils.NullString(p.Description), utils.NullString(p.Icon),
	)
	if err != nil {
		return Page{}, mapWriteErr(err)
	}
	if err := utils.AffectedOne(res, ErrNotFound); err != nil {
		return Page{}, err
	}
	return p, nil
}

func (r *PostgresRepo) DeletePage(ctx context.Context, id string) error {
	n, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM page WHERE id = $1`, n)
	if err != nil {
		return err
	}
	return utils.AffectedOne(res, ErrNotFound)
}

// --- roles ---

func (r *PostgresRepo) GetRole(ctx context.Context, id string) (Role, error) {
	n, ok := parseID(id)
	if !ok {
		return Role{}, ErrNotFound
	}
	var (
		ro   Role
		desc sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, name, description FROM role WHERE id = $1`, n).
		Scan(&n, &ro.Name, &desc)
	if errors.Is(err, sql.ErrNoRows) {
		return Role{}, ErrNotFound
	}
	if err != nil {
		return Role{}, err
	}
	ro.ID, ro.Description = formatID(n), desc.String

	grants, err := r.roleGrants(ctx, n)
	if err != nil {
		return Role{}, err
	}
	ro.PageIDs = grants[ro.ID]
	if ro.PageIDs == nil {
		ro.PageIDs = []string{}
	}
	return ro, nil
}

func (r *PostgresRepo) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description FROM role ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Role{}
	for rows.Next() {
		var (
			ro   Role
			id   int64
			desc sql.NullString
		)
		if err := rows.Scan(&id, &ro.Name, &desc); err != nil {
			return nil, err
		}
		ro.ID, ro.Description = formatID(id), desc.String
		out = append(out, ro)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	grants, err := r.roleGrants(ctx, 0)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].PageIDs = grants[out[i].ID]
		if out[i].PageIDs == nil {
			out[i].PageIDs = []string{}
		}
	}
	return out, nil
}

// roleGrants maps role id to granted page ids; roleID 0 loads every role.
func (r *PostgresRepo) roleGrants(ctx context.Context, roleID int64) (map[string][]string, error) {
	const q = `
SELECT role_id, page_id
FROM role_page_permission
WHERE can_view AND ($1 = 0 OR role_id = $1)
ORDER BY role_id, page_id
`
	rows, err := r.db.QueryContext(ctx, q, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var rid, pid int64
		if err := rows.Scan(&rid, &pid); err != nil {
			return nil, err
		}
		key := formatID(rid)
		out[key] = append(out[key], formatID(pid))
	}
	return out, rows.Err()
}

func replaceGrants(ctx context.Context, tx *sql.Tx, roleID int64, pageIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM role_page_permission WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	for _, pid := range pageIDs {
		n, ok := parseID(pid)
		if !ok {
			return ErrInvalidArgument
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO role_page_permission (role_id, page_id, can_view) VALUES ($1, $2, TRUE)`,
			roleID, n,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepo) CreateRole(ctx context.Context, ro Role) (Role, error) {
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var id int64
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO role (name, description) VALUES ($1, $2) RETURNING id`,
			ro.Name, utils.NullString(ro.Description),
		).Scan(&id); err != nil {
			return mapWriteErr(err)
		}
		ro.ID = formatID(id)
		return replaceGrants(ctx, tx, id, ro.PageIDs)
	})
	if err != nil {
		return Role{}, err
	}
	return ro, nil
}

func (r *PostgresRepo) UpdateRole(ctx context.Context, ro Role) (Role, error) {
	n, ok := parseID(ro.ID)
	if !ok {
		return Role{}, ErrNotFound
	}
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE role SET name = $2, description = $3 WHERE id = $1`,
			n, ro.Name, utils.NullString(ro.Description))
		if err != nil {
			return mapWriteErr(err)
		}
		if err := utils.AffectedOne(res, ErrNotFound); err != nil {
			return err
		}
		return replaceGrants(ctx, tx, n, ro.PageIDs)
	})
	if err != nil {
		return Role{}, err
	}
	return ro, nil
}

func (r *PostgresRepo) DeleteRole(ctx context.Context, id string) error {
	n, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM role WHERE id = $1`, n)
	if err != nil {
		return err
	}
	return utils.AffectedOne(res, ErrNotFound)
}

func (r *PostgresRepo) CountUsersWithRole(ctx context.Context, roleID string) (int, error) {
	n, ok := parseID(roleID)
	if !ok {
		return 0, nil
	}
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT account_id) FROM account_permission WHERE role_id = $1`, n,
	).Scan(&count)
	return count, err
}

// --- users ---

const accountColumns = `id, username, COALESCE(full_name, ''), COALESCE(title, ''), COALESCE(email, ''), is_active`

func scanUser(row rowScanner) (User, error) {
	var (
		u  User
		id int64
	)
	if err := row.Scan(&id, &u.Username, &u.FullName, &u.Title, &u.Email, &u.Active); err != nil {
		return User{}, err
	}
	u.ID = formatID(id)
	return u, nil
}

func (r *PostgresRepo) GetUser(ctx context.Context, id string) (User, error) {
	n, ok := parseID(id)
	if !ok {
		return User{}, ErrUserNotFound
	}
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM account WHERE id = $1`, n))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	assigned, err := r.accountRoles(ctx, n)
	if err != nil {
		return User{}, err
	}
	u.RoleIDs = assigned[u.ID]
	if u.RoleIDs == nil {
		u.RoleIDs = []string{}
	}
	return u, nil
}

func (r *PostgresRepo) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM account ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	assigned, err := r.accountRoles(ctx, 0)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].RoleIDs = assigned[out[i].ID]
		if out[i].RoleIDs == nil {
			out[i].RoleIDs = []string{}
		}
	}
	return out, nil
}

// accountRoles maps account id to assigned role ids; accountID 0 loads every account.
func (r *PostgresRepo) accountRoles(ctx context.Context, accountID int64) (map[string][]string, error) {
	const q = `
SELECT account_id, role_id
FROM account_permission
WHERE $1 = 0 OR account_id = $1
ORDER BY account_id, role_id
`
	rows, err := r.db.QueryContext(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var aid, rid int64
		if err := rows.Scan(&aid, &rid); err != nil {
			return nil, err
		}
		key := formatID(aid)
		out[key] = append(out[key], formatID(rid))
	}
	return out, rows.Err()
}

func replaceAssignments(ctx context.Context, tx *sql.Tx, accountID int64, roleIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM account_permission WHERE account_id = $1`, accountID); err != nil {
		return err
	}
	for _, rid := range roleIDs {
		n, ok := parseID(rid)
		if !ok {
			return ErrInvalidArgument
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO account_permission (account_id, role_id) VALUES ($1, $2)`,
			accountID, n,
		); err != nil {
			return err
		}
	}
	return nil
}

// CreateUser honours a caller-supplied numeric id so rows can mirror the
// identity backend's account ids; otherwise the sequence assigns one.
func (r *PostgresRepo) CreateUser(ctx context.Context, u User) (User, error) {
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		args := []any{u.Username, utils.NullString(u.FullName), utils.NullString(u.Title), utils.NullString(u.Email), u.Active}
		q := `INSERT INTO account (username, full_name, title, email, is_active) VALUES ($1, $2, $3, $4, $5) RETURNING id`
		if u.ID != "" {
			n, ok := parseID(u.ID)
			if !ok {
				return ErrInvalidArgument
			}
			args = append(args, n)
			q = `INSERT INTO account (username, full_name, title, email, is_active, id) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
		}
		var id int64
		if err := tx.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
			return mapWriteErr(err)
		}
		u.ID = formatID(id)
		return replaceAssignments(ctx, tx, id, u.RoleIDs)
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (r *PostgresRepo) UpdateUser(ctx context.Context, u User) (User, error) {
	n, ok := parseID(u.ID)
	if !ok {
		return User{}, ErrUserNotFound
	}
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
UPDATE account
SET username = $2, full_name = $3, title = $4, email = $5, is_active = $6
WHERE id = $1
`
		res, err := tx.ExecContext(ctx, q,
			n, u.Username, utils.NullString(u.FullName), utils.NullString(u.Title), utils.NullString(u.Email), u.Active)
		if err != nil {
			return mapWriteErr(err)
		}
		if err := utils.AffectedOne(res, ErrUserNotFound); err != nil {
			return err
		}
		return replaceAssignments(ctx, tx, n, u.RoleIDs)
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (r *PostgresRepo) DeleteUser(ctx context.Context, id string) error {
	n, ok := parseID(id)
	if !ok {
		return ErrUserNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM account WHERE id = $1`, n)
	if err != nil {
		return err
	}
	return utils.AffectedOne(res, ErrUserNotFound)
}
