package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-lms/lumina/internal/roles"
	"github.com/lumina-lms/lumina/internal/shared"
)

// Repository provides PostgreSQL backed persistence for accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `id, email, first_name, last_name, role, password_hash, is_active, created_by, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Email, &a.FirstName, &a.LastName, &a.Role,
		&a.PasswordHash, &a.IsActive, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// GetByID fetches an account by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail fetches an account by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, email))
}

// Insert stores a new account and returns its id. Email uniqueness conflicts
// surface as ErrDuplicate.
func (r *Repository) Insert(ctx context.Context, a Account) (int64, error) {
	const query = `
		INSERT INTO accounts (email, first_name, last_name, role, password_hash, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, query, a.Email, a.FirstName, a.LastName, a.Role,
		a.PasswordHash, a.IsActive, a.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("email already registered: %w", shared.ErrDuplicate)
		}
		return 0, err
	}
	return id, nil
}

// Update applies a partial account update.
func (r *Repository) Update(ctx context.Context, id int64, req UpdateAccountRequest) error {
	const query = `
		UPDATE accounts SET
			first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			is_active = COALESCE($4, is_active),
			updated_at = now()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, req.FirstName, req.LastName, req.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetPassword stores a new password hash and activates the account.
func (r *Repository) SetPassword(ctx context.Context, id int64, hash string) error {
	const query = `UPDATE accounts SET password_hash = $2, is_active = true, updated_at = now() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes an account.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const memberColumns = `a.id, a.email, a.first_name, a.last_name, a.role`

func collectMembers(rows pgx.Rows) ([]Member, error) {
	defer rows.Close()
	list := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Email, &m.FirstName, &m.LastName, &m.Role); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// ListBelowSuperuser returns every non-superuser account.
func (r *Repository) ListBelowSuperuser(ctx context.Context) ([]Member, error) {
	const query = `SELECT ` + memberColumns + ` FROM accounts a WHERE a.role <> $1 ORDER BY a.last_name, a.first_name, a.id`
	rows, err := r.pool.Query(ctx, query, roles.Superuser)
	if err != nil {
		return nil, err
	}
	return collectMembers(rows)
}

// ListMembersForAdmins returns the member set of one or more administrators:
// their delegated curators plus learners holding a live entitlement to one of
// their courses. learnersOnly drops the curators, limit truncates the result
// (0 means unbounded).
func (r *Repository) ListMembersForAdmins(ctx context.Context, adminIDs []int64, learnersOnly bool, limit int) ([]Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM accounts a
		WHERE a.id IN (
			SELECT d.user_id FROM delegations d WHERE d.lead_id = ANY($1)
			UNION
			SELECT e.user_id
			FROM entitlements e
			JOIN courses c ON c.id = e.course_id
			WHERE c.admin_id = ANY($1) AND e.access
		)`
	args := []any{adminIDs}
	if learnersOnly {
		query += ` AND a.role = $2`
		args = append(args, roles.Learner)
	}
	query += ` ORDER BY a.last_name, a.first_name, a.id`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectMembers(rows)
}
