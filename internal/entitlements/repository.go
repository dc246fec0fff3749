package entitlements

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-lms/lumina/internal/platform/db"
	"github.com/lumina-lms/lumina/internal/shared"
)

// Repository provides PostgreSQL backed persistence for entitlements and
// delegations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations that must run inside the platform
// access toggle transaction.
type TxRepository interface {
	GetSelfEntitlementForUpdate(ctx context.Context, adminID int64) (*Entitlement, error)
	DeleteSelfEntitlement(ctx context.Context, adminID int64) error
	InsertSelfEntitlement(ctx context.Context, adminID int64) error
	DeactivateCoursesExceptEarliest(ctx context.Context, adminID int64) (int64, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps fn in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// HasPlatformAccess reports whether a self-entitlement row with access=true
// exists for the administrator. Absence of a row means false.
func (r *Repository) HasPlatformAccess(ctx context.Context, adminID int64) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM entitlements WHERE user_id = $1 AND course_id IS NULL AND access)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, adminID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// HasCourseAccess reports whether the user holds an active, unexpired
// entitlement to the course as of the given date.
func (r *Repository) HasCourseAccess(ctx context.Context, userID, courseID int64, asOf time.Time) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM entitlements
		WHERE user_id = $1 AND course_id = $2 AND access
		  AND (date_end IS NULL OR date_end >= $3))`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, courseID, asOf).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// GetCourseEntitlement fetches the subscription row for (user, course).
func (r *Repository) GetCourseEntitlement(ctx context.Context, userID, courseID int64) (*Entitlement, error) {
	const query = `SELECT id, user_id, course_id, access, date_start, date_end
		FROM entitlements WHERE user_id = $1 AND course_id = $2`
	row := r.pool.QueryRow(ctx, query, userID, courseID)
	var e Entitlement
	if err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Access, &e.DateStart, &e.DateEnd); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// InsertCourseEntitlement creates the (user, course) subscription if absent.
// The unique index on (user_id, course_id) makes repeated calls leave exactly
// one row. Returns whether a row was created.
func (r *Repository) InsertCourseEntitlement(ctx context.Context, userID, courseID int64, access bool) (bool, error) {
	const query = `INSERT INTO entitlements (user_id, course_id, access, date_start)
		VALUES ($1, $2, $3, CURRENT_DATE)
		ON CONFLICT (user_id, course_id) DO NOTHING`
	tag, err := r.pool.Exec(ctx, query, userID, courseID, access)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateCourseAccess updates access/expiry on an existing (user, course) row
// and returns the number of rows touched. It never creates rows.
func (r *Repository) UpdateCourseAccess(ctx context.Context, userID, courseID int64, access bool, dateEnd *time.Time) (int64, error) {
	const query = `UPDATE entitlements SET access = $3, date_end = $4
		WHERE user_id = $1 AND course_id = $2`
	tag, err := r.pool.Exec(ctx, query, userID, courseID, access, dateEnd)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListDelegates returns the administrator ids the curator is delegated to.
func (r *Repository) ListDelegates(ctx context.Context, curatorID int64) ([]int64, error) {
	const query = `SELECT lead_id FROM delegations WHERE user_id = $1 ORDER BY lead_id`
	rows, err := r.pool.Query(ctx, query, curatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// InsertDelegation records a curator → administrator edge. The composite
// primary key deduplicates repeated calls. Returns whether an edge was added.
func (r *Repository) InsertDelegation(ctx context.Context, curatorID, adminID int64) (bool, error) {
	const query = `INSERT INTO delegations (user_id, lead_id, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id, lead_id) DO NOTHING`
	tag, err := r.pool.Exec(ctx, query, curatorID, adminID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ExpireOverdue flips access off for subscriptions whose end date has passed.
func (r *Repository) ExpireOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	const query = `UPDATE entitlements SET access = false
		WHERE access AND course_id IS NOT NULL AND date_end IS NOT NULL AND date_end < $1`
	tag, err := r.pool.Exec(ctx, query, asOf)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GetSelfEntitlementForUpdate locks and returns the administrator's
// self-entitlement row, or shared.ErrNotFound when none exists.
func (t *txRepo) GetSelfEntitlementForUpdate(ctx context.Context, adminID int64) (*Entitlement, error) {
	const query = `SELECT id, user_id, course_id, access, date_start, date_end
		FROM entitlements WHERE user_id = $1 AND course_id IS NULL FOR UPDATE`
	row := t.tx.QueryRow(ctx, query, adminID)
	var e Entitlement
	if err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Access, &e.DateStart, &e.DateEnd); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (t *txRepo) DeleteSelfEntitlement(ctx context.Context, adminID int64) error {
	const query = `DELETE FROM entitlements WHERE user_id = $1 AND course_id IS NULL`
	_, err := t.tx.Exec(ctx, query, adminID)
	return err
}

// InsertSelfEntitlement creates the singleton self-entitlement row. The
// partial unique index on (user_id) WHERE course_id IS NULL enforces
// at-most-one per administrator.
func (t *txRepo) InsertSelfEntitlement(ctx context.Context, adminID int64) error {
	const query = `INSERT INTO entitlements (user_id, course_id, access, date_start)
		VALUES ($1, NULL, true, CURRENT_DATE)
		ON CONFLICT (user_id) WHERE course_id IS NULL DO UPDATE SET access = true`
	_, err := t.tx.Exec(ctx, query, adminID)
	return err
}

// DeactivateCoursesExceptEarliest turns off every course owned by the
// administrator except the earliest-created one.
func (t *txRepo) DeactivateCoursesExceptEarliest(ctx context.Context, adminID int64) (int64, error) {
	const query = `UPDATE courses SET is_active = false, updated_at = now()
		WHERE admin_id = $1 AND id <> (
			SELECT id FROM courses WHERE admin_id = $1 ORDER BY created_at, id LIMIT 1)`
	tag, err := t.tx.Exec(ctx, query, adminID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ TxRepository = (*txRepo)(nil)
