package courses

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-lms/lumina/internal/platform/db"
	"github.com/lumina-lms/lumina/internal/shared"
)

// Repository provides PostgreSQL backed persistence for courses.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations used inside course mutations. The
// advisory lock keyed by administrator id serializes check-then-act sequences
// (create, activate) that guard the per-administrator quotas.
type TxRepository interface {
	LockAdmin(ctx context.Context, adminID int64) error
	InsertCourse(ctx context.Context, course Course) (int64, error)
	CountOwned(ctx context.Context, adminID int64) (int, error)
	GetBySlugForUpdate(ctx context.Context, slug string) (*Course, error)
	HasOtherActive(ctx context.Context, adminID, exceptCourseID int64) (bool, error)
	SetActive(ctx context.Context, courseID int64, active bool) error
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

const courseColumns = `id, admin_id, slug, name, cover, description, sequence, is_active, created_at, updated_at`

func scanCourse(row pgx.Row) (*Course, error) {
	var c Course
	err := row.Scan(&c.ID, &c.AdminID, &c.Slug, &c.Name, &c.Cover, &c.Description,
		&c.Sequence, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetBySlug fetches a course by its slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE slug = $1`
	return scanCourse(r.pool.QueryRow(ctx, query, slug))
}

// CountOwned counts every course owned by the administrator, active or not.
func (r *Repository) CountOwned(ctx context.Context, adminID int64) (int, error) {
	const query = `SELECT count(*) FROM courses WHERE admin_id = $1`
	var n int
	if err := r.pool.QueryRow(ctx, query, adminID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// HasOtherActive reports whether the administrator has an active course other
// than the given one.
func (r *Repository) HasOtherActive(ctx context.Context, adminID, exceptCourseID int64) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM courses WHERE admin_id = $1 AND is_active AND id <> $2)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, adminID, exceptCourseID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

const visibleColumns = `c.slug, c.name, a.first_name || ' ' || a.last_name AS admin,
	c.cover, c.description, c.sequence, c.is_active`

func (r *Repository) queryVisible(ctx context.Context, query string, args ...any) ([]VisibleCourse, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []VisibleCourse{}
	for rows.Next() {
		var v VisibleCourse
		if err := rows.Scan(&v.Slug, &v.Name, &v.AdminName, &v.Cover, &v.Description,
			&v.Sequence, &v.IsActive); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListAll returns every course regardless of status. Superuser view.
func (r *Repository) ListAll(ctx context.Context) ([]VisibleCourse, error) {
	const query = `SELECT ` + visibleColumns + `
		FROM courses c JOIN accounts a ON a.id = c.admin_id
		ORDER BY c.name`
	return r.queryVisible(ctx, query)
}

// ListByAdmin returns the administrator's own courses, active or not.
func (r *Repository) ListByAdmin(ctx context.Context, adminID int64) ([]VisibleCourse, error) {
	const query = `SELECT ` + visibleColumns + `
		FROM courses c JOIN accounts a ON a.id = c.admin_id
		WHERE c.admin_id = $1
		ORDER BY c.name`
	return r.queryVisible(ctx, query, adminID)
}

// ListActiveByAdmins returns active courses owned by any of the given
// administrators. Curator view.
func (r *Repository) ListActiveByAdmins(ctx context.Context, adminIDs []int64) ([]VisibleCourse, error) {
	if len(adminIDs) == 0 {
		return []VisibleCourse{}, nil
	}
	const query = `SELECT ` + visibleColumns + `
		FROM courses c JOIN accounts a ON a.id = c.admin_id
		WHERE c.is_active AND c.admin_id = ANY($1)
		ORDER BY c.name`
	return r.queryVisible(ctx, query, adminIDs)
}

// ListActiveForLearner returns every active course, LEFT-joined with the
// learner's own entitlement: courses without a row come back with
// access=false and no end date, not filtered out.
func (r *Repository) ListActiveForLearner(ctx context.Context, learnerID int64) ([]VisibleCourse, error) {
	const query = `SELECT ` + visibleColumns + `, COALESCE(e.access, false), e.date_end
		FROM courses c
		JOIN accounts a ON a.id = c.admin_id
		LEFT JOIN entitlements e ON e.course_id = c.id AND e.user_id = $1
		WHERE c.is_active
		ORDER BY c.name`
	rows, err := r.pool.Query(ctx, query, learnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []VisibleCourse{}
	for rows.Next() {
		var v VisibleCourse
		var access bool
		if err := rows.Scan(&v.Slug, &v.Name, &v.AdminName, &v.Cover, &v.Description,
			&v.Sequence, &v.IsActive, &access, &v.DateEnd); err != nil {
			return nil, err
		}
		v.Access = &access
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateCourse applies a partial update.
func (r *Repository) UpdateCourse(ctx context.Context, id int64, req UpdateCourseRequest) error {
	const query = `UPDATE courses SET
		name = COALESCE($2, name),
		cover = COALESCE($3, cover),
		description = COALESCE($4, description),
		sequence = COALESCE($5, sequence),
		updated_at = now()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, req.Name, req.Cover, req.Description, req.Sequence)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteCourse removes a course. Entitlements and lessons cascade at the
// schema level.
func (r *Repository) DeleteCourse(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// LockAdmin takes the per-administrator advisory lock for the duration of
// the transaction.
func (t *txRepo) LockAdmin(ctx context.Context, adminID int64) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, adminID)
	return err
}

func (t *txRepo) InsertCourse(ctx context.Context, course Course) (int64, error) {
	const query = `INSERT INTO courses (admin_id, slug, name, cover, description, sequence, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING id`
	var id int64
	err := t.tx.QueryRow(ctx, query, course.AdminID, course.Slug, course.Name,
		course.Cover, course.Description, course.Sequence, course.IsActive).Scan(&id)
	return id, err
}

func (t *txRepo) CountOwned(ctx context.Context, adminID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT count(*) FROM courses WHERE admin_id = $1`, adminID).Scan(&n)
	return n, err
}

func (t *txRepo) GetBySlugForUpdate(ctx context.Context, slug string) (*Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE slug = $1 FOR UPDATE`
	return scanCourse(t.tx.QueryRow(ctx, query, slug))
}

func (t *txRepo) HasOtherActive(ctx context.Context, adminID, exceptCourseID int64) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM courses WHERE admin_id = $1 AND is_active AND id <> $2)`
	var exists bool
	err := t.tx.QueryRow(ctx, query, adminID, exceptCourseID).Scan(&exists)
	return exists, err
}

func (t *txRepo) SetActive(ctx context.Context, courseID int64, active bool) error {
	_, err := t.tx.Exec(ctx, `UPDATE courses SET is_active = $2, updated_at = now() WHERE id = $1`, courseID, active)
	return err
}

var _ TxRepository = (*txRepo)(nil)
