package lessons

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumina-lms/lumina/internal/shared"
)

// CourseRef is the parent-course state the lesson policy needs. Fetched
// alongside lesson rows so one round trip answers both the content and the
// authorization question.
type CourseRef struct {
	ID       int64
	AdminID  int64
	IsActive bool
}

// Repository provides PostgreSQL backed persistence for lessons and their
// materials.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetCourseRef resolves a course slug to the state needed for lesson
// decisions.
func (r *Repository) GetCourseRef(ctx context.Context, slug string) (CourseRef, error) {
	const query = `SELECT id, admin_id, is_active FROM courses WHERE slug = $1`
	var ref CourseRef
	err := r.pool.QueryRow(ctx, query, slug).Scan(&ref.ID, &ref.AdminID, &ref.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CourseRef{}, shared.ErrNotFound
		}
		return CourseRef{}, err
	}
	return ref, nil
}

const lessonColumns = `id, course_id, name, free_access, description, video, text, home_task, created_at, updated_at`

func scanLesson(row pgx.Row) (*Lesson, error) {
	var l Lesson
	err := row.Scan(&l.ID, &l.CourseID, &l.Name, &l.FreeAccess, &l.Description,
		&l.Video, &l.Text, &l.HomeTask, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

func collectLessons(rows pgx.Rows) ([]Lesson, error) {
	defer rows.Close()
	list := []Lesson{}
	for rows.Next() {
		var l Lesson
		if err := rows.Scan(&l.ID, &l.CourseID, &l.Name, &l.FreeAccess, &l.Description,
			&l.Video, &l.Text, &l.HomeTask, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// ListByCourse returns every lesson of a course in creation order.
func (r *Repository) ListByCourse(ctx context.Context, courseID int64) ([]Lesson, error) {
	const query = `SELECT ` + lessonColumns + ` FROM lessons WHERE course_id = $1 ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, courseID)
	if err != nil {
		return nil, err
	}
	return collectLessons(rows)
}

// ListFreeByCourse returns only the free-access lessons of a course.
func (r *Repository) ListFreeByCourse(ctx context.Context, courseID int64) ([]Lesson, error) {
	const query = `SELECT ` + lessonColumns + ` FROM lessons WHERE course_id = $1 AND free_access ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, courseID)
	if err != nil {
		return nil, err
	}
	return collectLessons(rows)
}

// GetLesson fetches a lesson scoped to its course.
func (r *Repository) GetLesson(ctx context.Context, courseID, lessonID int64) (*Lesson, error) {
	const query = `SELECT ` + lessonColumns + ` FROM lessons WHERE course_id = $1 AND id = $2`
	return scanLesson(r.pool.QueryRow(ctx, query, courseID, lessonID))
}

// InsertLesson stores a new lesson and returns its id.
func (r *Repository) InsertLesson(ctx context.Context, l Lesson) (int64, error) {
	const query = `
		INSERT INTO lessons (course_id, name, free_access, description, video, text, home_task)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, query, l.CourseID, l.Name, l.FreeAccess,
		l.Description, l.Video, l.Text, l.HomeTask).Scan(&id)
	return id, err
}

// UpdateLesson applies a partial update.
func (r *Repository) UpdateLesson(ctx context.Context, id int64, req UpdateLessonRequest) error {
	const query = `
		UPDATE lessons SET
			name = COALESCE($2, name),
			free_access = COALESCE($3, free_access),
			description = COALESCE($4, description),
			video = COALESCE($5, video),
			text = COALESCE($6, text),
			home_task = COALESCE($7, home_task),
			updated_at = now()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, req.Name, req.FreeAccess,
		req.Description, req.Video, req.Text, req.HomeTask)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteLesson removes a lesson. Material rows cascade at the schema level;
// callers collect the files beforehand for storage cleanup.
func (r *Repository) DeleteLesson(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListMaterials returns a lesson's materials.
func (r *Repository) ListMaterials(ctx context.Context, lessonID int64) ([]Material, error) {
	const query = `SELECT id, lesson_id, file FROM materials WHERE lesson_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, lessonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Material{}
	for rows.Next() {
		var m Material
		if err := rows.Scan(&m.ID, &m.LessonID, &m.File); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// InsertMaterial attaches a file to a lesson.
func (r *Repository) InsertMaterial(ctx context.Context, m Material) (int64, error) {
	const query = `INSERT INTO materials (lesson_id, file) VALUES ($1, $2) RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, query, m.LessonID, m.File).Scan(&id)
	return id, err
}

// GetMaterial fetches a material scoped to its lesson.
func (r *Repository) GetMaterial(ctx context.Context, lessonID, materialID int64) (*Material, error) {
	const query = `SELECT id, lesson_id, file FROM materials WHERE lesson_id = $1 AND id = $2`
	var m Material
	err := r.pool.QueryRow(ctx, query, lessonID, materialID).Scan(&m.ID, &m.LessonID, &m.File)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// DeleteMaterial removes a material row.
func (r *Repository) DeleteMaterial(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM materials WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
