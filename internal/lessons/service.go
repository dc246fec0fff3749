package lessons

import (
	"context"

	"github.com/lumina-lms/lumina/internal/authz"
	"github.com/lumina-lms/lumina/internal/roles"
	"github.com/lumina-lms/lumina/internal/shared"
)

// RepositoryPort defines data access methods for lessons.
type RepositoryPort interface {
	GetCourseRef(ctx context.Context, slug string) (CourseRef, error)
	ListByCourse(ctx context.Context, courseID int64) ([]Lesson, error)
	ListFreeByCourse(ctx context.Context, courseID int64) ([]Lesson, error)
	GetLesson(ctx context.Context, courseID, lessonID int64) (*Lesson, error)
	InsertLesson(ctx context.Context, l Lesson) (int64, error)
	UpdateLesson(ctx context.Context, id int64, req UpdateLessonRequest) error
	DeleteLesson(ctx context.Context, id int64) error
	ListMaterials(ctx context.Context, lessonID int64) ([]Material, error)
	InsertMaterial(ctx context.Context, m Material) (int64, error)
	GetMaterial(ctx context.Context, lessonID, materialID int64) (*Material, error)
	DeleteMaterial(ctx context.Context, id int64) error
}

// FileRemover cleans up stored material files.
type FileRemover interface {
	Remove(path string) error
}

// Service handles lesson business logic.
type Service struct {
	repo   RepositoryPort
	engine *authz.Engine
	files  FileRemover
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, engine *authz.Engine, files FileRemover) *Service {
	return &Service{repo: repo, engine: engine, files: files}
}

func lessonRef(course CourseRef, freeAccess bool) authz.LessonRef {
	return authz.LessonRef{
		CourseID:     course.ID,
		CourseAdmin:  course.AdminID,
		CourseActive: course.IsActive,
		FreeAccess:   freeAccess,
	}
}

// List returns the lessons of a course visible to the actor. A learner
// without a subscription to an active course still browses the free-access
// lessons.
func (s *Service) List(ctx context.Context, actor shared.Actor, courseSlug string) ([]Lesson, error) {
	course, err := s.repo.GetCourseRef(ctx, courseSlug)
	if err != nil {
		return nil, err
	}
	// Probe with a gated ref: allow means the actor may read every lesson of
	// this course, free or not.
	d, err := s.engine.AuthorizeLesson(ctx, actor, lessonRef(course, false), authz.ActionList)
	if err != nil {
		return nil, err
	}
	if d.Allow {
		return s.repo.ListByCourse(ctx, course.ID)
	}
	if actor.Role == roles.Learner && course.IsActive {
		return s.repo.ListFreeByCourse(ctx, course.ID)
	}
	return nil, d.Err()
}

// Create adds a lesson to the actor's course.
func (s *Service) Create(ctx context.Context, actor shared.Actor, courseSlug string, req CreateLessonRequest) (*Lesson, error) {
	course, err := s.repo.GetCourseRef(ctx, courseSlug)
	if err != nil {
		return nil, err
	}
	d, err := s.engine.AuthorizeLesson(ctx, actor, lessonRef(course, req.FreeAccess), authz.ActionCreate)
	if err != nil {
		return nil, err
	}
	if !d.Allow {
		return nil, d.Err()
	}
	lesson := Lesson{
		CourseID:    course.ID,
		Name:        req.Name,
		FreeAccess:  req.FreeAccess,
		Description: req.Description,
		Video:       req.Video,
		Text:        req.Text,
		HomeTask:    req.HomeTask,
	}
	id, err := s.repo.InsertLesson(ctx, lesson)
	if err != nil {
		return nil, err
	}
	lesson.ID = id
	return &lesson, nil
}

// Get fetches a single lesson.
func (s *Service) Get(ctx context.Context, actor shared.Actor, courseSlug string, lessonID int64) (*Lesson, error) {
	course, lesson, err := s.resolve(ctx, courseSlug, lessonID)
	if err != nil {
		return nil, err
	}
	d, err := s.engine.AuthorizeLesson(ctx, actor, lessonRef(course, lesson.FreeAccess), authz.ActionRead)
	if err != nil {
		return nil, err
	}
	if !d.Allow {
		return nil, d.Err()
	}
	return lesson, nil
}

// Update applies a partial update to a lesson.
func (s *Service) Update(ctx context.Context, actor shared.Actor, courseSlug string, lessonID int64, req UpdateLessonRequest) (*Lesson, error) {
	course, lesson, err := s.resolve(ctx, courseSlug, lessonID)
	if err != nil {
		return nil, err
	}
	d, err := s.engine.AuthorizeLesson(ctx, actor, lessonRef(course, lesson.FreeAccess), authz.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if !d.Allow {
		return nil, d.Err()
	}
	if err := s.repo.UpdateLesson(ctx, lesson.ID, req); err != nil {
		return nil, err
	}
	return s.repo.GetLesson(ctx, course.ID, lesson.ID)
}

// Delete removes a lesson and its material files.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, courseSlug string, lessonID int64) error {
	course, lesson, err := s.resolve(ctx, courseSlug, lessonID)
	if err != nil {
		return err
	}
	d, err := s.engine.AuthorizeLesson(ctx, actor, lessonRef(course, lesson.FreeAccess), authz.ActionDelete)
	if err != nil {
		return err
	}
	if !d.Allow {
		return d.Err()
	}
	materials, err := s.repo.ListMaterials(ctx, lesson.ID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteLesson(ctx, lesson.ID); err != nil {
		return err
	}
	for _, m := range materials {
		_ = s.files.Remove(m.File)
	}
	return nil
}

// ListMaterials returns a lesson's materials under the same gate as reading
// the lesson itself.
func (s *Service) ListMaterials(ctx context.Context, actor shared.Actor, courseSlug string, lessonID int64) ([]Material, error) {
	course, lesson, err := s.resolve(ctx, courseSlug, lessonID)
	if err != nil {
		return nil, err
	}
	d, err := s.engine.AuthorizeLesson(ctx, actor, lessonRef(course, lesson.FreeAccess), authz.ActionRead)
	if err != nil {
		return nil, err
	}
	if !d.Allow {
		return nil, d.Err()
	}
	return s.repo.ListMaterials(ctx, lesson.ID)
}

// AddMaterial attaches a file to a lesson.
func (s *Service) AddMaterial(ctx context.Context, actor shared.Actor, courseSlug string, lessonID int64, req AddMaterialRequest) (*Material, error) {
	course, lesson, err := s.resolve(ctx, courseSlug, lessonID)
	if err != nil {
		return nil, err
	}
	d, err := s.engine.AuthorizeLesson(ctx, actor, lessonRef(course, lesson.FreeAccess), authz.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if !d.Allow {
		return nil, d.Err()
	}
	material := Material{LessonID: lesson.ID, File: req.File}
	id, err := s.repo.InsertMaterial(ctx, material)
	if err != nil {
		return nil, err
	}
	material.ID = id
	return &material, nil
}

// RemoveMaterial detaches a material and deletes its file.
func (s *Service) RemoveMaterial(ctx context.Context, actor shared.Actor, courseSlug string, lessonID, materialID int64) error {
	course, lesson, err := s.resolve(ctx, courseSlug, lessonID)
	if err != nil {
		return err
	}
	d, err := s.engine.AuthorizeLesson(ctx, actor, lessonRef(course, lesson.FreeAccess), authz.ActionUpdate)
	if err != nil {
		return err
	}
	if !d.Allow {
		return d.Err()
	}
	material, err := s.repo.GetMaterial(ctx, lesson.ID, materialID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteMaterial(ctx, material.ID); err != nil {
		return err
	}
	_ = s.files.Remove(material.File)
	return nil
}

func (s *Service) resolve(ctx context.Context, courseSlug string, lessonID int64) (CourseRef, *Lesson, error) {
	course, err := s.repo.GetCourseRef(ctx, courseSlug)
	if err != nil {
		return CourseRef{}, nil, err
	}
	lesson, err := s.repo.GetLesson(ctx, course.ID, lessonID)
	if err != nil {
		return CourseRef{}, nil, err
	}
	return course, lesson, nil
}
