package lessons

import "time"

// Lesson belongs to exactly one course. FreeAccess lessons are readable by
// any learner while the parent course is active, subscription or not.
type Lesson struct {
	ID          int64     `json:"id"`
	CourseID    int64     `json:"course_id"`
	Name        string    `json:"name"`
	FreeAccess  bool      `json:"free_access"`
	Description *string   `json:"description,omitempty"`
	Video       *string   `json:"video,omitempty"`
	Text        *string   `json:"text,omitempty"`
	HomeTask    *string   `json:"home_task,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Material is a file attached to a lesson.
type Material struct {
	ID       int64  `json:"id"`
	LessonID int64  `json:"lesson_id"`
	File     string `json:"file"`
}

// CreateLessonRequest is the payload for creating a lesson.
type CreateLessonRequest struct {
	Name        string  `json:"name" validate:"required,max=80"`
	FreeAccess  bool    `json:"free_access"`
	Description *string `json:"description,omitempty"`
	Video       *string `json:"video,omitempty"`
	Text        *string `json:"text,omitempty"`
	HomeTask    *string `json:"home_task,omitempty"`
}

// UpdateLessonRequest is the payload for partial lesson updates.
type UpdateLessonRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=80"`
	FreeAccess  *bool   `json:"free_access,omitempty"`
	Description *string `json:"description,omitempty"`
	Video       *string `json:"video,omitempty"`
	Text        *string `json:"text,omitempty"`
	HomeTask    *string `json:"home_task,omitempty"`
}

// AddMaterialRequest attaches an already-uploaded file to a lesson.
type AddMaterialRequest struct {
	File string `json:"file" validate:"required,max=255"`
}
