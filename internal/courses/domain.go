package courses

import "time"

// Course is owned by exactly one administrator.
type Course struct {
	ID          int64     `json:"id"`
	AdminID     int64     `json:"admin_id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Cover       *string   `json:"cover,omitempty"`
	Description *string   `json:"description,omitempty"`
	Sequence    bool      `json:"sequence"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// VisibleCourse is one row of a role-filtered course listing. Access and
// DateEnd are populated only for the learner variant, where every active
// course appears and the flags describe the learner's own subscription.
type VisibleCourse struct {
	Slug        string     `json:"slug"`
	Name        string     `json:"name"`
	AdminName   string     `json:"admin"`
	Cover       *string    `json:"cover,omitempty"`
	Description *string    `json:"description,omitempty"`
	Sequence    bool       `json:"sequence"`
	IsActive    bool       `json:"is_active"`
	Access      *bool      `json:"access,omitempty"`
	DateEnd     *time.Time `json:"date_end,omitempty"`
}

// CreateCourseRequest is the payload for creating a course.
type CreateCourseRequest struct {
	Name        string  `json:"name" validate:"required,max=40"`
	Cover       *string `json:"cover,omitempty"`
	Description *string `json:"description,omitempty"`
	Sequence    bool    `json:"sequence"`
}

// UpdateCourseRequest is the payload for partial course updates.
type UpdateCourseRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=40"`
	Cover       *string `json:"cover,omitempty"`
	Description *string `json:"description,omitempty"`
	Sequence    *bool   `json:"sequence,omitempty"`
}

// GrantAccessRequest is the payload for an administrator's access update on
// an existing subscription.
type GrantAccessRequest struct {
	Access  bool       `json:"access"`
	DateEnd *time.Time `json:"date_end,omitempty"`
}
