package course

import (
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
)

// DueDateLayout is the wire format for assignment due dates.
const DueDateLayout = "2006-01-02 15:04:05"

// EventDateLayout is the wire format for calendar event dates.
const EventDateLayout = "2006-01-02"

type Course struct {
	ID         int       `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Department string    `json:"department" db:"department"`
	Code       string    `json:"code" db:"code"` // e.g. CSC101; unique
	CreatedAt  time.Time `json:"created_at" db:"created_at"` // UTC
}

// Member is a course membership row: the account plus the role it holds in
// the course.
type Member struct {
	UserID   int    `json:"user_id" db:"user_id"`
	Username string `json:"username" db:"username"`
	FullName string `json:"full_name" db:"full_name"`
	Role     string `json:"role" db:"role"`
}

type Enrollment struct {
	StudentID int `json:"student_id" db:"student_id"`
	CourseID  int `json:"course_id" db:"course_id"`

	// Grade is the aggregate course grade; unset until the first recompute.
	Grade     null.Float64 `json:"grade,omitempty" db:"grade"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

type Assignment struct {
	ID          int       `json:"id" db:"id"`
	CourseID    int       `json:"course_id" db:"course_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	DueDate     time.Time `json:"due_date" db:"due_date"`
}

type Submission struct {
	ID           int       `json:"id" db:"id"`
	AssignmentID int       `json:"assignment_id" db:"assignment_id"`
	StudentID    int       `json:"student_id" db:"student_id"`
	Content      string    `json:"content" db:"content"`
	SubmittedAt  time.Time `json:"submitted_at" db:"submitted_at"`
}

type Grade struct {
	ID           int     `json:"id" db:"id"`
	SubmissionID int     `json:"submission_id" db:"submission_id"`
	Grade        float64 `json:"grade" db:"grade"` // [0, 100]
}

// StudentGrade is a row of the per-student grade report.
type StudentGrade struct {
	GradeID         int     `json:"grade_id" db:"grade_id"`
	AssignmentTitle string  `json:"assignment_title" db:"assignment_title"`
	Grade           float64 `json:"grade" db:"grade"`
	CourseName      string  `json:"course_name" db:"course_name"`
	StudentID       int     `json:"student_id" db:"student_id"`
}

// Content is a piece of course material: a link, embedded text or slide
// reference, organized by section. Binary uploads live elsewhere.
type Content struct {
	ID       int    `json:"id" db:"id"`
	CourseID int    `json:"course_id" db:"course_id"`
	Section  string `json:"section" db:"section"`
	Content  string `json:"content" db:"content"`
	Metadata string `json:"metadata,omitempty" db:"metadata"`
}

type Event struct {
	ID          int       `json:"id" db:"id"`
	CourseID    int       `json:"course_id" db:"course_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	Date        time.Time `json:"date" db:"date"`
	CreatedBy   int       `json:"created_by" db:"created_by"` // user id
}

// CodePrefix returns the course-code namespace for a department: its first
// three letters, upper-cased.
func CodePrefix(dept string) string {
	if len(dept) > 3 {
		dept = dept[:3]
	}
	return strings.ToUpper(dept)
}

// Inputs

type NewCourse struct {
	Name       string `json:"name" validate:"required"`
	Department string `json:"department" validate:"required"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Department = core.CleanString(nc.Department)
	return validate.Struct(nc)
}

type AssignLecturer struct {
	LecturerID int `json:"lecturer_id" validate:"omitempty,gt=0"`
}

func (al *AssignLecturer) Validate(validate *validator.Validate) error {
	return validate.Struct(al)
}

type NewEnrollment struct {
	StudentID int `json:"student_id" validate:"omitempty,gt=0"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	return validate.Struct(ne)
}

type NewAssignment struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	DueDate     string `json:"due_date" validate:"required"`

	dueDate time.Time
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	if err := validate.Struct(na); err != nil {
		return err
	}
	due, err := time.Parse(DueDateLayout, na.DueDate)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{
			Field: "due_date", Error: "invalid due date, use the YYYY-MM-DD HH:MM:SS format",
		})
	}
	na.dueDate = due
	return nil
}

type NewSubmission struct {
	Content string `json:"content" validate:"required"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	return validate.Struct(ns)
}

type NewGrade struct {
	Grade *float64 `json:"grade" validate:"required,gte=0,lte=100"`
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	return validate.Struct(ng)
}

type NewContent struct {
	Section  string `json:"section" validate:"required"`
	Content  string `json:"content" validate:"required"`
	Metadata string `json:"metadata"`
}

func (nc *NewContent) Validate(validate *validator.Validate) error {
	nc.Section = core.CleanString(nc.Section)
	return validate.Struct(nc)
}

type NewEvent struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Date        string `json:"date" validate:"required,dateformat"`

	date time.Time
}

func (ne *NewEvent) Validate(validate *validator.Validate) error {
	ne.Name = core.CleanString(ne.Name)
	if err := validate.Struct(ne); err != nil {
		return err
	}
	date, err := time.Parse(EventDateLayout, ne.Date)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{
			Field: "date", Error: "invalid date, use the YYYY-MM-DD format",
		})
	}
	ne.date = date
	return nil
}

// InitValidators registers this package's custom validators.
// Nothing course-specific yet; the shared tags come from core.
func InitValidators(validate *validator.Validate, translator ut.Translator) {}
