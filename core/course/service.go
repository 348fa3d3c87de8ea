package course

import (
	"context"
	"errors"
	"time"

	"github.com/darasahq/darasa/core"
)

var (
	// errors
	ErrNotFound           = errors.New("course not found")
	ErrStudentNotFound    = errors.New("student not found")
	ErrLecturerNotFound   = errors.New("lecturer not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrSubmissionNotFound = errors.New("submission not found")

	ErrLecturerAssigned    = errors.New("a lecturer is already assigned to this course")
	ErrAlreadyEnrolled     = errors.New("student is already enrolled in this course")
	ErrEnrollmentLimit     = errors.New("student has reached the enrollment limit")
	ErrNotEnrolled         = errors.New("student is not enrolled in this course")
	ErrDuplicateSubmission = errors.New("a submission for this assignment already exists")
	ErrDuplicateGrade      = errors.New("this submission has already been graded")

	errInvalidDepartment = errors.New("invalid department")
)

type (
	// Repository persists courses and everything that hangs off them. Methods
	// that enforce a rule (single lecturer, enrollment cap, one submission per
	// student per assignment, one grade per submission) do the check and the
	// write in one transaction and report violations with the sentinel errors
	// above.
	Repository interface {
		// CreateCourse allocates the course id and its department-namespaced
		// code, then persists the course.
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourseByID(ctx context.Context, id int) (Course, error)
		QueryAllCourses(ctx context.Context) ([]Course, error)
		QueryCoursesByStudent(ctx context.Context, studentID int) ([]Course, error)
		QueryCoursesByLecturer(ctx context.Context, lecturerID int) ([]Course, error)
		QueryMembers(ctx context.Context, courseID int) ([]Member, error)

		AssignLecturer(ctx context.Context, courseID, lecturerID int) error
		// Enroll enrolls the student unless they are already in the course or
		// hold maxEnrollments enrollments.
		Enroll(ctx context.Context, studentID, courseID, maxEnrollments int) (Enrollment, error)
		IsEnrolled(ctx context.Context, studentID, courseID int) (bool, error)

		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignmentByID(ctx context.Context, id int) (Assignment, error)
		QueryAssignments(ctx context.Context, courseID int) ([]Assignment, error)

		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmissionByID(ctx context.Context, id int) (Submission, error)
		QuerySubmissions(ctx context.Context, assignmentID int) ([]Submission, error)

		CreateGrade(ctx context.Context, g Grade) (Grade, error)
		QueryStudentGrades(ctx context.Context, studentID int) ([]StudentGrade, error)
		// RecomputeCourseGrades refreshes each enrolled student's aggregate
		// grade from the mean of their graded submissions in the course and
		// returns the updated aggregates keyed by student id. Students with
		// no graded submissions are left untouched.
		RecomputeCourseGrades(ctx context.Context, courseID int) (map[int]float64, error)

		AddContent(ctx context.Context, c Content) (Content, error)
		QueryContent(ctx context.Context, courseID int) ([]Content, error)

		CreateEvent(ctx context.Context, ev Event) (Event, error)
		QueryEvents(ctx context.Context, courseID int) ([]Event, error)
	}

	Service struct {
		repo Repository
		conf *core.Config
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{repo: repo, conf: conf}
}

// Create registers a course under a configured department. The course code is
// allocated from the department's namespace (e.g. CSC101, CSC102, ...).
func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	if !svc.conf.IsValidDepartment(nc.Department) {
		return Course{}, core.NewValidationError(errInvalidDepartment,
			core.FieldError{Field: "department", Error: errInvalidDepartment.Error()})
	}
	crs := Course{
		Name:       nc.Name,
		Department: CodePrefix(nc.Department),
		CreatedAt:  time.Now().UTC(),
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Course, error) {
	return svc.repo.QueryAllCourses(ctx)
}

func (svc *Service) QueryByStudent(ctx context.Context, studentID int) ([]Course, error) {
	return svc.repo.QueryCoursesByStudent(ctx, studentID)
}

func (svc *Service) QueryByLecturer(ctx context.Context, lecturerID int) ([]Course, error) {
	return svc.repo.QueryCoursesByLecturer(ctx, lecturerID)
}

func (svc *Service) Members(ctx context.Context, courseID int) ([]Member, error) {
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryMembers(ctx, courseID)
}

// AssignLecturer puts a lecturer in charge of the course. A course has at
// most one lecturer; assigning a second fails with ErrLecturerAssigned.
func (svc *Service) AssignLecturer(ctx context.Context, courseID, lecturerID int) error {
	return svc.repo.AssignLecturer(ctx, courseID, lecturerID)
}

// Enroll adds the student to the course, enforcing the per-student
// enrollment cap and rejecting duplicates.
func (svc *Service) Enroll(ctx context.Context, studentID, courseID int) (Enrollment, error) {
	return svc.repo.Enroll(ctx, studentID, courseID, svc.conf.MaxEnrollments)
}

func (svc *Service) CreateAssignment(ctx context.Context, courseID int, na NewAssignment) (Assignment, error) {
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return Assignment{}, err
	}
	return svc.repo.CreateAssignment(ctx, Assignment{
		CourseID:    courseID,
		Title:       na.Title,
		Description: na.Description,
		DueDate:     na.dueDate,
	})
}

func (svc *Service) QueryAssignments(ctx context.Context, courseID int) ([]Assignment, error) {
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryAssignments(ctx, courseID)
}

// Submit records a student's submission for an assignment. The student must
// be enrolled in the assignment's course and may submit at most once per
// assignment.
func (svc *Service) Submit(ctx context.Context, assignmentID, studentID int, ns NewSubmission) (Submission, error) {
	a, err := svc.repo.GetAssignmentByID(ctx, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	enrolled, err := svc.repo.IsEnrolled(ctx, studentID, a.CourseID)
	if err != nil {
		return Submission{}, err
	}
	if !enrolled {
		return Submission{}, ErrNotEnrolled
	}
	return svc.repo.CreateSubmission(ctx, Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Content:      ns.Content,
		SubmittedAt:  time.Now().UTC(),
	})
}

func (svc *Service) QuerySubmissions(ctx context.Context, assignmentID int) ([]Submission, error) {
	if _, err := svc.repo.GetAssignmentByID(ctx, assignmentID); err != nil {
		return nil, err
	}
	return svc.repo.QuerySubmissions(ctx, assignmentID)
}

func (svc *Service) GetSubmission(ctx context.Context, id int) (Submission, error) {
	return svc.repo.GetSubmissionByID(ctx, id)
}

// GradeSubmission records the grade for a submission. A submission is graded
// exactly once; the grade itself does not touch the student's course
// aggregate until the next recompute.
func (svc *Service) GradeSubmission(ctx context.Context, submissionID int, ng NewGrade) (Grade, error) {
	if _, err := svc.repo.GetSubmissionByID(ctx, submissionID); err != nil {
		return Grade{}, err
	}
	return svc.repo.CreateGrade(ctx, Grade{SubmissionID: submissionID, Grade: *ng.Grade})
}

func (svc *Service) StudentGrades(ctx context.Context, studentID int) ([]StudentGrade, error) {
	return svc.repo.QueryStudentGrades(ctx, studentID)
}

// RecomputeGrades refreshes every enrolled student's aggregate course grade.
// The fresh mean of the student's graded submissions is merged with any prior
// stored grade as (old+new)/2, a single-step running average. Repeated calls
// are therefore not idempotent: each one pulls the stored grade halfway
// toward the current mean.
func (svc *Service) RecomputeGrades(ctx context.Context, courseID int) (map[int]float64, error) {
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return nil, err
	}
	return svc.repo.RecomputeCourseGrades(ctx, courseID)
}

func (svc *Service) AddContent(ctx context.Context, courseID int, nc NewContent) (Content, error) {
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return Content{}, err
	}
	return svc.repo.AddContent(ctx, Content{
		CourseID: courseID,
		Section:  nc.Section,
		Content:  nc.Content,
		Metadata: nc.Metadata,
	})
}

func (svc *Service) Content(ctx context.Context, courseID int) ([]Content, error) {
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryContent(ctx, courseID)
}

func (svc *Service) CreateEvent(ctx context.Context, courseID, createdBy int, ne NewEvent) (Event, error) {
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return Event{}, err
	}
	return svc.repo.CreateEvent(ctx, Event{
		CourseID:    courseID,
		Name:        ne.Name,
		Description: ne.Description,
		Date:        ne.date,
		CreatedBy:   createdBy,
	})
}

func (svc *Service) Events(ctx context.Context, courseID int) ([]Event, error) {
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryEvents(ctx, courseID)
}
