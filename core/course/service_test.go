package course_test

import (
	"context"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/user"
	inmemdb "github.com/darasahq/darasa/storage/database/inmem"
	testutil "github.com/darasahq/darasa/tests"
)

type fixture struct {
	svc     *course.Service
	usrRepo user.Repository
	conf    *core.Config
}

func setup(t *testing.T) fixture {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	conf := testutil.NewConfig()
	return fixture{
		svc:     course.NewService(inmemdb.NewCourseRepository(db), conf),
		usrRepo: inmemdb.NewUserRepository(db),
		conf:    conf,
	}
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs, err := f.svc.Create(ctx, course.NewCourse{Name: "Algorithms", Department: "CSC"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if crs.Code != "CSC101" {
		t.Errorf("first CSC code = %q; want CSC101", crs.Code)
	}

	crs2, err := f.svc.Create(ctx, course.NewCourse{Name: "Databases", Department: "CSC"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if crs2.Code != "CSC102" {
		t.Errorf("second CSC code = %q; want CSC102", crs2.Code)
	}

	// each department numbers its own codes
	mth, err := f.svc.Create(ctx, course.NewCourse{Name: "Calculus", Department: "MTH"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if mth.Code != "MTH101" {
		t.Errorf("first MTH code = %q; want MTH101", mth.Code)
	}

	// unknown department rejected
	if _, err = f.svc.Create(ctx, course.NewCourse{Name: "Alchemy", Department: "ALC"}); err == nil {
		t.Fatal("Create() accepted an unknown department")
	} else if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("Create() err type = %T; want *core.ValidationError", err)
	}
}

func TestService_AssignLecturer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, f.svc, "Algorithms", "CSC")
	prof := testutil.CreateUser(t, f.usrRepo, "prof", "pwd", user.RoleLecturer, "CSC")
	other := testutil.CreateUser(t, f.usrRepo, "other", "pwd", user.RoleLecturer, "CSC")

	if err := f.svc.AssignLecturer(ctx, crs.ID, prof.LecturerID); err != nil {
		t.Fatalf("AssignLecturer() failed: %v", err)
	}

	// a course holds a single lecturer
	if err := f.svc.AssignLecturer(ctx, crs.ID, other.LecturerID); err != course.ErrLecturerAssigned {
		t.Errorf("second AssignLecturer() err = %v; want %v", err, course.ErrLecturerAssigned)
	}

	if err := f.svc.AssignLecturer(ctx, crs.ID+99, prof.LecturerID); err != course.ErrNotFound {
		t.Errorf("AssignLecturer() unknown course err = %v; want %v", err, course.ErrNotFound)
	}
	crs2 := testutil.CreateCourse(t, f.svc, "Databases", "CSC")
	if err := f.svc.AssignLecturer(ctx, crs2.ID, 999); err != course.ErrLecturerNotFound {
		t.Errorf("AssignLecturer() unknown lecturer err = %v; want %v", err, course.ErrLecturerNotFound)
	}

	courses, err := f.svc.QueryByLecturer(ctx, prof.LecturerID)
	if err != nil {
		t.Fatalf("QueryByLecturer() failed: %v", err)
	}
	if len(courses) != 1 || courses[0].ID != crs.ID {
		t.Errorf("QueryByLecturer() = %v; want [%d]", courses, crs.ID)
	}
}

func TestService_Enroll(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, f.usrRepo, "jdoe", "pwd", user.RoleStudent, "")
	crs := testutil.CreateCourse(t, f.svc, "Algorithms", "CSC")

	if _, err := f.svc.Enroll(ctx, student.StudentID, crs.ID); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	if _, err := f.svc.Enroll(ctx, student.StudentID, crs.ID); err != course.ErrAlreadyEnrolled {
		t.Errorf("duplicate Enroll() err = %v; want %v", err, course.ErrAlreadyEnrolled)
	}
	if _, err := f.svc.Enroll(ctx, 999, crs.ID); err != course.ErrStudentNotFound {
		t.Errorf("Enroll() unknown student err = %v; want %v", err, course.ErrStudentNotFound)
	}
	if _, err := f.svc.Enroll(ctx, student.StudentID, crs.ID+99); err != course.ErrNotFound {
		t.Errorf("Enroll() unknown course err = %v; want %v", err, course.ErrNotFound)
	}

	// the cap counts enrollments across all courses
	for i := 0; i < f.conf.MaxEnrollments-1; i++ {
		c := testutil.CreateCourse(t, f.svc, "Filler", "MTH")
		if _, err := f.svc.Enroll(ctx, student.StudentID, c.ID); err != nil {
			t.Fatalf("Enroll() #%d failed: %v", i+2, err)
		}
	}
	last := testutil.CreateCourse(t, f.svc, "One Too Many", "PHY")
	if _, err := f.svc.Enroll(ctx, student.StudentID, last.ID); err != course.ErrEnrollmentLimit {
		t.Errorf("Enroll() over cap err = %v; want %v", err, course.ErrEnrollmentLimit)
	}

	courses, err := f.svc.QueryByStudent(ctx, student.StudentID)
	if err != nil {
		t.Fatalf("QueryByStudent() failed: %v", err)
	}
	if len(courses) != f.conf.MaxEnrollments {
		t.Errorf("QueryByStudent() len = %d; want %d", len(courses), f.conf.MaxEnrollments)
	}
}

func TestService_Submissions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, f.usrRepo, "jdoe", "pwd", user.RoleStudent, "")
	outsider := testutil.CreateUser(t, f.usrRepo, "jane", "pwd", user.RoleStudent, "")
	crs := testutil.CreateCourse(t, f.svc, "Algorithms", "CSC")
	if _, err := f.svc.Enroll(ctx, student.StudentID, crs.ID); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}

	a, err := f.svc.CreateAssignment(ctx, crs.ID, course.NewAssignment{
		Title: "Homework 1", Description: "Sorting", DueDate: "2026-10-01 23:59:00",
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}

	sub, err := f.svc.Submit(ctx, a.ID, student.StudentID, course.NewSubmission{Content: "my answers"})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if sub.AssignmentID != a.ID || sub.StudentID != student.StudentID {
		t.Errorf("Submit() = %+v; wrong links", sub)
	}

	// one submission per (assignment, student)
	if _, err = f.svc.Submit(ctx, a.ID, student.StudentID, course.NewSubmission{Content: "again"}); err != course.ErrDuplicateSubmission {
		t.Errorf("duplicate Submit() err = %v; want %v", err, course.ErrDuplicateSubmission)
	}

	// only enrolled students may submit
	if _, err = f.svc.Submit(ctx, a.ID, outsider.StudentID, course.NewSubmission{Content: "sneaky"}); err != course.ErrNotEnrolled {
		t.Errorf("outsider Submit() err = %v; want %v", err, course.ErrNotEnrolled)
	}

	if _, err = f.svc.Submit(ctx, a.ID+99, student.StudentID, course.NewSubmission{Content: "x"}); err != course.ErrAssignmentNotFound {
		t.Errorf("Submit() unknown assignment err = %v; want %v", err, course.ErrAssignmentNotFound)
	}
}

func TestService_Grading(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, f.usrRepo, "jdoe", "pwd", user.RoleStudent, "")
	crs := testutil.CreateCourse(t, f.svc, "Algorithms", "CSC")
	if _, err := f.svc.Enroll(ctx, student.StudentID, crs.ID); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}

	newGraded := func(title string, grade float64) {
		t.Helper()
		a, err := f.svc.CreateAssignment(ctx, crs.ID, course.NewAssignment{
			Title: title, Description: "desc", DueDate: "2026-10-01 23:59:00",
		})
		if err != nil {
			t.Fatalf("CreateAssignment() failed: %v", err)
		}
		sub, err := f.svc.Submit(ctx, a.ID, student.StudentID, course.NewSubmission{Content: "work"})
		if err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}
		if _, err = f.svc.GradeSubmission(ctx, sub.ID, course.NewGrade{Grade: fPtr(grade)}); err != nil {
			t.Fatalf("GradeSubmission() failed: %v", err)
		}
	}

	newGraded("Homework 1", 80)

	aggs, err := f.svc.RecomputeGrades(ctx, crs.ID)
	if err != nil {
		t.Fatalf("RecomputeGrades() failed: %v", err)
	}
	if got := aggs[student.StudentID]; got != 80 {
		t.Errorf("aggregate after one grade = %v; want 80", got)
	}

	// new mean (80+100)/2 = 90, merged with the stored 80: (80+90)/2
	newGraded("Homework 2", 100)
	aggs, err = f.svc.RecomputeGrades(ctx, crs.ID)
	if err != nil {
		t.Fatalf("RecomputeGrades() failed: %v", err)
	}
	if got := aggs[student.StudentID]; got != 85 {
		t.Errorf("aggregate after two grades = %v; want 85", got)
	}

	// one grade per submission
	a, err := f.svc.CreateAssignment(ctx, crs.ID, course.NewAssignment{
		Title: "Homework 3", Description: "desc", DueDate: "2026-10-01 23:59:00",
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	sub, err := f.svc.Submit(ctx, a.ID, student.StudentID, course.NewSubmission{Content: "work"})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if _, err = f.svc.GradeSubmission(ctx, sub.ID, course.NewGrade{Grade: fPtr(50)}); err != nil {
		t.Fatalf("GradeSubmission() failed: %v", err)
	}
	if _, err = f.svc.GradeSubmission(ctx, sub.ID, course.NewGrade{Grade: fPtr(60)}); err != course.ErrDuplicateGrade {
		t.Errorf("duplicate GradeSubmission() err = %v; want %v", err, course.ErrDuplicateGrade)
	}
	if _, err = f.svc.GradeSubmission(ctx, 999, course.NewGrade{Grade: fPtr(50)}); err != course.ErrSubmissionNotFound {
		t.Errorf("GradeSubmission() unknown submission err = %v; want %v", err, course.ErrSubmissionNotFound)
	}

	grades, err := f.svc.StudentGrades(ctx, student.StudentID)
	if err != nil {
		t.Fatalf("StudentGrades() failed: %v", err)
	}
	if len(grades) != 3 {
		t.Errorf("StudentGrades() len = %d; want 3", len(grades))
	}
}

func TestService_ContentAndEvents(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, f.svc, "Algorithms", "CSC")
	prof := testutil.CreateUser(t, f.usrRepo, "prof", "pwd", user.RoleLecturer, "CSC")

	c, err := f.svc.AddContent(ctx, crs.ID, course.NewContent{
		Section: "Week 1", Content: "https://example.com/slides.pdf", Metadata: "slides",
	})
	if err != nil {
		t.Fatalf("AddContent() failed: %v", err)
	}
	contents, err := f.svc.Content(ctx, crs.ID)
	if err != nil {
		t.Fatalf("Content() failed: %v", err)
	}
	if len(contents) != 1 || contents[0].ID != c.ID {
		t.Errorf("Content() = %v; want [%d]", contents, c.ID)
	}

	ne := course.NewEvent{Name: "Midterm", Description: "Room 4", Date: "2026-11-15"}
	validate := newValidator()
	if err = ne.Validate(validate); err != nil {
		t.Fatalf("NewEvent.Validate() failed: %v", err)
	}
	ev, err := f.svc.CreateEvent(ctx, crs.ID, prof.ID, ne)
	if err != nil {
		t.Fatalf("CreateEvent() failed: %v", err)
	}
	if ev.CreatedBy != prof.ID {
		t.Errorf("CreateEvent() created_by = %d; want %d", ev.CreatedBy, prof.ID)
	}

	events, err := f.svc.Events(ctx, crs.ID)
	if err != nil {
		t.Fatalf("Events() failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("Events() len = %d; want 1", len(events))
	}

	// content on a missing course 404s at the service boundary
	if _, err = f.svc.Content(ctx, crs.ID+99); err != course.ErrNotFound {
		t.Errorf("Content() unknown course err = %v; want %v", err, course.ErrNotFound)
	}
}

func newValidator() *validator.Validate {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	return validate
}

func fPtr(f float64) *float64 { return &f }
