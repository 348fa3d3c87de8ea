package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/user"
)

type courseRepository struct {
	db *DB
}

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

// callers must hold the mutex
func (repo *courseRepository) studentExists(studentID int) bool {
	for _, usr := range repo.db.users {
		if usr.IsStudent() && usr.StudentID == studentID {
			return true
		}
	}
	return false
}

// callers must hold the mutex
func (repo *courseRepository) lecturerExists(lecturerID int) bool {
	for _, usr := range repo.db.users {
		if !usr.IsStudent() && usr.LecturerID == lecturerID {
			return true
		}
	}
	return false
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	crs.ID = repo.db.nextID(core.SeqCourse)
	crs.Code = repo.db.nextCourseCode(crs.Department)
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id int) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryAllCourses(ctx context.Context) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		courses = append(courses, *crs)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

func (repo *courseRepository) QueryCoursesByStudent(ctx context.Context, studentID int) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0)
	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID {
			if crs, ok := repo.db.courses[enr.CourseID]; ok {
				courses = append(courses, *crs)
			}
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

func (repo *courseRepository) QueryCoursesByLecturer(ctx context.Context, lecturerID int) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0)
	for courseID, lid := range repo.db.lecturerAssignments {
		if lid == lecturerID {
			if crs, ok := repo.db.courses[courseID]; ok {
				courses = append(courses, *crs)
			}
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

func (repo *courseRepository) QueryMembers(ctx context.Context, courseID int) ([]course.Member, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	members := make([]course.Member, 0)
	add := func(usr *user.User) {
		members = append(members, course.Member{
			UserID:   usr.ID,
			Username: usr.Username,
			FullName: usr.FullName(),
			Role:     usr.Role,
		})
	}
	for _, usr := range repo.db.users {
		if usr.IsStudent() {
			for _, enr := range repo.db.enrollments {
				if enr.CourseID == courseID && enr.StudentID == usr.StudentID {
					add(usr)
					break
				}
			}
		} else if lid, ok := repo.db.lecturerAssignments[courseID]; ok && lid == usr.LecturerID {
			add(usr)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return members, nil
}

func (repo *courseRepository) AssignLecturer(ctx context.Context, courseID, lecturerID int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[courseID]; !ok {
		return course.ErrNotFound
	}
	if !repo.lecturerExists(lecturerID) {
		return course.ErrLecturerNotFound
	}
	if _, ok := repo.db.lecturerAssignments[courseID]; ok {
		return course.ErrLecturerAssigned
	}
	repo.db.lecturerAssignments[courseID] = lecturerID
	return nil
}

func (repo *courseRepository) Enroll(ctx context.Context, studentID, courseID, maxEnrollments int) (course.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[courseID]; !ok {
		return course.Enrollment{}, course.ErrNotFound
	}
	if !repo.studentExists(studentID) {
		return course.Enrollment{}, course.ErrStudentNotFound
	}

	count := 0
	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID {
			if enr.CourseID == courseID {
				return course.Enrollment{}, course.ErrAlreadyEnrolled
			}
			count++
		}
	}
	if count >= maxEnrollments {
		return course.Enrollment{}, course.ErrEnrollmentLimit
	}

	enr := course.Enrollment{StudentID: studentID, CourseID: courseID, CreatedAt: time.Now().UTC()}
	repo.db.enrollments = append(repo.db.enrollments, &enr)
	return enr, nil
}

func (repo *courseRepository) IsEnrolled(ctx context.Context, studentID, courseID int) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID && enr.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *courseRepository) CreateAssignment(ctx context.Context, a course.Assignment) (course.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a.ID = repo.db.nextID(core.SeqAssignment)
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *courseRepository) GetAssignmentByID(ctx context.Context, id int) (course.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return *a, nil
	}
	return course.Assignment{}, course.ErrAssignmentNotFound
}

func (repo *courseRepository) QueryAssignments(ctx context.Context, courseID int) ([]course.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	assignments := make([]course.Assignment, 0)
	for _, a := range repo.db.assignments {
		if a.CourseID == courseID {
			assignments = append(assignments, *a)
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID < assignments[j].ID })
	return assignments, nil
}

func (repo *courseRepository) CreateSubmission(ctx context.Context, sub course.Submission) (course.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, s := range repo.db.submissions {
		if s.AssignmentID == sub.AssignmentID && s.StudentID == sub.StudentID {
			return course.Submission{}, course.ErrDuplicateSubmission
		}
	}

	sub.ID = repo.db.nextID(core.SeqSubmission)
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}

func (repo *courseRepository) GetSubmissionByID(ctx context.Context, id int) (course.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return *sub, nil
	}
	return course.Submission{}, course.ErrSubmissionNotFound
}

func (repo *courseRepository) QuerySubmissions(ctx context.Context, assignmentID int) ([]course.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subs := make([]course.Submission, 0)
	for _, sub := range repo.db.submissions {
		if sub.AssignmentID == assignmentID {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

func (repo *courseRepository) CreateGrade(ctx context.Context, g course.Grade) (course.Grade, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.grades {
		if existing.SubmissionID == g.SubmissionID {
			return course.Grade{}, course.ErrDuplicateGrade
		}
	}

	g.ID = repo.db.nextID(core.SeqGrade)
	repo.db.grades[g.ID] = &g
	return g, nil
}

func (repo *courseRepository) QueryStudentGrades(ctx context.Context, studentID int) ([]course.StudentGrade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	grades := make([]course.StudentGrade, 0)
	for _, g := range repo.db.grades {
		sub, ok := repo.db.submissions[g.SubmissionID]
		if !ok || sub.StudentID != studentID {
			continue
		}
		a, ok := repo.db.assignments[sub.AssignmentID]
		if !ok {
			continue
		}
		crs, ok := repo.db.courses[a.CourseID]
		if !ok {
			continue
		}
		grades = append(grades, course.StudentGrade{
			GradeID:         g.ID,
			AssignmentTitle: a.Title,
			Grade:           g.Grade,
			CourseName:      crs.Name,
			StudentID:       studentID,
		})
	}
	sort.Slice(grades, func(i, j int) bool { return grades[i].GradeID < grades[j].GradeID })
	return grades, nil
}

func (repo *courseRepository) RecomputeCourseGrades(ctx context.Context, courseID int) (map[int]float64, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	enrolled := make(map[int]*course.Enrollment)
	for _, enr := range repo.db.enrollments {
		if enr.CourseID == courseID {
			enrolled[enr.StudentID] = enr
		}
	}

	// mean of each enrolled student's graded submissions in the course
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for subID, sub := range repo.db.submissions {
		if a, ok := repo.db.assignments[sub.AssignmentID]; ok && a.CourseID == courseID {
			if _, ok := enrolled[sub.StudentID]; !ok {
				continue
			}
			for _, g := range repo.db.grades {
				if g.SubmissionID == subID {
					sums[sub.StudentID] += g.Grade
					counts[sub.StudentID]++
					break
				}
			}
		}
	}

	// merge with the prior stored grade: (old+new)/2, single step
	aggregates := make(map[int]float64)
	for sid, sum := range sums {
		mean := sum / float64(counts[sid])
		enr := enrolled[sid]
		if enr.Grade.Valid {
			mean = (enr.Grade.Float64 + mean) / 2
		}
		enr.Grade = null.Float64From(mean)
		aggregates[sid] = mean
	}
	return aggregates, nil
}

func (repo *courseRepository) AddContent(ctx context.Context, c course.Content) (course.Content, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c.ID = repo.db.nextID(core.SeqContent)
	repo.db.contents[c.ID] = &c
	return c, nil
}

func (repo *courseRepository) QueryContent(ctx context.Context, courseID int) ([]course.Content, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	contents := make([]course.Content, 0)
	for _, c := range repo.db.contents {
		if c.CourseID == courseID {
			contents = append(contents, *c)
		}
	}
	sort.Slice(contents, func(i, j int) bool { return contents[i].ID < contents[j].ID })
	return contents, nil
}

func (repo *courseRepository) CreateEvent(ctx context.Context, ev course.Event) (course.Event, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ev.ID = repo.db.nextID(core.SeqEvent)
	repo.db.events[ev.ID] = &ev
	return ev, nil
}

func (repo *courseRepository) QueryEvents(ctx context.Context, courseID int) ([]course.Event, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	events := make([]course.Event, 0)
	for _, ev := range repo.db.events {
		if ev.CourseID == courseID {
			events = append(events, *ev)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Date.Equal(events[j].Date) {
			return events[i].ID < events[j].ID
		}
		return events[i].Date.Before(events[j].Date)
	})
	return events, nil
}
