package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/course"
)

type courseRepository struct {
	db  *sqlx.DB
	seq core.IDAllocator
}

func NewCourseRepository(db *sqlx.DB, seq core.IDAllocator) course.Repository {
	return &courseRepository{db: db, seq: seq}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	err := core.Atomic(ctx, repo.db, func(tx core.DBTransactor) error {
		id, err := repo.seq.NextID(ctx, tx, core.SeqCourse)
		if err != nil {
			return err
		}
		code, err := repo.seq.NextCourseCode(ctx, tx, crs.Department)
		if err != nil {
			return err
		}
		crs.ID = id
		crs.Code = code

		q := `INSERT INTO course (id, name, department, code, created_at) VALUES ($1, $2, $3, $4, $5)`
		_, err = tx.ExecContext(ctx, q, crs.ID, crs.Name, crs.Department, crs.Code, crs.CreatedAt)
		return errors.Wrap(err, "inserting course")
	})
	if err != nil {
		return course.Course{}, err
	}
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id int) (course.Course, error) {
	var crs course.Course
	q := `SELECT id, name, department, code, created_at FROM course WHERE id = $1`
	if err := repo.db.GetContext(ctx, &crs, q, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	return crs, nil
}

func (repo *courseRepository) QueryAllCourses(ctx context.Context) ([]course.Course, error) {
	courses := make([]course.Course, 0)
	q := `SELECT id, name, department, code, created_at FROM course ORDER BY id`
	if err := repo.db.SelectContext(ctx, &courses, q); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return courses, nil
}

func (repo *courseRepository) QueryCoursesByStudent(ctx context.Context, studentID int) ([]course.Course, error) {
	courses := make([]course.Course, 0)
	q := `
	SELECT c.id, c.name, c.department, c.code, c.created_at
	FROM course c
	JOIN enrollment e ON e.course_id = c.id
	WHERE e.student_id = $1
	ORDER BY c.id`
	if err := repo.db.SelectContext(ctx, &courses, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying student courses")
	}
	return courses, nil
}

func (repo *courseRepository) QueryCoursesByLecturer(ctx context.Context, lecturerID int) ([]course.Course, error) {
	courses := make([]course.Course, 0)
	q := `
	SELECT c.id, c.name, c.department, c.code, c.created_at
	FROM course c
	JOIN lecturer_assignment la ON la.course_id = c.id
	WHERE la.lecturer_id = $1
	ORDER BY c.id`
	if err := repo.db.SelectContext(ctx, &courses, q, lecturerID); err != nil {
		return nil, errors.Wrap(err, "querying lecturer courses")
	}
	return courses, nil
}

func (repo *courseRepository) QueryMembers(ctx context.Context, courseID int) ([]course.Member, error) {
	members := make([]course.Member, 0)
	q := `
	SELECT ua.id AS user_id, ua.username,
	       TRIM(ua.first_name || ' ' || ua.last_name) AS full_name, ua.role
	FROM user_account ua
	LEFT JOIN student s ON s.user_id = ua.id
	LEFT JOIN lecturer l ON l.user_id = ua.id
	WHERE s.id IN (SELECT student_id FROM enrollment WHERE course_id = $1)
	   OR l.id IN (SELECT lecturer_id FROM lecturer_assignment WHERE course_id = $1)
	ORDER BY ua.id`
	if err := repo.db.SelectContext(ctx, &members, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying members")
	}
	return members, nil
}

func (repo *courseRepository) AssignLecturer(ctx context.Context, courseID, lecturerID int) error {
	return core.Atomic(ctx, repo.db, func(tx core.DBTransactor) error {
		if err := exists(ctx, tx, `SELECT EXISTS(SELECT 1 FROM course WHERE id = $1)`, courseID, course.ErrNotFound); err != nil {
			return err
		}
		if err := exists(ctx, tx, `SELECT EXISTS(SELECT 1 FROM lecturer WHERE id = $1)`, lecturerID, course.ErrLecturerNotFound); err != nil {
			return err
		}

		q := `INSERT INTO lecturer_assignment (course_id, lecturer_id) VALUES ($1, $2)`
		if _, err := tx.ExecContext(ctx, q, courseID, lecturerID); err != nil {
			if isUniqueViolation(err, "lecturer_assignment_pkey") {
				return course.ErrLecturerAssigned
			}
			return errors.Wrap(err, "assigning lecturer")
		}
		return nil
	})
}

func (repo *courseRepository) Enroll(ctx context.Context, studentID, courseID, maxEnrollments int) (course.Enrollment, error) {
	var enr course.Enrollment
	err := core.Atomic(ctx, repo.db, func(tx core.DBTransactor) error {
		if err := exists(ctx, tx, `SELECT EXISTS(SELECT 1 FROM course WHERE id = $1)`, courseID, course.ErrNotFound); err != nil {
			return err
		}

		// lock the student row so concurrent enrollments of the same student
		// serialize and the cap cannot be raced past
		var sid int
		err := tx.QueryRowContext(ctx, `SELECT id FROM student WHERE id = $1 FOR UPDATE`, studentID).Scan(&sid)
		if err != nil {
			if errors.Cause(err) == sql.ErrNoRows {
				return course.ErrStudentNotFound
			}
			return errors.Wrap(err, "locking student")
		}

		var count int
		err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM enrollment WHERE student_id = $1`, studentID).Scan(&count)
		if err != nil {
			return errors.Wrap(err, "counting enrollments")
		}
		if count >= maxEnrollments {
			return course.ErrEnrollmentLimit
		}

		q := `INSERT INTO enrollment (student_id, course_id, created_at) VALUES ($1, $2, NOW()) RETURNING created_at`
		if err = tx.QueryRowContext(ctx, q, studentID, courseID).Scan(&enr.CreatedAt); err != nil {
			if isUniqueViolation(err, "enrollment_pkey") {
				return course.ErrAlreadyEnrolled
			}
			return errors.Wrap(err, "inserting enrollment")
		}
		enr.StudentID = studentID
		enr.CourseID = courseID
		return nil
	})
	if err != nil {
		return course.Enrollment{}, err
	}
	return enr, nil
}

func (repo *courseRepository) IsEnrolled(ctx context.Context, studentID, courseID int) (bool, error) {
	var enrolled bool
	q := `SELECT EXISTS(SELECT 1 FROM enrollment WHERE student_id = $1 AND course_id = $2)`
	if err := repo.db.GetContext(ctx, &enrolled, q, studentID, courseID); err != nil {
		return false, errors.Wrap(err, "checking enrollment")
	}
	return enrolled, nil
}

func (repo *courseRepository) CreateAssignment(ctx context.Context, a course.Assignment) (course.Assignment, error) {
	err := core.Atomic(ctx, repo.db, func(tx core.DBTransactor) error {
		id, err := repo.seq.NextID(ctx, tx, core.SeqAssignment)
		if err != nil {
			return err
		}
		a.ID = id

		q := `INSERT INTO assignment (id, course_id, title, description, due_date) VALUES ($1, $2, $3, $4, $5)`
		_, err = tx.ExecContext(ctx, q, a.ID, a.CourseID, a.Title, a.Description, a.DueDate)
		return errors.Wrap(err, "inserting assignment")
	})
	if err != nil {
		return course.Assignment{}, err
	}
	return a, nil
}

func (repo *courseRepository) GetAssignmentByID(ctx context.Context, id int) (course.Assignment, error) {
	var a course.Assignment
	q := `SELECT id, course_id, title, description, due_date FROM assignment WHERE id = $1`
	if err := repo.db.GetContext(ctx, &a, q, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return course.Assignment{}, course.ErrAssignmentNotFound
		}
		return course.Assignment{}, errors.Wrap(err, "getting assignment")
	}
	return a, nil
}

func (repo *courseRepository) QueryAssignments(ctx context.Context, courseID int) ([]course.Assignment, error) {
	assignments := make([]course.Assignment, 0)
	q := `SELECT id, course_id, title, description, due_date FROM assignment WHERE course_id = $1 ORDER BY id`
	if err := repo.db.SelectContext(ctx, &assignments, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return assignments, nil
}

func (repo *courseRepository) CreateSubmission(ctx context.Context, sub course.Submission) (course.Submission, error) {
	err := core.Atomic(ctx, repo.db, func(tx core.DBTransactor) error {
		id, err := repo.seq.NextID(ctx, tx, core.SeqSubmission)
		if err != nil {
			return err
		}
		sub.ID = id

		q := `INSERT INTO submission (id, assignment_id, student_id, content, submitted_at) VALUES ($1, $2, $3, $4, $5)`
		if _, err = tx.ExecContext(ctx, q, sub.ID, sub.AssignmentID, sub.StudentID, sub.Content, sub.SubmittedAt); err != nil {
			if isUniqueViolation(err, "submission_assignment_id_student_id_key") {
				return course.ErrDuplicateSubmission
			}
			return errors.Wrap(err, "inserting submission")
		}
		return nil
	})
	if err != nil {
		return course.Submission{}, err
	}
	return sub, nil
}

func (repo *courseRepository) GetSubmissionByID(ctx context.Context, id int) (course.Submission, error) {
	var sub course.Submission
	q := `SELECT id, assignment_id, student_id, content, submitted_at FROM submission WHERE id = $1`
	if err := repo.db.GetContext(ctx, &sub, q, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return course.Submission{}, course.ErrSubmissionNotFound
		}
		return course.Submission{}, errors.Wrap(err, "getting submission")
	}
	return sub, nil
}

func (repo *courseRepository) QuerySubmissions(ctx context.Context, assignmentID int) ([]course.Submission, error) {
	subs := make([]course.Submission, 0)
	q := `SELECT id, assignment_id, student_id, content, submitted_at FROM submission WHERE assignment_id = $1 ORDER BY id`
	if err := repo.db.SelectContext(ctx, &subs, q, assignmentID); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return subs, nil
}

func (repo *courseRepository) CreateGrade(ctx context.Context, g course.Grade) (course.Grade, error) {
	err := core.Atomic(ctx, repo.db, func(tx core.DBTransactor) error {
		id, err := repo.seq.NextID(ctx, tx, core.SeqGrade)
		if err != nil {
			return err
		}
		g.ID = id

		q := `INSERT INTO grade (id, submission_id, grade) VALUES ($1, $2, $3)`
		if _, err = tx.ExecContext(ctx, q, g.ID, g.SubmissionID, g.Grade); err != nil {
			if isUniqueViolation(err, "grade_submission_id_key") {
				return course.ErrDuplicateGrade
			}
			return errors.Wrap(err, "inserting grade")
		}
		return nil
	})
	if err != nil {
		return course.Grade{}, err
	}
	return g, nil
}

func (repo *courseRepository) QueryStudentGrades(ctx context.Context, studentID int) ([]course.StudentGrade, error) {
	grades := make([]course.StudentGrade, 0)
	q := `
	SELECT g.id AS grade_id, a.title AS assignment_title, g.grade, c.name AS course_name, sub.student_id
	FROM grade g
	JOIN submission sub ON sub.id = g.submission_id
	JOIN assignment a ON a.id = sub.assignment_id
	JOIN course c ON c.id = a.course_id
	WHERE sub.student_id = $1
	ORDER BY g.id`
	if err := repo.db.SelectContext(ctx, &grades, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying student grades")
	}
	return grades, nil
}

func (repo *courseRepository) RecomputeCourseGrades(ctx context.Context, courseID int) (map[int]float64, error) {
	aggregates := make(map[int]float64)

	err := core.Atomic(ctx, repo.db, func(tx core.DBTransactor) error {
		// lock the course's enrollments so concurrent grading and recompute
		// calls cannot race on the same rows
		q := `SELECT student_id, grade FROM enrollment WHERE course_id = $1 FOR UPDATE`
		rows, err := tx.QueryContext(ctx, q, courseID)
		if err != nil {
			return errors.Wrap(err, "locking enrollments")
		}
		stored := make(map[int]sql.NullFloat64)
		for rows.Next() {
			var (
				sid  int
				prev sql.NullFloat64
			)
			if err = rows.Scan(&sid, &prev); err != nil {
				_ = rows.Close()
				return errors.Wrap(err, "scanning enrollment")
			}
			stored[sid] = prev
		}
		if err = rows.Err(); err != nil {
			return errors.Wrap(err, "scanning enrollments")
		}
		_ = rows.Close()

		// mean of each student's graded submissions in the course
		q = `
		SELECT sub.student_id, AVG(g.grade)
		FROM grade g
		JOIN submission sub ON sub.id = g.submission_id
		JOIN assignment a ON a.id = sub.assignment_id
		WHERE a.course_id = $1
		GROUP BY sub.student_id`
		rows, err = tx.QueryContext(ctx, q, courseID)
		if err != nil {
			return errors.Wrap(err, "querying grades")
		}
		for rows.Next() {
			var (
				sid  int
				mean float64
			)
			if err = rows.Scan(&sid, &mean); err != nil {
				_ = rows.Close()
				return errors.Wrap(err, "scanning grade mean")
			}
			prev, ok := stored[sid]
			if !ok { // not enrolled
				continue
			}
			// single-step running average with the prior stored grade
			if prev.Valid {
				mean = (prev.Float64 + mean) / 2
			}
			aggregates[sid] = mean
		}
		if err = rows.Err(); err != nil {
			return errors.Wrap(err, "scanning grade means")
		}
		_ = rows.Close()

		q = `UPDATE enrollment SET grade = $1 WHERE course_id = $2 AND student_id = $3`
		for sid, agg := range aggregates {
			if _, err = tx.ExecContext(ctx, q, agg, courseID, sid); err != nil {
				return errors.Wrap(err, "updating aggregate grade")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return aggregates, nil
}

func (repo *courseRepository) AddContent(ctx context.Context, c course.Content) (course.Content, error) {
	err := core.Atomic(ctx, repo.db, func(tx core.DBTransactor) error {
		id, err := repo.seq.NextID(ctx, tx, core.SeqContent)
		if err != nil {
			return err
		}
		c.ID = id

		q := `INSERT INTO course_content (id, course_id, section, content, metadata) VALUES ($1, $2, $3, $4, $5)`
		_, err = tx.ExecContext(ctx, q, c.ID, c.CourseID, c.Section, c.Content, c.Metadata)
		return errors.Wrap(err, "inserting content")
	})
	if err != nil {
		return course.Content{}, err
	}
	return c, nil
}

func (repo *courseRepository) QueryContent(ctx context.Context, courseID int) ([]course.Content, error) {
	contents := make([]course.Content, 0)
	q := `SELECT id, course_id, section, content, metadata FROM course_content WHERE course_id = $1 ORDER BY id`
	if err := repo.db.SelectContext(ctx, &contents, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying content")
	}
	return contents, nil
}

func (repo *courseRepository) CreateEvent(ctx context.Context, ev course.Event) (course.Event, error) {
	err := core.Atomic(ctx, repo.db, func(tx core.DBTransactor) error {
		id, err := repo.seq.NextID(ctx, tx, core.SeqEvent)
		if err != nil {
			return err
		}
		ev.ID = id

		q := `INSERT INTO calendar_event (id, course_id, name, description, date, created_by) VALUES ($1, $2, $3, $4, $5, $6)`
		_, err = tx.ExecContext(ctx, q, ev.ID, ev.CourseID, ev.Name, ev.Description, ev.Date, ev.CreatedBy)
		return errors.Wrap(err, "inserting event")
	})
	if err != nil {
		return course.Event{}, err
	}
	return ev, nil
}

func (repo *courseRepository) QueryEvents(ctx context.Context, courseID int) ([]course.Event, error) {
	events := make([]course.Event, 0)
	q := `SELECT id, course_id, name, description, date, created_by FROM calendar_event WHERE course_id = $1 ORDER BY date, id`
	if err := repo.db.SelectContext(ctx, &events, q, courseID); err != nil {
		return nil, errors.Wrap(err, "querying events")
	}
	return events, nil
}

func exists(ctx context.Context, tx core.DBTransactor, query string, id int, missing error) error {
	var ok bool
	if err := tx.QueryRowContext(ctx, query, id).Scan(&ok); err != nil {
		return errors.Wrap(err, "checking existence")
	}
	if !ok {
		return missing
	}
	return nil
}
