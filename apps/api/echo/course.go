package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/user"
)

type courseApi struct {
	svc      *course.Service
	conf     *core.Config
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := courseApi{
		svc:      deps.CourseSvc,
		conf:     deps.Conf,
		validate: deps.Validate,
	}

	lecturers := roleMiddleware(user.RoleLecturer, user.RoleAdmin)

	cg := g.Group("/courses", jwt)
	cg.POST("", api.create, roleMiddleware(user.RoleAdmin))
	cg.GET("", api.query)
	cg.GET("/mine", api.mine)
	cg.GET("/:id/members", api.members)
	cg.POST("/:id/lecturer", api.assignLecturer, lecturers)
	cg.POST("/:id/enroll", api.enroll, roleMiddleware(user.RoleStudent, user.RoleAdmin))
	cg.POST("/:id/content", api.addContent, lecturers)
	cg.GET("/:id/content", api.content)
	cg.POST("/:id/assignments", api.createAssignment, lecturers)
	cg.GET("/:id/assignments", api.assignments)
	cg.POST("/:id/grades/recompute", api.recomputeGrades, lecturers)
	cg.POST("/:id/events", api.createEvent, lecturers)
	cg.GET("/:id/events", api.events)

	ag := g.Group("/assignments", jwt)
	ag.POST("/:id/submissions", api.submit, roleMiddleware(user.RoleStudent))
	ag.GET("/:id/submissions", api.submissions, lecturers)

	sg := g.Group("/submissions", jwt)
	sg.POST("/:id/grade", api.grade, lecturers)

	stg := g.Group("/students", jwt)
	stg.GET("/:id/grades", api.studentGrades)
}

// httpError maps domain sentinels to HTTP errors; anything unknown passes
// through and becomes a 500.
func httpError(err error) error {
	switch errors.Cause(err) {
	case course.ErrNotFound, course.ErrStudentNotFound, course.ErrLecturerNotFound,
		course.ErrAssignmentNotFound, course.ErrSubmissionNotFound:
		return errHttpNotFound
	case course.ErrLecturerAssigned, course.ErrAlreadyEnrolled, course.ErrEnrollmentLimit,
		course.ErrNotEnrolled, course.ErrDuplicateSubmission, course.ErrDuplicateGrade:
		return core.NewConflictError(errors.Cause(err))
	}
	return err
}

func idParam(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return 0, errHttpNotFound
	}
	return id, nil
}

// Handlers

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	crs, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) query(ctx echo.Context) error {
	courses, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

// mine lists the caller's courses: enrollments for students, assigned
// courses for lecturers.
func (api *courseApi) mine(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var courses []course.Course
	if claims.IsStudent() {
		courses, err = api.svc.QueryByStudent(ctx.Request().Context(), claims.ProfileID)
	} else {
		courses, err = api.svc.QueryByLecturer(ctx.Request().Context(), claims.ProfileID)
	}
	if err != nil {
		return errors.Wrap(err, "querying own courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) members(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	members, err := api.svc.Members(ctx.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *courseApi) assignLecturer(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id, err := idParam(ctx)
	if err != nil {
		return err
	}

	var data course.AssignLecturer
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignLecturer")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	// lecturers may only assign themselves; admins may assign anyone
	if data.LecturerID == 0 {
		data.LecturerID = claims.ProfileID
	}
	if !claims.IsAdmin() && data.LecturerID != claims.ProfileID {
		return errHttpForbidden
	}

	if err = api.svc.AssignLecturer(ctx.Request().Context(), id, data.LecturerID); err != nil {
		return httpError(err)
	}
	return ctx.JSON(http.StatusOK, echo.Map{"course_id": id, "lecturer_id": data.LecturerID})
}

func (api *courseApi) enroll(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id, err := idParam(ctx)
	if err != nil {
		return err
	}

	var data course.NewEnrollment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	// students enroll themselves; admins may enroll any student
	if claims.IsAdmin() {
		if data.StudentID == 0 {
			return core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "student_id is required"})
		}
	} else {
		data.StudentID = claims.ProfileID
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), data.StudentID, id)
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *courseApi) addContent(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}

	var data course.NewContent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewContent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.AddContent(ctx.Request().Context(), id, data)
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) content(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	contents, err := api.svc.Content(ctx.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(http.StatusOK, contents)
}

func (api *courseApi) createAssignment(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}

	var data course.NewAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.CreateAssignment(ctx.Request().Context(), id, data)
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *courseApi) assignments(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	assignments, err := api.svc.QueryAssignments(ctx.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *courseApi) submit(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id, err := idParam(ctx)
	if err != nil {
		return err
	}

	var data course.NewSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), id, claims.ProfileID, data)
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *courseApi) submissions(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.QuerySubmissions(ctx.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *courseApi) grade(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}

	var data course.NewGrade
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	g, err := api.svc.GradeSubmission(ctx.Request().Context(), id, data)
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(http.StatusCreated, g)
}

// studentGrades returns a student's grade report. Students may only look up
// their own.
func (api *courseApi) studentGrades(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	if claims.IsStudent() && claims.ProfileID != id {
		return errHttpForbidden
	}

	grades, err := api.svc.StudentGrades(ctx.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *courseApi) recomputeGrades(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	aggregates, err := api.svc.RecomputeGrades(ctx.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}

	// JSON object keys are strings
	out := make(map[string]float64, len(aggregates))
	for sid, agg := range aggregates {
		out[strconv.Itoa(sid)] = agg
	}
	return ctx.JSON(http.StatusOK, echo.Map{"course_id": id, "grades": out})
}

func (api *courseApi) createEvent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id, err := idParam(ctx)
	if err != nil {
		return err
	}

	var data course.NewEvent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	ev, err := api.svc.CreateEvent(ctx.Request().Context(), id, claims.UserID, data)
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(http.StatusCreated, ev)
}

func (api *courseApi) events(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	events, err := api.svc.Events(ctx.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(http.StatusOK, events)
}
