package core

import "context"

// Entity kinds with their own identifier sequence.
const (
	SeqUser       = "user"
	SeqStudent    = "student"
	SeqLecturer   = "lecturer"
	SeqCourse     = "course"
	SeqAssignment = "assignment"
	SeqSubmission = "submission"
	SeqGrade      = "grade"
	SeqContent    = "content"
	SeqEvent      = "event"
)

// Identifier floors; a sequence's first allocation returns its floor.
const (
	SeqDefaultFloor = 1
	SeqStudentFloor = 62001 // preserved from the legacy numbering scheme

	CourseCodeFloor = 101
)

// IDAllocator hands out collision-free, monotonically increasing identifiers.
//
// Allocation must be linearizable per key: two concurrent calls for the same
// kind (or course-code prefix) never return the same value, even across
// processes. Allocations happen inside the caller's transaction so an
// aborted write releases its identifier ordering slot along with everything
// else.
type IDAllocator interface {
	NextID(ctx context.Context, tx DBTransactor, kind string) (int, error)

	// NextCourseCode returns "{PREFIX}{suffix:03d}" where suffix is one
	// greater than the last code allocated for prefix, starting at 101.
	NextCourseCode(ctx context.Context, tx DBTransactor, prefix string) (string, error)
}
