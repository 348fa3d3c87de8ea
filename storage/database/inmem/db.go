package inmemdb

import (
	"fmt"
	"sync"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/user"
)

// DB is the in-memory database used by tests. One mutex guards everything;
// methods that check a rule and then write hold it for the whole operation,
// mirroring the transactional guarantees of the Postgres layer.
type DB struct {
	mutex sync.RWMutex

	users               map[int]*user.User
	courses             map[int]*course.Course
	lecturerAssignments map[int]int // course id -> lecturer id
	enrollments         []*course.Enrollment
	assignments         map[int]*course.Assignment
	submissions         map[int]*course.Submission
	grades              map[int]*course.Grade
	contents            map[int]*course.Content
	events              map[int]*course.Event

	seqs     map[string]int
	codeSeqs map[string]int
}

func Open() (*DB, error) {
	db := &DB{
		users:               make(map[int]*user.User),
		courses:             make(map[int]*course.Course),
		lecturerAssignments: make(map[int]int),
		assignments:         make(map[int]*course.Assignment),
		submissions:         make(map[int]*course.Submission),
		grades:              make(map[int]*course.Grade),
		contents:            make(map[int]*course.Content),
		events:              make(map[int]*course.Event),
		seqs:                make(map[string]int),
		codeSeqs:            make(map[string]int),
	}
	return db, nil
}

// nextID mirrors the Postgres sequence allocator. Callers must hold the mutex.
func (db *DB) nextID(kind string) int {
	if _, ok := db.seqs[kind]; !ok {
		floor := core.SeqDefaultFloor
		if kind == core.SeqStudent {
			floor = core.SeqStudentFloor
		}
		db.seqs[kind] = floor
		return floor
	}
	db.seqs[kind]++
	return db.seqs[kind]
}

// nextCourseCode allocates the next code in the prefix's namespace.
// Callers must hold the mutex.
func (db *DB) nextCourseCode(prefix string) string {
	if _, ok := db.codeSeqs[prefix]; !ok {
		db.codeSeqs[prefix] = core.CourseCodeFloor
	} else {
		db.codeSeqs[prefix]++
	}
	return fmt.Sprintf("%s%03d", prefix, db.codeSeqs[prefix])
}
