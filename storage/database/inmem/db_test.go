package inmemdb

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/user"
)

func TestDB_nextID(t *testing.T) {
	db, _ := Open()

	if got := db.nextID(core.SeqUser); got != core.SeqDefaultFloor {
		t.Errorf("first user id = %d; want %d", got, core.SeqDefaultFloor)
	}
	if got := db.nextID(core.SeqUser); got != core.SeqDefaultFloor+1 {
		t.Errorf("second user id = %d; want %d", got, core.SeqDefaultFloor+1)
	}

	// student ids start at their own floor, independent of other kinds
	if got := db.nextID(core.SeqStudent); got != core.SeqStudentFloor {
		t.Errorf("first student id = %d; want %d", got, core.SeqStudentFloor)
	}
	if got := db.nextID(core.SeqLecturer); got != core.SeqDefaultFloor {
		t.Errorf("first lecturer id = %d; want %d", got, core.SeqDefaultFloor)
	}
}

func TestDB_nextCourseCode(t *testing.T) {
	db, _ := Open()

	want := []string{"CSC101", "CSC102", "CSC103"}
	for i, w := range want {
		if got := db.nextCourseCode("CSC"); got != w {
			t.Errorf("code #%d = %s; want %s", i+1, got, w)
		}
	}

	// each prefix has its own namespace
	if got := db.nextCourseCode("MTH"); got != "MTH101" {
		t.Errorf("MTH code = %s; want MTH101", got)
	}
}

func TestUserRepository_concurrentCreate(t *testing.T) {
	db, _ := Open()
	repo := NewUserRepository(db)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	ids := make(chan int, n)
	studentIDs := make(chan int, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			usr, err := repo.CreateUser(ctx, user.User{
				Username: fmt.Sprintf("student%d", i),
				Role:     user.RoleStudent,
			})
			if err != nil {
				t.Errorf("CreateUser() failed: %v", err)
				return
			}
			ids <- usr.ID
			studentIDs <- usr.StudentID
		}(i)
	}
	wg.Wait()
	close(ids)
	close(studentIDs)

	unique := func(ch chan int, floor int) {
		t.Helper()
		seen := make(map[int]bool, n)
		for id := range ch {
			if seen[id] {
				t.Errorf("id %d allocated twice", id)
			}
			seen[id] = true
			if id < floor || id >= floor+n {
				t.Errorf("id %d outside [%d, %d)", id, floor, floor+n)
			}
		}
		if len(seen) != n {
			t.Errorf("allocated %d ids; want %d", len(seen), n)
		}
	}
	unique(ids, core.SeqDefaultFloor)
	unique(studentIDs, core.SeqStudentFloor)
}

func TestCourseRepository_concurrentCreate(t *testing.T) {
	db, _ := Open()
	repo := NewCourseRepository(db)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	codes := make(chan string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			crs, err := repo.CreateCourse(ctx, course.Course{
				Name:       fmt.Sprintf("Course %d", i),
				Department: "CSC",
			})
			if err != nil {
				t.Errorf("CreateCourse() failed: %v", err)
				return
			}
			codes <- crs.Code
		}(i)
	}
	wg.Wait()
	close(codes)

	seen := make(map[string]bool, n)
	for code := range codes {
		if seen[code] {
			t.Errorf("code %s allocated twice", code)
		}
		seen[code] = true
	}
	if len(seen) != n {
		t.Errorf("allocated %d codes; want %d", len(seen), n)
	}
}
