package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/user"
)

// NewConfig returns a deterministic config for tests; no env vars, no .env.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:            "Darasa",
		Env:                "TEST",
		Build:              "test",
		Debug:              false,
		TestMode:           true,
		SecretKey:          "test-secret-key",
		JWTExpirationDelta: 2 * time.Hour,
		ValidDepartments:   []string{"CSC", "MTH", "PHY", "BIO", "ECO"},
		MaxEnrollments:     6,
		DefaultFromEmail:   mail.Address{Name: "Darasa", Address: "noreply@localhost"},
		FrontendBaseURL:    "http://localhost:3000",
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	uname, pwd, role, dept string,
) user.User {
	t.Helper()

	usr := user.User{
		Username:   uname,
		Email:      uname + "@test.cd",
		Role:       role,
		FirstName:  "Test",
		LastName:   uname,
		Department: dept,
		CreatedAt:  time.Now().UTC(),
	}
	usr.SetPassword(pwd)

	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, svc *course.Service, name, dept string) course.Course {
	t.Helper()

	crs, err := svc.Create(context.Background(), course.NewCourse{Name: name, Department: dept})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}
