package user

import (
	"errors"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

// Roles. An account holds exactly one; admins always carry a lecturer
// profile, so they are a superset of lecturers.
const (
	RoleStudent  = "student"
	RoleLecturer = "lecturer"
	RoleAdmin    = "admin"
)

var AllRoles = []string{RoleStudent, RoleLecturer, RoleAdmin}

var errDeptRequired = errors.New("a department is required for lecturers and admins")

type User struct {
	ID        int    `json:"id" db:"id"`
	Username  string `json:"username" db:"username"` // unique, case-sensitive
	Email     string `json:"email,omitempty" db:"email"`
	Role      string `json:"role" db:"role"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`

	// profile of the role side; exactly one of StudentID/LecturerID is set
	StudentID  int    `json:"student_id,omitempty" db:"student_id"`
	LecturerID int    `json:"lecturer_id,omitempty" db:"lecturer_id"`
	Department string `json:"department,omitempty" db:"department"`

	Salt         string    `json:"-" db:"salt"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
}

func (u *User) IsStudent() bool  { return u.Role == RoleStudent }
func (u *User) IsLecturer() bool { return u.Role == RoleLecturer || u.Role == RoleAdmin }
func (u *User) IsAdmin() bool    { return u.Role == RoleAdmin }

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ProfileID returns the role-side identifier: the student id for students,
// the lecturer id for lecturers and admins.
func (u *User) ProfileID() int {
	if u.IsStudent() {
		return u.StudentID
	}
	return u.LecturerID
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	Username        string `json:"username" validate:"required,min=3,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"required,role"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Department      string `json:"department"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc *Service) error {
	nu.Username = core.CleanString(nu.Username) // case-sensitive, keep as typed
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Department = core.CleanString(nu.Department)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	// lecturers carry a department; admins are lecturers too
	if nu.Role != RoleStudent && nu.Department == "" {
		return core.NewValidationError(errDeptRequired, core.FieldError{Field: "department", Error: errDeptRequired.Error()})
	}
	return svc.CheckUsernameUniqueness(nu.Username)
}

// custom validation tags
var (
	roleTag  = "role"
	roleText = "invalid role"
)

// InitValidators registers this package's custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)
}

func roleValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, role := range AllRoles {
		if val == role {
			return true
		}
	}
	return false
}
