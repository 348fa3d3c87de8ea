package user

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"github.com/darasahq/darasa/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrUsernameExists     = errors.New("a user with this username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username string) error
		// CreateUser persists the account and its role profile and allocates
		// their identifiers, all in one transaction.
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		GetUserByID(ctx context.Context, id int) (User, error)
		GetUserByUsername(ctx context.Context, username string) (User, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, conf: conf}
}

func (svc *Service) CheckUsernameUniqueness(uname string) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname); err != nil {
		if err == ErrUsernameExists {
			return core.NewValidationError(err, core.FieldError{Field: "username", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register creates the account with a fresh salted credential digest and its
// student or lecturer profile, then sends a welcome email if an address was
// provided.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	usr := User{
		Username:   nu.Username,
		Email:      nu.Email,
		Role:       nu.Role,
		FirstName:  nu.FirstName,
		LastName:   nu.LastName,
		Department: nu.Department,
		CreatedAt:  time.Now().UTC(),
	}
	usr.SetPassword(nu.Password)

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}

	if usr.Email != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:      []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
			Subject: "Welcome to " + svc.conf.AppName,
			Body: "Hi " + usr.FirstName + ",\n\n" +
				"Your " + svc.conf.AppName + " account has been created. " +
				"You can now log in with your username at " + svc.conf.FrontendBaseURL + ".\n",
		})
	}
	return usr, nil
}

// Authenticate verifies the credentials. Both an unknown username and a bad
// password come back as ErrInvalidCredentials so callers cannot tell which
// part was wrong.
func (svc *Service) Authenticate(ctx context.Context, uname, pwd string) (User, error) {
	usr, err := svc.repo.GetUserByUsername(ctx, uname)
	if err != nil {
		if err == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if !usr.CheckPassword(pwd) {
		return User{}, ErrInvalidCredentials
	}
	return usr, nil
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsername(ctx, core.CleanString(uname))
}
