package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

// userQuery joins accounts with their role profile so a User scans in one go.
const userQuery = `
SELECT ua.id, ua.username, COALESCE(ua.email, '') AS email, ua.role,
       ua.first_name, ua.last_name,
       COALESCE(s.id, 0) AS student_id,
       COALESCE(l.id, 0) AS lecturer_id,
       COALESCE(l.department, '') AS department,
       ua.salt, ua.password_hash, ua.created_at
FROM user_account ua
LEFT JOIN student s ON s.user_id = ua.id
LEFT JOIN lecturer l ON l.user_id = ua.id`

type userRepository struct {
	db  *sqlx.DB
	seq core.IDAllocator
}

func NewUserRepository(db *sqlx.DB, seq core.IDAllocator) user.Repository {
	return &userRepository{db: db, seq: seq}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username string) error {
	var exists bool
	q := `SELECT EXISTS(SELECT 1 FROM user_account WHERE username = $1)`
	if err := repo.db.GetContext(ctx, &exists, q, username); err != nil {
		return errors.Wrap(err, "checking username")
	}
	if exists {
		return user.ErrUsernameExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := core.Atomic(ctx, repo.db, func(tx core.DBTransactor) error {
		id, err := repo.seq.NextID(ctx, tx, core.SeqUser)
		if err != nil {
			return err
		}
		usr.ID = id

		q := `
		INSERT INTO user_account (id, username, email, role, first_name, last_name, salt, password_hash, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9)`
		_, err = tx.ExecContext(ctx, q,
			usr.ID, usr.Username, usr.Email, usr.Role, usr.FirstName, usr.LastName,
			usr.Salt, usr.PasswordHash, usr.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err, "user_account_username_key") {
				return user.ErrUsernameExists
			}
			return errors.Wrap(err, "inserting user")
		}

		if usr.IsStudent() {
			sid, err := repo.seq.NextID(ctx, tx, core.SeqStudent)
			if err != nil {
				return err
			}
			usr.StudentID = sid
			q = `INSERT INTO student (id, user_id) VALUES ($1, $2)`
			if _, err = tx.ExecContext(ctx, q, usr.StudentID, usr.ID); err != nil {
				return errors.Wrap(err, "inserting student profile")
			}
		} else {
			lid, err := repo.seq.NextID(ctx, tx, core.SeqLecturer)
			if err != nil {
				return err
			}
			usr.LecturerID = lid
			q = `INSERT INTO lecturer (id, user_id, department) VALUES ($1, $2, $3)`
			if _, err = tx.ExecContext(ctx, q, usr.LecturerID, usr.ID, usr.Department); err != nil {
				return errors.Wrap(err, "inserting lecturer profile")
			}
		}
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	users := make([]user.User, 0)
	q := userQuery + ` ORDER BY ua.id`
	if err := repo.db.SelectContext(ctx, &users, q); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return users, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	var usr user.User
	q := userQuery + ` WHERE ua.id = $1`
	if err := repo.db.GetContext(ctx, &usr, q, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	var usr user.User
	q := userQuery + ` WHERE ua.username = $1`
	if err := repo.db.GetContext(ctx, &usr, q, username); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return usr, nil
}
