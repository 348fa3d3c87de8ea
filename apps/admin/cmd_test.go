package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/darasahq/darasa/core/user"
	inmemdb "github.com/darasahq/darasa/storage/database/inmem"
)

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	usrRepo = inmemdb.NewUserRepository(db)

	return &commandLine{
		db:      &sqlx.DB{},
		usrRepo: usrRepo,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_addAdmin(t *testing.T) {
	cli := setup(t)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"addadmin"}, wantErr: errHelp},
		{name: "no department", args: []string{"addadmin", "-username", "boss"}, wantErr: errHelp},
		{name: "no password", args: []string{"addadmin", "-username", "boss", "-dept", "CSC"}, wantErr: errHelp},
		{
			name:  "ok",
			args:  []string{"addadmin", "-username", "boss", "-email", "Boss@test.cd", "-dept", "CSC"},
			extra: extra{pwd: "s3cr3t"},
		},
		{
			name:    "duplicate username",
			args:    []string{"addadmin", "-username", "boss", "-dept", "CSC"},
			extra:   extra{pwd: "s3cr3t"},
			wantErr: user.ErrUsernameExists,
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	usr, err := usrRepo.GetUserByUsername(context.Background(), "boss")
	if err != nil {
		t.Fatalf("GetUserByUsername() failed: %v", err)
	}
	if usr.Role != user.RoleAdmin {
		t.Errorf("role = %s; want %s", usr.Role, user.RoleAdmin)
	}
	if usr.Email != "boss@test.cd" {
		t.Errorf("email = %s; want boss@test.cd", usr.Email)
	}
	if usr.LecturerID == 0 {
		t.Error("admin did not get a lecturer profile")
	}
	if !usr.CheckPassword("s3cr3t") {
		t.Error("stored credentials do not verify")
	}
}
