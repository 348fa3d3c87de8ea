package main

import (
	"context"
	"time"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

// addAdmin creates an admin account with a lecturer profile.
func (cli *commandLine) addAdmin(uname, email, first, last, dept, pwd string) error {
	usr := user.User{
		Username:   core.CleanString(uname),
		Email:      core.CleanString(email, true /* lower */),
		Role:       user.RoleAdmin,
		FirstName:  core.CleanString(first),
		LastName:   core.CleanString(last),
		Department: core.CleanString(dept),
		CreatedAt:  time.Now().UTC(),
	}
	usr.SetPassword(pwd)

	_, err := cli.usrRepo.CreateUser(context.Background(), usr)
	return err
}
