package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/studysphere/backend/core"
	"github.com/studysphere/backend/core/user"
)

// addAccount updates or creates a user.Account
func (cli *commandLine) addAccount(name, uname, email, pwd string, isStaff bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	now := time.Now().UTC()
	acct, err := cli.acctRepo.GetAccount(ctx, user.GetFilter{UsernameOrEmail: uname})
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		acct = user.Account{
			Name:      name,
			Username:  uname,
			Email:     email,
			Level:     user.Level(0),
			IsStaff:   isStaff,
			CreatedAt: now,
		}
		if err = acct.SetPassword(pwd); err != nil {
			return err
		}
		acct.UpdatedAt = now
		_, err = cli.acctRepo.CreateAccount(ctx, acct)
		return err
	}

	if name != "" {
		acct.Name = name
	}
	acct.Email = email
	if err = acct.SetPassword(pwd); err != nil {
		return err
	}
	acct.UpdatedAt = now
	active := true
	_, err = cli.acctRepo.UpdateAccount(ctx, acct, &active, &isStaff)
	return err
}
