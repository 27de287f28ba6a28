package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/studysphere/backend/core"
)

var (
	// errors
	ErrNotFound       = errors.New("account not found")
	ErrEmailExists    = errors.New("an account with this email already exists")
	ErrUsernameExists = errors.New("an account with this username already exists")
)

const leaderboardLimit = 10

type (
	Repository interface {
		CheckUniqueness(ctx context.Context, username, email string, excluded ...Account) error
		CreateAccount(ctx context.Context, acct Account) (Account, error)
		QueryAccounts(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Account, error)
		GetAccount(ctx context.Context, filter GetFilter) (Account, error)
		// UpdateAccount only saves set fields; isActive and isStaff are applied when non-nil.
		UpdateAccount(ctx context.Context, acct Account, isActive, isStaff *bool) (Account, error)
		DeleteAccountsByID(ctx context.Context, ids ...string) (int, error)
		// AwardXP increments the account's XP by amount and stores the level
		// derived from the new total, as a single atomic read-modify-write.
		AwardXP(ctx context.Context, accountID string, amount int) (Account, error)
		// TopAccountsByXP returns up to limit accounts ordered by XP descending.
		TopAccountsByXP(ctx context.Context, limit int) ([]Account, error)
	}

	Service interface {
		Register(ctx context.Context, na NewAccount) (Account, error)
		CheckUniqueness(ctx context.Context, uname, email string, excl ...Account) error
		QueryAll(ctx context.Context) ([]Account, error)
		Filter(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Account, error)
		GetByID(ctx context.Context, id string) (Account, error)
		GetByUsername(ctx context.Context, uname string) (Account, error)
		GetByEmail(ctx context.Context, email string) (Account, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (Account, error)
		Update(ctx context.Context, id string, ua UpdateAccount) (Account, error)
		Delete(ctx context.Context, ids ...string) error
		SetLastLogin(ctx context.Context, acct Account) (Account, error)
		// AwardXP applies a progression award; all XP-earning call sites go through here.
		AwardXP(ctx context.Context, accountID string, amount int) (Account, error)
		// Top returns the leaderboard ranking: top accounts by all-time XP.
		Top(ctx context.Context) ([]Account, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetAccountPassword) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, excl ...Account) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excl...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Register(ctx context.Context, na NewAccount) (Account, error) {
	now := time.Now().UTC()
	acct := Account{
		Name:      na.Name,
		Username:  na.Username,
		Email:     na.Email,
		XP:        0,
		Level:     Level(0),
		IsActive:  boolPtr(true),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := acct.SetPassword(na.Password); err != nil {
		return Account{}, errors.Wrap(err, "setting password")
	}

	acct, err := svc.repo.CreateAccount(ctx, acct)
	if err != nil {
		return Account{}, errors.Wrap(err, "creating account")
	}
	svc.sendWelcomeMail(acct)
	return acct, nil
}

func (svc *service) QueryAll(ctx context.Context) ([]Account, error) {
	return svc.repo.QueryAccounts(ctx, nil, nil)
}

func (svc *service) Filter(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Account, error) {
	return svc.repo.QueryAccounts(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsername(ctx context.Context, uname string) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) Update(ctx context.Context, id string, ua UpdateAccount) (Account, error) {
	acct := Account{
		ID:        id,
		Name:      ua.Name,
		Username:  ua.Username,
		Email:     ua.Email,
		Avatar:    ua.Avatar,
		UpdatedAt: time.Now().UTC(),
	}
	if ua.Password != "" {
		if err := acct.SetPassword(ua.Password); err != nil {
			return Account{}, errors.Wrap(err, "setting password")
		}
	}
	return svc.repo.UpdateAccount(ctx, acct, ua.IsActive, ua.IsStaff)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteAccountsByID(ctx, ids...)
	return err
}

func (svc *service) SetLastLogin(ctx context.Context, acct Account) (Account, error) {
	acct.LastLogin = time.Now().UTC()
	acct.UpdatedAt = acct.LastLogin
	return svc.repo.UpdateAccount(ctx, acct, nil, nil)
}

func (svc *service) AwardXP(ctx context.Context, accountID string, amount int) (Account, error) {
	return svc.repo.AwardXP(ctx, accountID, amount)
}

func (svc *service) Top(ctx context.Context) ([]Account, error) {
	return svc.repo.TopAccountsByXP(ctx, leaderboardLimit)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	acct, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(acct)
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetAccountPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	acct, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return errors.Wrap(err, "finding account")
	}
	if err = verifyToken(svc.conf, acct, rp.Token); err != nil {
		return core.NewValidationError(err)
	}

	if err = acct.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	acct.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateAccount(ctx, acct, nil, nil)
	return errors.Wrap(err, "updating account")
}

func (svc *service) sendWelcomeMail(acct Account) {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: acct.Name, Address: acct.Email}},
		Subject:      "Welcome to " + svc.conf.AppName,
		TemplateName: "welcome",
		TemplateData: struct{ Name string }{acct.Name},
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *service) sendPasswordResetMail(acct Account) {
	token, err := MakeToken(svc.conf, acct)
	if err != nil {
		return
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: acct.Name, Address: acct.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: struct {
			Name  string
			UID   string
			Token string
		}{acct.Name, EncodeUID(acct), token},
	}
	svc.mailSvc.SendMessages(msg)
}

func boolPtr(b bool) *bool { return &b }
