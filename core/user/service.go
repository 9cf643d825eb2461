package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/humanistchoir/members/core"
)

var (
	// errors
	ErrNotFound             = errors.New("user not found")
	ErrEmailExists          = errors.New("a user with this email already exists")
	ErrAuthenticationFailed = errors.New("the email address and/or password you specified are not correct")
	ErrAccountDeactivated   = errors.New("this account is inactive")
	ErrWrongPassword        = errors.New("please type your current password")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...int64) error
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUserByID(ctx context.Context, id int64) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...int64) (int, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
		tokens  tokenGenerator
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
		tokens:  tokenGenerator{secretKey: []byte(conf.SecretKey), timeout: conf.PasswordResetTimeoutDelta},
	}
}

func (svc *Service) checkUniqueness(email string, exclIDs ...int64) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, exclIDs...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(nil, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return errors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

// Create stores a new active User; nu must have been validated.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := core.NowFunc().UTC().Truncate(time.Second)
	roles := nu.Roles
	if len(roles) == 0 {
		roles = []string{RoleMember}
	}
	usr := User{
		FirstName:       nu.FirstName,
		LastName:        nu.LastName,
		Email:           nu.Email,
		IsActive:        true,
		Roles:           roles,
		EmailPermission: nu.EmailPermission,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	return usr, errors.Wrap(err, "creating user")
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id int64) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

// Authenticate checks credentials and records the login.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrAuthenticationFailed
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	usr, err = svc.SetLastLogin(ctx, usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = core.NowFunc().UTC().Truncate(time.Second)
	return svc.repo.UpdateUser(ctx, usr)
}

// Update applies a validated UpdateUser to the user with the given id.
func (svc *Service) Update(ctx context.Context, id int64, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.FirstName = uu.FirstName
	usr.LastName = uu.LastName
	usr.Email = uu.Email
	usr.Roles = uu.Roles
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	usr.UpdatedAt = core.NowFunc().UTC().Truncate(time.Second)
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.NowFunc().UTC().Truncate(time.Second)
	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

func (svc *Service) ChangePassword(ctx context.Context, usr User, data ChangePassword) (User, error) {
	if err := core.Validate.Struct(data); err != nil {
		return User{}, err
	}
	if err := usr.CheckPassword(data.OldPassword); err != nil {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "oldpassword", Error: ErrWrongPassword.Error()})
	}
	return svc.SetPassword(ctx, usr, data.Password)
}

func (svc *Service) Delete(ctx context.Context, ids ...int64) (int, error) {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

// RequestPasswordReset mails a reset link; unknown or inactive emails yield ErrNotFound.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	svc.mailSvc.SendMessages(svc.passwordResetMail(usr))
	return nil
}

func (svc *Service) passwordResetMail(usr User) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      "Password Reset E-mail",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name": usr.DisplayName(),
			"URL": fmt.Sprintf("%s/accounts/password/reset/confirm?uid=%s&token=%s",
				svc.conf.FrontendBaseURL, EncodeUID(usr), svc.tokens.makeToken(usr)),
		},
	}
}

// ResetPassword sets a new password if the uid/token pair is still valid.
func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) (User, error) {
	if err := data.Validate(); err != nil {
		return User{}, err
	}
	invalid := core.NewValidationError(errors.New("the password reset link was invalid, possibly because it has already been used"))

	id, err := decodeUID(data.UID)
	if err != nil {
		return User{}, invalid
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, invalid
		}
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		return User{}, invalid
	}
	return svc.SetPassword(ctx, usr, data.Password)
}
