package invitation

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("invitation not found")
	ErrInvalidKey      = errors.New("an invalid invitation key was submitted")
	ErrExpired         = errors.New("the invitation for this e-mail address has expired")
	ErrAlreadyAccepted = errors.New("the invitation for this e-mail address has already been accepted")
	ErrAlreadyInvited  = errors.New("this e-mail address has already been invited")
	ErrEmailInUse      = errors.New("an active user is using this e-mail address")
	ErrEmailExists     = errors.New("an invitation for this e-mail address already exists")
)

type (
	Repository interface {
		CreateInvitation(ctx context.Context, inv Invitation) (Invitation, error)
		GetInvitationByKey(ctx context.Context, key string) (Invitation, error)
		GetInvitationByEmail(ctx context.Context, email string) (Invitation, error)
		GetInvitationsByID(ctx context.Context, ids ...int64) ([]Invitation, error)
		QueryInvitations(ctx context.Context, filter *QueryFilter) ([]Invitation, error)
		UpdateInvitation(ctx context.Context, inv Invitation) (Invitation, error)
		DeleteInvitationsByID(ctx context.Context, ids ...int64) (int, error)
	}

	Service struct {
		repo        Repository
		usrSvc      *user.Service
		mailSvc     core.EmailService
		mailingList core.MailingList
		logger      core.Logger
		conf        *core.Config
	}
)

func NewService(
	repo Repository,
	usrSvc *user.Service,
	mailSvc core.EmailService,
	mailingList core.MailingList,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:        repo,
		usrSvc:      usrSvc,
		mailSvc:     mailSvc,
		mailingList: mailingList,
		logger:      logger,
		conf:        conf,
	}
}

func (svc *Service) Expiry() time.Duration { return svc.conf.InvitationExpiry }

// Create records and immediately sends an invitation.
func (svc *Service) Create(ctx context.Context, ni NewInvitation, inviter user.User) (Invitation, error) {
	if err := ni.Validate(); err != nil {
		return Invitation{}, err
	}

	if _, err := svc.usrSvc.GetByEmail(ctx, ni.Email); err == nil {
		return Invitation{}, core.NewValidationError(nil, core.FieldError{Field: "email", Error: ErrEmailInUse.Error()})
	} else if errors.Cause(err) != user.ErrNotFound {
		return Invitation{}, errors.Wrap(err, "finding user by email")
	}

	if inv, err := svc.repo.GetInvitationByEmail(ctx, ni.Email); err == nil {
		msg := ErrAlreadyInvited
		if inv.Accepted {
			msg = ErrAlreadyAccepted
		}
		return Invitation{}, core.NewValidationError(nil, core.FieldError{Field: "email", Error: msg.Error()})
	} else if errors.Cause(err) != ErrNotFound {
		return Invitation{}, errors.Wrap(err, "finding invitation by email")
	}

	inv, err := svc.repo.CreateInvitation(ctx, Invitation{
		Email:     ni.Email,
		Key:       newKey(),
		CreatedAt: core.NowFunc().UTC().Truncate(time.Second),
		InviterID: inviter.ID,
	})
	if err != nil {
		return Invitation{}, errors.Wrap(err, "creating invitation")
	}
	return svc.Send(ctx, inv, inviter)
}

func newKey() string {
	return uuid.New().String()
}

// Send emails the invitation link and stamps SentAt, restarting the expiry window.
func (svc *Service) Send(ctx context.Context, inv Invitation, inviter user.User) (Invitation, error) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: inv.Email}},
		Subject:      "Invitation to join " + svc.conf.AppName,
		TemplateName: "invitation",
		TemplateData: map[string]interface{}{
			"InviteURL":   svc.AcceptURL(inv),
			"InviterName": inviter.DisplayName(),
			"Email":       inv.Email,
			"ExpiryDays":  int(svc.conf.InvitationExpiry / (24 * time.Hour)),
			"AppName":     svc.conf.AppName,
		},
	})
	inv.SentAt = core.NowFunc().UTC().Truncate(time.Second)
	inv, err := svc.repo.UpdateInvitation(ctx, inv)
	return inv, errors.Wrap(err, "updating invitation")
}

func (svc *Service) AcceptURL(inv Invitation) string {
	return fmt.Sprintf("%s/invitations/accept-invite/%s", svc.conf.FrontendBaseURL, inv.Key)
}

// Resend sends every selected invitation again and returns how many were sent.
func (svc *Service) Resend(ctx context.Context, ids []int64, inviter user.User) (int, error) {
	invs, err := svc.repo.GetInvitationsByID(ctx, ids...)
	if err != nil {
		return 0, errors.Wrap(err, "finding invitations")
	}
	for _, inv := range invs {
		if _, err := svc.Send(ctx, inv, inviter); err != nil {
			return 0, errors.Wrap(err, "resending invitation")
		}
	}
	return len(invs), nil
}

// ResentMessage is the admin notice shown after a resend.
func ResentMessage(n int) string {
	plural := "s"
	if n == 1 {
		plural = ""
	}
	return fmt.Sprintf("%d invitation%s have been resent.", n, plural)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Invitation, error) {
	return svc.repo.QueryInvitations(ctx, filter)
}

func (svc *Service) Delete(ctx context.Context, ids ...int64) (int, error) {
	return svc.repo.DeleteInvitationsByID(ctx, ids...)
}

// Check returns the invitation behind key if it can still be accepted.
func (svc *Service) Check(ctx context.Context, key string) (Invitation, error) {
	inv, err := svc.repo.GetInvitationByKey(ctx, core.CleanString(key))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Invitation{}, ErrInvalidKey
		}
		return Invitation{}, errors.Wrap(err, "finding invitation by key")
	}
	if inv.Accepted {
		return inv, ErrAlreadyAccepted
	}
	if inv.KeyExpired(svc.conf.InvitationExpiry, core.NowFunc()) {
		return inv, ErrExpired
	}
	return inv, nil
}

// Accept creates the member account for a still-valid invitation.
// Admins are told about the acceptance and the member is added to the mailing list;
// failures of either are only logged.
func (svc *Service) Accept(ctx context.Context, s Signup) (user.User, error) {
	s.Clean()
	if err := core.Validate.Struct(s); err != nil {
		return user.User{}, err
	}

	inv, err := svc.Check(ctx, s.Key)
	if err != nil {
		switch errors.Cause(err) {
		case ErrInvalidKey, ErrAlreadyAccepted, ErrExpired:
			return user.User{}, core.NewValidationError(err)
		}
		return user.User{}, errors.Wrap(err, "checking invitation")
	}

	nu := user.NewUser{
		FirstName:       s.FirstName,
		LastName:        s.LastName,
		Email:           inv.Email,
		Password:        s.Password,
		PasswordConfirm: s.PasswordConfirm,
		Roles:           []string{user.RoleMember},
		EmailPermission: s.EmailPermission,
	}
	if err := nu.Validate(svc.usrSvc); err != nil {
		return user.User{}, err
	}
	usr, err := svc.usrSvc.Create(ctx, nu)
	if err != nil {
		return user.User{}, errors.Wrap(err, "creating user")
	}

	inv.Accepted = true
	if _, err = svc.repo.UpdateInvitation(ctx, inv); err != nil {
		return user.User{}, errors.Wrap(err, "marking invitation accepted")
	}

	core.MailAdmins(svc.mailSvc, svc.conf, "Invitation accepted", "Invitation accepted by "+inv.Email)

	sub := core.Subscriber{Email: usr.Email, FirstName: usr.FirstName, LastName: usr.LastName}
	if err := svc.mailingList.Subscribe(ctx, sub); err != nil {
		svc.logger.Error(fmt.Sprintf("subscribing %s to mailing list: %v", usr.Email, err), err, usr)
	}
	return usr, nil
}
