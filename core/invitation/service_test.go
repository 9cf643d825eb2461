package invitation_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/core/invitation"
	"github.com/humanistchoir/members/core/user"
	"github.com/humanistchoir/members/services/email"
	"github.com/humanistchoir/members/services/logger"
	"github.com/humanistchoir/members/services/mailinglist"
	"github.com/humanistchoir/members/storage/database/sqlxrepos"
	"github.com/humanistchoir/members/tests"
)

const pwd = "Kq2!vX9#tLm4"

func setup(t *testing.T) (*invitation.Service, *user.Service, *mailinglist.Console, user.User) {
	conf := core.NewTestConfig()
	db := testutil.PrepareDB(t)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	list := mailinglist.NewConsole(nil)
	svc := invitation.NewService(sqlxrepos.NewInvitationRepository(db), usrSvc, mailSvc, list, logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf), conf)
	chair := testutil.CreateUser(t, usrRepo, "Clara", "Chair", "chair@test.test", pwd, []string{user.RoleAdmin}, true)
	emailsvc.ResetSentMessages()
	return svc, usrSvc, list, chair
}

func TestCreate(t *testing.T) {
	svc, _, _, chair := setup(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, invitation.NewInvitation{Email: " New.Singer@Test.test "}, chair)
	require.NoError(t, err)
	assert.Equal(t, "new.singer@test.test", inv.Email)
	assert.False(t, inv.SentAt.IsZero())
	assert.NotEmpty(t, inv.Key)

	sent := emailsvc.LastSentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "new.singer@test.test", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, svc.AcceptURL(inv))
	assert.Contains(t, sent[0].TextContent, "Clara Chair")

	tests := []struct {
		name  string
		email string
	}{
		{"invalid email", "not-an-email"},
		{"already invited", "new.singer@test.test"},
		{"existing user", "chair@test.test"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, invitation.NewInvitation{Email: tc.email}, chair)
			fields, ok := core.FieldErrors(err)
			require.True(t, ok, "got %v", err)
			assert.Contains(t, fields, "email")
		})
	}
}

func TestResend(t *testing.T) {
	svc, _, _, chair := setup(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, invitation.NewInvitation{Email: "a@test.test"}, chair)
	require.NoError(t, err)
	b, err := svc.Create(ctx, invitation.NewInvitation{Email: "b@test.test"}, chair)
	require.NoError(t, err)
	emailsvc.ResetSentMessages()

	n, err := svc.Resend(ctx, []int64{a.ID, b.ID, 999}, chair)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, emailsvc.LastSentMessages(), 2)
	assert.Equal(t, "2 invitations have been resent.", invitation.ResentMessage(n))
	assert.Equal(t, "1 invitation have been resent.", invitation.ResentMessage(1))
}

func TestAccept(t *testing.T) {
	svc, usrSvc, list, chair := setup(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, invitation.NewInvitation{Email: "tenor@test.test"}, chair)
	require.NoError(t, err)
	emailsvc.ResetSentMessages()

	signup := func(key string) invitation.Signup {
		return invitation.Signup{
			Key:             key,
			FirstName:       " Tom ",
			LastName:        "Tenor",
			EmailPermission: true,
			Password:        pwd,
			PasswordConfirm: pwd,
		}
	}

	t.Run("invalid key", func(t *testing.T) {
		_, err := svc.Accept(ctx, signup("nope"))
		fields, ok := core.FieldErrors(err)
		require.True(t, ok)
		assert.Equal(t, invitation.ErrInvalidKey.Error(), fields["__all__"])
	})

	t.Run("consent required", func(t *testing.T) {
		s := signup(inv.Key)
		s.EmailPermission = false
		_, err := svc.Accept(ctx, s)
		_, ok := core.FieldErrors(err)
		assert.True(t, ok)
	})

	t.Run("ok", func(t *testing.T) {
		usr, err := svc.Accept(ctx, signup(inv.Key))
		require.NoError(t, err)
		assert.Equal(t, "Tom", usr.FirstName)
		assert.Equal(t, "tenor@test.test", usr.Email)
		assert.True(t, usr.IsActive)
		assert.True(t, usr.RoleStartsWith(user.RoleMember))

		_, err = usrSvc.Authenticate(ctx, "tenor@test.test", pwd)
		assert.NoError(t, err)

		require.Len(t, list.Subscribers, 1)
		assert.Equal(t, core.Subscriber{Email: "tenor@test.test", FirstName: "Tom", LastName: "Tenor"}, list.Subscribers[0])

		sent := emailsvc.LastSentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "Invitation accepted by tenor@test.test", sent[0].TextContent)
	})

	t.Run("already accepted", func(t *testing.T) {
		_, err := svc.Check(ctx, inv.Key)
		assert.Equal(t, invitation.ErrAlreadyAccepted, err)
	})
}

func TestCheckExpired(t *testing.T) {
	svc, _, _, chair := setup(t)
	ctx := context.Background()

	sent := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	core.NowFunc = func() time.Time { return sent }
	defer func() { core.NowFunc = time.Now }()

	inv, err := svc.Create(ctx, invitation.NewInvitation{Email: "late@test.test"}, chair)
	require.NoError(t, err)

	core.NowFunc = func() time.Time { return sent.Add(svc.Expiry() - time.Second) }
	_, err = svc.Check(ctx, inv.Key)
	assert.NoError(t, err)

	core.NowFunc = func() time.Time { return sent.Add(svc.Expiry()) }
	_, err = svc.Check(ctx, inv.Key)
	assert.Equal(t, invitation.ErrExpired, err)

	// resending restarts the window
	_, err = svc.Resend(ctx, []int64{inv.ID}, chair)
	require.NoError(t, err)
	_, err = svc.Check(ctx, inv.Key)
	assert.NoError(t, err)
}

func TestKeyExpired(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	expiry := 7 * 24 * time.Hour

	tests := []struct {
		name   string
		inv    invitation.Invitation
		want   bool
		status string
	}{
		{"never sent", invitation.Invitation{}, true, invitation.StatusExpired},
		{"fresh", invitation.Invitation{SentAt: now.Add(-time.Hour)}, false, invitation.StatusPending},
		{"boundary", invitation.Invitation{SentAt: now.Add(-expiry)}, true, invitation.StatusExpired},
		{"accepted", invitation.Invitation{SentAt: now.Add(-expiry), Accepted: true}, true, invitation.StatusAccepted},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.inv.KeyExpired(expiry, now))
			assert.Equal(t, tc.status, tc.inv.Status(expiry, now))
		})
	}
}
