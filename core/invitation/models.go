package invitation

import (
	"time"

	"github.com/humanistchoir/members/core"
)

// Status values reported to the admin API.
const (
	StatusPending  = "pending"
	StatusExpired  = "expired"
	StatusAccepted = "accepted"
)

type Invitation struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Key       string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	SentAt    time.Time `json:"sent_at"` // zero until sent
	Accepted  bool      `json:"accepted"`
	InviterID int64     `json:"inviter_id,omitempty"`
}

// KeyExpired reports whether the invitation can no longer be accepted on time grounds.
// An invitation that was never sent counts as expired.
func (inv Invitation) KeyExpired(expiry time.Duration, now time.Time) bool {
	if inv.SentAt.IsZero() {
		return true
	}
	return !inv.SentAt.Add(expiry).After(now)
}

func (inv Invitation) Status(expiry time.Duration, now time.Time) string {
	switch {
	case inv.Accepted:
		return StatusAccepted
	case inv.KeyExpired(expiry, now):
		return StatusExpired
	default:
		return StatusPending
	}
}

type NewInvitation struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

func (ni *NewInvitation) Validate() error {
	ni.Email = core.CleanString(ni.Email, true /* lower */)
	return core.Validate.Struct(ni)
}

// Signup is the invitation-only account creation form.
type Signup struct {
	Key             string `form:"key" validate:"required"`
	FirstName       string `form:"first_name" validate:"required,max=150"`
	LastName        string `form:"last_name" validate:"required,max=150"`
	EmailPermission bool   `form:"email_permission" validate:"required"`
	Password        string `form:"password" validate:"required"`
	PasswordConfirm string `form:"password_confirm" validate:"required,eqfield=Password"`
}

func (s *Signup) Clean() {
	s.Key = core.CleanString(s.Key)
	s.FirstName = core.CleanString(s.FirstName)
	s.LastName = core.CleanString(s.LastName)
}

type QueryFilter struct {
	Search   string `query:"search"`
	Accepted *bool  `query:"accepted"`
}

// GDPRMessage is shown next to the mandatory mailing list consent box.
const GDPRMessage = "I consent to my email address being added to the London Humanist Choir " +
	"mailing list for the purposes of choir information only. I understand " +
	"that I can unsubscribe at any time using the link in the footer of " +
	"any email I receive from the choir."
