package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/humanistchoir/members/core/invitation"
)

const invitationColumns = "id, email, invite_key, created_at, sent_at, accepted, inviter_id"

type invitationRow struct {
	ID        int64      `db:"id"`
	Email     string     `db:"email"`
	Key       string     `db:"invite_key"`
	CreatedAt time.Time  `db:"created_at"`
	SentAt    null.Time  `db:"sent_at"`
	Accepted  bool       `db:"accepted"`
	InviterID null.Int64 `db:"inviter_id"`
}

func (r invitationRow) toInvitation() invitation.Invitation {
	inv := invitation.Invitation{
		ID:        r.ID,
		Email:     r.Email,
		Key:       r.Key,
		CreatedAt: r.CreatedAt.UTC(),
		Accepted:  r.Accepted,
		InviterID: r.InviterID.Int64,
	}
	if r.SentAt.Valid {
		inv.SentAt = r.SentAt.Time.UTC()
	}
	return inv
}

type invitationRepository struct {
	db *sqlx.DB
}

var _ invitation.Repository = (*invitationRepository)(nil)

func NewInvitationRepository(db *sqlx.DB) *invitationRepository {
	return &invitationRepository{db: db}
}

func (repo invitationRepository) CreateInvitation(ctx context.Context, inv invitation.Invitation) (invitation.Invitation, error) {
	id, err := insert(ctx, repo.db,
		"INSERT INTO invitations (email, invite_key, created_at, sent_at, accepted, inviter_id) VALUES (?, ?, ?, ?, ?, ?)",
		inv.Email, inv.Key, dbTime(inv.CreatedAt), nullTime(inv.SentAt), inv.Accepted, nullID(inv.InviterID))
	if err != nil {
		return invitation.Invitation{}, errors.Wrap(err, "inserting invitation")
	}
	return repo.get(ctx, "id = ?", id)
}

func (repo invitationRepository) get(ctx context.Context, where string, arg interface{}) (invitation.Invitation, error) {
	var row invitationRow
	err := repo.db.GetContext(ctx, &row, repo.db.Rebind("SELECT "+invitationColumns+" FROM invitations WHERE "+where), arg)
	if err != nil {
		return invitation.Invitation{}, trapNoRowsErr(err, invitation.ErrNotFound, "finding invitation")
	}
	return row.toInvitation(), nil
}

func (repo invitationRepository) GetInvitationByKey(ctx context.Context, key string) (invitation.Invitation, error) {
	return repo.get(ctx, "invite_key = ?", key)
}

func (repo invitationRepository) GetInvitationByEmail(ctx context.Context, email string) (invitation.Invitation, error) {
	return repo.get(ctx, "email = ?", strings.ToLower(email))
}

func (repo invitationRepository) selectInvitations(ctx context.Context, query string, args ...interface{}) ([]invitation.Invitation, error) {
	var rows []invitationRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying invitations")
	}
	invs := make([]invitation.Invitation, 0, len(rows))
	for _, r := range rows {
		invs = append(invs, r.toInvitation())
	}
	return invs, nil
}

func (repo invitationRepository) GetInvitationsByID(ctx context.Context, ids ...int64) ([]invitation.Invitation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := in(repo.db, "SELECT "+invitationColumns+" FROM invitations WHERE id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, errors.Wrap(err, "building invitations query")
	}
	return repo.selectInvitations(ctx, query, args...)
}

func (repo invitationRepository) QueryInvitations(ctx context.Context, filter *invitation.QueryFilter) ([]invitation.Invitation, error) {
	conds := []string{"1 = 1"}
	var args []interface{}
	if filter != nil {
		if filter.Search != "" {
			conds = append(conds, "email "+likeOp(repo.db)+" ?")
			args = append(args, "%"+filter.Search+"%")
		}
		if filter.Accepted != nil {
			conds = append(conds, "accepted = ?")
			args = append(args, *filter.Accepted)
		}
	}
	query := "SELECT " + invitationColumns + " FROM invitations WHERE " + strings.Join(conds, " AND ") + " ORDER BY created_at DESC, id DESC"
	return repo.selectInvitations(ctx, repo.db.Rebind(query), args...)
}

func (repo invitationRepository) UpdateInvitation(ctx context.Context, inv invitation.Invitation) (invitation.Invitation, error) {
	_, err := repo.db.ExecContext(ctx, repo.db.Rebind("UPDATE invitations SET email = ?, sent_at = ?, accepted = ?, inviter_id = ? WHERE id = ?"),
		inv.Email, nullTime(inv.SentAt), inv.Accepted, nullID(inv.InviterID), inv.ID)
	if err != nil {
		return invitation.Invitation{}, errors.Wrap(err, "updating invitation")
	}
	return repo.get(ctx, "id = ?", inv.ID)
}

func (repo invitationRepository) DeleteInvitationsByID(ctx context.Context, ids ...int64) (int, error) {
	return deleteByID(ctx, repo.db, "invitations", ids)
}
