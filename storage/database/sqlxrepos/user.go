package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/core/user"
)

const userColumns = `id, first_name, last_name, email, is_active, roles, password_hash,
	email_permission, created_at, updated_at, last_login`

var userOrderColumns = map[string]string{
	"id":         "id",
	"first_name": "first_name",
	"last_name":  "last_name",
	"email":      "email",
	"created_at": "created_at",
	"last_login": "last_login",
}

type userRow struct {
	ID              int64     `db:"id"`
	FirstName       string    `db:"first_name"`
	LastName        string    `db:"last_name"`
	Email           string    `db:"email"`
	IsActive        bool      `db:"is_active"`
	Roles           string    `db:"roles"`
	PasswordHash    []byte    `db:"password_hash"`
	EmailPermission bool      `db:"email_permission"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
	LastLogin       null.Time `db:"last_login"`
}

func (r userRow) toUser() user.User {
	var roles []string
	if r.Roles != "" {
		roles = strings.Split(r.Roles, ",")
	}
	return user.User{
		ID:              r.ID,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		Email:           r.Email,
		IsActive:        r.IsActive,
		Roles:           roles,
		PasswordHash:    r.PasswordHash,
		EmailPermission: r.EmailPermission,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
		LastLogin:       r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...int64) error {
	query, args, err := excludeIDs("SELECT COUNT(*) FROM users WHERE email = ?", []interface{}{email}, excludedIDs)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}
	found, err := exists(ctx, repo.db, query, args...)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if found {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO users (first_name, last_name, email, is_active, roles, password_hash,
		email_permission, created_at, updated_at, last_login) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		usr.FirstName, usr.LastName, usr.Email, usr.IsActive, strings.Join(usr.Roles, ","), usr.PasswordHash,
		usr.EmailPermission, dbTime(usr.CreatedAt), dbTime(usr.UpdatedAt), nullTime(usr.LastLogin))
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.GetUserByID(ctx, id)
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	conds := []string{"1 = 1"}
	var args []interface{}

	if filter != nil {
		// users with first/last name or email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			like := likeOp(repo.db)
			conds = append(conds, "(first_name "+like+" ? OR last_name "+like+" ? OR email "+like+" ?)")
			args = append(args, val, val, val)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			roleConds := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				roleConds = append(roleConds, "(',' || roles) LIKE ?")
				args = append(args, "%,"+role+"%")
			}
			conds = append(conds, "("+strings.Join(roleConds, " OR ")+")")
		}
		if filter.IsActive != nil {
			conds = append(conds, "is_active = ?")
			args = append(args, *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			conds = append(conds, "created_at >= ?")
			args = append(args, dbTime(filter.CreatedFrom))
		}
		if !filter.CreatedTo.IsZero() {
			conds = append(conds, "created_at <= ?")
			args = append(args, dbTime(filter.CreatedTo))
		}
	}

	query := "SELECT " + userColumns + " FROM users WHERE " + strings.Join(conds, " AND ") +
		" ORDER BY " + core.OrderByClause(ordering, userOrderColumns, "id ASC")

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo userRepository) getUser(ctx context.Context, where string, arg interface{}) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, repo.db.Rebind("SELECT "+userColumns+" FROM users WHERE "+where), arg)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return row.toUser(), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id int64) (user.User, error) {
	return repo.getUser(ctx, "id = ?", id)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, "email = ?", email)
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	_, err := repo.db.ExecContext(ctx, repo.db.Rebind(`UPDATE users SET first_name = ?, last_name = ?, email = ?,
		is_active = ?, roles = ?, password_hash = ?, email_permission = ?, updated_at = ?, last_login = ? WHERE id = ?`),
		usr.FirstName, usr.LastName, usr.Email, usr.IsActive, strings.Join(usr.Roles, ","), usr.PasswordHash,
		usr.EmailPermission, dbTime(usr.UpdatedAt), nullTime(usr.LastLogin), usr.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...int64) (int, error) {
	return deleteByID(ctx, repo.db, "users", ids)
}
