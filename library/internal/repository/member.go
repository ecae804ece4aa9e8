package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Astemirdum/library-desk/library/internal/errs"
	"github.com/Astemirdum/library-desk/library/internal/model"
)

var userColumns = []string{"id", "username", "password_hash", "first_name", "last_name", "email", "date_joined", "last_login"}

func memberSelect() sq.SelectBuilder {
	return qb.Select(
		"m.id", "m.user_id", "m.member_type",
		"coalesce(u.username, '') as username",
		"coalesce(u.first_name, '') as first_name",
		"coalesce(u.last_name, '') as last_name",
		"coalesce(u.email, '') as email",
		"(select count(*) from loans l where l.member_id = m.id and l.status = 'borrowed') as active_loans",
	).
		From(string(membersTableName) + " m").
		LeftJoin(string(usersTableName) + " u on u.id = m.user_id")
}

// CreateMember stores the identity and its member profile in one transaction.
func (r *repository) CreateMember(ctx context.Context, user model.User, memberType model.MemberType) (model.Member, error) {
	var member model.Member
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		query, args, err := qb.Insert(string(usersTableName)).
			Columns("username", "password_hash", "first_name", "last_name", "email", "date_joined").
			Values(user.Username, user.PasswordHash, user.FirstName, user.LastName, user.Email, user.DateJoined).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &user.ID, query, args...); err != nil {
			if isUniqueViolation(err, "users_username_key") {
				return errs.ErrUsernameTaken
			}
			return errors.Wrap(err, "insert user")
		}

		query, args, err = qb.Insert(string(membersTableName)).
			Columns("user_id", "member_type").
			Values(user.ID, memberType).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &member.ID, query, args...); err != nil {
			return errors.Wrap(err, "insert member")
		}
		return nil
	})
	if err != nil {
		return model.Member{}, err
	}

	member.UserID = &user.ID
	member.MemberType = memberType
	member.Username = user.Username
	member.FirstName = user.FirstName
	member.LastName = user.LastName
	member.Email = user.Email
	return member, nil
}

func (r *repository) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	return r.getUser(ctx, sq.Eq{"username": username})
}

func (r *repository) GetUser(ctx context.Context, id int64) (model.User, error) {
	return r.getUser(ctx, sq.Eq{"id": id})
}

func (r *repository) getUser(ctx context.Context, pred sq.Eq) (model.User, error) {
	query, args, err := qb.Select(userColumns...).
		From(string(usersTableName)).
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return model.User{}, err
	}

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errs.ErrNotFound
		}
		return model.User{}, err
	}
	return user, nil
}

func (r *repository) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	query, args, err := qb.Update(string(usersTableName)).
		Set("last_login", at).
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return errors.Wrap(err, "touch last_login")
}

func (r *repository) ListMembers(ctx context.Context) ([]model.Member, error) {
	query, args, err := memberSelect().OrderBy("m.id").ToSql()
	if err != nil {
		return nil, err
	}
	members := make([]model.Member, 0)
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repository) GetMember(ctx context.Context, id int64) (model.Member, error) {
	return getMember(ctx, r.db, id, false)
}

func getMember(ctx context.Context, q sqlx.QueryerContext, id int64, lock bool) (model.Member, error) {
	sb := memberSelect().Where(sq.Eq{"m.id": id})
	if lock {
		// the identity side of the outer join cannot be locked
		sb = sb.Suffix(forUpdate + " OF m")
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return model.Member{}, err
	}

	var member model.Member
	if err := sqlx.GetContext(ctx, q, &member, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Member{}, errs.ErrNotFound
		}
		return model.Member{}, err
	}
	return member, nil
}

// DeleteMember refuses while the member still holds borrowed books and
// returns the member alongside an *errs.ActiveLoansError in that case.
func (r *repository) DeleteMember(ctx context.Context, id int64) (model.Member, error) {
	var member model.Member
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if member, err = getMember(ctx, tx, id, true); err != nil {
			return err
		}
		if member.ActiveLoans > 0 {
			return &errs.ActiveLoansError{Count: member.ActiveLoans}
		}

		query, args, err := qb.Delete(string(membersTableName)).Where(sq.Eq{"id": id}).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrap(err, "delete member")
		}
		return nil
	})
	return member, err
}
