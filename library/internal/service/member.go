package service

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-desk/library/internal/errs"
	"github.com/Astemirdum/library-desk/library/internal/model"
	"github.com/Astemirdum/library-desk/pkg/auth"
	"github.com/Astemirdum/library-desk/pkg/kafka"
	"github.com/Astemirdum/library-desk/pkg/validate"
)

// Register creates the login identity and its member profile together.
func (s *Service) Register(ctx context.Context, form model.RegisterForm) (model.Member, error) {
	first, last := model.SplitName(form.Name)
	if utf8.RuneCountInString(first) > model.MaxNamePartLength || utf8.RuneCountInString(last) > model.MaxNamePartLength {
		return model.Member{}, validate.FieldErrors{
			"name": fmt.Sprintf("Ensure each part of the name has at most %d characters.", model.MaxNamePartLength),
		}
	}
	hash, err := auth.HashPassword(form.Password)
	if err != nil {
		return model.Member{}, errors.Wrap(err, "hash password")
	}
	user := model.User{
		Username:     form.Username,
		PasswordHash: hash,
		FirstName:    first,
		LastName:     last,
		Email:        form.Email,
		DateJoined:   s.now().UTC(),
	}
	memberType := form.MemberType
	if memberType == "" {
		memberType = model.MemberTypeStudent
	}

	member, err := s.repo.CreateMember(ctx, user, memberType)
	if err != nil {
		return model.Member{}, err
	}
	s.log.Info("member registered", zap.Int64("member", member.ID), zap.String("username", user.Username))
	s.publish(ctx, kafka.Event{
		Type:     kafka.EventMemberRegistered,
		MemberID: member.ID,
		Username: user.Username,
	})
	return member, nil
}

// Authenticate reports ErrInvalidCredentials for an unknown user and for a
// wrong password alike.
func (s *Service) Authenticate(ctx context.Context, username, password string) (model.User, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.User{}, errs.ErrInvalidCredentials
		}
		return model.User{}, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return model.User{}, errs.ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn("last login", zap.Int64("user", user.ID), zap.Error(err))
	} else {
		user.LastLogin = &now
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (model.User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *Service) ListMembers(ctx context.Context) ([]model.Member, error) {
	return s.repo.ListMembers(ctx)
}

func (s *Service) GetMember(ctx context.Context, id int64) (model.Member, error) {
	return s.repo.GetMember(ctx, id)
}

func (s *Service) DeleteMember(ctx context.Context, id int64) (model.Member, error) {
	member, err := s.repo.DeleteMember(ctx, id)
	if err != nil {
		return member, err
	}
	s.log.Info("member deleted", zap.Int64("member", id))
	return member, nil
}
