package services

import (
	"context"
	"strings"

	"tally/internal/core"
)

type UserStore interface {
	CreateUser(ctx context.Context, u core.User) error
	GetUser(ctx context.Context, id string) (core.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// UserService manages the user records that anchor ownership. Identity
// itself comes from the request; these rows exist so foreign keys and
// cascades hold.
type UserService struct {
	store UserStore
}

func NewUserService(store UserStore) *UserService {
	return &UserService{store: store}
}

// Ensure creates the user record on first sight. Name defaults to the id.
func (s *UserService) Ensure(ctx context.Context, id string) (core.User, error) {
	if strings.TrimSpace(id) == "" {
		return core.User{}, core.ErrEmptyUser
	}
	u, err := s.store.GetUser(ctx, id)
	if err == nil {
		return u, nil
	}
	if !errIsNotFound(err) {
		return core.User{}, err
	}
	u = core.User{ID: id, Name: id}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return core.User{}, err
	}
	return u, nil
}

// Delete removes a user and, through cascades, their transactions and
// budgets.
func (s *UserService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteUser(ctx, id)
}
