package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/apperr"
)

var (
	ErrNotFound = apperr.New(apperr.NotFound, "user not found")
	ErrInactive = apperr.New(apperr.Unauthenticated, "account is deactivated")
)

// User is a storefront customer account.
type User struct {
	ID        uuid.UUID
	Email     string
	FirstName string
	LastName  string
	Phone     string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileUpdate holds the editable profile fields. Nil fields are left
// unchanged.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
}

// Repository persists users.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	Update(ctx context.Context, u *User) error
}

// Service implements the account actions available to a signed-in user.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a user Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Active returns the user if it exists and is active.
func (s *Service) Active(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInactive
	}
	return u, nil
}

// UpdateProfile applies upd to the user's profile.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (*User, error) {
	u, err := s.Active(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.FirstName != nil {
		u.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		u.LastName = *upd.LastName
	}
	if upd.Phone != nil {
		u.Phone = *upd.Phone
	}
	u.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, errors.Wrap(err, "update user")
	}
	return u, nil
}

// Deactivate marks the account inactive. A deactivated user can no longer
// authenticate.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	u, err := s.Active(ctx, id)
	if err != nil {
		return err
	}
	u.IsActive = false
	u.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, u); err != nil {
		return errors.Wrap(err, "deactivate user")
	}
	return nil
}
