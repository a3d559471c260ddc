package service

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/repository"
	"github.com/iliyamo/library-service/internal/utils"
)

const tempPasswordLen = 12

// UserAdmin is the administrative side of account management.  Deleting a
// user is a status change; loans, reservations and penalties stay.
type UserAdmin struct {
	base
	bcryptCost int
}

func NewUserAdmin(d Deps, bcryptCost int) *UserAdmin {
	return &UserAdmin{base: newBase(d), bcryptCost: bcryptCost}
}

func parseRole(s string) (string, error) {
	r := strings.ToUpper(strings.TrimSpace(s))
	if r != model.RoleReader && r != model.RoleAdmin {
		return "", invalid("unknown role %q", s)
	}
	return r, nil
}

func parseUserStatus(s string) (string, error) {
	st := strings.ToUpper(strings.TrimSpace(s))
	switch st {
	case model.UserActive, model.UserBlocked, model.UserDeleted:
		return st, nil
	}
	return "", invalid("unknown user status %q", s)
}

func (s *UserAdmin) ListUsers(ctx context.Context, f repository.UserFilter, p repository.PageRequest) (Page[model.User], error) {
	var err error
	if f.Role != "" {
		if f.Role, err = parseRole(f.Role); err != nil {
			return Page[model.User]{}, err
		}
	}
	if f.Status != "" {
		if f.Status, err = parseUserStatus(f.Status); err != nil {
			return Page[model.User]{}, err
		}
	}
	items, total, err := s.store.Users().List(ctx, f, p)
	if err != nil {
		return Page[model.User]{}, err
	}
	return newPage(items, total, p), nil
}

func (s *UserAdmin) GetUser(ctx context.Context, id uint64) (model.User, error) {
	u, err := s.store.Users().GetByID(ctx, id)
	return u, classify(err, entity("user", id))
}

// UserUpdate is a partial update; nil fields are kept.
type UserUpdate struct {
	Email         *string
	FirstName     *string
	LastName      *string
	Role          *string
	Status        *string
	BlockedReason *string
	BlockedUntil  *time.Time
}

func (s *UserAdmin) UpdateUser(ctx context.Context, id uint64, in UserUpdate) (model.User, error) {
	return s.modify(ctx, id, func(u *model.User) error {
		if in.Email != nil {
			email, err := normalizeEmail(*in.Email)
			if err != nil {
				return err
			}
			u.Email = email
		}
		first, last := u.FirstName, u.LastName
		if in.FirstName != nil {
			first = *in.FirstName
		}
		if in.LastName != nil {
			last = *in.LastName
		}
		var err error
		if u.FirstName, u.LastName, err = checkNames(first, last); err != nil {
			return err
		}
		if in.Role != nil {
			if u.Role, err = parseRole(*in.Role); err != nil {
				return err
			}
		}
		// Block details only stick to a BLOCKED account; applyStatus
		// clears them for every other status.
		status, reason, until := u.Status, u.BlockedReason, u.BlockedUntil
		if in.Status != nil {
			if status, err = parseUserStatus(*in.Status); err != nil {
				return err
			}
		}
		if in.BlockedReason != nil {
			reason = in.BlockedReason
		}
		if in.BlockedUntil != nil {
			t := in.BlockedUntil.UTC()
			until = &t
		}
		applyStatus(u, status, reason, until)
		return nil
	})
}

// applyStatus keeps the blocked fields consistent with the status.
func applyStatus(u *model.User, status string, reason *string, until *time.Time) {
	u.Status = status
	if status == model.UserBlocked {
		u.BlockedReason, u.BlockedUntil = reason, until
		return
	}
	u.BlockedReason, u.BlockedUntil = nil, nil
}

// SetStatus changes a user's status.  Blocking or deleting also revokes
// every refresh token.
func (s *UserAdmin) SetStatus(ctx context.Context, id uint64, status string, reason *string, until *time.Time) (model.User, error) {
	st, err := parseUserStatus(status)
	if err != nil {
		return model.User{}, err
	}
	if until != nil {
		u := until.UTC()
		until = &u
	}
	return s.modify(ctx, id, func(u *model.User) error {
		applyStatus(u, st, reason, until)
		return nil
	})
}

// DeleteUser soft-deletes.  Admins cannot delete themselves.
func (s *UserAdmin) DeleteUser(ctx context.Context, id uint64, actor Actor) error {
	if id == actor.UserID {
		return conflict("administrators cannot delete their own account")
	}
	_, err := s.SetStatus(ctx, id, model.UserDeleted, nil, nil)
	return err
}

func (s *UserAdmin) modify(ctx context.Context, id uint64, change func(u *model.User) error) (model.User, error) {
	var out model.User
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		u, err := tx.Users().GetByID(ctx, id)
		if err != nil {
			return classify(err, entity("user", id))
		}
		if err := change(&u); err != nil {
			return err
		}
		u.UpdatedAt = s.now()
		if err := tx.Users().Update(ctx, u); err != nil {
			return classify(err, entity("user", id))
		}
		if u.Status != model.UserActive {
			if err := tx.Tokens().RevokeAllForUser(ctx, id); err != nil {
				return err
			}
		}
		out = u
		return nil
	})
	return out, err
}

// ResetPassword replaces the password with a random temporary one, which
// is returned exactly once.
func (s *UserAdmin) ResetPassword(ctx context.Context, id uint64) (string, error) {
	temp, err := utils.GenerateTempPassword(tempPasswordLen)
	if err != nil {
		return "", err
	}
	if err := s.SetPassword(ctx, id, temp); err != nil {
		return "", err
	}
	return temp, nil
}

// SetPassword stores a new password and revokes existing sessions.
func (s *UserAdmin) SetPassword(ctx context.Context, id uint64, password string) error {
	if err := checkPassword(password); err != nil {
		return err
	}
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(tx repository.Repos) error {
		if err := tx.Users().UpdatePassword(ctx, id, hash); err != nil {
			return classify(err, entity("user", id))
		}
		return tx.Tokens().RevokeAllForUser(ctx, id)
	})
}
