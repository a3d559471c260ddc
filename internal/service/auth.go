package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/repository"
	"github.com/iliyamo/library-service/internal/utils"
)

const minPasswordLen = 6

// AuthConfig holds token and hashing settings.
type AuthConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// Session is an issued token pair.  RefreshToken is the raw value; only its
// hash is stored.
type Session struct {
	User          model.User
	AccessToken   string
	AccessExpires time.Time
	RefreshToken  string
	RefreshExpiry time.Time
}

// AuthService handles accounts and sessions.
type AuthService struct {
	base
	cfg AuthConfig
}

func NewAuthService(d Deps, cfg AuthConfig) *AuthService {
	return &AuthService{base: newBase(d), cfg: cfg}
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

func normalizeEmail(s string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(s))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email is not valid")
	}
	return email, nil
}

func checkPassword(pw string) error {
	if len(pw) < minPasswordLen {
		return invalid("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

func checkNames(first, last string) (string, string, error) {
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	if first == "" || last == "" {
		return "", "", invalid("firstName and lastName are required")
	}
	return first, last, nil
}

// Register creates an ACTIVE reader.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return model.User{}, err
	}
	if err := checkPassword(in.Password); err != nil {
		return model.User{}, err
	}
	first, last, err := checkNames(in.FirstName, in.LastName)
	if err != nil {
		return model.User{}, err
	}
	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, err
	}
	// Self-registration always yields an ACTIVE reader.
	now := s.now()
	u := model.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    first,
		LastName:     last,
		Role:         model.RoleReader,
		Status:       model.UserActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// Duplicate emails surface from the unique index.
	if err := s.store.Users().Create(ctx, &u); err != nil {
		return model.User{}, classify(err, "user")
	}
	s.logger.Info("user registered", "user_id", u.ID)
	return u, nil
}

// Login verifies credentials and issues a token pair.  Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, invalid("email and password are required")
	}
	u, err := s.store.Users().GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, unauthorized("invalid credentials")
	}
	if err != nil {
		return Session{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return Session{}, unauthorized("invalid credentials")
	}
	if err := s.checkSignIn(u); err != nil {
		return Session{}, err
	}
	return s.issue(ctx, u)
}

func (s *AuthService) checkSignIn(u model.User) error {
	if u.CanSignIn(s.now()) {
		return nil
	}
	if u.Status == model.UserBlocked {
		return unauthorized("account is blocked")
	}
	return unauthorized("invalid credentials")
}

func (s *AuthService) issue(ctx context.Context, u model.User) (Session, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.AccessTTLMin)
	if err != nil {
		return Session{}, err
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return Session{}, err
	}
	if err := s.store.Tokens().StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, err
	}
	return Session{
		User:          u,
		AccessToken:   access.Token,
		AccessExpires: access.Exp,
		RefreshToken:  refresh.Raw,
		RefreshExpiry: refresh.Exp,
	}, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *AuthService) Refresh(ctx context.Context, raw string) (Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, invalid("refreshToken is required")
	}
	hash := utils.HashRefreshRaw(raw)
	userID, err := s.store.Tokens().ValidateRefresh(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, unauthorized("invalid refresh token")
	}
	if err != nil {
		return Session{}, err
	}
	// Revoking is the compare-and-set that lets only one concurrent
	// refresh of the same token through.
	if err := s.store.Tokens().RevokeByHash(ctx, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, unauthorized("invalid refresh token")
		}
		return Session{}, err
	}
	u, err := s.store.Users().GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, unauthorized("invalid refresh token")
	}
	if err != nil {
		return Session{}, err
	}
	if err := s.checkSignIn(u); err != nil {
		return Session{}, err
	}
	return s.issue(ctx, u)
}

// Logout revokes one refresh token, or every token of userID when raw is
// empty.
func (s *AuthService) Logout(ctx context.Context, raw string, userID uint64) error {
	raw = strings.TrimSpace(raw)
	switch {
	case raw != "":
		hash := utils.HashRefreshRaw(raw)
		if _, err := s.store.Tokens().ValidateRefresh(ctx, hash); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return unauthorized("invalid refresh token")
			}
			return err
		}
		if err := s.store.Tokens().RevokeByHash(ctx, hash); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return unauthorized("invalid refresh token")
			}
			return err
		}
		return nil
	case userID != 0:
		return s.store.Tokens().RevokeAllForUser(ctx, userID)
	}
	return invalid("provide a bearer token or refreshToken")
}

// Me returns the caller's profile.
func (s *AuthService) Me(ctx context.Context, userID uint64) (model.User, error) {
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return model.User{}, classify(err, entity("user", userID))
	}
	return u, nil
}

// ChangePassword verifies the current password, stores the new one and
// signs the user out everywhere.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint64, current, next string) error {
	if err := checkPassword(next); err != nil {
		return err
	}
	u, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return invalid("current password is incorrect")
	}
	hash, err := utils.HashPassword(next, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(tx repository.Repos) error {
		if err := tx.Users().UpdatePassword(ctx, userID, hash); err != nil {
			return classify(err, entity("user", userID))
		}
		return tx.Tokens().RevokeAllForUser(ctx, userID)
	})
}

// UpdateProfile changes the caller's own names.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uint64, firstName, lastName string) (model.User, error) {
	first, last, err := checkNames(firstName, lastName)
	if err != nil {
		return model.User{}, err
	}
	var out model.User
	err = s.store.WithTx(ctx, func(tx repository.Repos) error {
		u, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return classify(err, entity("user", userID))
		}
		u.FirstName, u.LastName, u.UpdatedAt = first, last, s.now()
		if err := tx.Users().Update(ctx, u); err != nil {
			return classify(err, entity("user", userID))
		}
		out = u
		return nil
	})
	return out, err
}

// EnsureAdmin creates the bootstrap administrator when the email is free.
// An existing account is left untouched.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (model.User, bool, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return model.User{}, false, err
	}
	if u, err := s.store.Users().GetByEmail(ctx, email); err == nil {
		return u, false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, false, err
	}
	if err := checkPassword(password); err != nil {
		return model.User{}, false, err
	}
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, false, err
	}
	now := s.now()
	u := model.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Library",
		LastName:     "Admin",
		Role:         model.RoleAdmin,
		Status:       model.UserActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Users().Create(ctx, &u); err != nil {
		return model.User{}, false, classify(err, "user")
	}
	s.logger.Info("bootstrap admin created", "user_id", u.ID, "email", u.Email)
	return u, true, nil
}
