// Package auth registers users and exchanges credentials for access tokens.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	apperrors "ledgerpay/internal/errors"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repositories"
	"ledgerpay/internal/services/onboarding"
	"ledgerpay/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// Registrar runs the wallet and reserved account provisioning for a new user.
type Registrar interface {
	Register(ctx context.Context, user *models.User) (*onboarding.Result, error)
}

type RegisterInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is returned by both Register and Login.
type Session struct {
	User           *models.User   `json:"user"`
	Wallet         *models.Wallet `json:"wallet,omitempty"`
	AccountPending bool           `json:"account_pending,omitempty"`
	AccessToken    string         `json:"access_token"`
	ExpiresAt      time.Time      `json:"expires_at"`
}

type Service struct {
	users     repositories.UserRepository
	registrar Registrar
	tokens    *Tokens
	logger    *slog.Logger
	cost      int
}

func NewService(users repositories.UserRepository, registrar Registrar, tokens *Tokens, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, registrar: registrar, tokens: tokens, logger: logger, cost: bcrypt.DefaultCost}
}

func (in *RegisterInput) normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
}

func (in *RegisterInput) validate() error {
	v := validation.New()
	v.Required("first_name", in.FirstName)
	v.MaxLength("first_name", in.FirstName, validation.MaxNameLength)
	v.Required("last_name", in.LastName)
	v.MaxLength("last_name", in.LastName, validation.MaxNameLength)
	v.Required("email", in.Email)
	v.Email("email", in.Email)
	if in.Phone != "" {
		v.Phone("phone", in.Phone)
	}
	v.Password("password", in.Password)
	return v.Err()
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Password:  string(hash),
		Role:      models.RoleUser,
	}
	if in.Phone != "" {
		user.Phone = &in.Phone
	}

	res, err := s.registrar.Register(ctx, user)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.ErrEmailTaken.WithMessage("an account with this email or phone already exists")
		}
		return nil, err
	}

	token, expires, err := s.tokens.Issue(res.User)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", res.User.ID, "account_pending", res.AccountPending)
	return &Session{
		User:           res.User,
		Wallet:         res.Wallet,
		AccountPending: res.AccountPending,
		AccessToken:    token,
		ExpiresAt:      expires,
	}, nil
}

// Login verifies the password and issues a token. Unknown email and wrong password
// are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, apperrors.Validation("email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.logger.Warn("login failed: unknown email")
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		s.logger.Warn("login failed: wrong password", "user_id", user.ID)
		return nil, apperrors.ErrInvalidCredentials
	}

	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, AccessToken: token, ExpiresAt: expires}, nil
}
