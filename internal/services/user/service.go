// Package user implements account registration, login and profile
// management.
package user

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nextcart/platform/internal/auth"
	"github.com/nextcart/platform/internal/domain/identity"
	domain "github.com/nextcart/platform/internal/domain/user"
	apperrors "github.com/nextcart/platform/internal/errors"
	"github.com/nextcart/platform/internal/logging"
	"github.com/nextcart/platform/internal/storage"
)

const minPasswordLength = 8

// Dependencies are the typed constructor dependencies of the service.
type Dependencies struct {
	Users      storage.UserStore
	Sessions   storage.SessionStore
	Secret     []byte
	SessionTTL time.Duration
	Log        *logging.Logger
}

// Service manages user accounts and their sessions.
type Service struct {
	users      storage.UserStore
	sessions   storage.SessionStore
	secret     []byte
	sessionTTL time.Duration
	log        *logging.Logger
}

// New wires the service. Every dependency is required.
func New(deps Dependencies) (*Service, error) {
	if deps.Users == nil {
		return nil, apperrors.Internal("user service: user store is required", nil)
	}
	if deps.Sessions == nil {
		return nil, apperrors.Internal("user service: session store is required", nil)
	}
	if len(deps.Secret) == 0 {
		return nil, apperrors.Internal("user service: session secret is required", nil)
	}
	if deps.SessionTTL <= 0 {
		deps.SessionTTL = 24 * time.Hour
	}
	if deps.Log == nil {
		deps.Log = logging.NewDefault("user-service")
	}
	return &Service{
		users:      deps.Users,
		sessions:   deps.Sessions,
		secret:     deps.Secret,
		sessionTTL: deps.SessionTTL,
		log:        deps.Log,
	}, nil
}

// RegisterInput is the payload for Register.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register validates input, hashes the password and creates the account.
func (s *Service) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	var fields []string
	if strings.TrimSpace(input.Username) == "" {
		fields = append(fields, "username")
	}
	if !strings.Contains(input.Email, "@") {
		fields = append(fields, "email")
	}
	if len(fields) > 0 {
		return domain.User{}, apperrors.ValidationFields(fields)
	}
	if len(input.Password) < minPasswordLength {
		return domain.User{}, apperrors.Validation("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, apperrors.Internal("hash password", err)
	}

	created, err := s.users.CreateUser(ctx, domain.User{
		Username:     strings.TrimSpace(input.Username),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: string(hash),
		Role:         identity.RoleUser.String(),
	})
	if err == storage.ErrDuplicate {
		return domain.User{}, apperrors.Conflict("email already registered")
	}
	if err != nil {
		return domain.User{}, apperrors.Dependency("documentStore", err)
	}
	return created, nil
}

// Login verifies credentials, creates a session under TTL and returns the
// signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, domain.User, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if err == storage.ErrNotFound {
		return "", domain.User{}, apperrors.Unauthorized("invalid credentials")
	}
	if err != nil {
		return "", domain.User{}, apperrors.Dependency("documentStore", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", domain.User{}, apperrors.Unauthorized("invalid credentials")
	}

	token, err := auth.Issue(s.secret, u.ID, u.Role, s.sessionTTL)
	if err != nil {
		return "", domain.User{}, apperrors.Internal("issue token", err)
	}

	now := time.Now().UTC()
	sess := identity.Session{
		UserID:      u.ID,
		Role:        u.Role,
		Permissions: u.Permissions,
		CreatedAt:   now,
		LastSeenAt:  now,
	}
	if err := s.sessions.PutSession(ctx, token, sess, s.sessionTTL); err != nil {
		return "", domain.User{}, apperrors.Dependency("cache", err)
	}

	s.log.WithContext(ctx).WithField("user_id", u.ID).Info("user logged in")
	return token, u, nil
}

// Logout revokes the session behind token. The only place the core deletes a
// session explicitly.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return apperrors.Dependency("cache", err)
	}
	return nil
}

// Get returns the account by id.
func (s *Service) Get(ctx context.Context, id string) (domain.User, error) {
	u, err := s.users.GetUser(ctx, id)
	if err == storage.ErrNotFound {
		return domain.User{}, apperrors.NotFound("user")
	}
	if err != nil {
		return domain.User{}, apperrors.Dependency("documentStore", err)
	}
	return u, nil
}

// UpdateProfile merges the given attributes into the user's profile.
func (s *Service) UpdateProfile(ctx context.Context, id string, updates map[string]string) (domain.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	if u.Profile == nil {
		u.Profile = make(map[string]string, len(updates))
	}
	for k, v := range updates {
		if v == "" {
			delete(u.Profile, k)
			continue
		}
		u.Profile[k] = v
	}

	updated, err := s.users.UpdateUser(ctx, u)
	if err != nil {
		return domain.User{}, apperrors.Dependency("documentStore", err)
	}
	return updated, nil
}
