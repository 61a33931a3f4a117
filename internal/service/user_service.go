package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"stackit/internal/domain"
	"stackit/internal/mention"
	"stackit/internal/repository"
)

// ErrInvalidCredentials indicates that provided login credentials are incorrect.
var ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type userService struct {
	users  repository.UserRepository
	admins map[string]struct{}
	cost   int
}

// NewUserService returns a UserService. Usernames listed in admins are given
// the admin role when they register.
func NewUserService(users repository.UserRepository, admins []string) UserService {
	set := make(map[string]struct{}, len(admins))
	for _, name := range admins {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			set[name] = struct{}{}
		}
	}
	return &userService{
		users:  users,
		admins: set,
		cost:   bcrypt.DefaultCost,
	}
}

func (s *userService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if n := utf8.RuneCountInString(username); n < 1 || n > 50 {
		return nil, fmt.Errorf("username must be 1-50 characters: %w", domain.ErrValidation)
	}
	if !mention.IsValidName(username) {
		return nil, fmt.Errorf("username may only contain letters, digits and underscores: %w", domain.ErrValidation)
	}
	if at := strings.Index(email, "@"); at <= 0 || at == len(email)-1 {
		return nil, fmt.Errorf("email is invalid: %w", domain.ErrValidation)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters: %w", domain.ErrValidation)
	}

	taken, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("username or email already registered: %w", domain.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := domain.RoleUser
	if _, ok := s.admins[strings.ToLower(username)]; ok {
		role = domain.RoleAdmin
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

// requireContributor is the gate for every operation marked "user" auth.
func requireContributor(user *domain.User) error {
	if user == nil {
		return fmt.Errorf("authentication required: %w", domain.ErrUnauthorized)
	}
	if !user.Role.CanContribute() {
		return fmt.Errorf("role %s cannot perform this action: %w", user.Role, domain.ErrForbidden)
	}
	return nil
}

func requireAdmin(user *domain.User) error {
	if user == nil {
		return fmt.Errorf("authentication required: %w", domain.ErrUnauthorized)
	}
	if !user.Role.IsAdmin() {
		return fmt.Errorf("admin role required: %w", domain.ErrForbidden)
	}
	return nil
}
