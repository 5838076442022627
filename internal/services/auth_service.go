package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lmercadier/taskboard/internal/auth"
	"github.com/lmercadier/taskboard/internal/cache"
	"github.com/lmercadier/taskboard/internal/models"
	"github.com/lmercadier/taskboard/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 6

var (
	ErrEmailTaken           = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrPasswordTooShort     = errors.New("password too short")
	ErrPasswordMismatch     = errors.New("passwords don't match")
	ErrUserNotFound         = errors.New("user not found")
	ErrFailedToHashPassword = errors.New("failed to hash password")
)

// AuthService handles authentication related business logic. It feeds
// sign-in/sign-out events into the principal store and tears down the
// departing user's caches on sign-out.
type AuthService struct {
	userRepo   repository.UserRepository
	principals *auth.Store
	caches     *cache.Registry
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repository.UserRepository, principals *auth.Store, caches *cache.Registry) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		principals: principals,
		caches:     caches,
	}
}

// SignupInput represents the required information to create a new user.
type SignupInput struct {
	Email           string
	FullName        string
	Password        string
	ConfirmPassword string
}

// Signup creates a new user. The password confirmation check happens
// before anything reaches the store.
func (s *AuthService) Signup(input SignupInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if len(input.Password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if input.Password != input.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	if _, err := s.userRepo.FindByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrFailedToHashPassword
	}

	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		fullName = strings.Split(email, "@")[0]
	}

	user := &models.User{
		Email:        email,
		FullName:     fullName,
		PasswordHash: string(hashedPassword),
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// LoginInput represents login credentials.
type LoginInput struct {
	Email    string
	Password string
}

// Login verifies credentials and publishes the sign-in event.
func (s *AuthService) Login(input LoginInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	s.principals.Publish(auth.Event{Principal: &auth.Principal{
		UserID:    user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		CreatedAt: user.CreatedAt,
	}})

	return user, nil
}

// Logout publishes the sign-out event and discards the departing user's
// caches, so nothing cached for them outlives the session.
func (s *AuthService) Logout(userID string) {
	if userID != "" {
		s.caches.Drop(userID)
	}
	s.principals.Publish(auth.Event{})
}

// GetUser returns a user by ID. The signed-in principal is served from
// the store without touching the database.
func (s *AuthService) GetUser(id string) (*models.User, error) {
	if p := s.principals.Current(); p != nil && p.UserID == id {
		return &models.User{
			ID:        p.UserID,
			Email:     p.Email,
			FullName:  p.FullName,
			CreatedAt: p.CreatedAt,
		}, nil
	}

	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}
