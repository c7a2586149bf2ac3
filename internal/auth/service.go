package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"cardspend/internal/storage"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrMissingCredentials = errors.New("email and password required")
	ErrPasswordTooLong    = fmt.Errorf("password longer than %d bytes", MaxPasswordBytes)
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// Service registers users and logs them in.
type Service struct {
	users  storage.UserStore
	tokens *Tokens
}

func NewService(users storage.UserStore, tokens *Tokens) *Service {
	return &Service{users: users, tokens: tokens}
}

// Register creates the user and returns a token for it.
func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", ErrMissingCredentials
	}
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}
	u, err := s.users.CreateUser(ctx, email, hash)
	if errors.Is(err, storage.ErrConflict) {
		return "", ErrEmailTaken
	}
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	slog.InfoContext(ctx, "User registered", "user_id", u.ID)
	return s.tokens.Issue(u.ID, u.Email)
}

// Login checks the credentials. Unknown email and wrong password fail alike.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", ErrMissingCredentials
	}
	if len(password) > MaxPasswordBytes {
		return "", ErrInvalidCredentials
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	return s.tokens.Issue(u.ID, u.Email)
}

// Authenticate resolves an Authorization header to a principal.
func (s *Service) Authenticate(header string) (Principal, error) {
	return s.tokens.FromHeader(header)
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
