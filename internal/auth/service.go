// Package auth owns identity: account registration, login, session tokens
// and profile management. Every entry operation runs on behalf of exactly
// one owner resolved through this package.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidEmail = errors.New("invalid email address")
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	ErrInvalidToken = errors.New("invalid or expired token")
)

const minPasswordLength = 8

// Claims is the JWT payload for a session token.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

type Service struct {
	users    UserStore
	secret   []byte
	tokenTTL time.Duration
}

func NewService(users UserStore, secret []byte, tokenTTL time.Duration) *Service {
	return &Service{users: users, secret: secret, tokenTTL: tokenTTL}
}

// Register creates a new account and returns its profile.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (Profile, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return Profile{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return Profile{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Profile{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.CreateUser(ctx, email, string(hash), strings.TrimSpace(displayName))
	if err != nil {
		return Profile{}, err
	}

	slog.InfoContext(ctx, "Account registered", "uid", u.UID, "email", u.Email)
	return u.Profile(), nil
}

// Login verifies the credentials and issues a signed session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, Profile, error) {
	u, err := s.users.UserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return "", Profile{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", Profile{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", Profile{}, ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
		Email: u.Email,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", Profile{}, fmt.Errorf("sign token: %w", err)
	}

	slog.InfoContext(ctx, "User logged in", "uid", u.UID)
	return token, u.Profile(), nil
}

// ValidateToken checks the signature and expiry, returning the owner id.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Profile returns the public view of an account.
func (s *Service) Profile(ctx context.Context, uid string) (Profile, error) {
	u, err := s.users.UserByID(ctx, uid)
	if err != nil {
		return Profile{}, err
	}
	return u.Profile(), nil
}

// UpdateProfile applies a partial profile edit and returns the result.
func (s *Service) UpdateProfile(ctx context.Context, uid string, upd ProfileUpdate) (Profile, error) {
	u, err := s.users.UpdateProfile(ctx, uid, upd)
	if err != nil {
		return Profile{}, err
	}
	return u.Profile(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}
