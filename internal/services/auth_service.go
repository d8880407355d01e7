package services

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// TokenSigner mints an access token for the admin subject.
type TokenSigner func(subject string, ttl time.Duration) (string, error)

// AdminCredentials is the single configured support/fraud-review account.
// The record store has no user table; entrants never log in.
type AdminCredentials struct {
	Email        string
	PasswordHash string // bcrypt
}

type AuthService struct {
	creds     AdminCredentials
	signToken TokenSigner
	tokenTTL  time.Duration
}

type AuthResult struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

func NewAuthService(creds AdminCredentials, signer TokenSigner) *AuthService {
	return &AuthService{
		creds:     creds,
		signToken: signer,
		tokenTTL:  24 * time.Hour,
	}
}

func (s *AuthService) Login(email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("email/password required")
	}
	if s.creds.Email == "" || s.creds.PasswordHash == "" {
		return nil, NewUnauthorizedError("admin access not configured")
	}
	if !strings.EqualFold(email, s.creds.Email) {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.creds.PasswordHash), []byte(password)); err != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if s.signToken == nil {
		return nil, NewInvalidError("token signer not configured")
	}
	token, err := s.signToken(email, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Email: email}, nil
}
