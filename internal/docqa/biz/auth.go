package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/model"
	authopts "github.com/kart-io/docqa/pkg/options/auth"
	"github.com/kart-io/docqa/pkg/security/jwt"
	errs "github.com/kart-io/docqa/pkg/utils/errors"
)

// AuthService issues and revokes access tokens.
type AuthService struct {
	jwt *jwt.JWT
	// users maps usernames to bcrypt hashes.
	users map[string]string
}

// NewAuthService creates an AuthService. Plaintext passwords in opts are
// hashed here and never kept.
func NewAuthService(j *jwt.JWT, opts *authopts.Options) (*AuthService, error) {
	if opts == nil {
		opts = authopts.NewOptions()
	}
	users := make(map[string]string, len(opts.Users))
	for name, password := range opts.Users {
		if authopts.IsHashed(password) {
			users[name] = password
			continue
		}
		hash, err := jwt.HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("hash password of user %s: %w", name, err)
		}
		logger.Warnw("Configured password is not hashed, hashing at startup", "username", name)
		users[name] = hash
	}
	return &AuthService{jwt: j, users: users}, nil
}

// DemoMode reports whether tokens are issued without credentials.
func (s *AuthService) DemoMode() bool {
	return len(s.users) == 0
}

// IssueToken signs a token. Without configured users it is issued to the
// demo subject, otherwise the credentials in req are verified first.
func (s *AuthService) IssueToken(ctx context.Context, req *model.TokenRequest) (*model.TokenResponse, error) {
	subject := authopts.DemoSubject
	if !s.DemoMode() {
		if req == nil || req.Username == "" || req.Password == "" {
			return nil, errs.ErrInvalidCredentials
		}
		hash, ok := s.users[req.Username]
		if !ok || !jwt.VerifyPassword(req.Password, hash) {
			logger.Warnw("Rejected token request", "username", req.Username)
			return nil, errs.ErrInvalidCredentials
		}
		subject = req.Username
	}

	token, err := s.jwt.Sign(ctx, subject)
	if err != nil {
		return nil, toErrno(err)
	}
	logger.Infow("Issued access token", "subject", subject)
	return &model.TokenResponse{AccessToken: token.AccessToken, TokenType: token.TokenType}, nil
}

// Logout revokes token until it expires.
func (s *AuthService) Logout(ctx context.Context, token string) (*model.LogoutResponse, error) {
	if err := s.jwt.Revoke(ctx, token); err != nil {
		return nil, toErrno(err)
	}
	logger.Infow("Revoked access token")
	return &model.LogoutResponse{Status: model.StatusLoggedOut}, nil
}
