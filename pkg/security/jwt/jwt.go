// Package jwt issues and verifies the bearer tokens used by docqa.
//
// Tokens are HMAC signed and carry the registered claims sub, exp, iat, jti
// and iss. Verification checks the signing method, the expiry and, when a
// Store is configured, the revocation list.
//
// Usage:
//
//	j, err := jwt.New(jwt.WithOptions(opts))
//	token, err := j.Sign(ctx, "demo_user")
//	claims, err := j.Verify(ctx, token.AccessToken)
package jwt

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	jwtopts "github.com/kart-io/docqa/pkg/options/jwt"
	"github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/id"
)

// TokenTypeBearer is reported as token_type for issued tokens.
const TokenTypeBearer = "bearer"

// Token is an issued access token.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"-"`
}

// Claims are the verified claims of a token.
type Claims struct {
	Subject   string
	Issuer    string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// JWT signs and verifies tokens.
type JWT struct {
	opts   *jwtopts.Options
	store  Store
	method jwt.SigningMethod
	now    func() time.Time
}

// Option is a functional option for JWT.
type Option func(*JWT)

// New creates a new JWT signer/verifier.
func New(opts ...Option) (*JWT, error) {
	j := &JWT{
		opts: jwtopts.NewOptions(),
		now:  time.Now,
	}

	for _, opt := range opts {
		opt(j)
	}

	if err := j.opts.Complete(); err != nil {
		return nil, fmt.Errorf("complete options: %w", err)
	}
	if errs := j.opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("validate options: %w", errs[0])
	}

	j.method = jwt.GetSigningMethod(j.opts.SigningMethod)
	if j.method == nil {
		return nil, fmt.Errorf("unsupported signing method: %s", j.opts.SigningMethod)
	}
	return j, nil
}

// WithOptions sets the JWT options.
func WithOptions(opts *jwtopts.Options) Option {
	return func(j *JWT) {
		if opts != nil {
			j.opts = opts
		}
	}
}

// WithKey sets the signing key.
func WithKey(key string) Option {
	return func(j *JWT) {
		j.opts.SecretKey = key
	}
}

// WithExpire sets the token lifetime.
func WithExpire(d time.Duration) Option {
	return func(j *JWT) {
		j.opts.Expire = d
	}
}

// WithStore sets the revocation store.
func WithStore(store Store) Option {
	return func(j *JWT) {
		j.store = store
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(j *JWT) {
		if now != nil {
			j.now = now
		}
	}
}

// Sign issues a token for subject.
func (j *JWT) Sign(_ context.Context, subject string) (*Token, error) {
	now := j.now()
	expiresAt := now.Add(j.opts.Expire)

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    j.opts.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        id.NewUUID(),
	}

	signed, err := jwt.NewWithClaims(j.method, claims).SignedString([]byte(j.opts.SecretKey))
	if err != nil {
		return nil, errors.ErrInternal.WithCause(err).WithMessage("failed to sign token")
	}

	return &Token{
		AccessToken: signed,
		TokenType:   TokenTypeBearer,
		ExpiresAt:   expiresAt.Unix(),
	}, nil
}

// Verify validates tokenString and returns its claims.
func (j *JWT) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.ErrInvalidToken.WithMessage("token is empty")
	}

	parsed := &jwt.RegisteredClaims{}
	token, err := j.parser().ParseWithClaims(tokenString, parsed, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != j.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.opts.SecretKey), nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}
	if !token.Valid {
		return nil, errors.ErrInvalidToken
	}
	if parsed.ExpiresAt == nil {
		return nil, errors.ErrInvalidToken.WithMessage("token has no expiry")
	}

	if j.store != nil && parsed.ID != "" {
		revoked, err := j.store.IsRevoked(ctx, parsed.ID)
		if err != nil {
			return nil, errors.ErrInternal.WithCause(err).WithMessage("failed to check token revocation")
		}
		if revoked {
			return nil, errors.ErrTokenRevoked
		}
	}

	claims := &Claims{
		Subject:   parsed.Subject,
		Issuer:    parsed.Issuer,
		ID:        parsed.ID,
		ExpiresAt: parsed.ExpiresAt.Time,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}
	return claims, nil
}

// Revoke invalidates a verified token until its natural expiry.
func (j *JWT) Revoke(ctx context.Context, tokenString string) error {
	if j.store == nil {
		return errors.ErrInternal.WithMessage("token revocation requires a store")
	}

	claims, err := j.Verify(ctx, tokenString)
	if err != nil {
		if errors.IsCode(err, errors.ErrTokenExpired.Code) || errors.IsCode(err, errors.ErrTokenRevoked.Code) {
			return nil
		}
		return err
	}

	ttl := claims.ExpiresAt.Sub(j.now())
	if ttl <= 0 {
		return nil
	}
	return j.store.Revoke(ctx, claims.ID, ttl)
}

func (j *JWT) parser() *jwt.Parser {
	return jwt.NewParser(jwt.WithValidMethods([]string{j.method.Alg()}))
}

// mapParseError maps jwt parse errors to errnos.
func mapParseError(err error) *errors.Errno {
	var ve *jwt.ValidationError
	if stderrors.As(err, &ve) {
		switch {
		case ve.Errors&jwt.ValidationErrorExpired != 0:
			return errors.ErrTokenExpired.WithCause(err)
		case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
			return errors.ErrInvalidToken.WithCause(err).WithMessage("invalid signature")
		case ve.Errors&jwt.ValidationErrorMalformed != 0:
			return errors.ErrInvalidToken.WithCause(err).WithMessage("malformed token")
		case ve.Errors&jwt.ValidationErrorNotValidYet != 0:
			return errors.ErrInvalidToken.WithCause(err).WithMessage("token not valid yet")
		}
	}
	return errors.ErrInvalidToken.WithCause(err)
}
