// Package jwt signs and verifies the HMAC bearer tokens that guard the admin
// endpoints.
//
// Usage:
//
//	j, err := jwt.New(jwt.WithOptions(opts))
//	token, err := j.Sign(ctx, "ops")
//	claims, err := j.Verify(ctx, token.AccessToken)
package jwt

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	apierrors "github.com/kart-io/campus-qa/pkg/errors"
	jwtopts "github.com/kart-io/campus-qa/pkg/options/jwt"
)

// Token is a signed access token.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

// Claims are the verified claims of a token.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt int64
	IssuedAt  int64
	ID        string
}

// JWT signs and verifies tokens with a shared HMAC key.
type JWT struct {
	opts   *jwtopts.Options
	method jwt.SigningMethod
	now    func() time.Time
}

// Option is a functional option for JWT.
type Option func(*JWT)

// New creates a JWT signer and verifier.
func New(opts ...Option) (*JWT, error) {
	j := &JWT{opts: jwtopts.NewOptions(), now: time.Now}
	for _, opt := range opts {
		opt(j)
	}

	if err := j.opts.Complete(); err != nil {
		return nil, fmt.Errorf("complete options: %w", err)
	}
	if errs := j.opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("validate options: %w", utilerrors.NewAggregate(errs))
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
	return func(j *JWT) { j.opts.Key = key }
}

// WithExpired sets the token lifetime.
func WithExpired(d time.Duration) Option {
	return func(j *JWT) { j.opts.Expired = d }
}

// WithClock overrides the clock used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(j *JWT) { j.now = now }
}

// Sign creates a token for subject.
func (j *JWT) Sign(_ context.Context, subject string) (*Token, error) {
	now := j.now()
	expiresAt := now.Add(j.opts.Expired)

	claims := &jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    j.opts.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		NotBefore: jwt.NewNumericDate(now),
		ID:        generateTokenID(),
	}
	if len(j.opts.Audience) > 0 {
		claims.Audience = j.opts.Audience
	}

	signed, err := jwt.NewWithClaims(j.method, claims).SignedString([]byte(j.opts.Key))
	if err != nil {
		return nil, apierrors.ErrInternal.WithCause(err).WithMessage("failed to sign token")
	}
	return &Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: expiresAt.Unix()}, nil
}

// Verify validates the token signature, lifetime, issuer and audience.
func (j *JWT) Verify(_ context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, apierrors.ErrInvalidToken.WithMessage("token is empty")
	}

	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation(), jwt.WithValidMethods([]string{j.method.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(j.opts.Key), nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}
	if !token.Valid {
		return nil, apierrors.ErrInvalidToken
	}

	// time-based claims use the injected clock
	now := j.now()
	if !claims.VerifyExpiresAt(now, true) {
		return nil, apierrors.ErrTokenExpired
	}
	if !claims.VerifyNotBefore(now, false) {
		return nil, apierrors.ErrInvalidToken.WithMessage("token not valid yet")
	}
	if !claims.VerifyIssuer(j.opts.Issuer, true) {
		return nil, apierrors.ErrInvalidToken.WithMessage("unexpected issuer")
	}
	for _, aud := range j.opts.Audience {
		if !claims.VerifyAudience(aud, true) {
			return nil, apierrors.ErrInvalidToken.WithMessage("unexpected audience")
		}
	}

	out := &Claims{
		Subject:  claims.Subject,
		Issuer:   claims.Issuer,
		Audience: claims.Audience,
		ID:       claims.ID,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Unix()
	}
	return out, nil
}

// mapParseError maps jwt validation errors to errnos.
func mapParseError(err error) *apierrors.Errno {
	var ve *jwt.ValidationError
	if errors.As(err, &ve) {
		switch {
		case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
			return apierrors.ErrInvalidToken.WithMessage("invalid signature")
		case ve.Errors&jwt.ValidationErrorMalformed != 0:
			return apierrors.ErrInvalidToken.WithMessage("malformed token")
		case ve.Errors&jwt.ValidationErrorUnverifiable != 0:
			return apierrors.ErrInvalidToken.WithMessage("unexpected signing method")
		}
	}
	return apierrors.ErrInvalidToken.WithCause(err)
}

func generateTokenID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
