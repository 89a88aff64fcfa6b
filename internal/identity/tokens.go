package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	purposeAccess   = "access"
	purposeConfirm  = "confirm"
	purposeRecovery = "recovery"
)

// TokenConfig sets signing material and lifetimes for provider tokens.
type TokenConfig struct {
	Secret    string
	Issuer    string
	AccessTTL time.Duration
	EmailTTL  time.Duration
}

// Tokens issues and parses HS256 tokens for access, email confirmation and
// password recovery. The purpose claim keeps one kind from being replayed as another.
type Tokens struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	emailTTL  time.Duration
	now       func() time.Time
}

type tokenClaims struct {
	Purpose string `json:"pur"`
	Email   string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// NewTokens validates cfg and builds a token codec.
func NewTokens(cfg TokenConfig) (*Tokens, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.EmailTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = "accessgate"
	}
	return &Tokens{
		secret:    []byte(cfg.Secret),
		issuer:    issuer,
		accessTTL: cfg.AccessTTL,
		emailTTL:  cfg.EmailTTL,
		now:       time.Now,
	}, nil
}

func (t *Tokens) issue(purpose string, user Identity) (string, time.Time, error) {
	ttl := t.emailTTL
	if purpose == purposeAccess {
		ttl = t.accessTTL
	}
	now := t.now()
	exp := now.Add(ttl)
	claims := tokenClaims{
		Purpose: purpose,
		Email:   user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", purpose, err)
	}
	return signed, exp, nil
}

func (t *Tokens) parse(token, purpose string) (tokenClaims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return tokenClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Purpose != purpose || claims.Subject == "" {
		return tokenClaims{}, ErrInvalidToken
	}
	return claims, nil
}
