package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/tableside-backend/pkg/config"
)

const clockSkew = 30 * time.Second

// ErrTokenExpired is returned by Parse for tokens past their exp claim.
var ErrTokenExpired = jwt.ErrTokenExpired

// Signer mints and verifies HS256 access tokens for one issuer.
type Signer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	parser *jwt.Parser
}

func NewSigner(cfg config.JWTConfig) (*Signer, error) {
	switch {
	case cfg.Secret == "":
		return nil, errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return nil, errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return nil, errors.New("jwt expiration minutes must be positive")
	}
	return &Signer{
		key:    []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    time.Duration(cfg.ExpirationMinutes) * time.Minute,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(clockSkew),
		),
	}, nil
}

// Mint signs a token for staff valid from now for the configured TTL.
func (s *Signer) Mint(now time.Time, staff Staff) (string, error) {
	staff.BranchCode = strings.TrimSpace(staff.BranchCode)
	if err := staff.validate(); err != nil {
		return "", err
	}
	claims := Claims{
		Staff: staff,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   staff.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer and expiry and returns the claims.
func (s *Signer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}); err != nil {
		return nil, err
	}
	if err := claims.Staff.validate(); err != nil {
		return nil, fmt.Errorf("token claims: %w", err)
	}
	return claims, nil
}

// BearerToken extracts the credential from an Authorization header value.
// The scheme is optional and case-insensitive.
func BearerToken(header string) (string, bool) {
	const scheme = "bearer"
	header = strings.TrimSpace(header)
	if len(header) >= len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) &&
		(len(header) == len(scheme) || header[len(scheme)] == ' ') {
		header = strings.TrimSpace(header[len(scheme):])
	}
	return header, header != ""
}
