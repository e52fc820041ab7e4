// Package token issues and validates the stateless signed access token.
// Session state lives elsewhere; a signed token stays valid until its
// expiry regardless of what happens to the session that minted it.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Validation failures. Callers distinguish expiry from every other defect
// because only expiry is worth reporting to the end user.
var (
	ErrExpired = errors.New("access token expired")
	ErrInvalid = errors.New("access token invalid")
)

// Config defines the signing parameters. Secret is the symmetric HS256 key
// and must be at least 32 bytes.
type Config struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	Leeway time.Duration
}

// Claims is the access-token payload. Subject carries the credential ID.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Signer mints and parses HS256 access tokens. Instances are immutable and
// safe for concurrent use.
type Signer struct {
	config Config
}

// NewSigner validates the configuration and returns a Signer.
func NewSigner(cfg Config) (*Signer, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("signing secret must be at least 32 bytes")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Signer{config: cfg}, nil
}

// Sign mints a token for the given identity. It returns the compact token
// and the expiry instant so callers can report it without re-parsing.
func (s *Signer) Sign(subject, email, role string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.config.TTL)
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse validates signature, algorithm, issuer and time claims, and returns
// the payload. Expired tokens yield ErrExpired; everything else ErrInvalid.
func (s *Signer) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
	}
	if s.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(s.config.Leeway))
	}
	if s.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if claims.Subject == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}
