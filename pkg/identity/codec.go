package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bookan/pkg/domain"
	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrMalformed marks a persisted payload that cannot be turned back into a principal.
var ErrMalformed = errors.New("malformed principal payload")

// Codec serializes the principal kept in the durable key-value store.
type Codec interface {
	Encode(domain.Principal) (string, error)
	Decode(string) (domain.Principal, error)
}

// JSONCodec stores the principal as plain JSON, like browser local storage does.
type JSONCodec struct{}

func (JSONCodec) Encode(p domain.Principal) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode principal: %w", err)
	}
	return string(raw), nil
}

func (JSONCodec) Decode(raw string) (domain.Principal, error) {
	var p domain.Principal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return p, checkDecoded(p)
}

const defaultIssuer = "bookan"

type principalClaims struct {
	Principal domain.Principal `json:"principal"`
	jwt.RegisteredClaims
}

// JWTCodec stores the principal as an HS256-signed token so that edits to
// the persisted value are detected on restore.
type JWTCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTCodec builds a signing codec. A zero ttl issues tokens without expiry.
func NewJWTCodec(secret string, ttl time.Duration) (*JWTCodec, error) {
	if len(secret) < 16 {
		return nil, errors.New("identity: session secret must be at least 16 bytes")
	}
	return &JWTCodec{
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (c *JWTCodec) Encode(p domain.Principal) (string, error) {
	now := c.now().UTC()
	claims := principalClaims{
		Principal: p,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   c.issuer,
			Subject:  p.ID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if c.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign principal: %w", err)
	}
	return signed, nil
}

func (c *JWTCodec) Decode(raw string) (domain.Principal, error) {
	claims := principalClaims{}
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if claims.Subject != claims.Principal.ID {
		return domain.Principal{}, fmt.Errorf("%w: subject mismatch", ErrMalformed)
	}
	return claims.Principal, checkDecoded(claims.Principal)
}

func checkDecoded(p domain.Principal) error {
	if p.ID == "" || p.Email == "" {
		return fmt.Errorf("%w: missing id or email", ErrMalformed)
	}
	return nil
}
