package usersys

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SessionClaims is the signed envelope carried by the session cookie
type SessionClaims struct {
	jwt.RegisteredClaims
	Caller string `json:"caller,omitempty"`
}

// SessionCodec signs session references so a cookie can not be forged
type SessionCodec struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        Clock
	logger     Logger
}

// NewSessionCodec creates a codec signing with HS256
func NewSessionCodec(cfg Config, issuer string) *SessionCodec {
	return &SessionCodec{
		signingKey: []byte(cfg.GetSigningKey()),
		issuer:     issuer,
		ttl:        cfg.GetSessionDuration(),
		now:        defaultClock,
		logger:     defLogger{},
	}
}

// WithClock overrides the clock
func (c *SessionCodec) WithClock(clock Clock) *SessionCodec {
	c.now = normalizeClock(clock)
	return c
}

// WithLogger sets the logger
func (c *SessionCodec) WithLogger(l Logger) *SessionCodec {
	c.logger = normalizeLogger(l)
	return c
}

// TTL returns the envelope lifetime
func (c *SessionCodec) TTL() time.Duration {
	return c.ttl
}

// Encode signs a session reference
func (c *SessionCodec) Encode(sessionID, caller string) (string, error) {
	now := c.now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Caller: caller,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session cookie")
	}
	return signed, nil
}

// Decode verifies an envelope and returns the session reference
func (c *SessionCodec) Decode(value string) (*SessionClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(c.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if c.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(c.issuer))
	}

	token, err := jwt.ParseWithClaims(value, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.signingKey, nil
	}, parserOptions...)
	if err != nil {
		c.logger.Debug("session cookie rejected: %v", err)
		return nil, goerrors.Wrap(err, ErrInvalidSessionEnvelope.Category, ErrInvalidSessionEnvelope.Message).
			WithTextCode(ErrInvalidSessionEnvelope.TextCode)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidSessionEnvelope
	}
	return claims, nil
}
