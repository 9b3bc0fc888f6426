package remote

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type sessionClaims struct {
	Anonymous  bool   `json:"anon"`
	Email      string `json:"email,omitempty"`
	IssuedAtNs int64  `json:"iat_ns"`
	jwt.RegisteredClaims
}

// tokenIssuer signs backend access tokens and tracks per-user revocation.
// A sign-out revokes every token of the user issued up to that instant.
type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu            sync.RWMutex
	revokedBefore map[string]int64
}

func newTokenIssuer(secret string, ttl time.Duration) *tokenIssuer {
	return &tokenIssuer{
		secret:        []byte(secret),
		ttl:           ttl,
		now:           time.Now,
		revokedBefore: make(map[string]int64),
	}
}

func (t *tokenIssuer) issue(userID, email string, anonymous bool) (*Session, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := sessionClaims{
		Anonymous:  anonymous,
		Email:      email,
		IssuedAtNs: now.UnixNano(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Session{
		UserID:      userID,
		Email:       email,
		AccessToken: signed,
		Anonymous:   anonymous,
		ExpiresAt:   exp,
	}, nil
}

func (t *tokenIssuer) verify(tokenString string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}
	if claims.Subject == "" {
		return nil, ErrUnauthorized
	}

	t.mu.RLock()
	cutoff, revoked := t.revokedBefore[claims.Subject]
	t.mu.RUnlock()
	if revoked && claims.IssuedAtNs <= cutoff {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

func (t *tokenIssuer) revoke(userID string, at time.Time) {
	ns := at.UnixNano()
	t.mu.Lock()
	defer t.mu.Unlock()
	if ns > t.revokedBefore[userID] {
		t.revokedBefore[userID] = ns
	}
}
