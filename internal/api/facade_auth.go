// Package api implements the HTTP+WebSocket facade of spec.md §6, grounded
// on services/account-manager's gin handler/router conventions.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// accessTokenTTL/refreshTokenTTL mirror services/account-manager/auth.go's
// 15-minute access / 7-day refresh split.
const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

// sessionClaims is the facade's JWT payload: it carries the ATProto
// session identity rather than the teacher's internal user ID/role.
type sessionClaims struct {
	Handle string `json:"handle"`
	DID    string `json:"did"`
	jwt.RegisteredClaims
}

// RevocationStore tracks blacklisted access tokens and live refresh tokens.
// RedisRevocationStore is the default, grounded on auth.go's
// blacklistToken/storeRefreshToken; memRevocationStore backs tests and
// single-process runs with no Redis configured.
type RevocationStore interface {
	StoreRefresh(ctx context.Context, token, handle string) error
	ResolveRefresh(ctx context.Context, token string) (string, error)
	RevokeRefresh(ctx context.Context, token string) error
	Blacklist(ctx context.Context, accessToken string, expiresAt time.Time) error
	IsBlacklisted(ctx context.Context, accessToken string) bool
}

// RedisRevocationStore stores refresh tokens and blacklisted access tokens
// in Redis, identical in shape to auth.go's key layout
// ("refresh_token:<token>", "blacklist:<token>").
type RedisRevocationStore struct {
	rdb *redis.Client
}

func NewRedisRevocationStore(rdb *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{rdb: rdb}
}

func (s *RedisRevocationStore) StoreRefresh(ctx context.Context, token, handle string) error {
	return s.rdb.Set(ctx, "refresh_token:"+token, handle, refreshTokenTTL).Err()
}

func (s *RedisRevocationStore) ResolveRefresh(ctx context.Context, token string) (string, error) {
	return s.rdb.Get(ctx, "refresh_token:"+token).Result()
}

func (s *RedisRevocationStore) RevokeRefresh(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, "refresh_token:"+token).Err()
}

func (s *RedisRevocationStore) Blacklist(ctx context.Context, accessToken string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, "blacklist:"+accessToken, "1", ttl).Err()
}

func (s *RedisRevocationStore) IsBlacklisted(ctx context.Context, accessToken string) bool {
	_, err := s.rdb.Get(ctx, "blacklist:"+accessToken).Result()
	return err == nil
}

// memRevocationStore is an in-process fallback for deployments that don't
// set REDIS_URL — single-user local tool runs shouldn't require standing
// up Redis just to log in once.
type memRevocationStore struct {
	refresh    map[string]string
	blacklist  map[string]time.Time
}

func newMemRevocationStore() *memRevocationStore {
	return &memRevocationStore{refresh: map[string]string{}, blacklist: map[string]time.Time{}}
}

func (s *memRevocationStore) StoreRefresh(_ context.Context, token, handle string) error {
	s.refresh[token] = handle
	return nil
}

func (s *memRevocationStore) ResolveRefresh(_ context.Context, token string) (string, error) {
	handle, ok := s.refresh[token]
	if !ok {
		return "", errors.New("refresh token not found")
	}
	return handle, nil
}

func (s *memRevocationStore) RevokeRefresh(_ context.Context, token string) error {
	delete(s.refresh, token)
	return nil
}

func (s *memRevocationStore) Blacklist(_ context.Context, accessToken string, expiresAt time.Time) error {
	s.blacklist[accessToken] = expiresAt
	return nil
}

func (s *memRevocationStore) IsBlacklisted(_ context.Context, accessToken string) bool {
	expiresAt, ok := s.blacklist[accessToken]
	if !ok {
		return false
	}
	return time.Now().Before(expiresAt)
}

// FacadeAuth issues and validates the browser-facing session JWT, separate
// from the ATProto access/refresh JWTs internal/auth.Manager holds against
// the PDS. Grounded on services/account-manager/auth.go::AuthService.
type FacadeAuth struct {
	secret []byte
	store  RevocationStore
}

func NewFacadeAuth(secret []byte, store RevocationStore) *FacadeAuth {
	if store == nil {
		store = newMemRevocationStore()
	}
	return &FacadeAuth{secret: secret, store: store}
}

// IssueTokens mints a facade access token (15m) and a random opaque
// refresh token (7d), and registers the refresh token with the store.
func (a *FacadeAuth) IssueTokens(ctx context.Context, handle, did string) (access, refresh string, expiresAt time.Time, err error) {
	expiresAt = time.Now().Add(accessTokenTTL)
	claims := &sessionClaims{
		Handle: handle,
		DID:    did,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "skymarshal",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	access, err = token.SignedString(a.secret)
	if err != nil {
		return "", "", time.Time{}, err
	}

	refresh, err = randomToken()
	if err != nil {
		return "", "", time.Time{}, err
	}
	if err := a.store.StoreRefresh(ctx, refresh, handle); err != nil {
		return "", "", time.Time{}, err
	}
	return access, refresh, expiresAt, nil
}

// Parse validates an access token's signature and expiry, and rejects it
// if it has been blacklisted by Logout.
func (a *FacadeAuth) Parse(ctx context.Context, tokenString string) (*sessionClaims, error) {
	if a.store.IsBlacklisted(ctx, tokenString) {
		return nil, errors.New("token revoked")
	}
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Refresh exchanges a live refresh token for a new access token.
func (a *FacadeAuth) Refresh(ctx context.Context, refreshToken, did string) (string, time.Time, error) {
	handle, err := a.store.ResolveRefresh(ctx, refreshToken)
	if err != nil {
		return "", time.Time{}, err
	}
	access, _, expiresAt, err := a.IssueTokens(ctx, handle, did)
	return access, expiresAt, err
}

// Revoke blacklists accessToken (until its own expiry) and removes
// refreshToken from the live set, mirroring auth.go::Logout.
func (a *FacadeAuth) Revoke(ctx context.Context, accessToken, refreshToken string, accessExpiresAt time.Time) error {
	if refreshToken != "" {
		_ = a.store.RevokeRefresh(ctx, refreshToken)
	}
	return a.store.Blacklist(ctx, accessToken, accessExpiresAt)
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
