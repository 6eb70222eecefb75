package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

// ErrUnauthorized is the single outcome of every failed handshake. Callers
// never learn which check failed.
var ErrUnauthorized = errors.New("unauthorized")

// Auther verifies handshake tokens.
type Auther interface {
	Inspect(ctx context.Context, token string) (*model.Identity, error)
}

type AuthConfig struct {
	Secret    string
	JWKSURL   string
	Issuer    string
	Audience  string
	Leeway    time.Duration
	CacheSize int
}

type gatewayClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
	Type   string `json:"type"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

var _ Auther = (*JWTAuther)(nil)

// JWTAuther verifies HMAC tokens against a shared secret and asymmetric
// tokens against a JWKS. Verified identities are cached per raw token until
// the token expires.
type JWTAuther struct {
	secret []byte
	jwks   *keyfunc.JWKS
	opts   []jwt.ParserOption
	cache  *lru.Cache[string, *model.Identity]
	now    func() time.Time
}

func NewJWTAuther(cfg AuthConfig) (*JWTAuther, error) {
	if cfg.Secret == "" && cfg.JWKSURL == "" {
		return nil, fmt.Errorf("auth: secret or jwks url required")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 10000
	}

	// [MEMORY_MANAGEMENT] Pre-allocated LRU cache for "hot" tokens.
	cache, err := lru.New[string, *model.Identity](cfg.CacheSize)
	if err != nil {
		return nil, err
	}

	a := &JWTAuther{secret: []byte(cfg.Secret), cache: cache, now: time.Now}

	methods := []string{}
	if cfg.Secret != "" {
		methods = append(methods, "HS256", "HS384", "HS512")
	}
	if cfg.JWKSURL != "" {
		a.jwks, err = keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			Ctx:               context.Background(),
			RefreshInterval:   5 * time.Minute,
			RefreshRateLimit:  time.Minute,
			RefreshUnknownKID: true,
		})
		if err != nil {
			return nil, fmt.Errorf("auth: load jwks: %w", err)
		}
		methods = append(methods, "RS256", "RS384", "RS512", "ES256", "ES384", "ES512")
	}

	a.opts = []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithTimeFunc(func() time.Time { return a.now() }),
	}
	if cfg.Issuer != "" {
		a.opts = append(a.opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		a.opts = append(a.opts, jwt.WithAudience(cfg.Audience))
	}
	return a, nil
}

func (a *JWTAuther) keyFor(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); ok {
		if len(a.secret) == 0 {
			return nil, ErrUnauthorized
		}
		return a.secret, nil
	}
	if a.jwks == nil {
		return nil, ErrUnauthorized
	}
	return a.jwks.Keyfunc(t)
}

// Inspect returns the verified identity carried by token.
func (a *JWTAuther) Inspect(_ context.Context, token string) (*model.Identity, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	// [CACHE_LOOKUP]
	if id, ok := a.cache.Get(token); ok {
		if !id.Expired(a.now()) {
			return id, nil
		}
		a.cache.Remove(token)
	}

	claims := &gatewayClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, a.keyFor, a.opts...)
	if err != nil || !parsed.Valid {
		return nil, ErrUnauthorized
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return nil, ErrUnauthorized
	}

	id := &model.Identity{
		UserID:    userID,
		Type:      model.SenderHuman,
		Email:     claims.Email,
		Name:      claims.Name,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.Type != "" {
		id.Type = claims.Type
	}

	a.cache.Add(token, id)
	return id, nil
}

// Close stops the JWKS refresh goroutine.
func (a *JWTAuther) Close() {
	if a.jwks != nil {
		a.jwks.EndBackground()
	}
}
