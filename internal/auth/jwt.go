package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"github.com/vovakirdan/oinkroom/internal/core"
)

const keyInfo = "oinkroom session credential v1"

// ClaimsUser is the user record embedded in a session credential.
type ClaimsUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
}

// Claims binds a user to an instance.
type Claims struct {
	User     ClaimsUser `json:"user"`
	Instance string     `json:"instance"`
	jwt.RegisteredClaims
}

// Session converts verified claims into the immutable connection binding.
func (c *Claims) Session() core.Session {
	return core.NewSession(core.User{
		ID:          c.User.ID,
		Username:    c.User.Username,
		DisplayName: c.User.GlobalName,
		Avatar:      c.User.Avatar,
	}, c.Instance)
}

// JWTConfig holds credential signing configuration.
// A zero TTL issues credentials without an expiry claim.
type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration

	once sync.Once
	key  []byte
	err  error
}

// signingKey derives the HMAC key from the configured secret.
func (cfg *JWTConfig) signingKey() ([]byte, error) {
	cfg.once.Do(func() {
		if len(cfg.Secret) == 0 {
			cfg.err = errors.New("empty signing secret")
			return
		}
		key := make([]byte, 32)
		if _, err := io.ReadFull(hkdf.New(sha256.New, cfg.Secret, nil, []byte(keyInfo)), key); err != nil {
			cfg.err = fmt.Errorf("derive signing key: %w", err)
			return
		}
		cfg.key = key
	})
	return cfg.key, cfg.err
}

// GenerateToken signs a credential binding user to instance.
func GenerateToken(cfg *JWTConfig, user core.User, instance string) (string, error) {
	key, err := cfg.signingKey()
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := Claims{
		User: ClaimsUser{
			ID:         user.ID,
			Username:   user.Username,
			GlobalName: user.DisplayName,
			Avatar:     user.Avatar,
		},
		Instance: instance,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  user.ID,
			Issuer:   cfg.Issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	if cfg.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(cfg.TTL))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

// ValidateToken parses and validates a credential.
func ValidateToken(cfg *JWTConfig, tokenString string) (*Claims, error) {
	key, err := cfg.signingKey()
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.User.ID == "" {
		return nil, fmt.Errorf("missing user id")
	}
	if claims.Instance == "" {
		return nil, fmt.Errorf("missing instance")
	}

	return claims, nil
}
