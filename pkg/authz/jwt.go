package authz

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures bearer token identities.
type JWTConfig struct {
	// PublicKeyPath is a PEM-encoded RSA public key for RS256 tokens.
	PublicKeyPath string

	// Secret verifies HS256 tokens when no public key is set.
	Secret string

	// UserClaims are tried in order for the user name. Default: sub, u.
	UserClaims []string

	// NameClaims are tried in order for the display name. Default: name, n.
	NameClaims []string

	// RoleClaim holds the caller's role or roles. Supports dot-notation for
	// nested claims. Default: "role".
	RoleClaim string

	// AdminRoleValue is the role that makes a caller privileged. Default: "admin".
	AdminRoleValue string

	// Issuer and Audience are validated when set.
	Issuer   string
	Audience string

	Logger *slog.Logger
}

// NewJWTIdentityMiddleware returns middleware that reads the caller from
// "Authorization: Bearer <token>". Missing or invalid tokens leave the
// caller anonymous.
func NewJWTIdentityMiddleware(cfg JWTConfig) (func(http.Handler) http.Handler, error) {
	if len(cfg.UserClaims) == 0 {
		cfg.UserClaims = []string{"sub", "u"}
	}
	if len(cfg.NameClaims) == 0 {
		cfg.NameClaims = []string{"name", "n"}
	}
	if cfg.RoleClaim == "" {
		cfg.RoleClaim = "role"
	}
	if cfg.AdminRoleValue == "" {
		cfg.AdminRoleValue = "admin"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	keyFunc, err := verificationKey(cfg)
	if err != nil {
		return nil, err
	}

	var parserOpts []jwt.ParserOption
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(parserOpts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := Identity{User: AnonymousUser}
			if raw := extractBearerToken(r); raw != "" {
				claims := jwt.MapClaims{}
				if _, err := parser.ParseWithClaims(raw, claims, keyFunc); err != nil {
					cfg.Logger.Debug("JWT parse failed, caller is anonymous", "error", err)
				} else {
					id = identityFromClaims(claims, cfg)
				}
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}, nil
}

func verificationKey(cfg JWTConfig) (jwt.Keyfunc, error) {
	if cfg.PublicKeyPath != "" {
		keyData, err := os.ReadFile(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read JWT public key from %s: %w", cfg.PublicKeyPath, err)
		}
		block, _ := pem.Decode(keyData)
		if block == nil {
			return nil, fmt.Errorf("failed to decode PEM block from %s", cfg.PublicKeyPath)
		}
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		rsaKey, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is not RSA (got %T)", parsed)
		}
		return func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return rsaKey, nil
		}, nil
	}

	if cfg.Secret == "" {
		return nil, errors.New("jwt identity: a public key or a secret is required")
	}
	secret := []byte(cfg.Secret)
	return func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, nil
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func identityFromClaims(claims jwt.MapClaims, cfg JWTConfig) Identity {
	id := Identity{
		User:        firstClaim(claims, cfg.UserClaims),
		DisplayName: firstClaim(claims, cfg.NameClaims),
	}
	if id.User == "" {
		id.User = AnonymousUser
		return id
	}
	id.Groups = claimValues(claims, cfg.RoleClaim)
	id.Privileged = hasAny(id.Groups, []string{cfg.AdminRoleValue})
	return id
}

func firstClaim(claims jwt.MapClaims, names []string) string {
	for _, n := range names {
		if s, ok := claims[n].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// claimValues reads a string or string array claim at a dotted path.
func claimValues(claims jwt.MapClaims, path string) []string {
	var current any = map[string]any(claims)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		if current, ok = m[part]; !ok {
			return nil
		}
	}

	switch v := current.(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
