package authz

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "registry-test-secret"

func hsToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err, "failed to sign token")
	return token
}

func identityFor(t *testing.T, mw func(http.Handler) http.Handler, authorization string) Identity {
	t.Helper()
	var got Identity
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/assets", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestJWTIdentityMiddleware_HMAC(t *testing.T) {
	mw, err := NewJWTIdentityMiddleware(JWTConfig{Secret: testSecret})
	require.NoError(t, err)

	exp := time.Now().Add(time.Hour).Unix()
	tests := []struct {
		name           string
		authorization  string
		wantUser       string
		wantName       string
		wantPrivileged bool
	}{
		{"no header", "", AnonymousUser, "", false},
		{"not bearer", "Basic abc", AnonymousUser, "", false},
		{"garbage token", "Bearer not-a-jwt", AnonymousUser, "", false},
		{
			name:           "admin with short claims",
			authorization:  "Bearer " + hsToken(t, jwt.MapClaims{"u": "admin", "n": "ผู้ดูแล", "r": "admin", "exp": exp}),
			wantUser:       "admin",
			wantName:       "ผู้ดูแล",
			wantPrivileged: false,
		},
		{
			name:           "admin role claim",
			authorization:  "Bearer " + hsToken(t, jwt.MapClaims{"sub": "admin", "role": "admin", "exp": exp}),
			wantUser:       "admin",
			wantPrivileged: true,
		},
		{
			name:          "user role",
			authorization: "Bearer " + hsToken(t, jwt.MapClaims{"sub": "somchai", "name": "สมชาย", "role": "user", "exp": exp}),
			wantUser:      "somchai",
			wantName:      "สมชาย",
		},
		{
			name:          "expired",
			authorization: "Bearer " + hsToken(t, jwt.MapClaims{"sub": "admin", "role": "admin", "exp": time.Now().Add(-time.Hour).Unix()}),
			wantUser:      AnonymousUser,
		},
		{
			name:          "no subject",
			authorization: "Bearer " + hsToken(t, jwt.MapClaims{"role": "admin", "exp": exp}),
			wantUser:      AnonymousUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := identityFor(t, mw, tt.authorization)
			assert.Equal(t, tt.wantUser, got.User)
			assert.Equal(t, tt.wantName, got.DisplayName)
			assert.Equal(t, tt.wantPrivileged, got.Privileged)
		})
	}
}

func TestJWTIdentityMiddleware_ShortRoleClaim(t *testing.T) {
	mw, err := NewJWTIdentityMiddleware(JWTConfig{Secret: testSecret, RoleClaim: "r"})
	require.NoError(t, err)

	got := identityFor(t, mw, "Bearer "+hsToken(t, jwt.MapClaims{"u": "admin", "r": "admin"}))
	assert.True(t, got.Privileged)
}

func TestJWTIdentityMiddleware_RS256(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "failed to generate RSA key")
	der, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)
	keyPath := filepath.Join(t.TempDir(), "jwt.pub")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	mw, err := NewJWTIdentityMiddleware(JWTConfig{
		PublicKeyPath: keyPath,
		RoleClaim:     "realm_access.roles",
		Issuer:        "https://idp.example",
	})
	require.NoError(t, err)

	sign := func(claims jwt.MapClaims) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privateKey)
		require.NoError(t, err)
		return "Bearer " + token
	}

	got := identityFor(t, mw, sign(jwt.MapClaims{
		"sub":          "lab-admin",
		"iss":          "https://idp.example",
		"realm_access": map[string]any{"roles": []any{"user", "admin"}},
	}))
	assert.Equal(t, "lab-admin", got.User)
	assert.True(t, got.Privileged)

	got = identityFor(t, mw, sign(jwt.MapClaims{"sub": "x", "iss": "https://other.example"}))
	assert.True(t, got.Anonymous(), "wrong issuer must be rejected")

	got = identityFor(t, mw, "Bearer "+hsToken(t, jwt.MapClaims{"sub": "admin", "iss": "https://idp.example"}))
	assert.True(t, got.Anonymous(), "HMAC token must not pass RS256 verification")
}

func TestNewJWTIdentityMiddleware_RequiresKey(t *testing.T) {
	_, err := NewJWTIdentityMiddleware(JWTConfig{})
	assert.Error(t, err)

	_, err = NewJWTIdentityMiddleware(JWTConfig{PublicKeyPath: filepath.Join(t.TempDir(), "missing.pem")})
	assert.Error(t, err)
}
