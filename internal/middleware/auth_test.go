package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/testresult-ingest/internal/domain/identity"
	"github.com/bryanwahyu/testresult-ingest/internal/testutil"
)

const secret = "0123456789abcdef-secret"

func echoCaller(t *testing.T, seen **identity.Caller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = GetCaller(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	var seen *identity.Caller
	h := JWTAuth([]byte(secret), "")(echoCaller(t, &seen))

	req := httptest.NewRequest(http.MethodGet, "/test-results", nil)
	req.Header.Set("Authorization", "Bearer "+testutil.Token(t, secret, "user-7", "patient"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "user-7", seen.ID)
	assert.Equal(t, identity.RolePatient, seen.Role)
}

func TestJWTAuthRejects(t *testing.T) {
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u", "role": "ADMIN", "exp": time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "ADMIN"}).SignedString([]byte(secret))
	require.NoError(t, err)

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"empty bearer":   "Bearer  ",
		"wrong secret":   "Bearer " + testutil.Token(t, "another-secret-value", "u", "ADMIN"),
		"expired":        "Bearer " + expired,
		"no subject":     "Bearer " + noSub,
		"garbage":        "Bearer not.a.jwt",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			var seen *identity.Caller
			h := JWTAuth([]byte(secret), "")(echoCaller(t, &seen))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, seen)
			assert.Contains(t, rec.Body.String(), `"status":401`)
		})
	}
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RequireRole(identity.RoleAdmin)(ok)

	for role, want := range map[identity.Role]int{
		identity.RoleAdmin:   http.StatusOK,
		identity.RolePatient: http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithCaller(req.Context(), &identity.Caller{ID: "x", Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func tokenFor(t *testing.T, sub, role string) string {
	return testutil.Token(t, secret, sub, role)
}
