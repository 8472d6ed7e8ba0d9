package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sharecrop/internal/logger"
	"sharecrop/internal/models"
)

func TestExtractTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := ExtractTokenFromRequest(r)
	assert.ErrorIs(t, err, ErrMissingToken)

	r.Header.Set("Authorization", "Token abc")
	_, err = ExtractTokenFromRequest(r)
	assert.ErrorIs(t, err, ErrMalformed)

	r.Header.Set("Authorization", "bearer abc")
	tok, err := ExtractTokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}

func TestHMACVerifier_RoundTrip(t *testing.T) {
	v := NewHMACVerifier("secret")
	tok, err := v.IssueToken(models.Identity{ID: "farmer_1", Name: "John", Role: models.RoleFarmer}, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, models.Identity{ID: "farmer_1", Name: "John", Role: models.RoleFarmer}, id)

	_, err = NewHMACVerifier("other").Verify(context.Background(), tok)
	assert.Error(t, err)
}

func TestHMACVerifier_Rejects(t *testing.T) {
	v := NewHMACVerifier("secret")

	expired, err := v.IssueToken(models.Identity{ID: "u"}, -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	noSub, err := v.IssueToken(models.Identity{}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), noSub)
	assert.ErrorIs(t, err, ErrNoSubject)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u"})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), raw)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	v := NewHMACVerifier("secret")
	var seen models.Identity
	h := Middleware(v, logger.NewWriterLogger(io.Discard))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/wallet", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/wallet", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := v.IssueToken(models.Identity{ID: "buyer_1", Name: "Alice"}, time.Hour)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/wallet", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "buyer_1", seen.ID)
	assert.Equal(t, "Alice", seen.Name)
}

func TestIdentityFrom_Empty(t *testing.T) {
	_, ok := IdentityFrom(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "", UserID(context.Background()))
}
