package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(GetUserID(r.Context())))
	})
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestJWTAuth(t *testing.T) {
	h := JWTAuth(testSecret)(echoUser())
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "user_id claim", header: "Bearer " + signed(t, jwt.MapClaims{"user_id": "u1", "exp": exp}), status: http.StatusOK, body: "u1"},
		{name: "sub claim", header: "Bearer " + signed(t, jwt.MapClaims{"sub": "u2", "exp": exp}), status: http.StatusOK, body: "u2"},
		{name: "expired", header: "Bearer " + signed(t, jwt.MapClaims{"user_id": "u1", "exp": time.Now().Add(-time.Hour).Unix()}), status: http.StatusUnauthorized},
		{name: "no subject", header: "Bearer " + signed(t, jwt.MapClaims{"exp": exp}), status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

type fakeVerifier struct {
	uid string
	err error
}

func (f fakeVerifier) VerifyIDToken(context.Context, string) (*auth.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &auth.Token{UID: f.uid}, nil
}

func TestFirebaseAuth(t *testing.T) {
	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer id-token")
		return r
	}

	rec := httptest.NewRecorder()
	FirebaseAuth(fakeVerifier{uid: "firebase-user"})(echoUser()).ServeHTTP(rec, req())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "firebase-user", rec.Body.String())

	rec = httptest.NewRecorder()
	FirebaseAuth(fakeVerifier{err: errors.New("expired")})(echoUser()).ServeHTTP(rec, req())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Invalid or expired token"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	FirebaseAuth(nil)(echoUser()).ServeHTTP(rec, req())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
