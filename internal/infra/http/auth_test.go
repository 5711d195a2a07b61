package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("не удалось подписать токен: %v", err)
	}
	return token
}

func TestBearerAuth(t *testing.T) {
	secret := "s3cret"
	user := uuid.New()
	var seen uuid.UUID
	handler := BearerAuth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CallerID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	valid := signed(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": user.String(), "exp": time.Now().Add(time.Hour).Unix()})
	cases := map[string]struct {
		header string
		status int
	}{
		"valid":       {"Bearer " + valid, http.StatusNoContent},
		"missing":     {"", http.StatusUnauthorized},
		"wrong key":   {"Bearer " + signed(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": user.String()}), http.StatusUnauthorized},
		"expired":     {"Bearer " + signed(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": user.String(), "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
		"bad subject": {"Bearer " + signed(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "42"}), http.StatusUnauthorized},
		"wrong alg":   {"Bearer " + signed(t, jwt.SigningMethodHS512, []byte(secret), jwt.MapClaims{"sub": user.String()}), http.StatusUnauthorized},
	}
	for name, tc := range cases {
		seen = uuid.Nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: ожидали %d, получили %d", name, tc.status, rec.Code)
		}
		if tc.status == http.StatusNoContent && seen != user {
			t.Fatalf("%s: в контексте неверный пользователь %s", name, seen)
		}
	}
}

func TestBearerAuthRejectsEmptySecret(t *testing.T) {
	called := false
	handler := BearerAuth("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": uuid.New().String()}).SignedString([]byte(""))
	if err != nil {
		token = signed(t, jwt.SigningMethodHS256, []byte("any"), jwt.MapClaims{"sub": uuid.New().String()})
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || called {
		t.Fatalf("токен с пустым ключом должен отклоняться, получили %d", rec.Code)
	}
}
