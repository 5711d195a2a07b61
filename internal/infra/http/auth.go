package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type ctxKey struct{}

// ErrUnauthorized возвращается при отсутствии или невалидности токена.
var ErrUnauthorized = errors.New("unauthorized")

// BearerAuth проверяет HS256 JWT из заголовка Authorization и кладёт sub в контекст.
// С пустым секретом отклоняется любой запрос.
func BearerAuth(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			callerID, err := parseBearer(r.Header.Get("Authorization"), key)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), callerID)))
		})
	}
}

func parseBearer(header string, key []byte) (uuid.UUID, error) {
	if len(key) == 0 {
		return uuid.Nil, ErrUnauthorized
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return uuid.Nil, ErrUnauthorized
	}
	token, err := jwt.Parse(strings.TrimSpace(raw), func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return uuid.Nil, ErrUnauthorized
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, ErrUnauthorized
	}
	id, err := uuid.Parse(sub)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrUnauthorized
	}
	return id, nil
}

// WithCaller кладёт идентификатор пользователя в контекст.
func WithCaller(ctx context.Context, callerID uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKey{}, callerID)
}

// CallerID возвращает идентификатор пользователя из контекста.
func CallerID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
