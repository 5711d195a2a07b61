package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput: некорректный запрос клиента (4xx).
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstream: ошибка чтения из хранилища (5xx).
	ErrUpstream = errors.New("upstream failure")
	// ErrNotFound: запрошенный объект не существует.
	ErrNotFound = errors.New("not found")
)

// InvalidInputf создаёт ошибку валидации с текстом для клиента.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Upstream помечает ошибку хранилища, сохраняя исходную причину.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpstream) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
}
