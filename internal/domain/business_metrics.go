package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BusinessMetric описывает бизнесовое событие, которое сохраняется для последующего анализа.
type BusinessMetric struct {
	Event      string
	UserID     *uuid.UUID
	ItemID     *uuid.UUID
	Metadata   map[string]any
	OccurredAt time.Time
}

const (
	// BusinessMetricEventFollowed фиксирует новую подписку.
	BusinessMetricEventFollowed = "author_followed"
	// BusinessMetricEventFavorited фиксирует добавление рецепта в избранное.
	BusinessMetricEventFavorited = "recipe_favorited"
)

// BusinessMetricRepo сохраняет бизнесовые события.
type BusinessMetricRepo interface {
	RecordBusinessMetric(ctx context.Context, metric BusinessMetric) error
}
