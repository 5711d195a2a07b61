package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContentItem описывает единицу контента (рецепт) в ленте.
type ContentItem struct {
	ID          uuid.UUID
	AuthorID    uuid.UUID
	CreatedAt   time.Time
	Title       string
	Description string
	ImageURL    string
	Tags        []string
}

// FavoriteEvent фиксирует добавление рецепта в избранное.
type FavoriteEvent struct {
	UserID    uuid.UUID
	ItemID    uuid.UUID
	CreatedAt time.Time
}

// AuthorProfile содержит публичные данные автора.
type AuthorProfile struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Handle      string    `json:"handle"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
}

// EngagementStats агрегирует избранное по одному рецепту.
type EngagementStats struct {
	Total             int
	Recent            int
	FavoritedByCaller bool
}

// EngagementSnapshot хранит статистику по набору рецептов для конкретного пользователя.
// Вычисляется на каждый запрос и нигде не сохраняется.
type EngagementSnapshot map[uuid.UUID]EngagementStats

// Get возвращает статистику рецепта; отсутствующий рецепт даёт нулевые значения.
func (s EngagementSnapshot) Get(id uuid.UUID) EngagementStats {
	return s[id]
}

// ScoredCandidate хранит рецепт с вычисленным скором.
type ScoredCandidate struct {
	Item  ContentItem
	Score float64
}

// FeedItem описывает рецепт в ответе ленты.
type FeedItem struct {
	ID            uuid.UUID      `json:"id"`
	AuthorID      uuid.UUID      `json:"user_id"`
	CreatedAt     time.Time      `json:"created_at"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	ImageURL      string         `json:"image_url,omitempty"`
	Tags          []string       `json:"tags"`
	Author        *AuthorProfile `json:"author"`
	IsFavorited   bool           `json:"is_favorited"`
	IsSaved       bool           `json:"is_saved"`
	FavoriteCount int            `json:"favorite_count"`
}

// FeedPage описывает страницу ленты. Поле recipes сохранено для совместимости клиентов.
type FeedPage struct {
	Items      []FeedItem `json:"recipes"`
	HasMore    bool       `json:"has_more"`
	NextOffset *int       `json:"next_offset"`
}

// FeedRequest описывает запрос страницы ленты.
type FeedRequest struct {
	CallerID uuid.UUID
	Type     FeedType
	Limit    int
	Offset   int
}

// AuthorSuggestion описывает автора, на которого стоит подписаться.
type AuthorSuggestion struct {
	Profile     AuthorProfile `json:"profile"`
	Followers   int           `json:"followers_count"`
	RecipeCount int           `json:"recipes_count"`
}
