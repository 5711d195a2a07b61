package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FollowRepo управляет подписками.
type FollowRepo interface {
	ListFollowees(ctx context.Context, followerID uuid.UUID) ([]uuid.UUID, error)
	Follow(ctx context.Context, followerID, followeeID uuid.UUID) (bool, error)
	Unfollow(ctx context.Context, followerID, followeeID uuid.UUID) error
	CountFollowers(ctx context.Context, authorIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

// ItemRepo читает рецепты. Все выборки упорядочены от новых к старым.
type ItemRepo interface {
	ListItemsByAuthors(ctx context.Context, authorIDs []uuid.UUID, limit int) ([]ContentItem, error)
	// ListRecentItems возвращает свежие рецепты всех авторов, кроме exclude.
	ListRecentItems(ctx context.Context, exclude []uuid.UUID, limit int) ([]ContentItem, error)
	ListOwnItemTitles(ctx context.Context, userID uuid.UUID) ([]string, error)
	CountItemsByAuthors(ctx context.Context, authorIDs []uuid.UUID) (map[uuid.UUID]int, error)
	ItemExists(ctx context.Context, itemID uuid.UUID) (bool, error)
}

// FavoriteRepo управляет избранным.
type FavoriteRepo interface {
	// ListFavoriteEvents возвращает все добавления в избранное для указанных рецептов.
	ListFavoriteEvents(ctx context.Context, itemIDs []uuid.UUID) ([]FavoriteEvent, error)
	// ListUserFavorites возвращает подмножество itemIDs, добавленных userID в избранное.
	ListUserFavorites(ctx context.Context, userID uuid.UUID, itemIDs []uuid.UUID) ([]uuid.UUID, error)
	AddFavorite(ctx context.Context, userID, itemID uuid.UUID) (bool, error)
	RemoveFavorite(ctx context.Context, userID, itemID uuid.UUID) error
}

// ProfileRepo читает профили авторов.
type ProfileRepo interface {
	GetAuthorProfiles(ctx context.Context, authorIDs []uuid.UUID) ([]AuthorProfile, error)
	ListProfilesExcept(ctx context.Context, exclude []uuid.UUID, limit int) ([]AuthorProfile, error)
}

// FeedService строит страницы ленты.
type FeedService interface {
	Feed(ctx context.Context, req FeedRequest) (FeedPage, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// GetMany читает ключи одним запросом. Для отсутствующих ключей в ответе nil.
	GetMany(ctx context.Context, keys []string) ([][]byte, error)
}
