package repo

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"recipe-feed/internal/domain"
	"recipe-feed/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.FollowRepo         = (*Postgres)(nil)
	_ domain.ItemRepo           = (*Postgres)(nil)
	_ domain.FavoriteRepo       = (*Postgres)(nil)
	_ domain.ProfileRepo        = (*Postgres)(nil)
	_ domain.BusinessMetricRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// Ping проверяет соединение с БД.
func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.Ping(ctx)
	metrics.ObserveNetworkRequest("postgres", "ping", "", start, err)
	return err
}

// RecordBusinessMetric сохраняет бизнесовую метрику в БД.
func (p *Postgres) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = time.Now().UTC()
	}

	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var payload []byte
	if metric.Metadata != nil {
		if data, err := json.Marshal(metric.Metadata); err == nil {
			payload = data
		}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO business_metrics (event, user_id, recipe_id, metadata, occurred_at)
VALUES ($1, $2, $3, $4, $5)
`, metric.Event, metric.UserID, metric.ItemID, payload, metric.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "business_metrics_insert", "business_metrics", start, err)
	return err
}

// ListFollowees возвращает авторов, на которых подписан пользователь.
func (p *Postgres) ListFollowees(ctx context.Context, followerID uuid.UUID) ([]uuid.UUID, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT following_id FROM follows WHERE follower_id=$1`, followerID)
	metrics.ObserveNetworkRequest("postgres", "follows_list", "follows", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Follow создаёт подписку. Возвращает false, если она уже была.
func (p *Postgres) Follow(ctx context.Context, followerID, followeeID uuid.UUID) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
INSERT INTO follows (follower_id, following_id)
VALUES ($1,$2)
ON CONFLICT (follower_id, following_id) DO NOTHING
`, followerID, followeeID)
	metrics.ObserveNetworkRequest("postgres", "follows_insert", "follows", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Unfollow удаляет подписку.
func (p *Postgres) Unfollow(ctx context.Context, followerID, followeeID uuid.UUID) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM follows WHERE follower_id=$1 AND following_id=$2`, followerID, followeeID)
	metrics.ObserveNetworkRequest("postgres", "follows_delete", "follows", start, err)
	return err
}

// CountFollowers считает подписчиков авторов.
func (p *Postgres) CountFollowers(ctx context.Context, authorIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	return p.countBy(ctx, "follows_count", "follows", `
SELECT following_id, count(*) FROM follows WHERE following_id = ANY($1) GROUP BY following_id
`, authorIDs)
}

// ListItemsByAuthors возвращает свежие рецепты указанных авторов.
func (p *Postgres) ListItemsByAuthors(ctx context.Context, authorIDs []uuid.UUID, limit int) ([]domain.ContentItem, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}
	return p.queryItems(ctx, "recipes_list_by_authors", `
SELECT id, user_id, created_at, title, COALESCE(description,''), COALESCE(image_url,''), COALESCE(tags,'{}')
FROM recipes WHERE user_id = ANY($1)
ORDER BY created_at DESC
LIMIT $2
`, authorIDs, limit)
}

// ListRecentItems возвращает самые свежие рецепты платформы без рецептов авторов из exclude.
func (p *Postgres) ListRecentItems(ctx context.Context, exclude []uuid.UUID, limit int) ([]domain.ContentItem, error) {
	if exclude == nil {
		exclude = []uuid.UUID{}
	}
	return p.queryItems(ctx, "recipes_list_recent", `
SELECT id, user_id, created_at, title, COALESCE(description,''), COALESCE(image_url,''), COALESCE(tags,'{}')
FROM recipes
WHERE user_id <> ALL($1)
ORDER BY created_at DESC
LIMIT $2
`, exclude, limit)
}

func (p *Postgres) queryItems(ctx context.Context, op, query string, args ...any) ([]domain.ContentItem, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", op, "recipes", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.ContentItem
	for rows.Next() {
		var item domain.ContentItem
		if err := rows.Scan(&item.ID, &item.AuthorID, &item.CreatedAt, &item.Title, &item.Description, &item.ImageURL, &item.Tags); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListOwnItemTitles возвращает названия рецептов пользователя.
func (p *Postgres) ListOwnItemTitles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT title FROM recipes WHERE user_id=$1`, userID)
	metrics.ObserveNetworkRequest("postgres", "recipes_list_titles", "recipes", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

// CountItemsByAuthors считает рецепты авторов.
func (p *Postgres) CountItemsByAuthors(ctx context.Context, authorIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	return p.countBy(ctx, "recipes_count", "recipes", `
SELECT user_id, count(*) FROM recipes WHERE user_id = ANY($1) GROUP BY user_id
`, authorIDs)
}

// ItemExists проверяет наличие рецепта.
func (p *Postgres) ItemExists(ctx context.Context, itemID uuid.UUID) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM recipes WHERE id=$1)`, itemID).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "recipes_exists", "recipes", start, err)
	return exists, err
}

// ListFavoriteEvents возвращает добавления в избранное для рецептов.
func (p *Postgres) ListFavoriteEvents(ctx context.Context, itemIDs []uuid.UUID) ([]domain.FavoriteEvent, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT user_id, recipe_id, created_at FROM favorites WHERE recipe_id = ANY($1)
`, itemIDs)
	metrics.ObserveNetworkRequest("postgres", "favorites_list_events", "favorites", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []domain.FavoriteEvent
	for rows.Next() {
		var ev domain.FavoriteEvent
		if err := rows.Scan(&ev.UserID, &ev.ItemID, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListUserFavorites возвращает рецепты из itemIDs, которые пользователь добавил в избранное.
func (p *Postgres) ListUserFavorites(ctx context.Context, userID uuid.UUID, itemIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT recipe_id FROM favorites WHERE user_id=$1 AND recipe_id = ANY($2)
`, userID, itemIDs)
	metrics.ObserveNetworkRequest("postgres", "favorites_list_user", "favorites", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddFavorite добавляет рецепт в избранное. Возвращает false, если он уже там.
func (p *Postgres) AddFavorite(ctx context.Context, userID, itemID uuid.UUID) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
INSERT INTO favorites (user_id, recipe_id)
VALUES ($1,$2)
ON CONFLICT (user_id, recipe_id) DO NOTHING
`, userID, itemID)
	metrics.ObserveNetworkRequest("postgres", "favorites_insert", "favorites", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveFavorite удаляет рецепт из избранного.
func (p *Postgres) RemoveFavorite(ctx context.Context, userID, itemID uuid.UUID) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM favorites WHERE user_id=$1 AND recipe_id=$2`, userID, itemID)
	metrics.ObserveNetworkRequest("postgres", "favorites_delete", "favorites", start, err)
	return err
}

// GetAuthorProfiles возвращает профили авторов. Отсутствующие профили пропускаются.
func (p *Postgres) GetAuthorProfiles(ctx context.Context, authorIDs []uuid.UUID) ([]domain.AuthorProfile, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}
	return p.queryProfiles(ctx, "profiles_get", `
SELECT id, COALESCE(display_name,''), COALESCE(username,''), COALESCE(avatar_url,'')
FROM profiles WHERE id = ANY($1)
`, authorIDs)
}

// ListProfilesExcept возвращает профили, кроме перечисленных, начиная с самых популярных.
func (p *Postgres) ListProfilesExcept(ctx context.Context, exclude []uuid.UUID, limit int) ([]domain.AuthorProfile, error) {
	if exclude == nil {
		exclude = []uuid.UUID{}
	}
	return p.queryProfiles(ctx, "profiles_list_except", `
SELECT p.id, COALESCE(p.display_name,''), COALESCE(p.username,''), COALESCE(p.avatar_url,'')
FROM profiles p LEFT JOIN follows f ON f.following_id = p.id
WHERE NOT (p.id = ANY($1))
GROUP BY p.id
ORDER BY count(f.follower_id) DESC, p.username
LIMIT $2
`, exclude, limit)
}

func (p *Postgres) queryProfiles(ctx context.Context, op, query string, args ...any) ([]domain.AuthorProfile, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", op, "profiles", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var profiles []domain.AuthorProfile
	for rows.Next() {
		var profile domain.AuthorProfile
		if err := rows.Scan(&profile.ID, &profile.DisplayName, &profile.Handle, &profile.AvatarURL); err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

func (p *Postgres) countBy(ctx context.Context, op, table, query string, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, ids)
	metrics.ObserveNetworkRequest("postgres", op, table, start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id    uuid.UUID
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}
