package social

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"recipe-feed/internal/domain"
	"recipe-feed/internal/infra/metrics"
)

const (
	defaultSuggestions = 10
	maxSuggestions     = 50
	// suggestionOversample расширяет выборку кандидатов перед сортировкой по подписчикам.
	suggestionOversample = 3
)

// Service управляет подписками и избранным пользователя.
type Service struct {
	follows   domain.FollowRepo
	items     domain.ItemRepo
	favorites domain.FavoriteRepo
	profiles  domain.ProfileRepo
	analytics domain.BusinessMetricRepo
	log       zerolog.Logger
}

// NewService создаёт сервис.
func NewService(follows domain.FollowRepo, items domain.ItemRepo, favorites domain.FavoriteRepo, profiles domain.ProfileRepo, analytics domain.BusinessMetricRepo, logger zerolog.Logger) *Service {
	return &Service{follows: follows, items: items, favorites: favorites, profiles: profiles, analytics: analytics, log: logger}
}

// Follow подписывает пользователя на автора. Повторная подписка не считается ошибкой.
func (s *Service) Follow(ctx context.Context, callerID, authorID uuid.UUID) error {
	if err := requireIDs(callerID, authorID); err != nil {
		return err
	}
	if callerID == authorID {
		return domain.InvalidInputf("cannot follow yourself")
	}
	created, err := s.follows.Follow(ctx, callerID, authorID)
	if err != nil {
		return domain.Upstream("подписка", err)
	}
	if created {
		metrics.IncSocialAction("follow")
		s.record(ctx, domain.BusinessMetric{
			Event:    domain.BusinessMetricEventFollowed,
			UserID:   &callerID,
			Metadata: map[string]any{"author_id": authorID.String()},
		})
	}
	return nil
}

// Unfollow отменяет подписку.
func (s *Service) Unfollow(ctx context.Context, callerID, authorID uuid.UUID) error {
	if err := requireIDs(callerID, authorID); err != nil {
		return err
	}
	if err := s.follows.Unfollow(ctx, callerID, authorID); err != nil {
		return domain.Upstream("отписка", err)
	}
	metrics.IncSocialAction("unfollow")
	return nil
}

// Favorite добавляет рецепт в избранное.
func (s *Service) Favorite(ctx context.Context, callerID, itemID uuid.UUID) error {
	if err := requireIDs(callerID, itemID); err != nil {
		return err
	}
	exists, err := s.items.ItemExists(ctx, itemID)
	if err != nil {
		return domain.Upstream("проверка рецепта", err)
	}
	if !exists {
		return fmt.Errorf("рецепт %s: %w", itemID, domain.ErrNotFound)
	}
	created, err := s.favorites.AddFavorite(ctx, callerID, itemID)
	if err != nil {
		return domain.Upstream("добавление в избранное", err)
	}
	if created {
		metrics.IncSocialAction("favorite")
		s.record(ctx, domain.BusinessMetric{
			Event:  domain.BusinessMetricEventFavorited,
			UserID: &callerID,
			ItemID: &itemID,
		})
	}
	return nil
}

// Unfavorite удаляет рецепт из избранного.
func (s *Service) Unfavorite(ctx context.Context, callerID, itemID uuid.UUID) error {
	if err := requireIDs(callerID, itemID); err != nil {
		return err
	}
	if err := s.favorites.RemoveFavorite(ctx, callerID, itemID); err != nil {
		return domain.Upstream("удаление из избранного", err)
	}
	metrics.IncSocialAction("unfavorite")
	return nil
}

// SuggestAuthors возвращает авторов, на которых пользователь ещё не подписан, с числом
// подписчиков и рецептов. Счётчики читаются параллельно.
func (s *Service) SuggestAuthors(ctx context.Context, callerID uuid.UUID, limit int) ([]domain.AuthorSuggestion, error) {
	if callerID == uuid.Nil {
		return nil, domain.InvalidInputf("caller id is required")
	}
	if limit <= 0 {
		limit = defaultSuggestions
	}
	if limit > maxSuggestions {
		limit = maxSuggestions
	}

	followees, err := s.follows.ListFollowees(ctx, callerID)
	if err != nil {
		return nil, domain.Upstream("список подписок", err)
	}
	exclude := append([]uuid.UUID{callerID}, followees...)
	candidates, err := s.profiles.ListProfilesExcept(ctx, exclude, limit*suggestionOversample)
	if err != nil {
		return nil, domain.Upstream("профили авторов", err)
	}
	if len(candidates) == 0 {
		return []domain.AuthorSuggestion{}, nil
	}

	ids := make([]uuid.UUID, 0, len(candidates))
	for _, p := range candidates {
		ids = append(ids, p.ID)
	}
	var followers, recipes map[uuid.UUID]int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		followers, err = s.follows.CountFollowers(gctx, ids)
		return domain.Upstream("число подписчиков", err)
	})
	g.Go(func() error {
		var err error
		recipes, err = s.items.CountItemsByAuthors(gctx, ids)
		return domain.Upstream("число рецептов", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.AuthorSuggestion, 0, len(candidates))
	for _, p := range candidates {
		out = append(out, domain.AuthorSuggestion{Profile: p, Followers: followers[p.ID], RecipeCount: recipes[p.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Followers != b.Followers {
			return a.Followers > b.Followers
		}
		if a.RecipeCount != b.RecipeCount {
			return a.RecipeCount > b.RecipeCount
		}
		return a.Profile.Handle < b.Profile.Handle
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, metric domain.BusinessMetric) {
	if s.analytics == nil {
		return
	}
	if err := s.analytics.RecordBusinessMetric(ctx, metric); err != nil {
		s.log.Warn().Err(err).Str("event", metric.Event).Msg("social: не удалось сохранить бизнес-метрику")
	}
}

func requireIDs(callerID, targetID uuid.UUID) error {
	if callerID == uuid.Nil {
		return domain.InvalidInputf("caller id is required")
	}
	if targetID == uuid.Nil {
		return domain.InvalidInputf("target id is required")
	}
	return nil
}
