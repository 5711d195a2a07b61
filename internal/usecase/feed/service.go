package feed

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"recipe-feed/internal/adapters/ranker"
	"recipe-feed/internal/domain"
	"recipe-feed/internal/infra/metrics"
)

const (
	// DefaultLimit используется, если клиент не передал limit.
	DefaultLimit = 40
	// MaxLimit ограничивает размер страницы.
	MaxLimit = 100
)

// poolBound задаёт размер пула кандидатов: min(limit*factor, max).
type poolBound struct {
	factor int
	max    int
}

var poolBounds = map[domain.FeedType]poolBound{
	domain.FeedFollowing: {factor: 5, max: 500},
	domain.FeedForYou:    {factor: 10, max: 1000},
	domain.FeedTrending:  {factor: 10, max: 1000},
}

func (b poolBound) size(limit int) int {
	n := limit * b.factor
	if n > b.max {
		return b.max
	}
	return n
}

// Limits задаёт размер страницы по умолчанию и максимальный.
type Limits struct {
	Default int
	Max     int
}

// Service строит страницы лент.
type Service struct {
	follows    domain.FollowRepo
	items      domain.ItemRepo
	profiles   domain.ProfileRepo
	aggregator *Aggregator
	limits     Limits
	log        zerolog.Logger
	now        func() time.Time
}

var _ domain.FeedService = (*Service)(nil)

// NewService создаёт сервис лент.
func NewService(follows domain.FollowRepo, items domain.ItemRepo, favorites domain.FavoriteRepo, profiles domain.ProfileRepo, limits Limits, logger zerolog.Logger) *Service {
	if limits.Max <= 0 || limits.Max > MaxLimit {
		limits.Max = MaxLimit
	}
	if limits.Default <= 0 {
		limits.Default = DefaultLimit
	}
	if limits.Default > limits.Max {
		limits.Default = limits.Max
	}
	return &Service{
		follows:    follows,
		items:      items,
		profiles:   profiles,
		aggregator: NewAggregator(favorites),
		limits:     limits,
		log:        logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Feed возвращает страницу ленты. Любая ошибка хранилища прерывает запрос целиком.
func (s *Service) Feed(ctx context.Context, req domain.FeedRequest) (domain.FeedPage, error) {
	start := time.Now()
	page, err := s.build(ctx, req)
	metrics.ObserveFeedBuild(string(req.Type), start, err)
	if err != nil {
		return domain.FeedPage{}, err
	}
	return page, nil
}

func (s *Service) build(ctx context.Context, req domain.FeedRequest) (domain.FeedPage, error) {
	if req.CallerID == uuid.Nil {
		return domain.FeedPage{}, domain.InvalidInputf("caller id is required")
	}
	feedType, err := domain.ParseFeedType(string(req.Type))
	if err != nil {
		return domain.FeedPage{}, err
	}
	cfg, err := ranker.ConfigFor(feedType)
	if err != nil {
		return domain.FeedPage{}, err
	}
	if req.Offset < 0 {
		return domain.FeedPage{}, domain.InvalidInputf("offset must be non-negative")
	}
	limit := s.normalizeLimit(req.Limit)
	offset := req.Offset
	now := s.now()

	pool, err := s.loadPool(ctx, feedType, req.CallerID, poolBounds[feedType].size(limit))
	if err != nil {
		return domain.FeedPage{}, err
	}
	pool = ranker.DeduplicateByID(pool)
	metrics.ObserveFeedPool(string(feedType), len(pool))
	if len(pool) == 0 || offset >= len(pool) {
		return emptyPage(), nil
	}

	ids := make([]uuid.UUID, 0, len(pool))
	for _, item := range pool {
		ids = append(ids, item.ID)
	}
	snapshot, err := s.aggregator.Aggregate(ctx, ids, req.CallerID, now)
	if err != nil {
		return domain.FeedPage{}, err
	}

	// Лишняя позиция нужна только для вычисления has_more.
	res := ranker.Rank(cfg, pool, snapshot, now, offset+limit+1)
	metrics.AddFeedOverrides(string(feedType), res.Overrides)
	s.log.Debug().
		Stringer("ranker", cfg).
		Int("pool", res.PoolSize).
		Int("ranked", len(res.Items)).
		Int("overrides", res.Overrides).
		Int("limit", limit).
		Int("offset", offset).
		Msg("feed: ранжирование завершено")

	window := pageWindow(res.Items, offset, limit)
	items, err := s.enrich(ctx, req.CallerID, window, snapshot)
	if err != nil {
		return domain.FeedPage{}, err
	}

	page := domain.FeedPage{Items: items, HasMore: len(res.Items) > offset+limit}
	if len(items) == limit {
		next := offset + limit
		page.NextOffset = &next
	}
	return page, nil
}

func (s *Service) normalizeLimit(limit int) int {
	if limit <= 0 {
		return s.limits.Default
	}
	if limit > s.limits.Max {
		return s.limits.Max
	}
	return limit
}

func (s *Service) loadPool(ctx context.Context, feedType domain.FeedType, callerID uuid.UUID, size int) ([]domain.ContentItem, error) {
	switch feedType {
	case domain.FeedFollowing:
		followees, err := s.follows.ListFollowees(ctx, callerID)
		if err != nil {
			return nil, domain.Upstream("список подписок", err)
		}
		if len(followees) == 0 {
			return nil, nil
		}
		items, err := s.items.ListItemsByAuthors(ctx, followees, size)
		if err != nil {
			return nil, domain.Upstream("рецепты подписок", err)
		}
		return items, nil
	case domain.FeedForYou:
		followees, err := s.follows.ListFollowees(ctx, callerID)
		if err != nil {
			return nil, domain.Upstream("список подписок", err)
		}
		exclude := append([]uuid.UUID{callerID}, followees...)
		items, err := s.items.ListRecentItems(ctx, exclude, size)
		if err != nil {
			return nil, domain.Upstream("новые рецепты", err)
		}
		return items, nil
	case domain.FeedTrending:
		items, err := s.items.ListRecentItems(ctx, nil, size)
		if err != nil {
			return nil, domain.Upstream("новые рецепты", err)
		}
		return items, nil
	default:
		return nil, domain.InvalidInputf("unknown feed type %q", string(feedType))
	}
}

// enrich добавляет к рецептам автора и отметки пользователя. Профили и собственные
// рецепты пользователя читаются параллельно.
func (s *Service) enrich(ctx context.Context, callerID uuid.UUID, window []domain.ScoredCandidate, snapshot domain.EngagementSnapshot) ([]domain.FeedItem, error) {
	out := make([]domain.FeedItem, 0, len(window))
	if len(window) == 0 {
		return out, nil
	}

	authorIDs := make([]uuid.UUID, 0, len(window))
	seen := make(map[uuid.UUID]struct{}, len(window))
	for _, c := range window {
		if _, ok := seen[c.Item.AuthorID]; ok {
			continue
		}
		seen[c.Item.AuthorID] = struct{}{}
		authorIDs = append(authorIDs, c.Item.AuthorID)
	}

	var (
		profiles []domain.AuthorProfile
		titles   []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profiles, err = s.profiles.GetAuthorProfiles(gctx, authorIDs)
		return domain.Upstream("профили авторов", err)
	})
	g.Go(func() error {
		var err error
		titles, err = s.items.ListOwnItemTitles(gctx, callerID)
		return domain.Upstream("рецепты пользователя", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]domain.AuthorProfile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	saved := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		if key := titleKey(title); key != "" {
			saved[key] = struct{}{}
		}
	}

	for _, c := range window {
		item := c.Item
		stats := snapshot.Get(item.ID)
		fi := domain.FeedItem{
			ID:            item.ID,
			AuthorID:      item.AuthorID,
			CreatedAt:     item.CreatedAt,
			Title:         item.Title,
			Description:   item.Description,
			ImageURL:      item.ImageURL,
			Tags:          item.Tags,
			IsFavorited:   stats.FavoritedByCaller,
			FavoriteCount: stats.Total,
		}
		if fi.Tags == nil {
			fi.Tags = []string{}
		}
		if p, ok := byID[item.AuthorID]; ok {
			profile := p
			fi.Author = &profile
		}
		if key := titleKey(item.Title); key != "" {
			_, fi.IsSaved = saved[key]
		}
		out = append(out, fi)
	}
	return out, nil
}

func pageWindow(items []domain.ScoredCandidate, offset, limit int) []domain.ScoredCandidate {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// titleKey нормализует название для приблизительного определения сохранённых копий.
func titleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func emptyPage() domain.FeedPage {
	return domain.FeedPage{Items: []domain.FeedItem{}}
}
