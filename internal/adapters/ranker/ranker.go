package ranker

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"recipe-feed/internal/domain"
)

// overridePercentile задаёт позицию порогового скора в отсортированном пуле.
const overridePercentile = 0.10

// Config описывает настройки ранжирования одной ленты.
type Config struct {
	Feed      domain.FeedType
	Scorer    Scorer
	AuthorCap int
	// Percentile включает допуск сверх лимита автора для рецептов со скором не ниже
	// скора на позиции floor(len(pool)*Percentile). 0 отключает допуск.
	Percentile float64
}

var configs = map[domain.FeedType]Config{
	domain.FeedFollowing: {Feed: domain.FeedFollowing, Scorer: Hot, AuthorCap: 3, Percentile: overridePercentile},
	domain.FeedForYou:    {Feed: domain.FeedForYou, Scorer: Discovery, AuthorCap: 2},
	domain.FeedTrending:  {Feed: domain.FeedTrending, Scorer: Trending, AuthorCap: 3, Percentile: overridePercentile},
}

// ConfigFor возвращает настройки ранжирования для ленты.
func ConfigFor(feed domain.FeedType) (Config, error) {
	cfg, ok := configs[feed]
	if !ok {
		return Config{}, domain.InvalidInputf("unknown feed type %q", string(feed))
	}
	return cfg, nil
}

// Result содержит итог ранжирования пула.
type Result struct {
	// Items содержит отобранные рецепты в порядке выдачи, не больше target.
	Items []domain.ScoredCandidate
	// Threshold задан, если лента допускает превышение лимита автора.
	Threshold *float64
	// Overrides считает рецепты, прошедшие сверх лимита автора.
	Overrides int
	PoolSize  int
}

// Rank оценивает пул, сортирует его и отбирает до target рецептов с учётом лимита на автора.
func Rank(cfg Config, pool []domain.ContentItem, snapshot domain.EngagementSnapshot, now time.Time, target int) Result {
	scored := ScoreAll(cfg.Scorer, pool, snapshot, now)
	SortCandidates(scored)

	res := Result{PoolSize: len(scored)}
	if cfg.Percentile > 0 {
		if threshold, ok := Threshold(scored, cfg.Percentile); ok {
			res.Threshold = &threshold
		}
	}
	res.Items, res.Overrides = Diversify(scored, cfg.AuthorCap, res.Threshold, target)
	return res
}

// ScoreAll применяет scorer ко всем рецептам пула.
func ScoreAll(scorer Scorer, pool []domain.ContentItem, snapshot domain.EngagementSnapshot, now time.Time) []domain.ScoredCandidate {
	out := make([]domain.ScoredCandidate, 0, len(pool))
	for _, item := range pool {
		out = append(out, domain.ScoredCandidate{Item: item, Score: scorer.Score(item, snapshot.Get(item.ID), now)})
	}
	return out
}

// SortCandidates упорядочивает по скору по убыванию; при равенстве сначала более
// новые рецепты, затем по возрастанию ID.
func SortCandidates(items []domain.ScoredCandidate) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Item.CreatedAt.Equal(b.Item.CreatedAt) {
			return a.Item.CreatedAt.After(b.Item.CreatedAt)
		}
		return a.Item.ID.String() < b.Item.ID.String()
	})
}

// Threshold возвращает скор на позиции floor(len(sorted)*percentile).
func Threshold(sorted []domain.ScoredCandidate, percentile float64) (float64, bool) {
	if len(sorted) == 0 || percentile < 0 || percentile >= 1 {
		return 0, false
	}
	idx := int(math.Floor(float64(len(sorted)) * percentile))
	return sorted[idx].Score, true
}

// Diversify проходит по отсортированному пулу один раз и отбирает рецепты, пока автор
// не превысил maxPerAuthor. Рецепты сверх лимита проходят только при заданном threshold
// и скоре не ниже него. Проход останавливается, как только набрано target рецептов.
func Diversify(sorted []domain.ScoredCandidate, maxPerAuthor int, threshold *float64, target int) ([]domain.ScoredCandidate, int) {
	if target <= 0 || len(sorted) == 0 {
		return nil, 0
	}
	capacity := target
	if capacity > len(sorted) {
		capacity = len(sorted)
	}
	accepted := make([]domain.ScoredCandidate, 0, capacity)
	perAuthor := make(map[uuid.UUID]int)
	overrides := 0
	for _, c := range sorted {
		if len(accepted) >= target {
			break
		}
		count := perAuthor[c.Item.AuthorID]
		if count >= maxPerAuthor {
			if threshold == nil || c.Score < *threshold {
				continue
			}
			overrides++
		}
		perAuthor[c.Item.AuthorID] = count + 1
		accepted = append(accepted, c)
	}
	return accepted, overrides
}

// DeduplicateByID удаляет повторы рецептов, сохраняя первое вхождение.
func DeduplicateByID(items []domain.ContentItem) []domain.ContentItem {
	seen := make(map[uuid.UUID]struct{}, len(items))
	out := make([]domain.ContentItem, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}

// String используется в логах.
func (c Config) String() string {
	return fmt.Sprintf("%s/%s cap=%d p=%.2f", c.Feed, c.Scorer.Name, c.AuthorCap, c.Percentile)
}
