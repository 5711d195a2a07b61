package feed

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"recipe-feed/internal/domain"
)

// RecentWindow задаёт окно, в котором избранное считается свежим.
const RecentWindow = 24 * time.Hour

// Aggregator считает вовлечённость по набору рецептов.
type Aggregator struct {
	favorites domain.FavoriteRepo
}

// NewAggregator создаёт агрегатор.
func NewAggregator(favorites domain.FavoriteRepo) *Aggregator {
	return &Aggregator{favorites: favorites}
}

// Aggregate возвращает общее число добавлений в избранное, число добавлений за последние
// сутки и отметку избранного вызывающего пользователя. Оба чтения выполняются параллельно.
func (a *Aggregator) Aggregate(ctx context.Context, itemIDs []uuid.UUID, callerID uuid.UUID, now time.Time) (domain.EngagementSnapshot, error) {
	snapshot := make(domain.EngagementSnapshot, len(itemIDs))
	if len(itemIDs) == 0 {
		return snapshot, nil
	}

	var (
		events []domain.FavoriteEvent
		mine   []uuid.UUID
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = a.favorites.ListFavoriteEvents(gctx, itemIDs)
		return domain.Upstream("избранное рецептов", err)
	})
	g.Go(func() error {
		var err error
		mine, err = a.favorites.ListUserFavorites(gctx, callerID, itemIDs)
		return domain.Upstream("избранное пользователя", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	requested := make(map[uuid.UUID]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		requested[id] = struct{}{}
		snapshot[id] = domain.EngagementStats{}
	}
	since := now.Add(-RecentWindow)
	for _, ev := range events {
		if _, ok := requested[ev.ItemID]; !ok {
			continue
		}
		stats := snapshot[ev.ItemID]
		stats.Total++
		if !ev.CreatedAt.Before(since) {
			stats.Recent++
		}
		snapshot[ev.ItemID] = stats
	}
	for _, id := range mine {
		if _, ok := requested[id]; !ok {
			continue
		}
		stats := snapshot[id]
		stats.FavoritedByCaller = true
		snapshot[id] = stats
	}
	return snapshot, nil
}
