package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"recipe-feed/internal/domain"
)

// stubStore хранит данные в памяти и считает вызовы. Методы вызываются параллельно.
type stubStore struct {
	mu        sync.Mutex
	items     []domain.ContentItem
	favorites []domain.FavoriteEvent
	follows   map[uuid.UUID][]uuid.UUID
	profiles  map[uuid.UUID]domain.AuthorProfile

	failOn map[string]error
	calls  map[string]int
	limits map[string]int
}

func newStubStore() *stubStore {
	return &stubStore{
		follows:  map[uuid.UUID][]uuid.UUID{},
		profiles: map[uuid.UUID]domain.AuthorProfile{},
		failOn:   map[string]error{},
		calls:    map[string]int{},
		limits:   map[string]int{},
	}
}

func (s *stubStore) hit(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
	return s.failOn[name]
}

func (s *stubStore) callCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *stubStore) newestFirst(filter func(domain.ContentItem) bool, limit int) []domain.ContentItem {
	var out []domain.ContentItem
	for _, item := range s.items {
		if filter(item) {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *stubStore) ListFollowees(_ context.Context, followerID uuid.UUID) ([]uuid.UUID, error) {
	if err := s.hit("ListFollowees"); err != nil {
		return nil, err
	}
	return s.follows[followerID], nil
}

func (s *stubStore) Follow(context.Context, uuid.UUID, uuid.UUID) (bool, error) { return true, nil }
func (s *stubStore) Unfollow(context.Context, uuid.UUID, uuid.UUID) error        { return nil }
func (s *stubStore) CountFollowers(context.Context, []uuid.UUID) (map[uuid.UUID]int, error) {
	return nil, nil
}

func (s *stubStore) ListItemsByAuthors(_ context.Context, authorIDs []uuid.UUID, limit int) ([]domain.ContentItem, error) {
	if err := s.hit("ListItemsByAuthors"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.limits["ListItemsByAuthors"] = limit
	s.mu.Unlock()
	authors := map[uuid.UUID]bool{}
	for _, id := range authorIDs {
		authors[id] = true
	}
	return s.newestFirst(func(item domain.ContentItem) bool { return authors[item.AuthorID] }, limit), nil
}

func (s *stubStore) ListRecentItems(_ context.Context, exclude []uuid.UUID, limit int) ([]domain.ContentItem, error) {
	if err := s.hit("ListRecentItems"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.limits["ListRecentItems"] = limit
	s.mu.Unlock()
	skip := map[uuid.UUID]bool{}
	for _, id := range exclude {
		skip[id] = true
	}
	return s.newestFirst(func(item domain.ContentItem) bool { return !skip[item.AuthorID] }, limit), nil
}

func (s *stubStore) ListOwnItemTitles(_ context.Context, userID uuid.UUID) ([]string, error) {
	if err := s.hit("ListOwnItemTitles"); err != nil {
		return nil, err
	}
	var titles []string
	for _, item := range s.items {
		if item.AuthorID == userID {
			titles = append(titles, item.Title)
		}
	}
	return titles, nil
}

func (s *stubStore) CountItemsByAuthors(context.Context, []uuid.UUID) (map[uuid.UUID]int, error) {
	return nil, nil
}

func (s *stubStore) ItemExists(context.Context, uuid.UUID) (bool, error) { return true, nil }

func (s *stubStore) ListFavoriteEvents(_ context.Context, itemIDs []uuid.UUID) ([]domain.FavoriteEvent, error) {
	if err := s.hit("ListFavoriteEvents"); err != nil {
		return nil, err
	}
	wanted := map[uuid.UUID]bool{}
	for _, id := range itemIDs {
		wanted[id] = true
	}
	var out []domain.FavoriteEvent
	for _, ev := range s.favorites {
		if wanted[ev.ItemID] {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *stubStore) ListUserFavorites(_ context.Context, userID uuid.UUID, itemIDs []uuid.UUID) ([]uuid.UUID, error) {
	if err := s.hit("ListUserFavorites"); err != nil {
		return nil, err
	}
	wanted := map[uuid.UUID]bool{}
	for _, id := range itemIDs {
		wanted[id] = true
	}
	var out []uuid.UUID
	for _, ev := range s.favorites {
		if ev.UserID == userID && wanted[ev.ItemID] {
			out = append(out, ev.ItemID)
		}
	}
	return out, nil
}

func (s *stubStore) AddFavorite(context.Context, uuid.UUID, uuid.UUID) (bool, error) { return true, nil }
func (s *stubStore) RemoveFavorite(context.Context, uuid.UUID, uuid.UUID) error      { return nil }

func (s *stubStore) GetAuthorProfiles(_ context.Context, authorIDs []uuid.UUID) ([]domain.AuthorProfile, error) {
	if err := s.hit("GetAuthorProfiles"); err != nil {
		return nil, err
	}
	var out []domain.AuthorProfile
	for _, id := range authorIDs {
		if p, ok := s.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubStore) ListProfilesExcept(context.Context, []uuid.UUID, int) ([]domain.AuthorProfile, error) {
	return nil, nil
}

func (s *stubStore) addItem(author uuid.UUID, title string, createdAt time.Time) domain.ContentItem {
	item := domain.ContentItem{
		ID:        uuid.NewMD5(uuid.NameSpaceURL, []byte(title+createdAt.String())),
		AuthorID:  author,
		CreatedAt: createdAt,
		Title:     title,
	}
	s.items = append(s.items, item)
	return item
}

func (s *stubStore) favorite(user, item uuid.UUID, at time.Time) {
	s.favorites = append(s.favorites, domain.FavoriteEvent{UserID: user, ItemID: item, CreatedAt: at})
}
