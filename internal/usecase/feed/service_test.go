package feed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"recipe-feed/internal/domain"
)

var (
	fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	caller   = uuid.NewMD5(uuid.NameSpaceOID, []byte("caller"))
)

func author(name string) uuid.UUID {
	return uuid.NewMD5(uuid.NameSpaceOID, []byte("author-"+name))
}

func newTestService(store *stubStore) *Service {
	svc := NewService(store, store, store, store, Limits{}, zerolog.Nop())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestFeedFollowingWithoutFolloweesSkipsPool(t *testing.T) {
	store := newStubStore()
	store.addItem(author("a"), "борщ", fixedNow)
	svc := newTestService(store)

	page, err := svc.Feed(context.Background(), domain.FeedRequest{CallerID: caller, Type: domain.FeedFollowing})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if page.Items == nil || len(page.Items) != 0 {
		t.Fatalf("ожидали пустой список (не nil), получили %#v", page.Items)
	}
	if page.HasMore || page.NextOffset != nil {
		t.Fatalf("ожидали has_more=false и next_offset=null")
	}
	if n := store.callCount("ListItemsByAuthors"); n != 0 {
		t.Fatalf("пул не должен запрашиваться, получили %d вызовов", n)
	}
	if n := store.callCount("ListFavoriteEvents"); n != 0 {
		t.Fatalf("агрегация не должна запускаться, получили %d вызовов", n)
	}
}

func TestFeedRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		req  domain.FeedRequest
	}{
		{name: "unknown type", req: domain.FeedRequest{CallerID: caller, Type: "popular"}},
		{name: "missing type", req: domain.FeedRequest{CallerID: caller}},
		{name: "missing caller", req: domain.FeedRequest{Type: domain.FeedTrending}},
		{name: "negative offset", req: domain.FeedRequest{CallerID: caller, Type: domain.FeedTrending, Offset: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStubStore()
			svc := newTestService(store)
			_, err := svc.Feed(context.Background(), tt.req)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("ожидали ErrInvalidInput, получили %v", err)
			}
			if n := store.callCount("ListRecentItems"); n != 0 {
				t.Fatalf("при ошибке валидации хранилище не должно читаться")
			}
		})
	}
}

func TestFeedPoolBounds(t *testing.T) {
	tests := []struct {
		name     string
		feed     domain.FeedType
		limit    int
		method   string
		wantPool int
	}{
		{name: "trending default limit", feed: domain.FeedTrending, limit: 0, method: "ListRecentItems", wantPool: 400},
		{name: "trending clamped limit", feed: domain.FeedTrending, limit: 500, method: "ListRecentItems", wantPool: 1000},
		{name: "for you small limit", feed: domain.FeedForYou, limit: 7, method: "ListRecentItems", wantPool: 70},
		{name: "following default limit", feed: domain.FeedFollowing, limit: 0, method: "ListItemsByAuthors", wantPool: 200},
		{name: "following clamped limit", feed: domain.FeedFollowing, limit: 150, method: "ListItemsByAuthors", wantPool: 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStubStore()
			store.follows[caller] = []uuid.UUID{author("a")}
			svc := newTestService(store)
			if _, err := svc.Feed(context.Background(), domain.FeedRequest{CallerID: caller, Type: tt.feed, Limit: tt.limit}); err != nil {
				t.Fatalf("не ожидали ошибку: %v", err)
			}
			if got := store.limits[tt.method]; got != tt.wantPool {
				t.Fatalf("ожидали размер пула %d, получили %d", tt.wantPool, got)
			}
		})
	}
}

func TestFeedForYouExcludesOwnCircle(t *testing.T) {
	store := newStubStore()
	followed := author("followed")
	stranger := author("stranger")
	store.follows[caller] = []uuid.UUID{followed}
	store.addItem(caller, "мой рецепт", fixedNow.Add(-time.Hour))
	store.addItem(followed, "рецепт подписки", fixedNow.Add(-2*time.Hour))
	want := store.addItem(stranger, "чужой рецепт", fixedNow.Add(-3*time.Hour))
	svc := newTestService(store)

	page, err := svc.Feed(context.Background(), domain.FeedRequest{CallerID: caller, Type: domain.FeedForYou, Limit: 10})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != want.ID {
		t.Fatalf("ожидали только рецепт незнакомого автора, получили %+v", page.Items)
	}
}

func TestFeedForYouExclusionKeepsPoolFull(t *testing.T) {
	store := newStubStore()
	prolific := author("prolific")
	store.follows[caller] = []uuid.UUID{prolific}
	for i := 0; i < 40; i++ {
		store.addItem(prolific, fmt.Sprintf("свежий %d", i), fixedNow.Add(-time.Duration(i)*time.Second))
	}
	seedTrending(store, 30)
	for i := range store.items {
		if store.items[i].AuthorID != prolific {
			store.items[i].CreatedAt = store.items[i].CreatedAt.Add(-time.Hour)
		}
	}
	svc := newTestService(store)

	page, err := svc.Feed(context.Background(), domain.FeedRequest{CallerID: caller, Type: domain.FeedForYou, Limit: 3})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(page.Items) != 3 || !page.HasMore {
		t.Fatalf("ожидали полную страницу с продолжением, получили %d has_more=%v", len(page.Items), page.HasMore)
	}
	for _, item := range page.Items {
		if item.AuthorID == prolific {
			t.Fatalf("рецепт подписки попал в for_you")
		}
	}
}

func TestFeedOffsetBeyondPool(t *testing.T) {
	for _, offset := range []int{5, 6, math.MaxInt - 5} {
		store := newStubStore()
		seedTrending(store, 5)
		svc := newTestService(store)
		page, err := svc.Feed(context.Background(), domain.FeedRequest{CallerID: caller, Type: domain.FeedTrending, Limit: 10, Offset: offset})
		if err != nil {
			t.Fatalf("offset %d: не ожидали ошибку: %v", offset, err)
		}
		if page.Items == nil || len(page.Items) != 0 || page.HasMore || page.NextOffset != nil {
			t.Fatalf("offset %d: ожидали пустую последнюю страницу, получили %d has_more=%v", offset, len(page.Items), page.HasMore)
		}
	}
}

func TestFeedForYouHardAuthorCap(t *testing.T) {
	store := newStubStore()
	prolific := author("prolific")
	for i := 0; i < 10; i++ {
		item := store.addItem(prolific, fmt.Sprintf("рецепт %d", i), fixedNow.Add(-time.Duration(i)*time.Minute))
		for j := 0; j < 100; j++ {
			store.favorite(uuid.New(), item.ID, fixedNow.Add(-time.Hour))
		}
	}
	store.addItem(author("other"), "другой", fixedNow.Add(-48*time.Hour))
	svc := newTestService(store)

	page, err := svc.Feed(context.Background(), domain.FeedRequest{CallerID: caller, Type: domain.FeedForYou, Limit: 10})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	count := 0
	for _, item := range page.Items {
		if item.AuthorID == prolific {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("ожидали не больше 2 рецептов одного автора, получили %d", count)
	}
	if len(page.Items) != 3 {
		t.Fatalf("ожидали 3 рецепта, получили %d", len(page.Items))
	}
}

func TestFeedFollowingAuthorCapWithOverride(t *testing.T) {
	store := newStubStore()
	star := author("star")
	store.follows[caller] = []uuid.UUID{star}
	for i := 0; i < 5; i++ {
		store.addItem(star, fmt.Sprintf("звезда %d", i), fixedNow.Add(-time.Duration(i)*time.Hour))
	}
	for i := 0; i < 25; i++ {
		a := author(fmt.Sprintf("a%d", i))
		store.follows[caller] = append(store.follows[caller], a)
		store.addItem(a, fmt.Sprintf("обычный %d", i), fixedNow.Add(-time.Duration(24+i)*time.Hour))
	}
	svc := newTestService(store)

	page, err := svc.Feed(context.Background(), domain.FeedRequest{CallerID: caller, Type: domain.FeedFollowing, Limit: 30})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	count := 0
	for _, item := range page.Items {
		if item.AuthorID == star {
			count++
		}
		if item.Title == "звезда 4" {
			t.Fatalf("пятый рецепт автора ниже порога и не должен проходить")
		}
	}
	// Пул из 30 рецептов: порог равен скору на позиции 3, то есть четвёртому рецепту
	// звезды, поэтому он проходит сверх лимита 3.
	if count != 4 {
		t.Fatalf("ожидали 4 рецепта автора, получили %d", count)
	}
	if len(page.Items) != 29 {
		t.Fatalf("ожидали 29 рецептов, получили %d", len(page.Items))
	}
	if page.HasMore || page.NextOffset != nil {
		t.Fatalf("пул исчерпан: ожидали has_more=false и next_offset=null")
	}
}

func seedTrending(store *stubStore, n int) {
	for i := 0; i < n; i++ {
		store.addItem(author(fmt.Sprintf("t%d", i)), fmt.Sprintf("тренд %d", i), fixedNow.Add(-time.Duration(i)*time.Minute))
	}
}

func TestFeedPaginationConsistency(t *testing.T) {
	store := newStubStore()
	seedTrending(store, 30)
	svc := newTestService(store)
	ctx := context.Background()

	full, err := svc.Feed(ctx, domain.FeedRequest{CallerID: caller, Type: domain.FeedTrending, Limit: 20})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	first, err := svc.Feed(ctx, domain.FeedRequest{CallerID: caller, Type: domain.FeedTrending, Limit: 10})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	second, err := svc.Feed(ctx, domain.FeedRequest{CallerID: caller, Type: domain.FeedTrending, Limit: 10, Offset: 10})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if !first.HasMore || first.NextOffset == nil || *first.NextOffset != 10 {
		t.Fatalf("первая страница: ожидали has_more и next_offset=10")
	}
	combined := append(append([]domain.FeedItem{}, first.Items...), second.Items...)
	if len(combined) != len(full.Items) {
		t.Fatalf("ожидали %d рецептов, получили %d", len(full.Items), len(combined))
	}
	seen := map[uuid.UUID]bool{}
	for i := range combined {
		if combined[i].ID != full.Items[i].ID {
			t.Fatalf("позиция %d расходится с полной выдачей", i)
		}
		if seen[combined[i].ID] {
			t.Fatalf("дубликат %s", combined[i].ID)
		}
		seen[combined[i].ID] = true
	}
}

func TestFeedIsIdempotent(t *testing.T) {
	store := newStubStore()
	seedTrending(store, 25)
	store.favorite(caller, store.items[3].ID, fixedNow.Add(-time.Hour))
	svc := newTestService(store)
	req := domain.FeedRequest{CallerID: caller, Type: domain.FeedTrending, Limit: 10, Offset: 5}

	first, err := svc.Feed(context.Background(), req)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	second, err := svc.Feed(context.Background(), req)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("повторный запрос должен вернуть ту же страницу")
	}
}

func TestFeedHasMoreAndNextOffset(t *testing.T) {
	tests := []struct {
		name        string
		items       int
		limit       int
		offset      int
		wantLen     int
		wantHasMore bool
		wantNext    *int
	}{
		{name: "short pool", items: 5, limit: 10, wantLen: 5},
		{name: "exact pool", items: 10, limit: 10, wantLen: 10, wantNext: intPtr(10)},
		{name: "more available", items: 11, limit: 10, wantLen: 10, wantHasMore: true, wantNext: intPtr(10)},
		{name: "offset beyond pool", items: 5, limit: 10, offset: 20, wantLen: 0},
		{name: "last partial page", items: 15, limit: 10, offset: 10, wantLen: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStubStore()
			seedTrending(store, tt.items)
			svc := newTestService(store)
			page, err := svc.Feed(context.Background(), domain.FeedRequest{CallerID: caller, Type: domain.FeedTrending, Limit: tt.limit, Offset: tt.offset})
			if err != nil {
				t.Fatalf("не ожидали ошибку: %v", err)
			}
			if len(page.Items) != tt.wantLen {
				t.Fatalf("ожидали %d рецептов, получили %d", tt.wantLen, len(page.Items))
			}
			if page.HasMore != tt.wantHasMore {
				t.Fatalf("has_more = %v, want %v", page.HasMore, tt.wantHasMore)
			}
			if (page.NextOffset == nil) != (tt.wantNext == nil) || (page.NextOffset != nil && *page.NextOffset != *tt.wantNext) {
				t.Fatalf("next_offset = %v, want %v", page.NextOffset, tt.wantNext)
			}
		})
	}
}

func TestFeedEnrichment(t *testing.T) {
	store := newStubStore()
	chef := author("chef")
	store.profiles[chef] = domain.AuthorProfile{ID: chef, DisplayName: "Шеф", Handle: "chef"}
	soup := store.addItem(chef, "Борщ", fixedNow.Add(-time.Hour))
	pie := store.addItem(author("anon"), "Пирог", fixedNow.Add(-2*time.Hour))
	store.addItem(caller, "  борщ ", fixedNow.Add(-72*time.Hour))
	store.favorite(caller, soup.ID, fixedNow.Add(-30*time.Minute))
	store.favorite(uuid.New(), soup.ID, fixedNow.Add(-48*time.Hour))
	svc := newTestService(store)

	page, err := svc.Feed(context.Background(), domain.FeedRequest{CallerID: caller, Type: domain.FeedForYou, Limit: 10})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	byID := map[uuid.UUID]domain.FeedItem{}
	for _, item := range page.Items {
		byID[item.ID] = item
	}
	got, ok := byID[soup.ID]
	if !ok {
		t.Fatalf("борщ должен быть в ленте")
	}
	if got.Author == nil || got.Author.Handle != "chef" {
		t.Fatalf("ожидали профиль автора, получили %+v", got.Author)
	}
	if !got.IsFavorited || got.FavoriteCount != 2 || !got.IsSaved {
		t.Fatalf("неверные отметки: %+v", got)
	}
	other := byID[pie.ID]
	if other.Author != nil || other.IsFavorited || other.IsSaved || other.FavoriteCount != 0 {
		t.Fatalf("у пирога не должно быть отметок: %+v", other)
	}
	if other.Tags == nil {
		t.Fatalf("теги должны сериализоваться как пустой массив")
	}
}

func TestFeedFailsWholeRequestOnUpstreamError(t *testing.T) {
	for _, method := range []string{"ListRecentItems", "ListFavoriteEvents", "ListUserFavorites", "GetAuthorProfiles", "ListOwnItemTitles", "ListFollowees"} {
		t.Run(method, func(t *testing.T) {
			store := newStubStore()
			seedTrending(store, 5)
			store.failOn[method] = errors.New("connection refused")
			svc := newTestService(store)
			feedType := domain.FeedTrending
			if method == "ListFollowees" {
				feedType = domain.FeedForYou
			}
			page, err := svc.Feed(context.Background(), domain.FeedRequest{CallerID: caller, Type: feedType, Limit: 10})
			if !errors.Is(err, domain.ErrUpstream) {
				t.Fatalf("ожидали ErrUpstream, получили %v", err)
			}
			if page.Items != nil {
				t.Fatalf("при ошибке не должно быть частичной страницы")
			}
		})
	}
}

func intPtr(v int) *int {
	return &v
}
