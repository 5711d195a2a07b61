package domain

import "strings"

// FeedType определяет вариант ленты.
type FeedType string

const (
	// FeedFollowing: рецепты авторов, на которых подписан пользователь.
	FeedFollowing FeedType = "following"
	// FeedForYou: рекомендации вне круга подписок.
	FeedForYou FeedType = "for_you"
	// FeedTrending: глобально набирающие популярность рецепты.
	FeedTrending FeedType = "trending"
)

// FeedTypes перечисляет поддерживаемые ленты.
var FeedTypes = []FeedType{FeedFollowing, FeedForYou, FeedTrending}

// ParseFeedType проверяет тип ленты. Значения по умолчанию нет.
func ParseFeedType(raw string) (FeedType, error) {
	value := FeedType(strings.TrimSpace(raw))
	switch value {
	case FeedFollowing, FeedForYou, FeedTrending:
		return value, nil
	case "":
		return "", InvalidInputf("type is required")
	default:
		return "", InvalidInputf("unknown feed type %q", raw)
	}
}

// String реализует fmt.Stringer.
func (t FeedType) String() string {
	return string(t)
}
