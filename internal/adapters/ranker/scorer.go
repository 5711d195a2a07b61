package ranker

import (
	"math"
	"time"

	"recipe-feed/internal/domain"
)

// recencyDivisor переводит абсолютное время создания (секунды Unix) в слагаемое скора.
const recencyDivisor = 45000.0

// Scorer вычисляет скор рецепта: вес вовлечённости плюс слагаемое свежести.
type Scorer struct {
	Name   string
	Weight func(stats domain.EngagementStats) float64
	// Decay задаёт штраф за каждые 24 часа возраста.
	Decay float64
}

var (
	// Hot используется лентой подписок.
	Hot = Scorer{Name: "hot", Weight: hotWeight, Decay: 0.1}
	// Discovery используется лентой рекомендаций: вовлечённость приглушена в пользу свежести.
	Discovery = Scorer{Name: "discovery", Weight: discoveryWeight, Decay: 0.15}
	// Trending делает упор на избранное за последние сутки.
	Trending = Scorer{Name: "trending", Weight: trendingWeight, Decay: 0.2}
)

// Score оценивает рецепт. Чем больше значение, тем выше позиция.
func (s Scorer) Score(item domain.ContentItem, stats domain.EngagementStats, now time.Time) float64 {
	var weight float64
	if s.Weight != nil {
		weight = s.Weight(stats)
	}
	return weight + Recency(item.CreatedAt, now, s.Decay)
}

// Recency растёт вместе с абсолютным временем создания и убывает с возрастом рецепта.
// Из-за первого слагаемого скоры дрейфуют вверх с календарным временем; сравнивать
// имеет смысл только значения, посчитанные с одним now.
func Recency(createdAt, now time.Time, decay float64) float64 {
	epochSeconds := float64(createdAt.UnixMilli()) / 1000
	ageHours := now.Sub(createdAt).Hours()
	return epochSeconds/recencyDivisor - (ageHours/24)*decay
}

// Velocity возвращает долю избранного за последние сутки, 0 при отсутствии истории.
func Velocity(stats domain.EngagementStats) float64 {
	if stats.Total <= 0 {
		return 0
	}
	return float64(stats.Recent) / float64(stats.Total)
}

func dampedFavorites(total int) float64 {
	return math.Log10(float64(maxInt(total, 1)) + 1)
}

func hotWeight(stats domain.EngagementStats) float64 {
	return dampedFavorites(stats.Total)
}

func discoveryWeight(stats domain.EngagementStats) float64 {
	return 0.7 * dampedFavorites(stats.Total)
}

func trendingWeight(stats domain.EngagementStats) float64 {
	return 2*float64(stats.Recent) + 0.5*float64(stats.Total) + 10*Velocity(stats)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
