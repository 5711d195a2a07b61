package repo

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"recipe-feed/internal/domain"
)

// CachedProfiles кэширует профили авторов поверх другого ProfileRepo.
// Ошибки кэша не прерывают чтение: профили дочитываются из основного хранилища.
type CachedProfiles struct {
	domain.ProfileRepo
	cache domain.Cache
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCachedProfiles создаёт декоратор.
func NewCachedProfiles(inner domain.ProfileRepo, cache domain.Cache, ttl time.Duration, logger zerolog.Logger) *CachedProfiles {
	return &CachedProfiles{ProfileRepo: inner, cache: cache, ttl: ttl, log: logger}
}

func profileKey(id uuid.UUID) string {
	return "profile:" + id.String()
}

// GetAuthorProfiles возвращает профили из кэша, недостающие читает из основного хранилища.
// Кэш читается одним запросом на всю страницу.
func (c *CachedProfiles) GetAuthorProfiles(ctx context.Context, authorIDs []uuid.UUID) ([]domain.AuthorProfile, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(authorIDs))
	for i, id := range authorIDs {
		keys[i] = profileKey(id)
	}
	cached, err := c.cache.GetMany(ctx, keys)
	if err != nil {
		c.log.Warn().Err(err).Int("keys", len(keys)).Msg("profiles: ошибка чтения кэша")
		cached = nil
	}

	profiles := make([]domain.AuthorProfile, 0, len(authorIDs))
	var misses []uuid.UUID
	for i, id := range authorIDs {
		if i >= len(cached) || cached[i] == nil {
			misses = append(misses, id)
			continue
		}
		var profile domain.AuthorProfile
		if err := json.Unmarshal(cached[i], &profile); err != nil {
			misses = append(misses, id)
			continue
		}
		profiles = append(profiles, profile)
	}
	if len(misses) == 0 {
		return profiles, nil
	}

	loaded, err := c.ProfileRepo.GetAuthorProfiles(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, profile := range loaded {
		if data, err := json.Marshal(profile); err == nil {
			if err := c.cache.Set(ctx, profileKey(profile.ID), data, c.ttl); err != nil {
				c.log.Warn().Err(err).Str("author_id", profile.ID.String()).Msg("profiles: ошибка записи кэша")
			}
		}
	}
	return append(profiles, loaded...), nil
}
