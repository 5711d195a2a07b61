package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"recipe-feed/internal/domain"
	httpinfra "recipe-feed/internal/infra/http"
)

// SocialService описывает действия пользователя с подписками и избранным.
type SocialService interface {
	Follow(ctx context.Context, callerID, authorID uuid.UUID) error
	Unfollow(ctx context.Context, callerID, authorID uuid.UUID) error
	Favorite(ctx context.Context, callerID, itemID uuid.UUID) error
	Unfavorite(ctx context.Context, callerID, itemID uuid.UUID) error
	SuggestAuthors(ctx context.Context, callerID uuid.UUID, limit int) ([]domain.AuthorSuggestion, error)
}

// Pinger проверяет доступность зависимости.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler обслуживает HTTP API ленты.
type Handler struct {
	feed     domain.FeedService
	social   SocialService
	checks   map[string]Pinger
	validate *validator.Validate
}

// NewHandler создаёт обработчики.
func NewHandler(feed domain.FeedService, social SocialService, checks map[string]Pinger) *Handler {
	return &Handler{feed: feed, social: social, checks: checks, validate: validator.New()}
}

// Mount регистрирует маршруты. auth применяется ко всем маршрутам, кроме /healthz.
func (h *Handler) Mount(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Get("/healthz", h.health)
	r.Group(func(protected chi.Router) {
		protected.Use(auth)
		protected.Get("/api/v1/feed", h.getFeed)
		protected.Post("/api/v1/follows/{authorID}", h.follow)
		protected.Delete("/api/v1/follows/{authorID}", h.unfollow)
		protected.Post("/api/v1/recipes/{id}/favorite", h.favorite)
		protected.Delete("/api/v1/recipes/{id}/favorite", h.unfavorite)
		protected.Get("/api/v1/authors/suggestions", h.suggestions)
	})
}

type feedQuery struct {
	Type   string `validate:"required"`
	Limit  int
	Offset int `validate:"min=0"`
}

func (h *Handler) getFeed(w http.ResponseWriter, r *http.Request) {
	callerID, ok := httpinfra.CallerID(r.Context())
	if !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, httpinfra.ErrUnauthorized)
		return
	}
	q := r.URL.Query()
	query := feedQuery{Type: q.Get("type")}
	var err error
	if query.Limit, err = intParam(q.Get("limit")); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, domain.InvalidInputf("limit must be an integer"))
		return
	}
	if query.Offset, err = intParam(q.Get("offset")); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, domain.InvalidInputf("offset must be an integer"))
		return
	}
	if err := h.validate.Struct(query); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, domain.InvalidInputf("%s", validationMessage(err)))
		return
	}
	feedType, err := domain.ParseFeedType(query.Type)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	page, err := h.feed.Feed(r.Context(), domain.FeedRequest{
		CallerID: callerID,
		Type:     feedType,
		Limit:    query.Limit,
		Offset:   query.Offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) follow(w http.ResponseWriter, r *http.Request) {
	h.socialAction(w, r, "authorID", h.social.Follow)
}

func (h *Handler) unfollow(w http.ResponseWriter, r *http.Request) {
	h.socialAction(w, r, "authorID", h.social.Unfollow)
}

func (h *Handler) favorite(w http.ResponseWriter, r *http.Request) {
	h.socialAction(w, r, "id", h.social.Favorite)
}

func (h *Handler) unfavorite(w http.ResponseWriter, r *http.Request) {
	h.socialAction(w, r, "id", h.social.Unfavorite)
}

func (h *Handler) socialAction(w http.ResponseWriter, r *http.Request, param string, action func(context.Context, uuid.UUID, uuid.UUID) error) {
	callerID, ok := httpinfra.CallerID(r.Context())
	if !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, httpinfra.ErrUnauthorized)
		return
	}
	targetID, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, domain.InvalidInputf("%s must be a uuid", param))
		return
	}
	if err := action(r.Context(), callerID, targetID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) suggestions(w http.ResponseWriter, r *http.Request) {
	callerID, ok := httpinfra.CallerID(r.Context())
	if !ok {
		httpinfra.WriteError(w, http.StatusUnauthorized, httpinfra.ErrUnauthorized)
		return
	}
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, domain.InvalidInputf("limit must be an integer"))
		return
	}
	authors, err := h.social.SuggestAuthors(r.Context(), callerID, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"authors": authors})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{}
	code := http.StatusOK
	for name, check := range h.checks {
		if err := check.Ping(r.Context()); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("dependency", name).Msg("healthz: зависимость недоступна")
			status[name] = "down"
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	httpinfra.WriteJSON(w, code, status)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		httpinfra.WriteError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrNotFound):
		httpinfra.WriteError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrUpstream):
		hlog.FromRequest(r).Error().Err(err).Msg("api: ошибка хранилища")
		httpinfra.WriteError(w, http.StatusBadGateway, err)
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("api: внутренняя ошибка")
		httpinfra.WriteError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	field := strings.ToLower(verrs[0].Field())
	switch verrs[0].Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be non-negative"
	}
	return field + " is invalid"
}
