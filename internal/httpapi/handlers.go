package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/newsdesk/internal/cache"
	"horse.fit/newsdesk/internal/db"
	"horse.fit/newsdesk/internal/fetch"
	"horse.fit/newsdesk/internal/filter"
	"horse.fit/newsdesk/internal/globaltime"
	"horse.fit/newsdesk/internal/query"
)

type feedResponse struct {
	*db.ArticlePage
	Personalization query.Personalization `json:"personalization"`
}

type fetchResponse struct {
	Sources map[string]fetch.Outcome `json:"sources"`
	Totals  fetch.Totals             `json:"totals"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "newsdesk",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleArticles(c echo.Context) error {
	overrides, err := parseOverrides(c)
	if err != nil {
		return s.validationOrError(c, err)
	}

	page, err := s.queries.Search(c.Request().Context(), filter.FromRequest(overrides))
	if err != nil {
		s.logger.Error().Err(err).Msg("search articles failed")
		return internalError(c, "Failed to load articles")
	}
	return success(c, page)
}

func (s *Server) handleFeed(c echo.Context) error {
	userID, err := parseUserID(c)
	if err != nil {
		return failValidation(c, map[string]string{"user_id": err.Error()})
	}
	overrides, err := parseOverrides(c)
	if err != nil {
		return s.validationOrError(c, err)
	}

	feed, err := s.queries.PersonalizedFeed(c.Request().Context(), userID, overrides)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("personalized feed failed")
		return internalError(c, "Failed to load personalized feed")
	}
	return success(c, feedResponse{
		ArticlePage:     feed.Page,
		Personalization: feed.Personalization,
	})
}

func (s *Server) handleGetPreferences(c echo.Context) error {
	userID, err := parseUserID(c)
	if err != nil {
		return failValidation(c, map[string]string{"user_id": err.Error()})
	}

	pref, err := s.queries.Preferences(c.Request().Context(), userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("load preferences failed")
		return internalError(c, "Failed to load preferences")
	}
	return success(c, pref)
}

func (s *Server) handlePutPreferences(c echo.Context) error {
	userID, err := parseUserID(c)
	if err != nil {
		return failValidation(c, map[string]string{"user_id": err.Error()})
	}

	var update query.PreferenceUpdate
	if err := c.Bind(&update); err != nil {
		return failValidation(c, map[string]string{"body": "must be a JSON object"})
	}
	if fields := update.Validate(); len(fields) > 0 {
		return failValidation(c, fields)
	}

	pref, err := s.queries.ReplacePreferences(c.Request().Context(), userID, update)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("replace preferences failed")
		return internalError(c, "Failed to save preferences")
	}
	return success(c, pref)
}

func (s *Server) handleSources(c echo.Context) error {
	sources, err := s.queries.ListSources(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list sources failed")
		return internalError(c, "Failed to load sources")
	}
	return success(c, map[string]any{"items": sources})
}

func (s *Server) handleCategories(c echo.Context) error {
	categories, err := s.queries.ListCategories(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list categories failed")
		return internalError(c, "Failed to load categories")
	}
	return success(c, map[string]any{"items": categories})
}

func (s *Server) handleFetch(c echo.Context) error {
	if s.fetcher == nil {
		return fail(c, http.StatusServiceUnavailable, "Fetching is not configured", nil)
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), s.opts.FetchTimeout)
	defer cancel()

	outcomes, err := s.fetcher.FetchAndStoreAll(runCtx)
	if err != nil {
		s.logger.Error().Err(err).Msg("admin fetch failed")
		return internalError(c, "Failed to fetch articles")
	}
	return success(c, fetchResponse{
		Sources: outcomes,
		Totals:  fetch.Summarize(outcomes),
	})
}

func (s *Server) handleCacheClear(c echo.Context) error {
	scope, err := cache.ParseScope(c.QueryParam("scope"))
	if err != nil {
		return failValidation(c, map[string]string{"scope": err.Error()})
	}
	if s.cache == nil {
		return fail(c, http.StatusServiceUnavailable, "Cache is not configured", nil)
	}

	if err := s.cache.Invalidate(c.Request().Context(), scope); err != nil {
		s.logger.Error().Err(err).Str("scope", string(scope)).Msg("cache clear failed")
		return internalError(c, "Failed to clear cache")
	}
	return success(c, map[string]any{"scope": scope})
}

func (s *Server) validationOrError(c echo.Context, err error) error {
	var validation *filter.ValidationError
	if errors.As(err, &validation) {
		return failValidation(c, validation.Fields)
	}
	s.logger.Error().Err(err).Msg("parse query parameters failed")
	return internalError(c, "Failed to read query parameters")
}

func parseOverrides(c echo.Context) (*filter.Overrides, error) {
	return filter.ParseOverrides(c.QueryParams())
}

func parseUserID(c echo.Context) (int64, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(c.Param("user_id")), 10, 64)
	if err != nil || value < 1 {
		return 0, errors.New("must be a positive integer")
	}
	return value, nil
}
