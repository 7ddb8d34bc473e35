package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/newsdesk/internal/cache"
	"horse.fit/newsdesk/internal/db"
	"horse.fit/newsdesk/internal/fetch"
	"horse.fit/newsdesk/internal/filter"
	"horse.fit/newsdesk/internal/query"
)

type Querier interface {
	Search(ctx context.Context, spec filter.Specification) (*db.ArticlePage, error)
	PersonalizedFeed(ctx context.Context, userID int64, overrides *filter.Overrides) (*query.Feed, error)
	Preferences(ctx context.Context, userID int64) (*db.UserPreferenceRecord, error)
	ReplacePreferences(ctx context.Context, userID int64, update query.PreferenceUpdate) (*db.UserPreferenceRecord, error)
	ListSources(ctx context.Context) ([]db.Source, error)
	ListCategories(ctx context.Context) ([]db.Category, error)
}

type Fetcher interface {
	FetchAndStoreAll(ctx context.Context) (map[string]fetch.Outcome, error)
}

type CacheClearer interface {
	Invalidate(ctx context.Context, scope cache.Scope) error
}

type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// FetchTimeout bounds an admin triggered ingestion run. The run is not
	// tied to the request, so a dropped client does not abort it.
	FetchTimeout time.Duration
}

type Server struct {
	queries Querier
	fetcher Fetcher
	cache   CacheClearer
	logger  zerolog.Logger
	opts    Options
}

func NewServer(queries Querier, fetcher Fetcher, cache CacheClearer, logger zerolog.Logger, opts Options) *Server {
	if strings.TrimSpace(opts.Addr) == "" {
		opts.Addr = ":8080"
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		// admin fetch waits for every provider
		opts.WriteTimeout = 5 * time.Minute
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Minute
	}

	return &Server{
		queries: queries,
		fetcher: fetcher,
		cache:   cache,
		logger:  logger,
		opts:    opts,
	}
}

// Handler builds the echo instance with middleware and routes.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Info()
			if v.Error != nil {
				event = s.logger.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/articles", s.handleArticles)
	api.GET("/sources", s.handleSources)
	api.GET("/categories", s.handleCategories)
	api.GET("/users/:user_id/feed", s.handleFeed)
	api.GET("/users/:user_id/preferences", s.handleGetPreferences)
	api.PUT("/users/:user_id/preferences", s.handlePutPreferences)
	api.POST("/admin/fetch", s.handleFetch)
	api.POST("/admin/cache/clear", s.handleCacheClear)

	return e
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.queries == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()
	httpServer := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", s.opts.Addr).Msg("newsdesk api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("newsdesk api server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}
