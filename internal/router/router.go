// Package router assembles the echo instance: global middleware, the
// public catalog, the reader API and the admin API.
package router

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/library-service/internal/config"
	"github.com/iliyamo/library-service/internal/handler"
	"github.com/iliyamo/library-service/internal/middleware"
	"github.com/iliyamo/library-service/internal/model"
	"github.com/iliyamo/library-service/internal/observability"
)

// Handlers are the HTTP handlers mounted by New.
type Handlers struct {
	Auth         *handler.AuthHandler
	Catalog      *handler.CatalogHandler
	Loans        *handler.LoanHandler
	Reservations *handler.ReservationHandler
	Penalties    *handler.PenaltyHandler
	Users        *handler.UserHandler
	Stats        *handler.StatsHandler
}

// Options carries the cross-cutting collaborators.  Redis may be nil, in
// which case rate limiting and response caching are disabled.
type Options struct {
	JWTSecret   string
	Store       handler.Pinger
	Logger      *slog.Logger
	Metrics     *observability.Metrics
	Redis       *redis.Client
	RateLimit   config.RateLimitConfig
	Cache       config.CacheConfig
	CORSOrigins []string
}

// New builds the echo instance with every route registered.
func New(h Handlers, o Options) *echo.Echo {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = handler.JSONSerializer{}

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	if len(o.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: o.CORSOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
	e.Use(middleware.RequestLogger(o.Logger))
	e.Use(middleware.Metrics(o.Metrics))

	RegisterRoutes(e, o)

	api := e.Group("/api", middleware.NewTokenBucket(o.RateLimit, o.Redis, o.Logger))
	RegisterAuth(api, h.Auth, o.JWTSecret)
	RegisterPublic(api, h.Catalog, middleware.NewRedisCache(o.Cache, o.Redis))
	RegisterReader(api, h, o.JWTSecret)
	RegisterAdmin(api, h, o.JWTSecret)
	return e
}

// RegisterRoutes registers the operational endpoints that live outside
// /api and bypass rate limiting.
func RegisterRoutes(e *echo.Echo, o Options) {
	e.GET("/healthz", handler.Health(o.Store))
	if o.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(o.Metrics.Handler()))
	} else {
		e.GET("/metrics", func(c echo.Context) error { return c.NoContent(http.StatusNotFound) })
	}
}

// RegisterAuth registers the session endpoints.  Logout accepts an
// optional bearer token so a caller without a refresh token can end every
// session.
func RegisterAuth(api *echo.Group, a *handler.AuthHandler, jwtSecret string) {
	g := api.Group("/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, middleware.OptionalJWT(jwtSecret))

	auth := api.Group("/auth", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
	auth.PATCH("/change-password", a.ChangePassword)
}

// RegisterPublic registers the unauthenticated catalog.  Responses are
// served through the shared response cache.
func RegisterPublic(api *echo.Group, c *handler.CatalogHandler, cache echo.MiddlewareFunc) {
	api.GET("/books", c.ListBooks, cache)
	api.GET("/books/:id", c.GetBook, cache)
	api.GET("/categories", c.ListCategories, cache)
	api.GET("/authors", c.ListAuthors, cache)
}

// RegisterReader registers the endpoints of any signed-in user.
func RegisterReader(api *echo.Group, h Handlers, jwtSecret string) {
	g := api.Group("",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleReader, model.RoleAdmin),
	)
	g.GET("/me/profile", h.Auth.Me)
	g.PUT("/me/profile", h.Auth.UpdateProfile)

	g.GET("/me/loans", h.Loans.MyLoans)
	g.GET("/me/loans/history", h.Loans.MyHistory)
	g.POST("/loans", h.Loans.Borrow)
	g.POST("/loans/:id/extend", h.Loans.Extend)
	g.POST("/loans/:id/return", h.Loans.Return)

	g.GET("/me/reservations", h.Reservations.Mine)
	g.POST("/reservations", h.Reservations.Create)
	g.DELETE("/reservations/:id", h.Reservations.Cancel)

	g.GET("/me/penalties", h.Penalties.Mine)
}
