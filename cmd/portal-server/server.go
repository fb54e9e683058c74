package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/carepoint/portal/internal/config"
	"github.com/carepoint/portal/internal/domain/account"
	"github.com/carepoint/portal/internal/domain/billing"
	"github.com/carepoint/portal/internal/domain/cart"
	"github.com/carepoint/portal/internal/domain/checkout"
	"github.com/carepoint/portal/internal/domain/medication"
	"github.com/carepoint/portal/internal/domain/orders"
	"github.com/carepoint/portal/internal/domain/profile"
	"github.com/carepoint/portal/internal/platform/auth"
	"github.com/carepoint/portal/internal/platform/db"
	"github.com/carepoint/portal/internal/platform/identity"
	"github.com/carepoint/portal/internal/platform/middleware"
	"github.com/carepoint/portal/internal/platform/storage"
	"github.com/carepoint/portal/internal/platform/telemetry"
)

const version = "0.1.0"

func telemetryConfig(cfg *config.Config) telemetry.Config {
	return telemetry.Config{
		ServiceName:    cfg.OTelServiceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		Exporter:       cfg.OTelExporter,
		OTLPEndpoint:   cfg.OTelOTLPEndpoint,
		OTLPInsecure:   cfg.OTelOTLPInsecure,
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// devToken is the access token of the development user with the given role.
func devToken(r auth.Role) string {
	return "dev-" + string(r)
}

// devProvider returns a static provider holding one user per role. The
// access token of each user is devToken(role).
func devProvider() *identity.Static {
	p := identity.NewStatic()
	for _, r := range []auth.Role{auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin} {
		p.AddUser(devToken(r), &identity.User{
			ID:       "dev-" + string(r),
			Email:    string(r) + "@portal.local",
			Metadata: map[string]interface{}{auth.RoleMetadataKey: string(r)},
		})
	}
	return p
}

// authSetup picks the identity provider and the session middleware for the
// configured auth mode.
func authSetup(ctx context.Context, cfg *config.Config, revocations *auth.Revocations, logger zerolog.Logger) (identity.Provider, echo.MiddlewareFunc, error) {
	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		role, ok := auth.ParseRole(cfg.DevUserRole)
		if !ok {
			return nil, nil, fmt.Errorf("DEV_USER_ROLE %q is not a known role", cfg.DevUserRole)
		}
		logger.Warn().
			Str("role", string(role)).
			Msg("development auth is active: requests without a token act as the development user")
		return devProvider(), auth.DevAuthMiddleware("dev-"+string(role), devToken(role)), nil
	}

	jwtCfg := auth.JWTConfig{
		Issuer:      cfg.AuthIssuer,
		Audience:    cfg.AuthAudience,
		JWKSURL:     cfg.AuthJWKSURL,
		Skipper:     auth.AuthSkipper,
		Revocations: revocations,
	}
	if cfg.AuthJWTSecret != "" {
		jwtCfg.SigningKey = []byte(cfg.AuthJWTSecret)
	} else if jwtCfg.JWKSURL == "" {
		d, err := auth.DiscoverOIDC(ctx, cfg.AuthIssuer)
		if err != nil {
			return nil, nil, fmt.Errorf("discover signing keys: %w", err)
		}
		jwtCfg.JWKSURL = d.JWKSURI
		logger.Info().Str("jwks_uri", d.JWKSURI).Msg("discovered issuer signing keys")
	}

	client := identity.NewClient(cfg.AuthURL, cfg.AuthServiceKey, cfg.AuthAPIKey, cfg.AuthTimeout)
	return client, auth.JWTMiddleware(jwtCfg), nil
}

// buildServer wires the middleware chain and every API route on a new echo
// instance. It does not start listening.
func buildServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger, kv storage.KV, health db.StorageHealth, tel *telemetry.Provider) (*echo.Echo, error) {
	revocations := auth.NewRevocations()
	provider, sessionMW, err := authSetup(ctx, cfg, revocations, logger)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(tel.Middleware())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.RequestIDHeader, cart.SessionHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, cart.SessionHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(sessionMW)
	e.Use(middleware.Audit(logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/storage", db.HealthHandler(health))
	e.GET("/metrics", tel.MetricsHandler())

	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	guard := auth.NewGuard(provider, logger)
	auth.RegisterSignOutRoute(apiV1, revocations)

	// Stores
	bills := billing.NewStore(kv, logger)
	catalog := medication.NewCatalog(kv, logger)
	orderStore := orders.NewStore(kv, logger)
	sessions := cart.NewSessions()
	coordinator := checkout.NewCoordinator(bills, sessions, logger)
	wizard := profile.NewWizard(kv, logger)

	// Handlers
	billing.NewHandler(bills, guard, logger).RegisterRoutes(apiV1)
	medication.NewHandler(catalog, guard, logger).RegisterRoutes(apiV1)
	orders.NewHandler(orderStore, guard, logger).RegisterRoutes(apiV1)
	cart.NewHandler(sessions, catalog, logger).RegisterRoutes(apiV1)
	checkout.NewHandler(coordinator, logger).RegisterRoutes(apiV1)
	profile.NewHandler(wizard, logger).RegisterRoutes(apiV1)
	account.NewHandler(guard, logger).RegisterRoutes(apiV1)

	return e, nil
}
