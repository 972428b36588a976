package main

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"

	"Qurbani-app-backend/cache"
	"Qurbani-app-backend/config"
	hAreas "Qurbani-app-backend/handlers/areas"
	hauth "Qurbani-app-backend/handlers/auth"
	"Qurbani-app-backend/handlers/common"
	hCustomers "Qurbani-app-backend/handlers/customers"
	hDashboard "Qurbani-app-backend/handlers/dashboard"
	hExport "Qurbani-app-backend/handlers/export"
	hFeedbacks "Qurbani-app-backend/handlers/feedbacks"
	"Qurbani-app-backend/handlers/health"
	hReceipts "Qurbani-app-backend/handlers/receipts"
	hSettings "Qurbani-app-backend/handlers/settings"
	hShares "Qurbani-app-backend/handlers/shares"
	hUsers "Qurbani-app-backend/handlers/users"
	hZones "Qurbani-app-backend/handlers/zones"
	mw "Qurbani-app-backend/middleware"
	"Qurbani-app-backend/models"
	"Qurbani-app-backend/storage"
)

type deps struct {
	pool     *pgxpool.Pool
	cache    *cache.Cache
	uploader storage.ImageUploader
}

func newApp(cfg config.Config, d deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "qurbani",
		ErrorHandler: common.ErrorHandler,
		BodyLimit:    8 * 1024 * 1024, // receipt photos arrive inline
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.TrimSpace(cfg.CORSOrigins),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
	}))

	app.Get("/healthz", health.Health(d.pool))

	// JWT Guards and Role Requirements
	jwtGuard := mw.JwtGuard(cfg.JWTSecret)
	requireAdmin := mw.RequireRole(models.UserRoleAdmin)
	requireStaff := mw.RequireRole(models.UserRoleAdmin, models.UserRoleSupervisor)
	requireUser := mw.RequireRole(models.UserRoleUser)

	hauth.Register(app.Group("/auth"), d.pool, hauth.Config{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}, jwtGuard, mw.RateLimit(cfg.LoginRatePerMin))

	hZones.Register(app.Group("/zones"), d.pool, jwtGuard, requireStaff)
	hAreas.Register(app.Group("/areas"), d.pool, jwtGuard, requireStaff)
	hUsers.Register(app.Group("/users"), d.pool, jwtGuard, requireStaff)
	hCustomers.Register(app.Group("/customers"), d.pool, d.cache, jwtGuard, requireStaff, requireAdmin)
	hShares.Register(app.Group("/shares"), hShares.PoolBackend{Pool: d.pool}, d.cache, jwtGuard, requireUser)
	hReceipts.Register(app.Group("/receipts"), d.pool, hReceipts.Images{
		Uploader: d.uploader,
		Folder:   cfg.CloudinaryFolder,
	}, d.cache, jwtGuard, requireStaff)
	hFeedbacks.Register(app.Group("/feedbacks"), d.pool, jwtGuard, requireStaff)
	hSettings.Register(app.Group("/settings"), d.pool, d.cache, jwtGuard, requireAdmin)
	hDashboard.Register(app.Group("/dashboard"), d.pool, d.cache, jwtGuard, requireAdmin)
	hExport.Register(app.Group("/export"), d.pool, d.cache, jwtGuard, requireAdmin)

	return app
}
