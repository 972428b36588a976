package settings

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"Qurbani-app-backend/cache"
	"Qurbani-app-backend/handlers/common"
	"Qurbani-app-backend/models"
)

// Register mounts the admin lock and cost settings under /settings. Any
// signed-in account may read them; only admins change them.
func Register(g fiber.Router, pool *pgxpool.Pool, cch *cache.Cache, jwtGuard, requireAdmin fiber.Handler) {
	g.Get("/lock", jwtGuard, GetLock(pool))
	g.Patch("/lock", jwtGuard, requireAdmin, SetLock(pool))
	g.Get("/costs", jwtGuard, GetCosts(pool))
	g.Put("/costs", jwtGuard, requireAdmin, SetCosts(pool, cch))
}

// GetLock - GET /settings/lock
func GetLock(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var out models.LockStatus
		if err := pool.QueryRow(c.Context(), `SELECT lock_status FROM settings WHERE id = 1`).Scan(&out.LockStatus); err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// SetLock - PATCH /settings/lock
func SetLock(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var b models.UpdateLockRequest
		if err := common.Bind(c, &b); err != nil {
			return err
		}
		var out models.LockStatus
		err := pool.QueryRow(c.Context(), `
			INSERT INTO settings(id, lock_status) VALUES (1, $1)
			ON CONFLICT (id) DO UPDATE SET lock_status = EXCLUDED.lock_status
			RETURNING lock_status`, *b.LockStatus).Scan(&out.LockStatus)
		if err != nil {
			return err
		}
		zap.L().Info("submission lock changed", zap.Bool("locked", out.LockStatus))
		return c.JSON(out)
	}
}

// GetCosts - GET /settings/costs
func GetCosts(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var out models.Costs
		err := pool.QueryRow(c.Context(), `SELECT mumbai_cost, out_of_mumbai_cost FROM settings WHERE id = 1`).
			Scan(&out.MumbaiCost, &out.OutOfMumbaiCost)
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// SetCosts - PUT /settings/costs. The dashboard prices hissas with these.
func SetCosts(pool *pgxpool.Pool, cch *cache.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var b models.UpdateCostsRequest
		if err := common.Bind(c, &b); err != nil {
			return err
		}
		var out models.Costs
		err := pool.QueryRow(c.Context(), `
			INSERT INTO settings(id, mumbai_cost, out_of_mumbai_cost) VALUES (1, $1, $2)
			ON CONFLICT (id) DO UPDATE SET mumbai_cost = EXCLUDED.mumbai_cost, out_of_mumbai_cost = EXCLUDED.out_of_mumbai_cost
			RETURNING mumbai_cost, out_of_mumbai_cost`, *b.MumbaiCost, *b.OutOfMumbaiCost).
			Scan(&out.MumbaiCost, &out.OutOfMumbaiCost)
		if err != nil {
			return err
		}
		cch.Invalidate(c.Context(), cache.KeyDashboard)
		return c.JSON(out)
	}
}
