package dashboard

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"Qurbani-app-backend/cache"
	"Qurbani-app-backend/db"
	"Qurbani-app-backend/hissa"
	"Qurbani-app-backend/models"
)

// Register mounts the totals under /dashboard.
func Register(g fiber.Router, pool *pgxpool.Pool, cch *cache.Cache, jwtGuard, requireAdmin fiber.Handler) {
	g.Get("/", jwtGuard, Totals(pool, cch))
	g.Get("/users", jwtGuard, requireAdmin, Users(pool, cch))
}

// LoadTotals reads the dashboard view.
func LoadTotals(ctx context.Context, q db.Querier) (models.Dashboard, error) {
	var d models.Dashboard
	err := q.QueryRow(ctx, `
		SELECT animals_out_mumbai, shares_out_mumbai, total_amount_out_mumbai, paid_out_mumbai,
			paid_amount_out_mumbai, pending_out_mumbai, pending_amount_out_mumbai,
			animals_mumbai, shares_mumbai, total_amount_mumbai, paid_mumbai,
			paid_amount_mumbai, pending_mumbai, pending_amount_mumbai
		FROM dashboard`).Scan(
		&d.AnimalsOutMumbai, &d.SharesOutMumbai, &d.TotalAmountOutMumbai, &d.PaidOutMumbai,
		&d.PaidAmountOutMumbai, &d.PendingOutMumbai, &d.PendingAmountOutMumbai,
		&d.AnimalsMumbai, &d.SharesMumbai, &d.TotalAmountMumbai, &d.PaidMumbai,
		&d.PaidAmountMumbai, &d.PendingMumbai, &d.PendingAmountMumbai)
	if db.IsNoRows(err) {
		return models.Dashboard{}, nil
	}
	return d, err
}

// LoadUserSummaries reads the user_summary view, ordered by zone, area and name.
func LoadUserSummaries(ctx context.Context, q db.Querier) ([]models.UserSummary, error) {
	rows, err := q.Query(ctx, `
		SELECT user_id, user_name, area_name, zone_name, region, shares_mumbai, shares_out_mumbai,
			paid_amount_mumbai, paid_amount_out_mumbai, pending_amount_mumbai, pending_amount_out_mumbai
		FROM user_summary
		ORDER BY zone_name, area_name, user_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.UserSummary{}
	for rows.Next() {
		var s models.UserSummary
		if err := rows.Scan(&s.UserID, &s.UserName, &s.AreaName, &s.ZoneName, &s.Region, &s.SharesMumbai,
			&s.SharesOutMumbai, &s.PaidAmountMumbai, &s.PaidAmountOutMumbai, &s.PendingAmountMumbai,
			&s.PendingAmountOutMumbai); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FilterByRegion keeps the collectors allowed to submit for region.
func FilterByRegion(in []models.UserSummary, region hissa.Region) []models.UserSummary {
	out := make([]models.UserSummary, 0, len(in))
	for _, s := range in {
		if hissa.RegionAllowed(s.Region, region) {
			out = append(out, s)
		}
	}
	return out
}

// ParseRegion reads an optional ?region= query value. Zero means all.
func ParseRegion(c *fiber.Ctx) (hissa.Region, error) {
	v := c.Query("region")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || !hissa.Region(n).Valid() {
		return 0, fiber.NewError(fiber.StatusBadRequest, "region must be 1 or 2")
	}
	return hissa.Region(n), nil
}

// CachedUserSummaries is LoadUserSummaries behind the cache.
func CachedUserSummaries(ctx context.Context, q db.Querier, cch *cache.Cache) ([]models.UserSummary, error) {
	return cache.Remember(ctx, cch, cache.KeyUserSummary, func(ctx context.Context) ([]models.UserSummary, error) {
		return LoadUserSummaries(ctx, q)
	})
}

// Totals - GET /dashboard
func Totals(pool *pgxpool.Pool, cch *cache.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := cache.Remember(c.Context(), cch, cache.KeyDashboard, func(ctx context.Context) (models.Dashboard, error) {
			return LoadTotals(ctx, pool)
		})
		if err != nil {
			return err
		}
		return c.JSON(d)
	}
}

// Users - GET /dashboard/users?region=
func Users(pool *pgxpool.Pool, cch *cache.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		region, err := ParseRegion(c)
		if err != nil {
			return err
		}
		all, err := CachedUserSummaries(c.Context(), pool, cch)
		if err != nil {
			return err
		}
		if region != 0 {
			all = FilterByRegion(all, region)
		}
		return c.JSON(all)
	}
}
