package areas

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"Qurbani-app-backend/db"
	"Qurbani-app-backend/handlers/common"
	"Qurbani-app-backend/models"
)

// Register mounts area routes under /areas (admin and supervisor).
func Register(g fiber.Router, pool *pgxpool.Pool, jwtGuard, requireStaff fiber.Handler) {
	g.Get("/", jwtGuard, requireStaff, List(pool))
	g.Get("/:id", jwtGuard, requireStaff, Get(pool))
	g.Post("/", jwtGuard, requireStaff, Create(pool))
	g.Put("/:id", jwtGuard, requireStaff, Update(pool))
	g.Delete("/:id", jwtGuard, requireStaff, Del(pool))
}

const selectArea = `
	SELECT a.id, a.name, a.incharge, a.zone_name, a.zone_incharge, a.phone, a.email, a.publish, a.created_at,
		z.incharge
	FROM areas a
	LEFT JOIN zones z ON z.name = a.zone_name`

func scan(row pgx.Row, a *models.Area) error {
	return row.Scan(&a.ID, &a.Name, &a.Incharge, &a.ZoneName, &a.ZoneIncharge, &a.Phone, &a.Email, &a.Publish,
		&a.CreatedAt, &a.ZoneInchargeOriginal)
}

func load(ctx context.Context, q db.Querier, id int64) (models.Area, error) {
	var a models.Area
	err := scan(q.QueryRow(ctx, selectArea+` WHERE a.id = $1`, id), &a)
	return a, err
}

func zoneIncharge(ctx context.Context, q db.Querier, zone string) (string, error) {
	var incharge string
	err := q.QueryRow(ctx, `SELECT incharge FROM zones WHERE name=$1`, zone).Scan(&incharge)
	if db.IsNoRows(err) {
		return "", fiber.NewError(fiber.StatusBadRequest, "zone not found")
	}
	return incharge, err
}

func conflict(err error) error {
	if db.IsUniqueViolation(err, "areas_name_key") {
		return fiber.NewError(fiber.StatusConflict, "Area name already exists")
	}
	return err
}

// List - GET /areas?zone_name=
func List(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset := common.Page(c)
		query := selectArea
		args := []any{}
		if z := c.Query("zone_name"); z != "" {
			query += ` WHERE a.zone_name = $1 ORDER BY a.name LIMIT $2 OFFSET $3`
			args = append(args, z, limit, offset)
		} else {
			query += ` ORDER BY a.name LIMIT $1 OFFSET $2`
			args = append(args, limit, offset)
		}
		rows, err := pool.Query(c.Context(), query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out := make([]models.Area, 0, limit)
		for rows.Next() {
			var a models.Area
			if err := scan(rows, &a); err != nil {
				return err
			}
			out = append(out, a)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// Get - GET /areas/:id
func Get(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		a, err := load(c.Context(), pool, id)
		if err != nil {
			if db.IsNoRows(err) {
				return fiber.NewError(fiber.StatusNotFound, "area not found")
			}
			return err
		}
		return c.JSON(a)
	}
}

// Create - POST /areas. The zone incharge is copied from the zone.
func Create(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var b models.CreateAreaRequest
		if err := common.Bind(c, &b); err != nil {
			return err
		}
		zone := strings.TrimSpace(b.ZoneName)
		incharge, err := zoneIncharge(c.Context(), pool, zone)
		if err != nil {
			return err
		}
		publish := true
		if b.Publish != nil {
			publish = *b.Publish
		}

		var id int64
		err = pool.QueryRow(c.Context(), `
			INSERT INTO areas(name, incharge, zone_name, zone_incharge, phone, email, publish)
			VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
			strings.TrimSpace(b.Name), strings.TrimSpace(b.Incharge), zone, incharge,
			strings.TrimSpace(b.Phone), strings.TrimSpace(b.Email), publish).Scan(&id)
		if err != nil {
			return conflict(err)
		}
		a, err := load(c.Context(), pool, id)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(a)
	}
}

// Update - PUT /areas/:id. Moving an area re-copies the zone incharge, and
// the new hierarchy is copied onto the area's users.
func Update(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		var b models.UpdateAreaRequest
		if err := common.Bind(c, &b); err != nil {
			return err
		}

		var set common.Set
		if b.Name != nil {
			set.Add("name", strings.TrimSpace(*b.Name))
		}
		if b.Incharge != nil {
			set.Add("incharge", strings.TrimSpace(*b.Incharge))
		}
		if b.ZoneName != nil {
			zone := strings.TrimSpace(*b.ZoneName)
			incharge, err := zoneIncharge(c.Context(), pool, zone)
			if err != nil {
				return err
			}
			set.Add("zone_name", zone)
			set.Add("zone_incharge", incharge)
		}
		if b.Phone != nil {
			set.Add("phone", strings.TrimSpace(*b.Phone))
		}
		if b.Email != nil {
			set.Add("email", strings.TrimSpace(*b.Email))
		}
		if b.Publish != nil {
			set.Add("publish", *b.Publish)
		}
		if set.Empty() {
			return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
		}

		err = pgx.BeginFunc(c.Context(), pool, func(tx pgx.Tx) error {
			var oldName string
			if err := tx.QueryRow(c.Context(), `SELECT name FROM areas WHERE id=$1 FOR UPDATE`, id).Scan(&oldName); err != nil {
				return err
			}
			cols, idArg := set.SQL()
			var name, incharge, zone, zoneIncharge string
			if err := tx.QueryRow(c.Context(),
				`UPDATE areas SET `+cols+` WHERE id = `+idArg+` RETURNING name, incharge, zone_name, zone_incharge`,
				append(set.Args, id)...).Scan(&name, &incharge, &zone, &zoneIncharge); err != nil {
				return err
			}
			_, err := tx.Exec(c.Context(), `
				UPDATE users SET area_name = $1, area_incharge = $2, zone_name = $3, zone_incharge = $4, updated_at = NOW()
				WHERE area_name = $5`, name, incharge, zone, zoneIncharge, oldName)
			return err
		})
		if err != nil {
			if db.IsNoRows(err) {
				return fiber.NewError(fiber.StatusNotFound, "area not found")
			}
			return conflict(err)
		}
		a, err := load(c.Context(), pool, id)
		if err != nil {
			return err
		}
		return c.JSON(a)
	}
}

// Del - DELETE /areas/:id. Refused while users are assigned to the area.
func Del(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		var name string
		var members int
		err = pool.QueryRow(c.Context(), `
			SELECT a.name, (SELECT COUNT(*) FROM users u WHERE u.area_name = a.name)
			FROM areas a WHERE a.id = $1`, id).Scan(&name, &members)
		if err != nil {
			if db.IsNoRows(err) {
				return fiber.NewError(fiber.StatusNotFound, "area not found")
			}
			return err
		}
		if members > 0 {
			return fiber.NewError(fiber.StatusConflict, "Area "+name+" still has users; reassign them first")
		}
		cmd, err := pool.Exec(c.Context(), `DELETE FROM areas WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return fiber.NewError(fiber.StatusNotFound, "area not found")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
