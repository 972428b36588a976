package zones

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"Qurbani-app-backend/db"
	"Qurbani-app-backend/handlers/common"
	"Qurbani-app-backend/models"
)

// Register mounts zone routes under /zones (admin and supervisor).
func Register(g fiber.Router, pool *pgxpool.Pool, jwtGuard, requireStaff fiber.Handler) {
	g.Get("/", jwtGuard, requireStaff, List(pool))
	g.Get("/:id", jwtGuard, requireStaff, Get(pool))
	g.Post("/", jwtGuard, requireStaff, Create(pool))
	g.Put("/:id", jwtGuard, requireStaff, Update(pool))
	g.Delete("/:id", jwtGuard, requireStaff, Del(pool))
}

const columns = `id, name, incharge, phone, email, publish, created_at`

func scan(row pgx.Row, z *models.Zone) error {
	return row.Scan(&z.ID, &z.Name, &z.Incharge, &z.Phone, &z.Email, &z.Publish, &z.CreatedAt)
}

func conflict(err error) error {
	if db.IsUniqueViolation(err, "zones_name_key") {
		return fiber.NewError(fiber.StatusConflict, "Zone name already exists")
	}
	return err
}

// List - GET /zones
func List(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset := common.Page(c)
		rows, err := pool.Query(c.Context(),
			`SELECT `+columns+` FROM zones ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()

		out := make([]models.Zone, 0, limit)
		for rows.Next() {
			var z models.Zone
			if err := scan(rows, &z); err != nil {
				return err
			}
			out = append(out, z)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// Get - GET /zones/:id
func Get(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		var z models.Zone
		if err := scan(pool.QueryRow(c.Context(), `SELECT `+columns+` FROM zones WHERE id=$1`, id), &z); err != nil {
			if db.IsNoRows(err) {
				return fiber.NewError(fiber.StatusNotFound, "zone not found")
			}
			return err
		}
		return c.JSON(z)
	}
}

// Create - POST /zones
func Create(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var b models.CreateZoneRequest
		if err := common.Bind(c, &b); err != nil {
			return err
		}
		publish := true
		if b.Publish != nil {
			publish = *b.Publish
		}
		var z models.Zone
		err := scan(pool.QueryRow(c.Context(),
			`INSERT INTO zones(name, incharge, phone, email, publish) VALUES ($1,$2,$3,$4,$5) RETURNING `+columns,
			strings.TrimSpace(b.Name), strings.TrimSpace(b.Incharge), strings.TrimSpace(b.Phone),
			strings.TrimSpace(b.Email), publish), &z)
		if err != nil {
			return conflict(err)
		}
		return c.Status(fiber.StatusCreated).JSON(z)
	}
}

// Update - PUT /zones/:id. The zone name and incharge are copied onto the
// zone's areas and users.
func Update(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		var b models.UpdateZoneRequest
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

		var z models.Zone
		err = pgx.BeginFunc(c.Context(), pool, func(tx pgx.Tx) error {
			var oldName string
			if err := tx.QueryRow(c.Context(), `SELECT name FROM zones WHERE id=$1 FOR UPDATE`, id).Scan(&oldName); err != nil {
				return err
			}
			cols, idArg := set.SQL()
			if err := scan(tx.QueryRow(c.Context(),
				`UPDATE zones SET `+cols+` WHERE id = `+idArg+` RETURNING `+columns,
				append(set.Args, id)...), &z); err != nil {
				return err
			}
			if _, err := tx.Exec(c.Context(),
				`UPDATE areas SET zone_name = $1, zone_incharge = $2 WHERE zone_name = $3`,
				z.Name, z.Incharge, oldName); err != nil {
				return err
			}
			_, err := tx.Exec(c.Context(),
				`UPDATE users SET zone_name = $1, zone_incharge = $2, updated_at = NOW() WHERE zone_name = $3`,
				z.Name, z.Incharge, oldName)
			return err
		})
		if err != nil {
			if db.IsNoRows(err) {
				return fiber.NewError(fiber.StatusNotFound, "zone not found")
			}
			return conflict(err)
		}
		return c.JSON(z)
	}
}

// Del - DELETE /zones/:id. Refused while areas still belong to the zone.
func Del(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		var name string
		var areas int
		err = pool.QueryRow(c.Context(), `
			SELECT z.name, (SELECT COUNT(*) FROM areas a WHERE a.zone_name = z.name)
			FROM zones z WHERE z.id = $1`, id).Scan(&name, &areas)
		if err != nil {
			if db.IsNoRows(err) {
				return fiber.NewError(fiber.StatusNotFound, "zone not found")
			}
			return err
		}
		if areas > 0 {
			return fiber.NewError(fiber.StatusConflict, "Zone "+name+" still has areas; delete or move them first")
		}
		cmd, err := pool.Exec(c.Context(), `DELETE FROM zones WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return fiber.NewError(fiber.StatusNotFound, "zone not found")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
