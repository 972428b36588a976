package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"Qurbani-app-backend/db"
	"Qurbani-app-backend/handlers/common"
	"Qurbani-app-backend/hissa"
	"Qurbani-app-backend/models"
)

// Register mounts user (collector) management under /users.
func Register(g fiber.Router, pool *pgxpool.Pool, jwtGuard, requireStaff fiber.Handler) {
	g.Get("/", jwtGuard, requireStaff, List(pool))
	g.Get("/:id", jwtGuard, requireStaff, Get(pool))
	g.Post("/", jwtGuard, requireStaff, Create(pool))
	g.Put("/:id", jwtGuard, requireStaff, Update(pool))
	g.Delete("/:id", jwtGuard, requireStaff, Del(pool))
}

// Columns is the select list matching Scan.
const Columns = `id, name, phone, email, password_hash, pfp, area_name, area_incharge,
	zone_name, zone_incharge, regions_incharge_of, rate_r1, rate_r2, publish, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func Scan(row scanner, u *models.User) error {
	return row.Scan(&u.ID, &u.Name, &u.Phone, &u.Email, &u.PasswordHash, &u.Pfp, &u.AreaName, &u.AreaIncharge,
		&u.ZoneName, &u.ZoneIncharge, &u.RegionsInchargeOf, &u.RateR1, &u.RateR2, &u.Publish, &u.CreatedAt, &u.UpdatedAt)
}

// FindByID loads one user. A missing row is returned as pgx.ErrNoRows.
func FindByID(ctx context.Context, q db.Querier, id int64) (models.User, error) {
	var u models.User
	err := Scan(q.QueryRow(ctx, `SELECT `+Columns+` FROM users WHERE id=$1`, id), &u)
	return u, err
}

// FindByLogin loads a user by email (case-insensitive) or phone.
func FindByLogin(ctx context.Context, q db.Querier, identifier string) (models.User, error) {
	identifier = strings.TrimSpace(identifier)
	var u models.User
	err := Scan(q.QueryRow(ctx,
		`SELECT `+Columns+` FROM users WHERE lower(email)=lower($1) OR phone=$1 ORDER BY id LIMIT 1`,
		identifier), &u)
	return u, err
}

// HashPassword bcrypt-hashes a plain text password.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", errors.New("password cannot be empty")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// CheckPassword compares a bcrypt hash with a plain text password.
func CheckPassword(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

func conflict(err error) error {
	switch {
	case db.IsUniqueViolation(err, "users_email_key"):
		return fiber.NewError(fiber.StatusConflict, "Email already registered")
	case db.IsUniqueViolation(err, "users_phone_key"):
		return fiber.NewError(fiber.StatusConflict, "Phone already registered")
	}
	return err
}

// List - GET /users?zone_name=&area_name=&limit=100&offset=0
func List(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset := common.Page(c)
		where := []string{}
		args := []any{}
		if z := c.Query("zone_name"); z != "" {
			args = append(args, z)
			where = append(where, "zone_name = $"+strconv.Itoa(len(args)))
		}
		if a := c.Query("area_name"); a != "" {
			args = append(args, a)
			where = append(where, "area_name = $"+strconv.Itoa(len(args)))
		}
		query := `SELECT ` + Columns + ` FROM users`
		if len(where) > 0 {
			query += " WHERE " + strings.Join(where, " AND ")
		}
		args = append(args, limit, offset)
		query += ` ORDER BY name LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

		rows, err := pool.Query(c.Context(), query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out := make([]models.User, 0, limit)
		for rows.Next() {
			var u models.User
			if err := Scan(rows, &u); err != nil {
				return err
			}
			out = append(out, u)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// Get - GET /users/:id
func Get(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		u, err := FindByID(c.Context(), pool, id)
		if err != nil {
			if db.IsNoRows(err) {
				return fiber.NewError(fiber.StatusNotFound, "user not found")
			}
			return err
		}
		return c.JSON(u)
	}
}

// fillFromArea copies the area hierarchy onto a new user when the request
// leaves it blank.
func fillFromArea(ctx context.Context, q db.Querier, b *models.CreateUserRequest) error {
	if b.AreaName == "" {
		return nil
	}
	var incharge, zoneName, zoneIncharge string
	err := q.QueryRow(ctx, `SELECT incharge, zone_name, zone_incharge FROM areas WHERE name=$1`, b.AreaName).
		Scan(&incharge, &zoneName, &zoneIncharge)
	if err != nil {
		if db.IsNoRows(err) {
			return fiber.NewError(fiber.StatusBadRequest, "area not found")
		}
		return err
	}
	if b.AreaIncharge == "" {
		b.AreaIncharge = incharge
	}
	if b.ZoneName == "" {
		b.ZoneName = zoneName
	}
	if b.ZoneIncharge == "" {
		b.ZoneIncharge = zoneIncharge
	}
	return nil
}

// Create - POST /users
func Create(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var b models.CreateUserRequest
		if err := common.Bind(c, &b); err != nil {
			return err
		}
		if err := fillFromArea(c.Context(), pool, &b); err != nil {
			return err
		}
		hash, err := HashPassword(b.Password)
		if err != nil {
			return err
		}

		region := hissa.OutOfMumbaiOnly
		if b.RegionsInchargeOf != nil {
			region = *b.RegionsInchargeOf
		}
		var r1, r2 float64
		if b.RateR1 != nil {
			r1 = *b.RateR1
		}
		if b.RateR2 != nil {
			r2 = *b.RateR2
		}
		publish := true
		if b.Publish != nil {
			publish = *b.Publish
		}

		var u models.User
		err = Scan(pool.QueryRow(c.Context(), `
			INSERT INTO users(name, phone, email, password_hash, pfp, area_name, area_incharge,
				zone_name, zone_incharge, regions_incharge_of, rate_r1, rate_r2, publish)
			VALUES ($1,$2,lower($3),$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			RETURNING `+Columns,
			strings.TrimSpace(b.Name), strings.TrimSpace(b.Phone), strings.TrimSpace(b.Email), hash, b.Pfp,
			b.AreaName, b.AreaIncharge, b.ZoneName, b.ZoneIncharge, region, r1, r2, publish), &u)
		if err != nil {
			return conflict(err)
		}
		return c.Status(fiber.StatusCreated).JSON(u)
	}
}

// Update - PUT /users/:id (partial)
func Update(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		var b models.UpdateUserRequest
		if err := common.Bind(c, &b); err != nil {
			return err
		}

		var set common.Set
		if b.Name != nil {
			set.Add("name", strings.TrimSpace(*b.Name))
		}
		if b.Phone != nil {
			set.Add("phone", strings.TrimSpace(*b.Phone))
		}
		if b.Email != nil {
			set.Add("email", strings.ToLower(strings.TrimSpace(*b.Email)))
		}
		if b.Password != nil && *b.Password != "" {
			hash, err := HashPassword(*b.Password)
			if err != nil {
				return err
			}
			set.Add("password_hash", hash)
		}
		if b.Pfp != nil {
			set.Add("pfp", *b.Pfp)
		}
		if b.AreaName != nil {
			set.Add("area_name", *b.AreaName)
		}
		if b.AreaIncharge != nil {
			set.Add("area_incharge", *b.AreaIncharge)
		}
		if b.ZoneName != nil {
			set.Add("zone_name", *b.ZoneName)
		}
		if b.ZoneIncharge != nil {
			set.Add("zone_incharge", *b.ZoneIncharge)
		}
		if b.RegionsInchargeOf != nil {
			if !b.RegionsInchargeOf.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "regions_incharge_of must be 0, 1 or 2")
			}
			set.Add("regions_incharge_of", *b.RegionsInchargeOf)
		}
		if b.RateR1 != nil {
			set.Add("rate_r1", *b.RateR1)
		}
		if b.RateR2 != nil {
			set.Add("rate_r2", *b.RateR2)
		}
		if b.Publish != nil {
			set.Add("publish", *b.Publish)
		}
		if set.Empty() {
			return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
		}
		set.Raw("updated_at = NOW()")

		cols, idArg := set.SQL()
		var u models.User
		err = Scan(pool.QueryRow(c.Context(),
			`UPDATE users SET `+cols+` WHERE id = `+idArg+` RETURNING `+Columns,
			append(set.Args, id)...), &u)
		if err != nil {
			if db.IsNoRows(err) {
				return fiber.NewError(fiber.StatusNotFound, "user not found")
			}
			return conflict(err)
		}
		return c.JSON(u)
	}
}

// Del - DELETE /users/:id
func Del(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		cmd, err := pool.Exec(c.Context(), `DELETE FROM users WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
