package customers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"Qurbani-app-backend/cache"
	"Qurbani-app-backend/db"
	"Qurbani-app-backend/handlers/common"
	"Qurbani-app-backend/handlers/users"
	"Qurbani-app-backend/hissa"
	mw "Qurbani-app-backend/middleware"
	"Qurbani-app-backend/models"
)

// Register mounts customer (hissa holder) routes under /customers.
func Register(g fiber.Router, pool *pgxpool.Pool, cch *cache.Cache, jwtGuard, requireStaff, requireAdmin fiber.Handler) {
	g.Get("/", jwtGuard, List(pool))
	g.Get("/:id", jwtGuard, Get(pool))
	g.Post("/", jwtGuard, requireStaff, Create(pool, cch))
	g.Put("/:id", jwtGuard, requireAdmin, Update(pool, cch))
	g.Delete("/:id", jwtGuard, requireAdmin, Del(pool, cch))
}

// Columns is the select list matching Scan.
const Columns = `id, receipt, name, phone, email, type, region, user_name, area_name, area_incharge,
	zone_name, zone_incharge, status, payment_status, amount_paid, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func Scan(row scanner, cu *models.Customer) error {
	return row.Scan(&cu.ID, &cu.Receipt, &cu.Name, &cu.Phone, &cu.Email, &cu.Type, &cu.Region, &cu.UserName,
		&cu.AreaName, &cu.AreaIncharge, &cu.ZoneName, &cu.ZoneIncharge, &cu.Status, &cu.PaymentStatus,
		&cu.AmountPaid, &cu.CreatedAt, &cu.UpdatedAt)
}

// Store persists hissa unit records as customer rows.
type Store struct {
	DB db.Querier
}

// ErrRecordLocked is returned when a stored unit can no longer be rewritten.
var ErrRecordLocked = errors.New("hissa record is owned by another collector or already exported or paid")

// CreateRecord inserts rec. A row already holding rec.IdempotencyKey is
// overwritten with rec so a retried submission carries the latest names,
// unless that row is someone else's or already exported or paid.
func (s Store) CreateRecord(ctx context.Context, rec hissa.Record) error {
	tag, err := s.DB.Exec(ctx, `
		INSERT INTO customers(submission_id, idempotency_key, receipt, name, phone, type, region, user_name,
			area_name, area_incharge, zone_name, zone_incharge, status, payment_status, amount_paid)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (idempotency_key) DO UPDATE SET
			receipt = EXCLUDED.receipt, name = EXCLUDED.name, phone = EXCLUDED.phone, type = EXCLUDED.type,
			region = EXCLUDED.region, updated_at = NOW()
		WHERE customers.user_name = EXCLUDED.user_name
			AND customers.status = FALSE AND customers.payment_status = FALSE`,
		rec.SubmissionID, rec.IdempotencyKey, rec.Receipt, rec.Name, rec.Phone, rec.Type, rec.Region, rec.UserName,
		rec.AreaName, rec.AreaIncharge, rec.ZoneName, rec.ZoneIncharge, rec.Status, rec.PaymentStatus, rec.AmountPaid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordLocked
	}
	return nil
}

// Prune deletes rows an earlier attempt of submissionID saved whose keys are
// not in keep. Only the collector's own unexported, unpaid rows are touched.
func (s Store) Prune(ctx context.Context, submissionID, userName string, keep []string) error {
	_, err := s.DB.Exec(ctx, `
		DELETE FROM customers
		WHERE submission_id = $1 AND user_name = $2
			AND status = FALSE AND payment_status = FALSE
			AND NOT (idempotency_key = ANY($3))`,
		submissionID, userName, keep)
	return err
}

// OpenSubmission registers id for userName. An id that is already completed
// or belongs to another collector is refused with hissa.ErrSubmissionClosed.
func (s Store) OpenSubmission(ctx context.Context, id, userName string) error {
	if _, err := s.DB.Exec(ctx, `
		INSERT INTO share_submissions(id, user_name) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`, id, userName); err != nil {
		return err
	}
	var (
		owner     string
		completed bool
	)
	err := s.DB.QueryRow(ctx, `
		SELECT user_name, completed_at IS NOT NULL FROM share_submissions WHERE id = $1`, id).
		Scan(&owner, &completed)
	if err != nil {
		return err
	}
	if owner != userName || completed {
		return hissa.ErrSubmissionClosed
	}
	return nil
}

// CompleteSubmission closes id for further writes.
func (s Store) CompleteSubmission(ctx context.Context, id string) error {
	_, err := s.DB.Exec(ctx, `UPDATE share_submissions SET completed_at = NOW() WHERE id = $1`, id)
	return err
}

// ListByUser returns the customers recorded by a collector, newest first.
// onlyExported limits the result to rows already included in an export.
func ListByUser(ctx context.Context, q db.Querier, userName string, onlyExported bool) ([]models.Customer, error) {
	query := `SELECT ` + Columns + ` FROM customers WHERE user_name = $1`
	if onlyExported {
		query += ` AND status = TRUE`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := q.Query(ctx, query, userName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Customer{}
	for rows.Next() {
		var cu models.Customer
		if err := Scan(rows, &cu); err != nil {
			return nil, err
		}
		out = append(out, cu)
	}
	return out, rows.Err()
}

// ownerName returns the collector name a user-role caller is restricted to,
// or "" for staff.
func ownerName(c *fiber.Ctx, q db.Querier) (string, error) {
	role, err := mw.GetUserRoleFromClaims(c)
	if err != nil {
		return "", err
	}
	if role != models.UserRoleUser {
		return "", nil
	}
	id, err := mw.GetUserIDFromClaims(c)
	if err != nil {
		return "", err
	}
	u, err := users.FindByID(c.Context(), q, id)
	if err != nil {
		if db.IsNoRows(err) {
			return "", fiber.NewError(fiber.StatusUnauthorized, "account no longer exists")
		}
		return "", err
	}
	return u.Name, nil
}

// List - GET /customers?region=&status=&payment_status=&user_name=&receipt=&q=
func List(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset := common.Page(c)
		owner, err := ownerName(c, pool)
		if err != nil {
			return err
		}

		where := []string{}
		args := []any{}
		add := func(cond string, v any) {
			args = append(args, v)
			where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
		}

		if owner != "" {
			add("user_name = ?", owner)
		} else if u := c.Query("user_name"); u != "" {
			add("user_name = ?", u)
		}
		if r := c.Query("region"); r != "" {
			n, err := strconv.Atoi(r)
			if err != nil || !hissa.Region(n).Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "region must be 1 or 2")
			}
			add("region = ?", n)
		}
		for _, col := range []string{"status", "payment_status"} {
			if v := c.Query(col); v != "" {
				b, err := strconv.ParseBool(v)
				if err != nil {
					return fiber.NewError(fiber.StatusBadRequest, "invalid "+col)
				}
				add(col+" = ?", b)
			}
		}
		if r := c.Query("receipt"); r != "" {
			add("receipt = ?", r)
		}
		if s := strings.TrimSpace(c.Query("q")); s != "" {
			add("name ILIKE ?", "%"+s+"%")
		}

		query := `SELECT ` + Columns + ` FROM customers`
		if len(where) > 0 {
			query += " WHERE " + strings.Join(where, " AND ")
		}
		args = append(args, limit, offset)
		query += ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

		rows, err := pool.Query(c.Context(), query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out := make([]models.Customer, 0, limit)
		for rows.Next() {
			var cu models.Customer
			if err := Scan(rows, &cu); err != nil {
				return err
			}
			out = append(out, cu)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// Get - GET /customers/:id
func Get(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		owner, err := ownerName(c, pool)
		if err != nil {
			return err
		}
		var cu models.Customer
		if err := Scan(pool.QueryRow(c.Context(), `SELECT `+Columns+` FROM customers WHERE id=$1`, id), &cu); err != nil {
			if db.IsNoRows(err) {
				return fiber.NewError(fiber.StatusNotFound, "customer not found")
			}
			return err
		}
		if owner != "" && cu.UserName != owner {
			return fiber.NewError(fiber.StatusNotFound, "customer not found")
		}
		return c.JSON(cu)
	}
}

// Create - POST /customers (staff)
func Create(pool *pgxpool.Pool, cch *cache.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var b models.CreateCustomerRequest
		if err := common.Bind(c, &b); err != nil {
			return err
		}
		typ := hissa.Qurbani
		if b.Type != nil {
			typ = *b.Type
		}
		region := hissa.OutOfMumbai
		if b.Region != nil {
			region = *b.Region
		}

		var cu models.Customer
		err := Scan(pool.QueryRow(c.Context(), `
			INSERT INTO customers(receipt, name, phone, email, type, region, user_name, area_name, area_incharge,
				zone_name, zone_incharge, status, payment_status, amount_paid)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			RETURNING `+Columns,
			strings.TrimSpace(b.Receipt), strings.TrimSpace(b.Name), b.Phone, b.Email, typ, region, b.UserName,
			b.AreaName, b.AreaIncharge, b.ZoneName, b.ZoneIncharge, b.Status, b.PaymentStatus, b.AmountPaid), &cu)
		if err != nil {
			return err
		}
		cch.Invalidate(c.Context(), cache.Summaries...)
		return c.Status(fiber.StatusCreated).JSON(cu)
	}
}

// Update - PUT /customers/:id (admin, partial)
func Update(pool *pgxpool.Pool, cch *cache.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		var b models.UpdateCustomerRequest
		if err := common.Bind(c, &b); err != nil {
			return err
		}

		var set common.Set
		if b.Receipt != nil {
			set.Add("receipt", strings.TrimSpace(*b.Receipt))
		}
		if b.Name != nil {
			set.Add("name", strings.TrimSpace(*b.Name))
		}
		if b.Phone != nil {
			set.Add("phone", *b.Phone)
		}
		if b.Email != nil {
			set.Add("email", *b.Email)
		}
		if b.Type != nil {
			set.Add("type", *b.Type)
		}
		if b.Region != nil {
			if !b.Region.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "region must be 1 or 2")
			}
			set.Add("region", *b.Region)
		}
		if b.UserName != nil {
			set.Add("user_name", *b.UserName)
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
		if b.Status != nil {
			set.Add("status", *b.Status)
		}
		if b.PaymentStatus != nil {
			set.Add("payment_status", *b.PaymentStatus)
		}
		if b.AmountPaid != nil {
			set.Add("amount_paid", *b.AmountPaid)
		}
		if set.Empty() {
			return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
		}
		set.Raw("updated_at = NOW()")

		cols, idArg := set.SQL()
		var cu models.Customer
		err = Scan(pool.QueryRow(c.Context(),
			`UPDATE customers SET `+cols+` WHERE id = `+idArg+` RETURNING `+Columns,
			append(set.Args, id)...), &cu)
		if err != nil {
			if db.IsNoRows(err) {
				return fiber.NewError(fiber.StatusNotFound, "customer not found")
			}
			return err
		}
		cch.Invalidate(c.Context(), cache.Summaries...)
		return c.JSON(cu)
	}
}

// Del - DELETE /customers/:id (admin)
func Del(pool *pgxpool.Pool, cch *cache.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		cmd, err := pool.Exec(c.Context(), `DELETE FROM customers WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return fiber.NewError(fiber.StatusNotFound, "customer not found")
		}
		cch.Invalidate(c.Context(), cache.Summaries...)
		return c.SendStatus(fiber.StatusNoContent)
	}
}
