package receipts

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"Qurbani-app-backend/cache"
	"Qurbani-app-backend/db"
	"Qurbani-app-backend/handlers/common"
	"Qurbani-app-backend/handlers/users"
	mw "Qurbani-app-backend/middleware"
	"Qurbani-app-backend/models"
	"Qurbani-app-backend/storage"
)

// Images is where receipt photos go.
type Images struct {
	Uploader storage.ImageUploader
	Folder   string
}

// Register mounts payment receipt routes under /receipts.
func Register(g fiber.Router, pool *pgxpool.Pool, img Images, cch *cache.Cache, jwtGuard, requireStaff fiber.Handler) {
	g.Get("/", jwtGuard, List(pool))
	g.Get("/:id", jwtGuard, Get(pool))
	g.Post("/", jwtGuard, requireStaff, Create(pool, img, cch))
}

const columns = `id, user_name, phone, email, paid_by, collected_by, img, rate, hissa, total_amt, purpose,
	area_name, area_incharge, zone_name, zone_incharge, created_at`

func scan(row pgx.Row, r *models.Receipt) error {
	return row.Scan(&r.ID, &r.UserName, &r.Phone, &r.Email, &r.PaidBy, &r.CollectedBy, &r.Img, &r.Rate, &r.Hissa,
		&r.TotalAmt, &r.Purpose, &r.AreaName, &r.AreaIncharge, &r.ZoneName, &r.ZoneIncharge, &r.CreatedAt)
}

// TotalAmount is the amount a receipt covers, rounded up to a whole rupee.
func TotalAmount(hissas int, rate float64) float64 {
	return math.Ceil(float64(hissas) * rate)
}

// ownerName restricts user-role callers to their own receipts.
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

// List - GET /receipts?user_name=
func List(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset := common.Page(c)
		owner, err := ownerName(c, pool)
		if err != nil {
			return err
		}
		if owner == "" {
			owner = c.Query("user_name")
		}

		query := `SELECT ` + columns + ` FROM receipts`
		args := []any{}
		if owner != "" {
			args = append(args, owner)
			query += ` WHERE user_name = $1`
		}
		args = append(args, limit, offset)
		query += ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

		rows, err := pool.Query(c.Context(), query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out := make([]models.Receipt, 0, limit)
		for rows.Next() {
			var r models.Receipt
			if err := scan(rows, &r); err != nil {
				return err
			}
			out = append(out, r)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// Get - GET /receipts/:id
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
		var r models.Receipt
		if err := scan(pool.QueryRow(c.Context(), `SELECT `+columns+` FROM receipts WHERE id=$1`, id), &r); err != nil {
			if db.IsNoRows(err) {
				return fiber.NewError(fiber.StatusNotFound, "receipt not found")
			}
			return err
		}
		if owner != "" && r.UserName != owner {
			return fiber.NewError(fiber.StatusNotFound, "receipt not found")
		}
		return c.JSON(r)
	}
}

// resolveImage uploads inline images and passes hosted URLs through.
func resolveImage(ctx context.Context, img Images, src string) (string, error) {
	src = strings.TrimSpace(src)
	switch {
	case storage.IsDataURI(src):
		url, err := img.Uploader.UploadImage(ctx, src, img.Folder)
		if err != nil {
			if errors.Is(err, storage.ErrDisabled) {
				return "", fiber.NewError(fiber.StatusServiceUnavailable, "Image uploads are not configured")
			}
			zap.L().Error("receipt image upload failed", zap.Error(err))
			return "", fiber.NewError(fiber.StatusBadGateway, "Failed to upload receipt image")
		}
		return url, nil
	case strings.HasPrefix(src, "https://"), strings.HasPrefix(src, "http://"):
		return src, nil
	}
	return "", fiber.NewError(fiber.StatusBadRequest, "img must be an image data URI or URL")
}

// Create - POST /receipts (staff). Records the payment and marks up to
// `hissa` of the collector's unpaid customers as paid, oldest first.
func Create(pool *pgxpool.Pool, img Images, cch *cache.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var b models.CreateReceiptRequest
		if err := common.Bind(c, &b); err != nil {
			return err
		}
		url, err := resolveImage(c.Context(), img, b.Img)
		if err != nil {
			return err
		}

		var r models.Receipt
		var marked int
		err = pgx.BeginFunc(c.Context(), pool, func(tx pgx.Tx) error {
			if err := scan(tx.QueryRow(c.Context(), `
				INSERT INTO receipts(user_name, phone, email, paid_by, collected_by, img, rate, hissa, total_amt,
					purpose, area_name, area_incharge, zone_name, zone_incharge)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
				RETURNING `+columns,
				b.UserName, b.Phone, b.Email, b.PaidBy, b.CollectedBy, url, b.Rate, b.Hissa, TotalAmount(b.Hissa, b.Rate),
				b.Purpose, b.AreaName, b.AreaIncharge, b.ZoneName, b.ZoneIncharge), &r); err != nil {
				return err
			}
			cmd, err := tx.Exec(c.Context(), `
				UPDATE customers SET payment_status = TRUE, amount_paid = $1, updated_at = NOW()
				WHERE id IN (
					SELECT id FROM customers
					WHERE user_name = $2 AND payment_status = FALSE
					ORDER BY created_at, id
					LIMIT $3
					FOR UPDATE
				)`, b.Rate, b.UserName, b.Hissa)
			if err != nil {
				return err
			}
			marked = int(cmd.RowsAffected())
			return nil
		})
		if err != nil {
			return err
		}
		cch.Invalidate(c.Context(), cache.Summaries...)

		if marked < b.Hissa {
			zap.L().Warn("receipt covers more hissas than unpaid customers",
				zap.Int64("receipt_id", r.ID),
				zap.String("user", b.UserName),
				zap.Int("hissa", b.Hissa),
				zap.Int("marked", marked))
		}
		r.CustomersMarkedPaid = &marked
		return c.Status(fiber.StatusCreated).JSON(r)
	}
}
