package feedbacks

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"Qurbani-app-backend/handlers/common"
	"Qurbani-app-backend/models"
)

// Register mounts feedback routes under /feedbacks
func Register(g fiber.Router, pool *pgxpool.Pool, jwtGuard, requireStaff fiber.Handler) {
	g.Post("/", jwtGuard, Create(pool))
	g.Get("/", jwtGuard, requireStaff, List(pool))
	g.Delete("/:id", jwtGuard, requireStaff, Del(pool))
}

// Create - POST /feedbacks (any signed-in account)
func Create(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.CreateFeedbackRequest
		if err := common.Bind(c, &req); err != nil {
			return err
		}
		name, text := strings.TrimSpace(req.Name), strings.TrimSpace(req.Feedback)
		if name == "" || text == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Name and feedback are required")
		}

		var f models.Feedback
		err := pool.QueryRow(c.Context(), `
			INSERT INTO feedback(name, feedback) VALUES ($1, $2)
			RETURNING id, name, feedback, created_at
		`, name, text).Scan(&f.ID, &f.Name, &f.Feedback, &f.CreatedAt)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(f)
	}
}

// List - GET /feedbacks (staff)
func List(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset := common.Page(c)
		rows, err := pool.Query(c.Context(), `
			SELECT id, name, feedback, created_at FROM feedback
			ORDER BY created_at DESC, id DESC
			LIMIT $1 OFFSET $2
		`, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()

		out := make([]models.Feedback, 0, limit)
		for rows.Next() {
			var f models.Feedback
			if err := rows.Scan(&f.ID, &f.Name, &f.Feedback, &f.CreatedAt); err != nil {
				return err
			}
			out = append(out, f)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// Del - DELETE /feedbacks/:id (staff)
func Del(pool *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return err
		}
		cmd, err := pool.Exec(c.Context(), `DELETE FROM feedback WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return fiber.NewError(fiber.StatusNotFound, "feedback not found")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
