// Package common holds helpers shared by the HTTP handlers: request binding,
// id parsing, pagination, dynamic UPDATE building and the JSON error handler.
package common

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"Qurbani-app-backend/db"
	"Qurbani-app-backend/hissa"
	"Qurbani-app-backend/models"
)

var validate = validator.New()

// Bind parses the JSON body into dst and checks its validate tags.
func Bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Bad JSON")
	}
	return Validate(dst)
}

// Validate runs the struct validator and turns field errors into a 400.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid input")
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fieldName(fe)+" failed '"+fe.Tag()+"'")
	}
	return fiber.NewError(fiber.StatusBadRequest, "Validation failed: "+strings.Join(parts, "; "))
}

func fieldName(fe validator.FieldError) string {
	return strings.ToLower(fe.Field())
}

// ParseID reads a positive integer route parameter.
func ParseID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// Page returns limit and offset from the query string.
func Page(c *fiber.Ctx) (limit, offset int) {
	return ClampInt(c.QueryInt("limit", 100), 1, 500), MaxInt(c.QueryInt("offset", 0), 0)
}

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Set accumulates "col = $n" assignments for a partial UPDATE.
type Set struct {
	cols []string
	Args []any
}

// Add appends col = value.
func (s *Set) Add(col string, value any) {
	s.Args = append(s.Args, value)
	s.cols = append(s.cols, col+" = $"+strconv.Itoa(len(s.Args)))
}

// Raw appends a literal assignment such as "updated_at = NOW()".
func (s *Set) Raw(expr string) { s.cols = append(s.cols, expr) }

func (s *Set) Empty() bool { return len(s.cols) == 0 }

// SQL returns the SET list and the placeholder for the next argument.
func (s *Set) SQL() (string, string) {
	return strings.Join(s.cols, ", "), "$" + strconv.Itoa(len(s.Args)+1)
}

var hissaErrors = []error{
	hissa.ErrNoPairSlot,
	hissa.ErrOverCapacity,
	hissa.ErrPairedSlot,
	hissa.ErrInvalidSlot,
	hissa.ErrInvalidType,
	hissa.ErrTextTooLong,
	hissa.ErrInvalidState,
	hissa.ErrNoReceipt,
	hissa.ErrNoNames,
	hissa.ErrInvalidRegion,
}

// IsHissaError reports whether err is a share allocation rule violation.
func IsHissaError(err error) bool {
	for _, e := range hissaErrors {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// ErrorHandler renders every handler error as models.ErrorResponse.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal server error"

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code, msg = fe.Code, fe.Message
	case IsHissaError(err):
		code, msg = fiber.StatusUnprocessableEntity, err.Error()
	case db.IsUniqueViolation(err):
		code, msg = fiber.StatusConflict, "Record already exists"
	case db.IsNoRows(err):
		code, msg = fiber.StatusNotFound, "Not found"
	}

	if code >= fiber.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err))
	}
	return c.Status(code).JSON(models.ErrorResponse{Error: msg})
}
