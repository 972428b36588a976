package areas

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Qurbani-app-backend/handlers/common"
)

func TestConflict(t *testing.T) {
	var fe *fiber.Error
	require.ErrorAs(t, conflict(&pgconn.PgError{Code: "23505", ConstraintName: "areas_name_key"}), &fe)
	assert.Equal(t, "Area name already exists", fe.Message)
}

func TestCreateRequiresZone(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: common.ErrorHandler})
	app.Post("/areas", Create(nil))

	req := httptest.NewRequest("POST", "/areas",
		strings.NewReader(`{"name":"Kurla West","incharge":"Salim","phone":"98","email":"s@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
