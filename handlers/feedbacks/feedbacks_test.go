package feedbacks

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Qurbani-app-backend/handlers/common"
)

func TestCreateRejectsBlankInput(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: common.ErrorHandler})
	app.Post("/feedbacks", Create(nil))

	for _, body := range []string{`{"name":"Asif"}`, `{"name":"   ","feedback":"  "}`, `[]`} {
		req := httptest.NewRequest("POST", "/feedbacks", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, body)
	}
}
