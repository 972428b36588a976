package auth

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Qurbani-app-backend/handlers/common"
	"Qurbani-app-backend/models"
)

func TestRefreshTokensAreRandom(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tok, err := newRefreshToken()
		require.NoError(t, err)
		assert.Len(t, tok, 43)
		assert.False(t, seen[tok])
		seen[tok] = true
	}
}

func TestSha256b64(t *testing.T) {
	assert.Equal(t, sha256b64("abc"), sha256b64("abc"))
	assert.NotEqual(t, sha256b64("abc"), sha256b64("abd"))
	assert.Equal(t, "ungWv48Bz+pBQUDeXa4iI7ADYaOWF3qctBD/YfIAFa0=", sha256b64("abc"))
}

func TestStaffTable(t *testing.T) {
	assert.Equal(t, "admins", staffTable(models.UserRoleAdmin))
	assert.Equal(t, "supervisors", staffTable(models.UserRoleSupervisor))
	assert.Equal(t, "", staffTable(models.UserRoleUser))
}

func TestCreateStaffRejectsUserRole(t *testing.T) {
	_, err := CreateStaff(context.Background(), nil, models.UserRoleUser, "imran", "secret")
	assert.ErrorContains(t, err, "not a staff role")
}

func TestLoginRejectsBadRequests(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: common.ErrorHandler})
	app.Post("/auth/login", login(nil, Config{Secret: "s", AccessTTL: time.Minute, RefreshTTL: time.Hour}))

	for _, body := range []string{
		`{`,
		`{"auth":"faculty","identifier":"a","password":"b"}`,
		`{"auth":"user","identifier":"","password":"b"}`,
		`{"auth":"admin","identifier":"root"}`,
	} {
		req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, body)
	}
}
