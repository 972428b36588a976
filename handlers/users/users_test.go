package users

import (
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hissa-123")
	require.NoError(t, err)
	assert.NotEqual(t, "hissa-123", hash)
	assert.True(t, CheckPassword(hash, "hissa-123"))
	assert.False(t, CheckPassword(hash, "hissa-124"))
	assert.False(t, CheckPassword("", "hissa-123"))

	_, err = HashPassword("")
	assert.Error(t, err)
}

func TestConflict(t *testing.T) {
	var fe *fiber.Error

	err := conflict(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fiber.StatusConflict, fe.Code)
	assert.Equal(t, "Email already registered", fe.Message)

	err = conflict(&pgconn.PgError{Code: "23505", ConstraintName: "users_phone_key"})
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Phone already registered", fe.Message)

	other := errors.New("boom")
	assert.Same(t, other, conflict(other))
}
