package health

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	for name, tc := range map[string]struct {
		err  error
		want int
	}{
		"up":   {nil, fiber.StatusOK},
		"down": {errors.New("dial tcp: refused"), fiber.StatusServiceUnavailable},
	} {
		t.Run(name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/healthz", Health(pingFunc(func(context.Context) error { return tc.err })))
			resp, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}
