package dashboard

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Qurbani-app-backend/hissa"
	"Qurbani-app-backend/models"
)

func TestFilterByRegion(t *testing.T) {
	in := []models.UserSummary{
		{UserName: "both", Region: hissa.BothRegions},
		{UserName: "mumbai", Region: hissa.MumbaiOnly},
		{UserName: "out", Region: hissa.OutOfMumbaiOnly},
	}
	names := func(s []models.UserSummary) []string {
		out := []string{}
		for _, u := range s {
			out = append(out, u.UserName)
		}
		return out
	}
	assert.Equal(t, []string{"both", "mumbai"}, names(FilterByRegion(in, hissa.Mumbai)))
	assert.Equal(t, []string{"both", "out"}, names(FilterByRegion(in, hissa.OutOfMumbai)))
}

func TestParseRegion(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		r, err := ParseRegion(c)
		if err != nil {
			return err
		}
		return c.JSON(r)
	})
	for q, want := range map[string]int{"": 200, "?region=1": 200, "?region=2": 200, "?region=3": 400, "?region=x": 400} {
		resp, err := app.Test(httptest.NewRequest("GET", "/"+q, nil))
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, q)
	}
}
