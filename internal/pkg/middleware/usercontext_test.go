package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ConfDesk/internal/pkg/usercontext"
)

func TestActorContextMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ActorContextMiddleware)
	app.Get("/", func(c *fiber.Ctx) error {
		ctx := usercontext.GetActorContext(c)
		return c.SendString(ctx.ActorID + "|" + ctx.Language)
	})

	tests := []struct {
		name  string
		actor string
		lang  string
		want  string
	}{
		{"anonymous", "", "", "|en"},
		{"actor and german", " attendee-7 ", "de-DE,de;q=0.9", "attendee-7|de"},
		{"long actor is cut", strings.Repeat("a", 200), "en", strings.Repeat("a", maxActorIDLength) + "|en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/", nil)
			if tt.actor != "" {
				req.Header.Set(usercontext.HeaderActorID, tt.actor)
			}
			if tt.lang != "" {
				req.Header.Set(usercontext.HeaderAcceptLanguage, tt.lang)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(body))
		})
	}
}

func TestGetActorContextWithoutMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("[" + usercontext.GetActorID(c) + "]")
	})
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "[]", string(body))
}
