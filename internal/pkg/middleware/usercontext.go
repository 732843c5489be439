package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ConfDesk/internal/pkg/paymentstatus"
	"github.com/ManuelReschke/ConfDesk/internal/pkg/usercontext"
)

const maxActorIDLength = 128

// ActorContextMiddleware stores the calling actor and preferred language for
// every request. Missing headers leave an anonymous context.
func ActorContextMiddleware(c *fiber.Ctx) error {
	actorID := strings.TrimSpace(c.Get(usercontext.HeaderActorID))
	if len(actorID) > maxActorIDLength {
		actorID = actorID[:maxActorIDLength]
	}
	lang := paymentstatus.Match(c.Get(usercontext.HeaderAcceptLanguage)).String()

	c.Locals(usercontext.KeyActorContext, usercontext.ActorContext{
		ActorID:  actorID,
		Language: lang,
	})
	c.Locals(usercontext.KeyActorID, actorID)
	c.Locals(usercontext.KeyLanguage, lang)
	return c.Next()
}
