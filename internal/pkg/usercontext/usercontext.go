package usercontext

import "github.com/gofiber/fiber/v2"

// ActorContext describes who triggered a request. Identity is resolved by
// the surrounding application; this service only carries the id into audit
// events.
type ActorContext struct {
	ActorID  string `json:"actor_id"`
	Language string `json:"language"`
}

// GetActorContext retrieves the actor context from fiber context.
// Returns an anonymous context if none is set
func GetActorContext(c *fiber.Ctx) ActorContext {
	if ctx, ok := c.Locals(KeyActorContext).(ActorContext); ok {
		return ctx
	}
	return ActorContext{}
}

// GetActorID returns the current actor id, or "" for anonymous calls
func GetActorID(c *fiber.Ctx) string {
	return GetActorContext(c).ActorID
}
