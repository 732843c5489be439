package usercontext

// Shared Locals keys used across controllers and middlewares
const (
	KeyActorContext = "ACTOR_CONTEXT"
	KeyActorID      = "actor_id"
	KeyLanguage     = "language"
)

// Request headers the actor middleware reads.
const (
	HeaderActorID        = "X-Actor-ID"
	HeaderAcceptLanguage = "Accept-Language"
)
