package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lesson-package-api/internal/service"
)

const (
	// ActorHeader carries the id of the professor operating the client.
	ActorHeader = "X-Actor-ID"
	// ContextActorKey stores the actor id on the gin context.
	ContextActorKey = "actor_id"
)

// Actor propagates the acting professor into the request context so services
// can attribute activity log entries. Requests without the header are served
// anonymously.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := strings.TrimSpace(c.GetHeader(ActorHeader))
		if actorID != "" {
			c.Set(ContextActorKey, actorID)
			c.Request = c.Request.WithContext(service.WithActor(c.Request.Context(), actorID))
		}
		c.Next()
	}
}

// ActorID returns the actor recorded by Actor, or "".
func ActorID(c *gin.Context) string {
	return c.GetString(ContextActorKey)
}
