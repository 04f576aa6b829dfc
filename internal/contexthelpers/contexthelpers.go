package contexthelpers

import (
	"context"
	"net/http"
)

type contextKey string

const playerIDContextKey = contextKey("playerID")

// SetPlayerID stores the anonymous player id resolved from the session.
func SetPlayerID(r *http.Request, playerID string) *http.Request {
	ctx := context.WithValue(r.Context(), playerIDContextKey, playerID)
	return r.WithContext(ctx)
}

// PlayerID returns the player id or an empty string for requests that went around the session middleware.
func PlayerID(ctx context.Context) string {
	playerID, ok := ctx.Value(playerIDContextKey).(string)
	if !ok {
		return ""
	}

	return playerID
}
