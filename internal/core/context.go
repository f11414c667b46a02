package core

import "context"

type contextKey string

const ctxKeyActor contextKey = "import_actor"

// Actor identifies who started a run, for the run history.
type Actor struct {
	Source    string `json:"source"` // "http" or "cli"
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// ContextWithActor attaches the caller of a run to ctx.
func ContextWithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, a)
}

// ActorFromContext returns the actor stored by ContextWithActor.
func ActorFromContext(ctx context.Context) Actor {
	if a, ok := ctx.Value(ctxKeyActor).(Actor); ok {
		return a
	}
	return Actor{}
}
