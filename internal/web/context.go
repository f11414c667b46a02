package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/courierimport/internal/core"
)

// withActor records who made the request for the import history.
func withActor(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithActor(ctx, core.Actor{
		Source:    "http",
		IPAddress: clientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
	})
}

// clientIP is RemoteAddr without its port. TrustedRealIP has already
// replaced it for trusted proxies.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
