package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/tabview/internal/core"
)

// WithRequestMetadata copies the client address and User-Agent into ctx
// so the service can log who uploaded or cleared a dataset.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, r.RemoteAddr) // already rewritten by TrustedRealIP
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
