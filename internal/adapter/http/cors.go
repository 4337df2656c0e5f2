package httpadapter

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const (
	corsControlMethods = "POST, OPTIONS"
	corsReadMethods    = "GET, HEAD, OPTIONS"
	corsAllowHeaders   = "Content-Type"
	corsMaxAge         = "86400"
)

// controlRoutes take JSON bodies; every other route is read-only.
var controlRoutes = map[string]bool{
	"/start": true,
	"/step":  true,
	"/stop":  true,
	"/pause": true,
}

func corsMethods(path string) string {
	if controlRoutes[path] {
		return corsControlMethods
	}
	return corsReadMethods
}

// corsPolicy decides which browser origins may call the bridge. No
// configured origins, or "*", allows any origin.
type corsPolicy struct {
	anyOrigin bool
	origins   map[string]bool
}

func newCORSPolicy(origins []string) corsPolicy {
	p := corsPolicy{origins: map[string]bool{}}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			p.anyOrigin = true
		default:
			p.origins[o] = true
		}
	}
	if len(p.origins) == 0 {
		p.anyOrigin = true
	}
	return p
}

// apply sets the CORS headers for the request origin and reports whether
// the origin is allowed. Requests without an Origin header are not
// cross-origin and get no headers.
func (p corsPolicy) apply(ctx *app.RequestContext) bool {
	origin := string(ctx.Request.Header.Peek("Origin"))
	if origin == "" {
		return true
	}
	h := &ctx.Response.Header
	switch {
	case p.anyOrigin:
		h.Set("Access-Control-Allow-Origin", "*")
	case p.origins[origin]:
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
	default:
		return false
	}
	h.Set("Access-Control-Allow-Methods", corsMethods(string(ctx.Path())))
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	h.Set("Access-Control-Max-Age", corsMaxAge)
	return true
}

func corsMiddleware(origins []string) app.HandlerFunc {
	p := newCORSPolicy(origins)
	return func(c context.Context, ctx *app.RequestContext) {
		allowed := p.apply(ctx)
		if string(ctx.Method()) == consts.MethodOptions {
			if !allowed {
				ctx.AbortWithStatus(consts.StatusForbidden)
				return
			}
			ctx.AbortWithStatus(consts.StatusNoContent)
			return
		}
		ctx.Next(c)
	}
}
