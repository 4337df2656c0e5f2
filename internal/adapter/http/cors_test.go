package httpadapter

import (
	"context"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

func corsRequest(method, path, origin string) *app.RequestContext {
	ctx := &app.RequestContext{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if origin != "" {
		ctx.Request.Header.Set("Origin", origin)
	}
	return ctx
}

func header(ctx *app.RequestContext, key string) string {
	return string(ctx.Response.Header.Peek(key))
}

func TestCORSPreflightControlRoute(t *testing.T) {
	ctx := corsRequest(consts.MethodOptions, "/step", "http://ui.local")
	corsMiddleware(nil)(context.Background(), ctx)

	if !ctx.IsAborted() {
		t.Fatal("preflight should not reach the route handler")
	}
	if got := ctx.Response.StatusCode(); got != consts.StatusNoContent {
		t.Fatalf("status = %d, want %d", got, consts.StatusNoContent)
	}
	if got, want := header(ctx, "Access-Control-Allow-Origin"), "*"; got != want {
		t.Fatalf("allow-origin mismatch: got=%q want=%q", got, want)
	}
	if got, want := header(ctx, "Access-Control-Allow-Methods"), corsControlMethods; got != want {
		t.Fatalf("allow-methods mismatch: got=%q want=%q", got, want)
	}
	if got, want := header(ctx, "Access-Control-Allow-Headers"), corsAllowHeaders; got != want {
		t.Fatalf("allow-headers mismatch: got=%q want=%q", got, want)
	}
}

func TestCORSReadRouteAdvertisesGet(t *testing.T) {
	ctx := corsRequest(consts.MethodOptions, "/runs/abc", "http://ui.local")
	corsMiddleware(nil)(context.Background(), ctx)

	if got, want := header(ctx, "Access-Control-Allow-Methods"), corsReadMethods; got != want {
		t.Fatalf("allow-methods mismatch: got=%q want=%q", got, want)
	}
}

func TestCORSPassesThroughNonPreflight(t *testing.T) {
	ctx := corsRequest(consts.MethodGet, "/state", "http://ui.local")
	corsMiddleware(nil)(context.Background(), ctx)

	if ctx.IsAborted() {
		t.Fatal("GET should continue to the route handler")
	}
	if got := header(ctx, "Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestCORSWithoutOriginSetsNoHeaders(t *testing.T) {
	ctx := corsRequest(consts.MethodPost, "/step", "")
	corsMiddleware(nil)(context.Background(), ctx)

	if ctx.IsAborted() {
		t.Fatal("same-origin request should continue")
	}
	if got := header(ctx, "Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("allow-origin = %q, want none", got)
	}
}

func TestCORSAllowList(t *testing.T) {
	mw := corsMiddleware([]string{"http://ui.local/", " http://ops.local "})

	ok := corsRequest(consts.MethodOptions, "/start", "http://ops.local")
	mw(context.Background(), ok)
	if got := ok.Response.StatusCode(); got != consts.StatusNoContent {
		t.Fatalf("status = %d", got)
	}
	if got := header(ok, "Access-Control-Allow-Origin"); got != "http://ops.local" {
		t.Fatalf("allow-origin = %q", got)
	}
	if got := header(ok, "Vary"); got != "Origin" {
		t.Fatalf("vary = %q", got)
	}

	denied := corsRequest(consts.MethodOptions, "/start", "http://evil.local")
	mw(context.Background(), denied)
	if got := denied.Response.StatusCode(); got != consts.StatusForbidden {
		t.Fatalf("status = %d, want %d", got, consts.StatusForbidden)
	}
	if got := header(denied, "Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("allow-origin = %q, want none", got)
	}
}
