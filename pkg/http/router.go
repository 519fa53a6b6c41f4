package xhttp

import (
	"github.com/fasthttp/router"
)

type Router = router.Router

func NewRouter() *Router {
	return router.New()
}

// CreateDefaultRouter returns a router with sane defaults: fixed-path and
// trailing-slash redirects, a JSON-less 404/405, OPTIONS disabled.
func CreateDefaultRouter() *Router {
	r := NewRouter()
	r.RedirectFixedPath = true
	r.RedirectTrailingSlash = true
	r.SaveMatchedRoutePath = true
	r.NotFound = NotFoundHandler
	r.MethodNotAllowed = NotFoundHandler
	r.HandleOPTIONS = false
	r.HandleMethodNotAllowed = true
	return r
}

func NotFoundHandler(ctx *RequestCtx) {
	ctx.Error(StatusText(StatusNotFound), StatusNotFound)
}
