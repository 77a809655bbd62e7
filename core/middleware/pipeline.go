// Package middleware is an example-level composition helper over a
// conn.RequestCallback: it has no bearing on the core's contract (the
// library exposes exactly one callback point, not a middleware chain)
// but demonstrates the common before/after-handler pattern applications
// reach for once they have more than one concern (logging, CORS, rate
// limiting) to apply per request.
package middleware

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/searchktools/corehttpd/conn"
	"github.com/searchktools/corehttpd/httpmsg"
	"github.com/searchktools/corehttpd/response"
)

// Context carries one request through a Pipeline. It accumulates the
// eventual response (status, headers, body) so middlewares can inspect
// or override what an earlier stage decided, then hands a frozen
// *response.Response back to the connection once the chain finishes.
type Context struct {
	Conn *conn.Connection
	Req  *httpmsg.Request

	aborted bool
	status  int
	headers [][2]string
	body    []byte
	resp    *response.Response // set by SetResponse to bypass the buffer path (file/pull/upgrade bodies)
}

func newContext(c *conn.Connection, req *httpmsg.Request) *Context {
	return &Context{Conn: c, Req: req, status: 200}
}

func (ctx *Context) Method() string { return string(ctx.Req.MethodRaw) }
func (ctx *Context) Path() string   { return string(ctx.Req.Path) }

func (ctx *Context) SetHeader(name, value string) {
	ctx.headers = append(ctx.headers, [2]string{name, value})
}

func (ctx *Context) Status(code int) { ctx.status = code }
func (ctx *Context) Abort()          { ctx.aborted = true }
func (ctx *Context) IsAborted() bool { return ctx.aborted }

// Reset clears abort/status/header/body state so a Context can be reused
// across benchmark iterations or pooled instances.
func (ctx *Context) Reset(status int, req *httpmsg.Request) {
	if status == 0 {
		status = 200
	}
	ctx.status = status
	ctx.aborted = false
	ctx.headers = ctx.headers[:0]
	ctx.body = nil
	if req != nil {
		ctx.Req = req
	}
}

// Text sets a plain-text body and aborts remaining middlewares, mirroring
// an early-return handler.
func (ctx *Context) Text(body string) {
	ctx.body = []byte(body)
	ctx.Abort()
}

// JSON marshals v as the body and sets status, aborting remaining
// middlewares.
func (ctx *Context) JSON(status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		ctx.status = 500
		ctx.body = []byte(`{"error":"marshal failure"}`)
	} else {
		ctx.status = status
		ctx.body = b
	}
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Abort()
}

// SetResponse attaches a pre-built Response (e.g. response.FromFile or
// response.FromCallback) as the terminal handler's result, bypassing the
// in-memory body buffer. Any headers already set via SetHeader are
// applied to it.
func (ctx *Context) SetResponse(r *response.Response) {
	ctx.resp = r
}

func (ctx *Context) response() *response.Response {
	r := ctx.resp
	if r == nil {
		r = response.FromBuffer(ctx.body)
	}
	for _, h := range ctx.headers {
		_ = r.AddHeader(h[0], h[1])
	}
	return r
}

// HandlerFunc is one middleware or terminal handler stage.
type HandlerFunc func(*Context)

// Pipeline is a middleware chain executed in registration order, short-
// circuited by Context.Abort.
type Pipeline struct {
	handlers []HandlerFunc
	length   int
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{handlers: make([]HandlerFunc, 0, 16)}
}

// Use appends a middleware.
func (p *Pipeline) Use(handler HandlerFunc) *Pipeline {
	p.handlers = append(p.handlers, handler)
	p.length = len(p.handlers)
	return p
}

// Execute runs every middleware in order, stopping early if one aborts,
// then runs finalHandler unless the chain was aborted.
func (p *Pipeline) Execute(ctx *Context, finalHandler HandlerFunc) {
	for i := 0; i < p.length; i++ {
		p.handlers[i](ctx)
		if ctx.IsAborted() {
			return
		}
	}
	finalHandler(ctx)
}

// Compile pre-allocates an exact-size handler slice, avoiding the
// doubling growth of append for a pipeline whose middleware set is
// already final.
func (p *Pipeline) Compile() *Pipeline {
	compiled := make([]HandlerFunc, len(p.handlers))
	copy(compiled, p.handlers)
	p.handlers = compiled
	p.length = len(compiled)
	return p
}

// Dispatch adapts the pipeline plus a terminal handler into a
// conn.RequestCallback, matching router.RadixRouter.Dispatch's shape so
// the two compose: route first, then run the matched handler through a
// pipeline.
func (p *Pipeline) Dispatch(final HandlerFunc) conn.RequestCallback {
	return func(c *conn.Connection, req *httpmsg.Request, uploadChunk []byte) *response.Response {
		if uploadChunk != nil {
			return nil
		}
		ctx := newContext(c, req)
		p.Execute(ctx, final)
		c.SetStatus(ctx.status)
		return ctx.response()
	}
}

// AsyncPipeline runs a synchronous Pipeline followed by a set of
// fire-and-forget middlewares (logging, metrics) dispatched onto a fixed
// worker channel so they never add response latency.
type AsyncPipeline struct {
	sync     *Pipeline
	async    []AsyncHandlerFunc
	pool     sync.Pool
	workerCh chan asyncTask
}

// AsyncHandlerFunc is a middleware that runs after the response is
// decided, observing the final Context but unable to change it.
type AsyncHandlerFunc func(*Context)

type asyncTask struct {
	handler AsyncHandlerFunc
	ctx     *Context
}

// NewAsyncPipeline creates a pipeline with the given number of async
// worker goroutines (4 when workers <= 0).
func NewAsyncPipeline(workers int) *AsyncPipeline {
	if workers <= 0 {
		workers = 4
	}
	p := &AsyncPipeline{
		sync:     NewPipeline(),
		async:    make([]AsyncHandlerFunc, 0, 8),
		workerCh: make(chan asyncTask, 256),
	}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *AsyncPipeline) worker() {
	for task := range p.workerCh {
		task.handler(task.ctx)
	}
}

// UseSync adds a synchronous middleware, run before the terminal handler.
func (p *AsyncPipeline) UseSync(handler HandlerFunc) *AsyncPipeline {
	p.sync.Use(handler)
	return p
}

// UseAsync adds an async observer, run after the response is decided.
func (p *AsyncPipeline) UseAsync(handler AsyncHandlerFunc) *AsyncPipeline {
	p.async = append(p.async, handler)
	return p
}

// Execute runs the synchronous chain inline, then fans ctx out to every
// async observer over the worker channel (falling back to inline
// execution if the channel is full).
func (p *AsyncPipeline) Execute(ctx *Context, finalHandler HandlerFunc) {
	p.sync.Execute(ctx, finalHandler)
	for _, handler := range p.async {
		task := asyncTask{handler: handler, ctx: ctx}
		select {
		case p.workerCh <- task:
		default:
			handler(ctx)
		}
	}
}

// Dispatch mirrors Pipeline.Dispatch, additionally fanning the finished
// Context out to every async observer.
func (p *AsyncPipeline) Dispatch(final HandlerFunc) conn.RequestCallback {
	return func(c *conn.Connection, req *httpmsg.Request, uploadChunk []byte) *response.Response {
		if uploadChunk != nil {
			return nil
		}
		ctx := newContext(c, req)
		p.Execute(ctx, final)
		c.SetStatus(ctx.status)
		return ctx.response()
	}
}

// Common middleware implementations.

// Recovery recovers from a panic inside a later middleware or the
// terminal handler, turning it into a 500 instead of crashing the
// connection's goroutine.
func Recovery() HandlerFunc {
	return func(ctx *Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("middleware: panic recovered: %v", err)
				ctx.JSON(500, map[string]any{"error": "internal server error"})
			}
		}()
	}
}

// Logger logs method and path for every request.
func Logger() AsyncHandlerFunc {
	return func(ctx *Context) {
		log.Printf("[%s] %s -> %d", ctx.Method(), ctx.Path(), ctx.status)
	}
}

// CORS adds permissive CORS headers and short-circuits preflight
// OPTIONS requests with 204.
func CORS() HandlerFunc {
	return func(ctx *Context) {
		ctx.SetHeader("Access-Control-Allow-Origin", "*")
		ctx.SetHeader("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		ctx.SetHeader("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if ctx.Method() == "OPTIONS" {
			ctx.Status(204)
			ctx.Abort()
		}
	}
}

// RateLimiter implements a simple per-process token-bucket limiter
// shared across every request through this middleware instance.
func RateLimiter(requestsPerSecond int) HandlerFunc {
	var (
		tokens     int
		lastRefill time.Time
		mu         sync.Mutex
	)
	tokens = requestsPerSecond
	lastRefill = time.Now()

	return func(ctx *Context) {
		mu.Lock()
		now := time.Now()
		if now.Sub(lastRefill) > time.Second {
			tokens = requestsPerSecond
			lastRefill = now
		}
		if tokens > 0 {
			tokens--
			mu.Unlock()
			return
		}
		mu.Unlock()
		ctx.JSON(429, map[string]any{"error": "too many requests"})
	}
}

// RequestID stamps every response with a monotonically increasing
// X-Request-ID header.
func RequestID() HandlerFunc {
	var counter uint64
	return func(ctx *Context) {
		id := atomic.AddUint64(&counter, 1)
		ctx.SetHeader("X-Request-ID", fmt.Sprintf("%d", id))
	}
}
