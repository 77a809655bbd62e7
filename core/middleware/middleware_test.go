package middleware

import (
	"sync/atomic"
	"testing"
	"time"
)

func newTestContext() *Context {
	return &Context{status: 200}
}

func TestPipelineBasic(t *testing.T) {
	pipeline := NewPipeline()

	executed := false
	mw := func(ctx *Context) {
		executed = true
	}

	pipeline.Use(mw)

	ctx := newTestContext()
	finalHandler := func(ctx *Context) {}

	pipeline.Execute(ctx, finalHandler)

	if !executed {
		t.Error("Middleware was not executed")
	}
}

func TestPipelineAbort(t *testing.T) {
	pipeline := NewPipeline()

	middleware1Executed := false
	middleware2Executed := false
	finalExecuted := false

	middleware1 := func(ctx *Context) {
		middleware1Executed = true
		ctx.Abort()
	}

	middleware2 := func(ctx *Context) {
		middleware2Executed = true
	}

	pipeline.Use(middleware1)
	pipeline.Use(middleware2)

	ctx := newTestContext()
	finalHandler := func(ctx *Context) {
		finalExecuted = true
	}

	pipeline.Execute(ctx, finalHandler)

	if !middleware1Executed {
		t.Error("Middleware 1 should be executed")
	}
	if middleware2Executed {
		t.Error("Middleware 2 should not be executed after abort")
	}
	if finalExecuted {
		t.Error("Final handler should not be executed after abort")
	}
}

func TestPipelineOrder(t *testing.T) {
	pipeline := NewPipeline()

	order := []int{}

	middleware1 := func(ctx *Context) { order = append(order, 1) }
	middleware2 := func(ctx *Context) { order = append(order, 2) }
	middleware3 := func(ctx *Context) { order = append(order, 3) }

	pipeline.Use(middleware1)
	pipeline.Use(middleware2)
	pipeline.Use(middleware3)

	ctx := newTestContext()
	finalHandler := func(ctx *Context) { order = append(order, 4) }

	pipeline.Execute(ctx, finalHandler)

	expected := []int{1, 2, 3, 4}
	if len(order) != len(expected) {
		t.Fatalf("Expected %d executions, got %d", len(expected), len(order))
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("Expected order[%d] = %d, got %d", i, v, order[i])
		}
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	pipeline := NewPipeline()
	pipeline.Use(Recovery())

	ctx := newTestContext()
	finalHandler := func(ctx *Context) {
		panic("test panic")
	}

	pipeline.Execute(ctx, finalHandler)

	if !ctx.IsAborted() {
		t.Error("Recovery should abort the chain after catching a panic")
	}
	if ctx.status != 500 {
		t.Errorf("expected status 500 after recovered panic, got %d", ctx.status)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	mw := RequestID()

	ctx := newTestContext()
	mw(ctx)

	found := false
	for _, h := range ctx.headers {
		if h[0] == "X-Request-ID" {
			found = true
		}
	}
	if !found {
		t.Error("RequestID middleware should set X-Request-ID header")
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := RateLimiter(2)

	ctx1 := newTestContext()
	ctx2 := newTestContext()
	ctx3 := newTestContext()

	limiter(ctx1)
	if ctx1.IsAborted() {
		t.Error("First request should not be rate limited")
	}

	limiter(ctx2)
	if ctx2.IsAborted() {
		t.Error("Second request should not be rate limited")
	}

	limiter(ctx3)
	if !ctx3.IsAborted() {
		t.Error("Third request should be rate limited")
	}

	time.Sleep(1100 * time.Millisecond)

	ctx4 := newTestContext()
	limiter(ctx4)
	if ctx4.IsAborted() {
		t.Error("Request after refill should not be rate limited")
	}
}

func TestAsyncPipeline(t *testing.T) {
	asyncPipeline := NewAsyncPipeline(2)

	syncExecuted := false
	var asyncExecuted atomic.Bool

	syncMiddleware := func(ctx *Context) {
		syncExecuted = true
	}

	asyncMiddleware := func(ctx *Context) {
		asyncExecuted.Store(true)
	}

	asyncPipeline.UseSync(syncMiddleware)
	asyncPipeline.UseAsync(asyncMiddleware)

	ctx := newTestContext()
	finalHandler := func(ctx *Context) {}

	asyncPipeline.Execute(ctx, finalHandler)

	if !syncExecuted {
		t.Error("Sync middleware was not executed")
	}

	time.Sleep(100 * time.Millisecond)

	if !asyncExecuted.Load() {
		t.Error("Async middleware was not executed")
	}
}

func BenchmarkPipeline(b *testing.B) {
	pipeline := NewPipeline()

	middleware1 := func(ctx *Context) {}
	middleware2 := func(ctx *Context) {}
	middleware3 := func(ctx *Context) {}

	pipeline.Use(middleware1)
	pipeline.Use(middleware2)
	pipeline.Use(middleware3)
	pipeline.Compile()

	ctx := newTestContext()
	finalHandler := func(ctx *Context) {}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pipeline.Execute(ctx, finalHandler)
		ctx.Reset(0, nil)
	}
}

func BenchmarkRecoveryMiddleware(b *testing.B) {
	mw := Recovery()
	ctx := newTestContext()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mw(ctx)
		ctx.Reset(0, nil)
	}
}

func BenchmarkRequestIDMiddleware(b *testing.B) {
	mw := RequestID()
	ctx := newTestContext()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mw(ctx)
		ctx.Reset(0, nil)
	}
}

func BenchmarkRateLimiter(b *testing.B) {
	mw := RateLimiter(1000000)
	ctx := newTestContext()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mw(ctx)
		ctx.Reset(0, nil)
	}
}
