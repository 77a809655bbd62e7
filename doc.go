/*
Package corehttpd is the root of an embeddable HTTP/1.x server library:
an application links the package in, starts a Daemon against a single
request callback, and owns the process — there is no framework-level
main loop or routing layer baked into the core.

Quick start

	package main

	import (
		"github.com/searchktools/corehttpd/conn"
		"github.com/searchktools/corehttpd/daemon"
		"github.com/searchktools/corehttpd/httpmsg"
		"github.com/searchktools/corehttpd/response"
	)

	func main() {
		handler := func(c *conn.Connection, req *httpmsg.Request, uploadChunk []byte) *response.Response {
			if uploadChunk != nil {
				return nil
			}
			c.SetStatus(200)
			return response.FromBuffer([]byte("hello\n"))
		}

		d, err := daemon.Start(":8080", daemon.FlagUseThreadPerConnection, handler)
		if err != nil {
			panic(err)
		}
		defer d.Stop()
		select {}
	}

Modules

	daemon            server lifecycle: Start/Stop/Quiesce, driver selection, per-IP admission
	conn              per-connection request/response state machine
	httpmsg           request-line/header/chunk parsing
	response          queueable Response: fixed buffer, file, pull-callback, or upgrade handoff
	pool              per-connection scratch buffer allocation
	iplimiter         per-IP concurrent connection admission control
	driver            external/internal-poll/thread-per-connection event loops
	core/pools        byte-buffer pooling, worker pools, GC tuning (ambient, opt-in)
	core/sendfile     zero-copy file transmission backing response.FromFile
	core/observability ambient per-connection metrics, fed from daemon's NotifyCompleted
	core/optimize     ASCII case-insensitive comparison behind request-header lookups
	core/router       optional radix-tree path/method dispatcher, not used by the core
	core/middleware   optional middleware pipeline, not used by the core

WebSocket and Server-Sent Events are not part of the core contract —
the core exposes the HTTP/1.x Upgrade handshake and chunked
pull-callback responses they would build on, and this module ships no
WebSocket or SSE code.

config and app are an optional flag/environment-configured entrypoint
layer: config.New loads a daemon.Options from flags and FASTSERVER_-
prefixed environment variables, and app.New/Run starts a Daemon against
it with signal-driven Quiesce-then-Stop shutdown. cmd/server wires the
two together; an embedder that wants its own configuration story can
ignore both and call daemon.Start directly.
*/
package corehttpd
