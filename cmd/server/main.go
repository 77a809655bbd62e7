// Command server is the flag/env-configured entrypoint: config.New loads
// a Config from flags and FASTSERVER_ environment variables, app.New
// starts a Daemon against it, and Run blocks for SIGINT/SIGTERM.
package main

import (
	"fmt"
	"log"

	"github.com/searchktools/corehttpd/app"
	"github.com/searchktools/corehttpd/conn"
	"github.com/searchktools/corehttpd/config"
	"github.com/searchktools/corehttpd/daemon"
	"github.com/searchktools/corehttpd/httpmsg"
	"github.com/searchktools/corehttpd/response"
)

func handler(c *conn.Connection, req *httpmsg.Request, uploadChunk []byte) *response.Response {
	if uploadChunk != nil {
		return nil
	}
	c.SetStatus(200)
	switch string(req.Path) {
	case "/api/status":
		r := response.FromBuffer([]byte(`{"status":"ok"}`))
		_ = r.AddHeader("Content-Type", "application/json")
		return r
	default:
		return response.FromBuffer([]byte(fmt.Sprintf("%s %s\n", req.MethodRaw, req.Path)))
	}
}

func main() {
	cfg := config.New()

	a, err := app.New(cfg, daemon.FlagUseThreadPerConnection, handler)
	if err != nil {
		log.Fatalf("server: %v", err)
	}
	a.Run()
}
