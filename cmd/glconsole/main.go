// glconsole is the installer console backend.
//
// It answers the two questions an installer asks while wiring a central:
// which input or output ports still have room (and at which sequence slot
// the next device goes), and where an existing device already sits.
//
// Hardware state comes from the business backend over HTTP, from a local
// SQLite replica, or from a fixture file. Results are cached, invalidated
// by commit announcements on MQTT, and pushed to open forms over WebSocket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-installer/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
