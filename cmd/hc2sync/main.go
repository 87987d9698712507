// hc2sync keeps a live model of a Fibaro Home Center 2 and relays its
// device property changes.
//
// One-shot commands inspect the controller (rooms, devices, identifiers,
// actions) or invoke an action. The run command starts the daemon: the
// event loop feeding SQLite history, MQTT, InfluxDB and the HTTP/WebSocket
// API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	exitSuccess = 0
	exitFailure = 1
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := newApp(os.Stdout, os.Stderr)
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		cancel()
		os.Exit(exitFailure)
	}
	os.Exit(exitSuccess)
}
