// Command hotfire-controller is the process entrypoint: it takes the
// configuration file path and the log directory as positional
// arguments (spec.md §6) and runs the supervisor until it receives
// SIGINT or SIGTERM. Grounded on the construct-then-serve shape of the
// teacher's cmd/edgeflow/main.go.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hotfire/controller/internal/applog"
	"github.com/hotfire/controller/internal/supervisor"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <config.json> <log-dir>\n", os.Args[0])
		os.Exit(2)
	}
	configPath := os.Args[1]
	logDir := os.Args[2]

	if err := applog.Init(applog.DefaultConfig(logDir)); err != nil {
		fmt.Fprintf(os.Stderr, "hotfire-controller: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer applog.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := supervisor.Run(ctx, configPath, logDir); err != nil {
		applog.Error("hotfire-controller: fatal error", zap.Error(err))
		fmt.Fprintf(os.Stderr, "hotfire-controller: %v\n", err)
		os.Exit(1)
	}
}
