// ABOUTME: HTTP API server subcommand
// ABOUTME: Serves the calendar JSON API until interrupted
package cli

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/studypilot/app"
	"github.com/harperreed/studypilot/web"
)

// ServeCommand starts the HTTP API and blocks until SIGINT or SIGTERM.
func ServeCommand(a *app.App, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", a.Config.HTTPPort, "Port to listen on")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return web.NewServer(a).Start(ctx, *port)
}
