// Command importer runs courier data imports from the command line against
// the same store the server uses.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/JonMunkholm/courierimport/internal/core/tables" // Register all tables
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
