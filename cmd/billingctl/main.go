// Command billingctl is the admin CLI of the billing engine: schema
// migrations, demo data, API keys, offline PDF rendering and page layout previews.
package main

import (
	"fmt"
	"os"

	"github.com/diewo77/go-billing/internal/logger"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		log := logger.WithComponent("billingctl")
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
