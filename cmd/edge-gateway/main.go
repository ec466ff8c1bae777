// Edge-gateway is a caching HTTP gateway in front of the knowledge-graph API.
// Global, slow-changing reads are served from a shared cache; everything else
// is forwarded to the origin untouched.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/kg-edge-gateway/pkg/config"
	"github.com/Sternrassler/kg-edge-gateway/pkg/logging"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("edge-gateway", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LoggingConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()

	if err != nil {
		logger.Error().Err(err).Msg("Gateway stopped with error")
		os.Exit(1)
	}
}
