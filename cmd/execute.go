// Package cmd contains the command-line entry points for cambio.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/cambio-ai/cambio/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point. Routes to the requested command;
// serving is the default.
func Execute() error {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			return printVersionInfo()
		case "help", "--help", "-h":
			printHelp()
			return nil
		case "serve":
			// Explicit form of the default.
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
			printHelp()
			return fmt.Errorf("unknown command %q", os.Args[1])
		}
	}

	// Load .env before anything reads the environment. A missing file
	// is fine; local development convenience only.
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded environment from .env")
	}

	logger := initLogger()
	slog.SetDefault(logger)

	return runServe(logger)
}

// initLogger builds the process logger. Debug level and JSON output
// are controlled by environment variables so they apply before config
// loading.
func initLogger() *slog.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("CAMBIO_DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	if os.Getenv("CAMBIO_LOG_JSON") != "" {
		cfg.JSON = true
	}
	return log.New(cfg)
}

func printHelp() {
	fmt.Println("cambio - currency-aware chat agent")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  cambio              Start the HTTP server (default)")
	fmt.Println("  cambio serve        Start the HTTP server")
	fmt.Println("  cambio version      Show version information")
	fmt.Println("  cambio help         Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  CAMBIO_ENDPOINT     Model endpoint URL")
	fmt.Println("  CAMBIO_DEPLOYMENT   Model deployment identifier")
	fmt.Println("  CAMBIO_API_VERSION  Model API version")
	fmt.Println("  CAMBIO_API_KEY      Optional: static API key (ambient identity when unset)")
	fmt.Println("  CAMBIO_PORT         Listen port (default 8080)")
	fmt.Println("  CAMBIO_DEBUG        Optional: enable debug logging")
	fmt.Println()
	fmt.Println("Configuration can also be provided via ./cambio.yaml or ~/.cambio/config.yaml.")
}
