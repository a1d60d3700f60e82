// migrate applies the embedded support schema: go run ./cmd/migrate -direction up.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"omnichannel-support/internal/config"
	"omnichannel-support/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	steps := flag.Int("steps", 0, "Number of versions to move; 0 applies all")
	version := flag.Bool("version", false, "Print the applied schema version and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}

	if *version {
		v, dirty, err := migrate.Version(cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
		fmt.Printf("version %d (dirty=%v)\n", v, dirty)
		return
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction, *steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
