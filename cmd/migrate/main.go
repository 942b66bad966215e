// migrate applies the embedded Postgres migrations. SQLite stores create their schema on open.
//
//	go run ./cmd/migrate --direction up
//	go run ./cmd/migrate --version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"geoqueue/backend/internal/config"
	"geoqueue/backend/internal/db/migrate"
)

func main() {
	direction := pflag.StringP("direction", "d", "up", "Migration direction: up or down")
	showVersion := pflag.Bool("version", false, "Print the current schema version and exit")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseDriver == config.DriverSQLite {
		fmt.Fprintln(os.Stderr, "migrate: DATABASE_DRIVER=sqlite applies its schema on open; nothing to do")
		return
	}

	if *showVersion {
		st, err := migrate.Version(cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
		switch {
		case st.Empty:
			fmt.Println("no migrations applied")
		case st.Dirty:
			fmt.Printf("version %d (dirty)\n", st.Version)
		default:
			fmt.Printf("version %d\n", st.Version)
		}
		return
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
