package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"CoverLedger/internal/observability"
	"CoverLedger/internal/persistence"

	_ "github.com/lib/pq"
)

const usage = `Usage: migrate <up|down>

  up     apply all pending migrations
  down   roll back the most recent migration

Environment:
  COVER_POSTGRES_DSN     Postgres connection string
  COVER_MIGRATIONS_DIR   migrations directory (default: migrations)
`

func main() {
	if len(os.Args) != 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	cmd := os.Args[1]
	if cmd != "up" && cmd != "down" {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(1)
	}

	log := observability.NewLogger("migrate")

	dsn := os.Getenv("COVER_POSTGRES_DSN")
	if dsn == "" {
		dsn = "postgres://localhost:5432/coverledger?sslmode=disable"
	}
	dir := os.Getenv("COVER_MIGRATIONS_DIR")
	if dir == "" {
		dir = "migrations"
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	ctx := context.Background()
	m := persistence.NewMigrator(db, dir, log)

	if cmd == "up" {
		if err := m.Up(ctx); err != nil {
			log.Fatal().Err(err).Msg("migrate up")
		}
		log.Info().Msg("migrations applied")
		return
	}
	if err := m.Down(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrate down")
	}
	log.Info().Msg("last migration rolled back")
}
