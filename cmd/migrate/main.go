package main

import (
	"context"
	"flag"
	"fmt"

	"sharecrop/internal/config"
	"sharecrop/internal/database"
	"sharecrop/internal/database/migrations"
	"sharecrop/internal/logger"
)

func main() {
	down := flag.Bool("down", false, "roll back every migration")
	to := flag.Uint("to", 0, "migrate to this version instead of the latest")
	flag.Parse()

	log := logger.NewLogger()
	defer log.Close()

	cfg := config.Load()
	if cfg.Database.Driver != "postgres" {
		log.Fatal("MIGRATE", fmt.Sprintf("migrations target postgres, DB_DRIVER is %q", cfg.Database.Driver))
	}

	bunDB, err := database.Open(context.Background(), cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, log)
	defer runner.Close()

	switch {
	case *down:
		err = runner.MigrateDown()
	case *to > 0:
		err = runner.MigrateTo(*to)
	default:
		err = runner.MigrateUp()
	}
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	log.Info("MIGRATE", "✅ Migrations complete")
}
