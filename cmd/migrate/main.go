package main

import (
	"context"
	"os"

	"ticket-checkout/internal/logger"
	"ticket-checkout/internal/migration"
)

func main() {
	log := logger.NewLogger()
	defer log.Close()

	opts, err := migration.ParseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if file := migration.LoadEnv(opts.Env, opts.EnvFile); file != "" {
		log.Info("ENV", "Loaded environment from "+file)
	} else {
		log.Warn("ENV", "No .env file found, using system environment variables")
	}

	if err := migration.Run(context.Background(), opts, os.Stdout, log); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
}
