package migration

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/joho/godotenv"

	"ticket-checkout/internal/config"
	"ticket-checkout/internal/logger"
	"ticket-checkout/internal/services"
	"ticket-checkout/internal/storage"
)

type Options struct {
	Env     string
	EnvFile string
	Seed    bool
	// DryRun prints the schema DDL instead of connecting to MySQL.
	DryRun bool
}

func ParseFlags(args []string) (*Options, error) {
	opts := &Options{}
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.StringVar(&opts.Env, "env", "dev", "Environment (dev, test, prod)")
	fs.StringVar(&opts.EnvFile, "env-file", "", "Path to .env file")
	fs.BoolVar(&opts.Seed, "seed", false, "Replace the catalog with demo data and drop every basket")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print the schema without touching the database")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

// LoadEnv loads the first env file found among envFile, .env.<env> and .env,
// returning its name or "" when none exists.
func LoadEnv(env, envFile string) string {
	candidates := []string{fmt.Sprintf(".env.%s", env), ".env"}
	if envFile != "" {
		candidates = append([]string{envFile}, candidates...)
	}
	for _, file := range candidates {
		if err := godotenv.Load(file); err == nil {
			return file
		}
	}
	return ""
}

// Run creates the schema and makes sure the sentinel catalog rows exist,
// seeding demo inventory when asked.
func Run(ctx context.Context, opts *Options, out io.Writer, log *logger.Logger) error {
	if opts.DryRun {
		for _, stmt := range storage.SchemaStatements() {
			fmt.Fprintf(out, "%s;\n\n", strings.TrimSpace(stmt))
		}
		return nil
	}

	cfg := config.Load()
	store, err := storage.NewMySQLStore(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	inventory := services.NewInventoryService(store, log, cfg.Checkout)
	if !opts.Seed {
		if err := inventory.EnsureSentinels(ctx); err != nil {
			return fmt.Errorf("failed to write sentinel catalog: %w", err)
		}
		fmt.Fprintln(out, "Migration completed successfully")
		return nil
	}

	catalog, err := inventory.Seed(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	fmt.Fprintf(out, "Migration completed successfully, seeded %d events with %d seats\n",
		len(catalog.Events), len(catalog.Seats))
	return nil
}
