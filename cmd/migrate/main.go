package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/tableside-backend/pkg/config"
	"github.com/angelmondragon/tableside-backend/pkg/db"
	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
	"github.com/angelmondragon/tableside-backend/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate|automigrate")
	dir := flag.String("dir", "", "migrations directory; empty uses the migrations built into the binary")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	switch *cmd {
	case "create":
		if *name == "" {
			exitf("missing -name for create")
		}
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, *name)
		if err != nil {
			exitf("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		source, err := migrate.Source(*dir)
		if err != nil {
			exitf("%v", err)
		}
		files, err := migrate.Validate(source)
		if err != nil {
			exitf("migration validation failed: %v", err)
		}
		fmt.Printf("migration validation passed (%d files)\n", len(files))
		return
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    *cmd,
		"dir":    *dir,
		"driver": cfg.DB.Driver,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	if cfg.DB.IsSQLite() {
		// The SQL migrations target postgres; sqlite schemas come from the models.
		if *cmd != "up" && *cmd != "automigrate" {
			exitf("-cmd=%s is not supported for the sqlite driver", *cmd)
		}
		if err := dbClient.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			exitf("sqlite automigrate failed: %v", err)
		}
		logg.Info(ctx, "sqlite schema migrated from models")
		return
	}

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	source, err := migrate.Source(*dir)
	requireResource(ctx, logg, "migrations source", err)
	runner, err := migrate.NewRunner(sqlDB, source)
	requireResource(ctx, logg, "goose provider", err)

	if err := runGoose(ctx, runner, *cmd, *version); err != nil {
		exitf("%v", err)
	}
	logg.Info(ctx, "migrate finished")
}

func runGoose(ctx context.Context, runner *migrate.Runner, cmd, version string) error {
	var (
		steps []migrate.Step
		err   error
	)
	switch cmd {
	case "up":
		steps, err = runner.Up(ctx)
	case "down":
		steps, err = runner.Down(ctx)
	case "version":
		if version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		target, parseErr := strconv.ParseInt(version, 10, 64)
		if parseErr != nil {
			return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", version, parseErr)
		}
		steps, err = runner.To(ctx, target)
	case "status":
		statuses, statusErr := runner.Status(ctx)
		if statusErr != nil {
			return statusErr
		}
		for _, st := range statuses {
			state := "pending"
			if st.Applied {
				state = "applied " + st.AppliedAt.Format(time.RFC3339)
			}
			fmt.Printf("%d\t%s\t%s\n", st.Version, st.Path, state)
		}
		return nil
	case "automigrate":
		return fmt.Errorf("automigrate is only available for the sqlite driver")
	default:
		return fmt.Errorf("unknown -cmd value: %s", cmd)
	}
	if err != nil {
		return err
	}
	for _, step := range steps {
		fmt.Printf("%s %d %s (%s)\n", step.Direction, step.Version, step.Path, step.Duration)
	}
	if len(steps) == 0 {
		fmt.Println("schema already at target version")
	}
	return nil
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
