package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	_ "modernc.org/sqlite"

	"rss_relay/internal/storage"
	"rss_relay/migrations"
)

var usages = map[string]string{
	"up":      "Migrate to the latest version",
	"up-one":  "Migrate one version up",
	"down":    "Roll back one version",
	"status":  "Show migration status",
	"version": "Show current version",
	"reset":   "Roll back all migrations",
}

func main() {
	if err := app().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func app() *cli.App {
	var cmds []*cli.Command
	for _, name := range migrations.Commands {
		cmds = append(cmds, gooseCmd(name))
	}
	cmds = append(cmds, watermarkCmd())

	return &cli.App{
		Name:  "migrate",
		Usage: "Manage the relay database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Usage:   "path to sqlite database",
				EnvVars: []string{"DATABASE_LOCATION"},
				Value:   "./data/bot.db",
			},
		},
		Commands: cmds,
	}
}

func gooseCmd(name string) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usages[name],
		Action: func(ctx *cli.Context) error {
			db, err := sql.Open("sqlite", ctx.String("db"))
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = db.Close() }()
			return migrations.Apply(db, name)
		},
	}
}

func watermarkCmd() *cli.Command {
	return &cli.Command{
		Name:  "watermark",
		Usage: "Inspect or clear the last announced link",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the last announced link",
				Action: func(ctx *cli.Context) error {
					store, err := storage.NewSQLite(ctx.String("db"))
					if err != nil {
						return err
					}
					defer func() { _ = store.Close() }()

					link, ok, err := store.GetSetting(ctx.Context, storage.KeyLastSeenLink)
					if err != nil {
						return err
					}
					if !ok {
						fmt.Println("no entry has been seen yet")
						return nil
					}
					fmt.Println(link)
					return nil
				},
			},
			{
				Name:        "clear",
				Usage:       "Forget the last announced link",
				Description: "The next poll is treated as the first one and follows FIRST_POLL.",
				Action: func(ctx *cli.Context) error {
					store, err := storage.NewSQLite(ctx.String("db"))
					if err != nil {
						return err
					}
					defer func() { _ = store.Close() }()

					if err := store.DeleteSetting(ctx.Context, storage.KeyLastSeenLink); err != nil {
						return err
					}
					fmt.Println("watermark cleared")
					return nil
				},
			},
		},
	}
}
