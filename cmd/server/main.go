package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hanzzx311/skyport/internal/platform/version"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:    "skyport",
		Usage:   "Game server management panel",
		Version: version.Version,
		Action:  serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the panel web server",
				Action: serve,
			},
			{
				Name:   "version",
				Usage:  "Print build information",
				Action: printVersion,
			},
			{
				Name:  "sessions",
				Usage: "Manage stored sessions",
				Commands: []*cli.Command{
					{
						Name:   "prune",
						Usage:  "Delete expired sessions from the database",
						Action: pruneSessions,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func printVersion(_ context.Context, _ *cli.Command) error {
	info := version.Get()
	fmt.Printf("skyport %s (commit %s, built %s, %s)\n", info.Version, info.Commit, info.BuildTime, info.GoVersion)
	return nil
}
