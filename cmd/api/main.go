// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Fitclub HTTP API server.
//
// # Commands
//
//	api serve [--in-memory]         Start the HTTP server.
//	api migrate up                  Apply every pending migration.
//	api migrate down [steps]        Roll back migrations (default 1).
//	api migrate force <version>     Clear a dirty schema at version.
//	api migrate version             Print the schema version.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/taibuivan/fitclub/internal/platform/constants"
)

func main() {
	os.Exit(execute())
}

// execute runs the root command and maps failures to the exit code.
func execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "api",
		Short:         "Fitclub identity and membership API",
		Version:       constants.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())

	return rootCmd
}

// newLogger builds the JSON logger every command writes to.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("app", constants.AppName), slog.String("version", constants.AppVersion))
	slog.SetDefault(log)

	return log
}
