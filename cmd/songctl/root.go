package main

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8000"

// pollInterval is how often --wait and --watch poll job status
var pollInterval = 700 * time.Millisecond

type commandContext struct {
	server       *string
	jsonOut      *bool
	pollInterval time.Duration
}

func (c *commandContext) client() *apiClient {
	return newAPIClient(strings.TrimSpace(*c.server))
}

func newRootCommand() *cobra.Command {
	var serverFlag string
	var jsonFlag bool

	ctx := &commandContext{
		server:       &serverFlag,
		jsonOut:      &jsonFlag,
		pollInterval: pollInterval,
	}

	rootCmd := &cobra.Command{
		Use:           "songctl",
		Short:         "Drive the song studio API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	server := os.Getenv("STUDIO_SERVER")
	if server == "" {
		server = defaultServer
	}
	rootCmd.PersistentFlags().StringVarP(&serverFlag, "server", "s", server, "Studio API base URL")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print raw JSON")

	rootCmd.AddCommand(newProjectCommand(ctx))
	rootCmd.AddCommand(newCreateCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newInFlightCommand(ctx))

	return rootCmd
}
