// Package cli wires the simgraph commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yungbote/simgraph/internal/app"
)

var (
	configPath string
	envFile    string

	cfg         app.Config
	application *app.App
)

var rootCmd = &cobra.Command{
	Use:   "simgraph",
	Short: "Build and query a cluster-similarity graph in Neo4j",
	Long: `simgraph reads a CSV of entities scored against a fixed set of clusters,
links every pair whose score vectors have cosine similarity at or above a
threshold, and stores the result in Neo4j as a weighted graph.

Configuration is read from defaults, an optional YAML file (--config), a
.env file and the environment, in that order.`,
	Version:       app.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}
		if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		var err error
		cfg, err = app.LoadConfig(configPath)
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}
		application, err = app.New(cmd.Context(), cfg)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application != nil {
			application.Close(context.Background())
		}
	},
}

// Execute runs the root command with a context cancelled by SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runsCmd)
}
