package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

// @title MedVault Document API
// @version 1.0
// @description Upload, list, download and delete medical documents.
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "medvault: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "medvault",
		Short: "MedVault document service",
		Long: `MedVault stores uploaded documents (PDF, images, Word) on disk or in an S3-compatible bucket
and keeps their metadata in PostgreSQL. Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newReconcileCmd(),
	)
	return cmd
}
