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

var (
	identityFlag   string
	primaryURLFlag string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "docsync: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docsync",
		Short: "docvault sync client",
		Long: `docsync drives the document sync coordinator: every change is applied to the local view,
sent to the primary backend and mirrored to the secondary store in the background.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&identityFlag, "identity", "", "Caller identity (overrides DOCSYNC_IDENTITY)")
	cmd.PersistentFlags().StringVar(&primaryURLFlag, "primary-url", "", "Primary backend base URL (overrides DOCSYNC_PRIMARY_URL)")
	cmd.AddCommand(
		newListCmd(),
		newUploadCmd(),
		newUpdateCmd(),
		newTrashCmd(),
		newRestoreCmd(),
		newRmCmd(),
		newDownloadCmd(),
	)
	return cmd
}
