package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"snapbox_console/internal/config"
	"snapbox_console/internal/services"
)

// test_api checks connectivity with the remote SnapBox API from a shell
func main() {
	var api *services.SnapBoxAPI

	root := &cobra.Command{
		Use:   "test_api",
		Short: "Call the SnapBox API with the console's configuration",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadDotEnv(zap.NewNop())
			cfg := config.Load(zap.NewNop())
			api = services.NewSnapBoxAPI(cfg.APIBaseURL, cfg.APITimeout)
		},
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "send-code <email>",
		Short: "Request a verification code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := api.SendVerificationCode(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Verification code sent to", args[0])
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "files",
		Short: "List uploaded files",
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := api.ListFiles(cmd.Context())
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d KB\t%s\n", f.ID, f.Name, f.SizeKB(), f.URL)
			}
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err := root.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}
