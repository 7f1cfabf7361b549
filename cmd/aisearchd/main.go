package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/riviantrackr/aisearch/internal/cli"
	"github.com/riviantrackr/aisearch/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "aisearchd",
		Short:         "AI search summary server",
		Long:          "aisearchd serves cached AI summaries for site search and manages the summary cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.CacheCmd())
	rootCmd.AddCommand(admin.ModelsCmd())
	rootCmd.AddCommand(admin.SummaryCmd())
	rootCmd.AddCommand(admin.ArticlesCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
