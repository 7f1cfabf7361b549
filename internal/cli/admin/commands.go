package admin

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/riviantrackr/aisearch/internal/api"
	"github.com/riviantrackr/aisearch/internal/config"
	"github.com/riviantrackr/aisearch/internal/domain"
	"github.com/riviantrackr/aisearch/internal/service"
)

// CacheCmd returns the cache command group.
func CacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the summary cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Invalidate every cached summary",
		Long:  "Bump the cache namespace so every existing entry becomes unreachable. Prints the new namespace version.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			warnIfEphemeral(cmd, app.Config)

			version, err := app.Admin.ClearCache(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cache namespace is now %d\n", version)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete the cache entries recorded in the key index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			warnIfEphemeral(cmd, app.Config)

			n, err := app.Admin.PurgeCache(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d cache entries\n", n)
			return nil
		},
	})

	return cmd
}

// ModelsCmd returns the models command group.
func ModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect the provider's models",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the chat models available to the configured provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			refresh, _ := cmd.Flags().GetBool("refresh")
			models, err := app.Admin.ListModels(cmd.Context(), refresh)
			if err != nil {
				return err
			}
			for _, m := range models {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
	list.Flags().Bool("refresh", false, "Bypass the cached model list")
	cmd.AddCommand(list)

	return cmd
}

// SummaryCmd returns the summary command, which runs one query through the
// pipeline as a trusted caller.
func SummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <query>",
		Short: "Summarize a query once and print the JSON response",
		Long:  "Run a query through validation, cache, provider budget and provider exactly as /summary would, skipping the bot filter and per-IP limit.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			out, err := app.Summary.Summarize(cmd.Context(), service.SummaryRequest{Query: args[0], Trusted: true})
			if err != nil {
				return writeJSON(cmd.OutOrStdout(), api.SummaryResponse{
					Error:     domain.ErrorMessage(err),
					ErrorCode: domain.ErrorCode(err),
				})
			}
			return writeJSON(cmd.OutOrStdout(), api.SummaryResponse{
				AnswerHTML: out.Result.AnswerHTML,
				Sources:    out.Result.Sources,
				CacheHit:   out.CacheHit,
			})
		},
	}
}

// ArticlesCmd returns the articles command group for the postgres selector.
func ArticlesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "articles",
		Short: "Manage the articles searched by the postgres selector",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.json>",
		Short: "Upsert articles from a JSON array of documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if app.Articles == nil {
				return fmt.Errorf("articles import requires AISEARCH_SELECTOR=postgres")
			}

			docs, err := readDocuments(args[0])
			if err != nil {
				return err
			}
			n, err := app.Articles.Import(cmd.Context(), docs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d articles\n", n)
			return nil
		},
	})

	return cmd
}

func readDocuments(path string) ([]domain.SearchDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var docs []domain.SearchDocument
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return docs, nil
}

// warnIfEphemeral notes that cache commands against the memory store only
// touch this process.
func warnIfEphemeral(cmd *cobra.Command, cfg *config.Config) {
	if cfg.Store == config.StoreMemory {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: AISEARCH_STORE=memory, this only affects the cache of this process")
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
