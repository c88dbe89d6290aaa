package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"braindump/internal/app"
	"braindump/internal/auth"
	"braindump/internal/capabilities"
	"braindump/internal/config"
	"braindump/internal/contenthash"
	"braindump/internal/seed"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "braindump",
		Short:        "Operator tools for the braindump notes service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(hashCmd())
	rootCmd.AddCommand(transformCmd())
	rootCmd.AddCommand(modelsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
}

// readInput joins args, or reads stdin when there are none.
func readInput(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func migrateCmd() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if reset && cfg.Environment == "prod" {
				return fmt.Errorf("refusing to reset the database in prod")
			}
			logger := newLogger(cfg)
			ctx := cmd.Context()

			a, err := app.Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if reset {
				if err := a.DropAll(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "dropped all tables")
			}

			applied, err := a.Migrate(ctx)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", v)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "drop all tables before migrating (not allowed in prod)")
	return cmd
}

func seedCmd() *cobra.Command {
	var (
		userID     string
		email      string
		password   string
		clearFirst bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create sample documents for a development user",
		Long: "Create sample documents for a development user. Pass --user-id, or --email and\n" +
			"--password to create (or reuse) a confirmed Supabase user via the Admin API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.Environment == "prod" {
				return fmt.Errorf("refusing to seed in prod")
			}
			logger := newLogger(cfg)
			ctx := cmd.Context()

			if userID == "" {
				if email == "" {
					return fmt.Errorf("either --user-id or --email is required")
				}
				id, err := ensureUser(ctx, cfg, email, password)
				if err != nil {
					return err
				}
				userID = id
			}

			a, err := app.Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.Migrate(ctx); err != nil {
				return err
			}

			docs, err := seed.NewSeeder(a.Documents, logger).Seed(ctx, userID, clearFirst)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d documents for %s\n", len(docs), userID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "owner of the seeded documents")
	cmd.Flags().StringVar(&email, "email", "", "create or reuse this Supabase user")
	cmd.Flags().StringVar(&password, "password", "password123", "password for a newly created user")
	cmd.Flags().BoolVar(&clearFirst, "clear", false, "delete the user's documents first")
	return cmd
}

func ensureUser(ctx context.Context, cfg *config.Config, email, password string) (string, error) {
	if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
		return "", fmt.Errorf("SUPABASE_URL and SUPABASE_KEY are required to create users")
	}
	id, err := auth.NewAdminClient(cfg.SupabaseURL, cfg.SupabaseKey).EnsureUser(ctx, email, password)
	if err != nil {
		return "", fmt.Errorf("ensure user %s: %w", email, err)
	}
	return id, nil
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models AI_MODEL can name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := capabilities.NewRegistry()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODEL\tNAME\tCONTEXT\tMAX OUTPUT")
			for _, provider := range registry.GetAllProviders() {
				models, err := registry.ListProviderModels(provider)
				if err != nil {
					return err
				}
				for _, m := range models {
					fmt.Fprintf(tw, "%s/%s\t%s\t%d\t%d\n", provider, m.ID, m.DisplayName, m.ContextWindow, m.MaxOutput)
				}
			}
			return tw.Flush()
		},
	}
}

func hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [text]",
		Short: "Print the content fingerprint of text (or stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), contenthash.Hash(text))
			return nil
		},
	}
}

func transformCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "transform [text]",
		Short: "Run the AI transform on text, a file, or stdin and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := newLogger(cfg)

			var raw string
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				raw = string(data)
			} else {
				text, err := readInput(args, cmd.InOrStdin())
				if err != nil {
					return err
				}
				raw = text
			}

			// No cache: the command is for trying prompts and models
			svc, err := app.NewTransformService(cfg, nil, logger)
			if err != nil {
				return err
			}
			if svc.Model() == "" {
				logger.Warn("no model configured, output is the degraded document")
			}

			result := svc.Transform(cmd.Context(), raw)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read notes from this file")
	return cmd
}
