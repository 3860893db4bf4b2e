package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/interviewer/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration and contexts.

A context names one deployment: the realtime and fallback endpoints, the
API key, where sessions are stored and where transcripts are archived.

Configuration is stored in ~/.giztoy/interviewer/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add or replace a context",
	Long: `Add a context with the specified name.

Example:
  interviewer config add-context dev --api-key KEY \
    --realtime-url wss://agent.example/v1/realtime \
    --fallback-url https://agent.example/interview

  interviewer config add-context prod --api-key KEY \
    --fallback-url https://agent.example/interview \
    --store badger --archive s3://interviews/prod --s3-region eu-west-1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		str := func(name string) string {
			v, _ := f.GetString(name)
			return v
		}
		timeout, _ := f.GetInt("timeout")

		ctx := &cli.Context{
			User:        str("user"),
			APIKey:      str("api-key"),
			RealtimeURL: str("realtime-url"),
			Model:       str("model"),
			FallbackURL: str("fallback-url"),
			FeedbackURL: str("feedback-url"),
			Timeout:     timeout,
			Store: cli.StoreConfig{
				Backend: str("store"),
				Path:    str("store-path"),
			},
			Archive: cli.ArchiveConfig{
				Location:    str("archive"),
				S3Region:    str("s3-region"),
				S3Endpoint:  str("s3-endpoint"),
				S3AccessKey: str("s3-access-key"),
				S3SecretKey: str("s3-secret-key"),
			},
		}
		ctx.Name = args[0]
		if err := ctx.Validate(); err != nil {
			return err
		}

		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.AddContext(args[0], ctx); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "Context %q added", args[0])
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "Context %q deleted", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "Switched to context %q", args[0])
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Display the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No current context set")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.CurrentContext)
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"get-contexts"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if len(cfg.Contexts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No contexts configured")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tTRANSPORT\tSTORE\tARCHIVE")
		for _, name := range cfg.ListContexts() {
			ctx := cfg.Contexts[name]
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			transports := "fallback"
			if ctx.RealtimeURL != "" {
				transports = "streaming+fallback"
			}
			store := ctx.Store.Backend
			if store == "" {
				store = "memory"
			}
			archive := ctx.Archive.Location
			if archive == "" {
				archive = "(none)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", current, name, transports, store, archive)
		}
		return w.Flush()
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View the configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Config file: %s\n", cfg.Path())
		fmt.Fprintf(out, "Current context: %s\n", cfg.CurrentContext)
		fmt.Fprintf(out, "Contexts: %d\n", len(cfg.Contexts))

		for _, name := range cfg.ListContexts() {
			ctx := cfg.Contexts[name]
			fmt.Fprintf(out, "\n  %s:\n", name)
			fmt.Fprintf(out, "    API Key: %s\n", cli.MaskAPIKey(ctx.APIKey))
			if ctx.User != "" {
				fmt.Fprintf(out, "    User: %s\n", ctx.User)
			}
			if ctx.RealtimeURL != "" {
				fmt.Fprintf(out, "    Realtime URL: %s\n", ctx.RealtimeURL)
			}
			fmt.Fprintf(out, "    Fallback URL: %s\n", ctx.FallbackURL)
			if ctx.FeedbackURL != "" {
				fmt.Fprintf(out, "    Feedback URL: %s\n", ctx.FeedbackURL)
			}
			if ctx.Store.Backend != "" {
				fmt.Fprintf(out, "    Store: %s %s\n", ctx.Store.Backend, ctx.Store.Path)
			}
			if ctx.Archive.Location != "" {
				fmt.Fprintf(out, "    Archive: %s\n", ctx.Archive.Location)
			}
			if ctx.Archive.S3SecretKey != "" {
				fmt.Fprintf(out, "    S3 Secret Key: %s\n", cli.MaskAPIKey(ctx.Archive.S3SecretKey))
			}
		}
		return nil
	},
}

func init() {
	f := configAddContextCmd.Flags()
	f.String("user", "", "candidate identifier stored with every session")
	f.String("api-key", "", "agent API key")
	f.String("realtime-url", "", "realtime websocket URL (empty: turn-based only)")
	f.String("model", "", "realtime model")
	f.String("fallback-url", "", "turn-based endpoint base URL (required)")
	f.String("feedback-url", "", "completed-session webhook URL")
	f.Int("timeout", 0, "HTTP request timeout in seconds")
	f.String("store", "", "session store: memory, badger or sqlite")
	f.String("store-path", "", "badger directory or sqlite file")
	f.String("archive", "", "transcript archive: local:<dir>, s3://bucket/prefix or a directory")
	f.String("s3-region", "", "S3 region")
	f.String("s3-endpoint", "", "S3-compatible endpoint URL")
	f.String("s3-access-key", "", "S3 access key")
	f.String("s3-secret-key", "", "S3 secret key")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
