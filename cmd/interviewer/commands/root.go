package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/haivivi/interviewer/pkg/cli"
)

const appName = "interviewer"

var (
	// Global flags
	cfgFile      string
	contextName  string
	outputFormat string
	verbose      bool

	globalConfig  *cli.Config
	configLoadErr error
)

var rootCmd = &cobra.Command{
	Use:   "interviewer",
	Short: "Voice mock-interview client",
	Long: `interviewer - run voice mock interviews against a realtime agent.

The interview streams microphone audio to the agent over a websocket and
plays the agent's voice back. When the realtime connection is refused or
drops, the same session continues over turn-based HTTP requests.

Configuration is stored in ~/.giztoy/interviewer/ and supports multiple
contexts, similar to kubectl's context management.

Examples:
  # Set up a context
  interviewer config add-context dev --api-key KEY \
    --realtime-url wss://agent.example/v1/realtime \
    --fallback-url https://agent.example/interview --store sqlite

  # Run a phone screen
  interviewer interview --stage phone_screen -f profile.yaml

  # Inspect what was recorded
  interviewer sessions list --status completed -o json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(cmd.ErrOrStderr())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.giztoy/interviewer/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "yaml", "output format: yaml or json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(interviewCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	// Errors are reported by the commands that need config, so that
	// 'interviewer version' still works without a home directory.
	globalConfig, configLoadErr = cli.LoadConfigWithPath(appName, cfgFile)
}

func getConfig() (*cli.Config, error) {
	if configLoadErr != nil {
		return nil, fmt.Errorf("load config: %w", configLoadErr)
	}
	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return globalConfig, nil
}

// getContext returns the context selected by -c or the current context.
func getContext() (*cli.Context, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	ctx, err := cfg.ResolveContext(contextName)
	if err != nil {
		if contextName == "" {
			return nil, fmt.Errorf("no context specified. Use -c flag or set a default context with 'interviewer config use-context'")
		}
		return nil, err
	}
	return ctx, nil
}

func setupLogging(w io.Writer) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func outputResult(cmd *cobra.Command, result any) error {
	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	return cli.Output(result, cli.OutputOptions{Format: format, Writer: cmd.OutOrStdout()})
}
