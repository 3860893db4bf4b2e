// Package cli provides the configuration and terminal plumbing of the
// interviewer command-line tool.
//
// This package includes:
//   - Configuration contexts (endpoints, credentials, storage backends)
//   - Output formatting (YAML, JSON)
//   - Profile file loading (YAML/JSON)
//   - A styled status line that coexists with log output
//
// Configuration is stored in ~/.giztoy/interviewer/, supporting multiple
// contexts similar to kubectl.
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("interviewer")
//	ctx, err := cfg.ResolveContext("")
//
//	cli.Output(session, cli.OutputOptions{Format: cli.FormatJSON})
package cli
