// Package main provides the interviewer CLI: a voice mock-interview client
// that talks to a realtime agent and falls back to turn-based requests.
//
// Usage:
//
//	interviewer [flags] <command> [args]
//
// Commands:
//
//	interview  - run a live voice interview
//	sessions   - inspect and purge stored sessions
//	devices    - list audio devices
//	config     - configuration management
//	version    - print build information
//
// Configuration:
//
//	The CLI stores configuration in ~/.giztoy/interviewer/
//	Use 'interviewer config' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/interviewer/cmd/interviewer/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
