package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/interviewer/pkg/audio/portaudio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio devices",
	Long: `List the audio devices PortAudio can see. The interview uses the
default input and output devices, marked with *.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := portaudio.Devices()
		if err != nil {
			return fmt.Errorf("list devices: %w", err)
		}
		if cmd.Flags().Changed("output") {
			return outputResult(cmd, devices)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "IN\tOUT\tINDEX\tNAME\tCHANNELS\tRATE")
		for _, d := range devices {
			in, out := "", ""
			if d.IsDefaultInput {
				in = "*"
			}
			if d.IsDefaultOutput {
				out = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d/%d\t%.0f\n",
				in, out, d.Index, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
		}
		return w.Flush()
	},
}
