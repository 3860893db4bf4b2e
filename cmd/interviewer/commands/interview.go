package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/interviewer/pkg/audio/portaudio"
	"github.com/haivivi/interviewer/pkg/cli"
	"github.com/haivivi/interviewer/pkg/interview"
	"github.com/haivivi/interviewer/pkg/interview/engine"
	"github.com/haivivi/interviewer/pkg/interview/transport"
	"github.com/haivivi/interviewer/pkg/realtime"
	"github.com/haivivi/interviewer/pkg/voice"
)

var (
	interviewStage string
	profileFile    string
	turnBasedOnly  bool
	statusWidth    int
)

// newDevice opens the audio hardware. Tests replace it.
var newDevice = func() voice.Device { return portaudio.Device{} }

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Run a live voice interview",
	Long: `Run a live voice interview with the agent of the current context.

Speak when the agent is done talking. Typed lines are sent to the agent as
text while the realtime connection is up. Type /end to finish the interview
or press Ctrl-C to cancel it.

Example:
  interviewer interview --stage phone_screen -f profile.yaml
  interviewer -c prod interview --turn-based`,
	Args: cobra.NoArgs,
	RunE: runInterview,
}

func init() {
	interviewCmd.Flags().StringVar(&interviewStage, "stage", "", "interview stage (overrides the profile)")
	interviewCmd.Flags().StringVarP(&profileFile, "file", "f", "", "interview profile (YAML or JSON)")
	interviewCmd.Flags().BoolVar(&turnBasedOnly, "turn-based", false, "skip the realtime connection")
	interviewCmd.Flags().IntVar(&statusWidth, "status-width", 100, "status line width (0: unlimited)")
}

// interviewSummary is printed when an interview ends.
type interviewSummary struct {
	SessionID  string `json:"session_id" yaml:"session_id"`
	Stage      string `json:"stage" yaml:"stage"`
	Status     string `json:"status" yaml:"status"`
	Transport  string `json:"transport" yaml:"transport"`
	Reason     string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Duration   string `json:"duration" yaml:"duration"`
	Utterances int    `json:"utterances" yaml:"utterances"`
	NextStage  string `json:"next_stage,omitempty" yaml:"next_stage,omitempty"`
}

func runInterview(cmd *cobra.Command, args []string) error {
	ictx, err := getContext()
	if err != nil {
		return err
	}
	if err := ictx.Validate(); err != nil {
		return err
	}

	profile := DefaultProfile()
	if profileFile != "" {
		if err := loadProfile(profileFile, &profile); err != nil {
			return err
		}
	}
	stage, err := profile.stage(interviewStage)
	if err != nil {
		return err
	}
	paths, err := cli.NewPaths(appName)
	if err != nil {
		return err
	}

	status := cli.NewStatusLine(cmd.ErrOrStderr(), cli.DefaultTheme, statusWidth)
	setupLogging(status)
	defer setupLogging(cmd.ErrOrStderr())
	logger := slog.Default().With("context", ictx.Name)

	st, err := openStack(ictx, paths, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	cfg := engine.DefaultConfig()
	cfg.User = ictx.User
	if cfg.User == "" {
		cfg.User = "local"
	}
	cfg.Stage = stage
	cfg.Manager = st.manager
	cfg.Device = newDevice()
	cfg.Fallback = transport.NewFallback(ictx.FallbackURL, ictx.APIKey, st.http)
	if ictx.RealtimeURL != "" && !turnBasedOnly {
		if ictx.APIKey == "" {
			logger.Warn("context has no api_key; the realtime connection will fall back to turn-based")
		}
		opts := []realtime.Option{realtime.WithURL(ictx.RealtimeURL)}
		if ictx.Model != "" {
			opts = append(opts, realtime.WithModel(ictx.Model))
		}
		cfg.Streaming = transport.NewStreaming(realtime.NewClient(ictx.APIKey, opts...), profile.Streaming, logger)
	}
	if err := profile.apply(&cfg); err != nil {
		return err
	}
	cfg.Logger = logger
	cfg.OnStatus = func(s engine.Status) { status.Update(statusFields(s)...) }
	cfg.OnUtterance = func(u interview.Utterance) {
		fmt.Fprintf(status, "%s: %s\n", u.Speaker, u.Text)
	}

	eng, err := engine.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go readTyped(ctx, cmd.InOrStdin(), eng, logger)

	res, runErr := eng.Run(ctx)
	status.Clear()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		if hint := interview.Remediation(runErr); hint != "" {
			cli.PrintWarning(cmd.ErrOrStderr(), "%s", hint)
		}
	}
	if res == nil {
		return runErr
	}
	if err := outputResult(cmd, summarize(res)); err != nil {
		return err
	}
	if res.NextStage != "" {
		cli.PrintInfo(cmd.ErrOrStderr(), "Next stage: %s", res.NextStage)
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// readTyped forwards typed lines to the engine until ctx ends. "/end"
// finishes the interview.
func readTyped(ctx context.Context, r io.Reader, eng *engine.Engine, logger *slog.Logger) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case ctx.Err() != nil:
			return
		case line == "":
		case line == "/end":
			eng.End()
			return
		default:
			if err := eng.SendText(ctx, line); err != nil {
				if errors.Is(err, engine.ErrTextUnavailable) {
					logger.Warn("typed input needs the realtime connection; please answer by voice")
					continue
				}
				logger.Debug("send text", "err", err)
			}
		}
	}
}

func statusFields(s engine.Status) []cli.Field {
	fields := []cli.Field{
		{Label: "elapsed", Value: cli.FormatElapsed(s.Elapsed)},
		{Label: "stage", Value: string(s.Stage)},
	}
	if s.Phase != "" {
		fields = append(fields, cli.Field{Label: "phase", Value: s.Phase})
	}
	transportName := string(s.Transport)
	if transportName == "" {
		transportName = s.State.String()
	}
	fields = append(fields, cli.Field{
		Label:     "via",
		Value:     transportName,
		Highlight: s.Transport == transport.KindFallback,
	})

	activity := "waiting"
	switch {
	case s.Playing:
		activity = "agent speaking"
	case s.Recording:
		activity = "listening"
	}
	fields = append(fields, cli.Field{Value: activity})
	if s.Ending != "" {
		fields = append(fields, cli.Field{Label: "ending", Value: s.Ending, Highlight: true})
	}
	return fields
}

func summarize(res *engine.Result) interviewSummary {
	sum := interviewSummary{
		Transport: string(res.Transport),
		Reason:    res.Reason,
		NextStage: res.NextStage,
	}
	if s := res.Session; s != nil {
		sum.SessionID = s.ID
		sum.Stage = string(s.Stage)
		sum.Status = string(s.Status)
		sum.Utterances = len(s.Transcript)
		d := time.Duration(s.DurationSeconds) * time.Second
		if d == 0 && !s.CompletedAt.IsZero() {
			d = s.CompletedAt.Sub(s.CreatedAt)
		}
		sum.Duration = cli.FormatElapsed(d)
	}
	return sum
}
