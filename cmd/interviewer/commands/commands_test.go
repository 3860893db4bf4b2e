package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haivivi/interviewer/pkg/audio/pcm"
	"github.com/haivivi/interviewer/pkg/interview"
	"github.com/haivivi/interviewer/pkg/interview/engine"
	"github.com/haivivi/interviewer/pkg/sessionstore"
	"github.com/haivivi/interviewer/pkg/storage"
	"github.com/haivivi/interviewer/pkg/voice"
)

// setupTestEnv points HOME and the config file at a temp directory.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func runCmd(t *testing.T, home string, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	resetFlags(rootCmd)

	var outBuf, errBuf bytes.Buffer
	rootCmd.SetOut(&outBuf)
	rootCmd.SetErr(&errBuf)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(home, "config.yaml")}, args...))
	err = rootCmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

// resetFlags restores every flag to its default, since commands and their
// bound variables are shared between runs.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func TestConfigContexts(t *testing.T) {
	home := setupTestEnv(t)

	if _, _, err := runCmd(t, home, "config", "add-context", "dev"); err == nil {
		t.Fatal("add-context without --fallback-url should fail")
	}

	out, _, err := runCmd(t, home, "config", "add-context", "dev",
		"--api-key", "sk-dev-0123456789",
		"--realtime-url", "wss://agent.example/v1/realtime",
		"--fallback-url", "https://agent.example/interview",
		"--store", "sqlite")
	if err != nil {
		t.Fatalf("add-context: %v", err)
	}
	if !strings.Contains(out, `Context "dev" added`) {
		t.Fatalf("stdout = %q", out)
	}
	runCmd(t, home, "config", "add-context", "prod", "--fallback-url", "https://prod.example")

	out, _, _ = runCmd(t, home, "config", "list-contexts")
	var devLine string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "*") {
			devLine = line
		}
	}
	if !strings.Contains(devLine, "dev") || !strings.Contains(devLine, "streaming+fallback") || !strings.Contains(devLine, "sqlite") {
		t.Fatalf("list-contexts:\n%s", out)
	}

	out, _, _ = runCmd(t, home, "config", "view")
	if strings.Contains(out, "sk-dev-0123456789") || !strings.Contains(out, "sk-d") {
		t.Fatalf("view should mask the key:\n%s", out)
	}

	if _, _, err := runCmd(t, home, "config", "use-context", "prod"); err != nil {
		t.Fatal(err)
	}
	out, _, _ = runCmd(t, home, "config", "get-context")
	if strings.TrimSpace(out) != "prod" {
		t.Fatalf("get-context = %q", out)
	}

	runCmd(t, home, "config", "delete-context", "prod")
	out, _, _ = runCmd(t, home, "config", "get-context")
	if !strings.Contains(out, "No current context") {
		t.Fatalf("get-context after delete = %q", out)
	}
}

func TestVersion(t *testing.T) {
	home := setupTestEnv(t)
	out, _, err := runCmd(t, home, "version")
	if err != nil || !strings.HasPrefix(out, "interviewer dev") {
		t.Fatalf("version = %q, %v", out, err)
	}
}

// seedSessions writes one completed and one cancelled session to a sqlite
// store and archives the completed one.
func seedSessions(t *testing.T, dbPath, archiveDir string) (completed, cancelled string) {
	t.Helper()
	ctx := context.Background()
	store, err := sessionstore.NewSQLite(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	a, _ := store.CreateSession(ctx, interview.StagePhoneScreen, "cand-1")
	b, _ := store.CreateSession(ctx, interview.StageFinal, "cand-1")

	done, dur := interview.StatusCompleted, 95
	transcript := []interview.Utterance{
		{Speaker: interview.SpeakerAgent, Text: "Tell me about yourself."},
		{Speaker: interview.SpeakerCandidate, Text: "I build audio pipelines."},
	}
	store.UpdateSession(ctx, a.ID, interview.Update{Status: &done, Transcript: transcript, DurationSeconds: &dur})
	cancel := interview.StatusCancelled
	store.UpdateSession(ctx, b.ID, interview.Update{Status: &cancel})

	fs, err := storage.NewLocal(archiveDir)
	if err != nil {
		t.Fatal(err)
	}
	archived, _ := store.GetSession(ctx, a.ID)
	if err := interview.NewArchiver(fs).Archive(ctx, archived, [][]byte{{1, 0}}); err != nil {
		t.Fatal(err)
	}
	return a.ID, b.ID
}

func TestSessionsCommands(t *testing.T) {
	home := setupTestEnv(t)
	dbPath := filepath.Join(home, "sessions.db")
	archiveDir := filepath.Join(home, "archive")
	completed, cancelled := seedSessions(t, dbPath, archiveDir)

	_, _, err := runCmd(t, home, "config", "add-context", "dev",
		"--fallback-url", "http://127.0.0.1:0",
		"--store", "sqlite", "--store-path", dbPath,
		"--archive", "local:"+archiveDir)
	if err != nil {
		t.Fatal(err)
	}

	out, _, err := runCmd(t, home, "sessions", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, completed) || !strings.Contains(out, cancelled) || !strings.Contains(out, "1:35") {
		t.Fatalf("sessions list:\n%s", out)
	}

	out, _, _ = runCmd(t, home, "sessions", "list", "--status", "completed", "-o", "json")
	if !strings.Contains(out, `"id": "`+completed+`"`) || strings.Contains(out, cancelled) {
		t.Fatalf("filtered list:\n%s", out)
	}

	if _, _, err := runCmd(t, home, "sessions", "list", "--stage", "onsite"); err == nil {
		t.Fatal("unknown stage should fail")
	}

	out, _, err = runCmd(t, home, "sessions", "get", completed)
	if err != nil || !strings.Contains(out, "I build audio pipelines.") {
		t.Fatalf("sessions get = %q, %v", out, err)
	}

	if _, _, err := runCmd(t, home, "sessions", "purge", cancelled); err == nil {
		t.Fatal("purging an unarchived session should fail")
	}
	out, _, err = runCmd(t, home, "sessions", "purge", completed)
	if err != nil || !strings.Contains(out, "Purged") {
		t.Fatalf("purge = %q, %v", out, err)
	}
	if _, err := os.Stat(filepath.Join(archiveDir, interview.TranscriptPath(completed))); !os.IsNotExist(err) {
		t.Fatalf("transcript still on disk: %v", err)
	}
}

func TestSessionsGetFallsBackToArchive(t *testing.T) {
	home := setupTestEnv(t)
	archiveDir := filepath.Join(home, "archive")
	id, _ := seedSessions(t, filepath.Join(home, "seed.db"), archiveDir)

	// A fresh memory store knows nothing; the archive still has the session.
	runCmd(t, home, "config", "add-context", "dev", "--fallback-url", "http://x", "--archive", archiveDir)
	out, _, err := runCmd(t, home, "sessions", "get", id, "-o", "json")
	if err != nil || !strings.Contains(out, `"status": "completed"`) {
		t.Fatalf("get from archive = %q, %v", out, err)
	}
}

type deniedDevice struct{}

func (deniedDevice) OpenMicrophone(pcm.Format, int) (voice.Microphone, error) {
	return nil, errors.New("permission denied")
}

func (deniedDevice) OpenSpeaker(pcm.Format) (voice.Speaker, error) {
	return nil, errors.New("unused")
}

func TestInterviewMicrophoneDenied(t *testing.T) {
	home := setupTestEnv(t)
	old := newDevice
	newDevice = func() voice.Device { return deniedDevice{} }
	t.Cleanup(func() { newDevice = old })

	runCmd(t, home, "config", "add-context", "dev", "--fallback-url", "http://127.0.0.1:1")
	out, errOut, err := runCmd(t, home, "interview", "--turn-based", "-o", "json")
	if !errors.Is(err, interview.ErrPermission) {
		t.Fatalf("err = %v, want permission error", err)
	}
	if !strings.Contains(errOut, "Microphone access was denied") {
		t.Fatalf("stderr should carry the remediation:\n%s", errOut)
	}
	if !strings.Contains(out, `"status": "cancelled"`) {
		t.Fatalf("summary:\n%s", out)
	}
}

func TestInterviewRealtimeWithoutAPIKey(t *testing.T) {
	home := setupTestEnv(t)
	old := newDevice
	newDevice = func() voice.Device { return deniedDevice{} }
	t.Cleanup(func() { newDevice = old })

	runCmd(t, home, "config", "add-context", "nokey",
		"--realtime-url", "ws://127.0.0.1:1/v1/realtime",
		"--fallback-url", "http://127.0.0.1:1")
	out, errOut, err := runCmd(t, home, "interview", "-o", "json")
	if !errors.Is(err, interview.ErrPermission) {
		t.Fatalf("err = %v, want permission error", err)
	}
	if !strings.Contains(errOut, "no api_key") {
		t.Fatalf("stderr should warn about the missing key:\n%s", errOut)
	}
	if !strings.Contains(out, `"status": "cancelled"`) {
		t.Fatalf("summary:\n%s", out)
	}
}

func TestProfileApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	os.WriteFile(path, []byte(`stage: hiring_manager
streaming:
  voice: sage
  instructions:
    hiring_manager: You are the hiring manager.
vad_threshold: 42
silence_timeout: 2500ms
grace_period: 0s
sample_rate: 48000
max_turn_failures: 5
`), 0644)

	p := DefaultProfile()
	if err := loadProfile(path, &p); err != nil {
		t.Fatal(err)
	}
	stage, err := p.stage("")
	if err != nil || stage != interview.StageHiringManager {
		t.Fatalf("stage = %q, %v", stage, err)
	}
	if s, _ := p.stage("final"); s != interview.StageFinal {
		t.Fatalf("--stage override = %q", s)
	}
	if p.Streaming.Voice != "sage" || p.Streaming.Instructions[interview.StageHiringManager] == "" {
		t.Fatalf("streaming = %+v", p.Streaming)
	}
	if p.Streaming.TurnDetection == nil {
		t.Fatal("default turn detection should survive a partial profile")
	}

	cfg := engine.DefaultConfig()
	if err := p.apply(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Monitor.Threshold != 42 || cfg.Monitor.SilenceTimeout != 2500*time.Millisecond {
		t.Fatalf("monitor = %+v", cfg.Monitor)
	}
	if cfg.GracePeriod != 0 || cfg.MaxTurnFailures != 5 {
		t.Fatalf("grace = %v, failures = %d", cfg.GracePeriod, cfg.MaxTurnFailures)
	}
	if cfg.Audio.PlaybackFormat != pcm.L16Mono48K {
		t.Fatalf("playback format = %v", cfg.Audio.PlaybackFormat)
	}

	bad := Profile{VADThreshold: 300}
	if err := bad.apply(&cfg); err == nil {
		t.Fatal("out-of-range threshold should fail")
	}
	bad = Profile{SampleRate: 44100}
	if err := bad.apply(&cfg); err == nil {
		t.Fatal("unsupported sample rate should fail")
	}
}

func TestStatusFields(t *testing.T) {
	fields := statusFields(engine.Status{
		Stage:     interview.StagePhoneScreen,
		Phase:     "technical",
		Transport: "fallback",
		Elapsed:   75 * time.Second,
		Recording: true,
		Ending:    "closing remark",
	})
	var got []string
	for _, f := range fields {
		got = append(got, f.Label+"="+f.Value)
	}
	want := "elapsed=1:15 stage=phone_screen phase=technical via=fallback =listening ending=closing remark"
	if strings.Join(got, " ") != want {
		t.Fatalf("fields = %q", strings.Join(got, " "))
	}
	if !fields[3].Highlight {
		t.Fatal("fallback transport should be highlighted")
	}
}
