package ending

import (
	"testing"
	"time"

	"github.com/haivivi/interviewer/pkg/interview"
)

func TestDefault(t *testing.T) {
	ev := Default()
	tests := []struct {
		name string
		snap Snapshot
		want bool
	}{
		{"phone closing phrase", Snapshot{Stage: interview.StagePhoneScreen, Text: "I'll get you scheduled with the team.", Turns: 2, Elapsed: time.Minute}, true},
		{"phone phrase case insensitive", Snapshot{Stage: interview.StagePhoneScreen, Text: "Thanks for your time today!", Turns: 1}, true},
		{"phone hard limit", Snapshot{Stage: interview.StagePhoneScreen, Text: "Go on.", Turns: 2, Elapsed: 10 * time.Minute}, true},
		{"phone six turns after five minutes", Snapshot{Stage: interview.StagePhoneScreen, Text: "Interesting.", Turns: 6, Elapsed: 5*time.Minute + 30*time.Second}, true},
		{"phone six turns too early", Snapshot{Stage: interview.StagePhoneScreen, Text: "Interesting.", Turns: 6, Elapsed: 4 * time.Minute}, false},
		{"phone long but few turns", Snapshot{Stage: interview.StagePhoneScreen, Text: "Interesting.", Turns: 5, Elapsed: 9 * time.Minute}, false},
		{"other stage below limit", Snapshot{Stage: interview.StageCultureFit, Text: "thanks for your time", Turns: 4, Elapsed: time.Hour}, false},
		{"other stage at limit", Snapshot{Stage: interview.StageFinal, Text: "Next question.", Turns: 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := ev.ShouldEnd(tt.snap)
			if got != tt.want {
				t.Fatalf("ShouldEnd = %v (%q), want %v", got, reason, tt.want)
			}
			if got && reason == "" {
				t.Error("positive decision without a reason")
			}
		})
	}
}

func TestByStageOverride(t *testing.T) {
	ev := Default()
	ev.Stages[interview.StageHiringManager] = EvaluatorFunc(func(s Snapshot) (bool, string) {
		return s.Turns >= 2, "custom"
	})
	if ok, _ := ev.ShouldEnd(Snapshot{Stage: interview.StageHiringManager, Turns: 2}); !ok {
		t.Error("override not used")
	}
	if ok, _ := (ByStage{}).ShouldEnd(Snapshot{Turns: 100}); ok {
		t.Error("empty ByStage ended the interview")
	}
}
