// Package ending decides when an interview should terminate.
//
// An Evaluator is consulted after every finalized agent utterance. When it
// reports true the engine waits GracePeriod so the final audio can finish,
// then completes the session.
package ending

import (
	"fmt"
	"strings"
	"time"

	"github.com/haivivi/interviewer/pkg/interview"
)

// GracePeriod is the default delay between a positive decision and
// completing the session.
const GracePeriod = 3 * time.Second

// Snapshot is the state an Evaluator sees after an agent utterance.
type Snapshot struct {
	Stage interview.Stage

	// Text is the finalized agent utterance.
	Text string

	// Turns counts finalized agent utterances so far, including this one.
	Turns int

	// Elapsed is wall-clock time since the session was created.
	Elapsed time.Duration
}

// Evaluator decides whether the interview should end.
type Evaluator interface {
	ShouldEnd(s Snapshot) (bool, string)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(Snapshot) (bool, string)

func (f EvaluatorFunc) ShouldEnd(s Snapshot) (bool, string) { return f(s) }

// DefaultClosingPhrases are agent phrases that signal a phone screen is
// wrapping up.
var DefaultClosingPhrases = []string{
	"scheduled",
	"hiring manager",
	"next steps",
	"thanks for your time",
}

// PhoneScreen ends on a closing phrase, on a hard time limit, or once
// enough turns have passed after a soft time limit.
type PhoneScreen struct {
	Phrases    []string
	MaxElapsed time.Duration
	MinTurns   int
	MinElapsed time.Duration
}

// DefaultPhoneScreen returns the phone-screen rule: a closing phrase, 10
// minutes elapsed, or 6 turns after 5 minutes.
func DefaultPhoneScreen() PhoneScreen {
	return PhoneScreen{
		Phrases:    DefaultClosingPhrases,
		MaxElapsed: 10 * time.Minute,
		MinTurns:   6,
		MinElapsed: 5 * time.Minute,
	}
}

func (p PhoneScreen) ShouldEnd(s Snapshot) (bool, string) {
	text := strings.ToLower(s.Text)
	for _, phrase := range p.Phrases {
		if strings.Contains(text, phrase) {
			return true, fmt.Sprintf("closing phrase %q", phrase)
		}
	}
	if p.MaxElapsed > 0 && s.Elapsed >= p.MaxElapsed {
		return true, fmt.Sprintf("elapsed %s", s.Elapsed.Round(time.Second))
	}
	if s.Turns >= p.MinTurns && s.Elapsed >= p.MinElapsed {
		return true, fmt.Sprintf("%d turns after %s", s.Turns, s.Elapsed.Round(time.Second))
	}
	return false, ""
}

// TurnLimit ends the interview once Turns agent utterances have been
// finalized.
type TurnLimit int

func (n TurnLimit) ShouldEnd(s Snapshot) (bool, string) {
	if s.Turns >= int(n) {
		return true, fmt.Sprintf("%d turns", s.Turns)
	}
	return false, ""
}

// ByStage dispatches to a per-stage Evaluator, falling back to Default.
type ByStage struct {
	Stages  map[interview.Stage]Evaluator
	Default Evaluator
}

// Default returns the standard rules: PhoneScreen for phone_screen and a
// five-turn limit for every other stage.
func Default() ByStage {
	return ByStage{
		Stages:  map[interview.Stage]Evaluator{interview.StagePhoneScreen: DefaultPhoneScreen()},
		Default: TurnLimit(5),
	}
}

func (b ByStage) ShouldEnd(s Snapshot) (bool, string) {
	if e, ok := b.Stages[s.Stage]; ok {
		return e.ShouldEnd(s)
	}
	if b.Default == nil {
		return false, ""
	}
	return b.Default.ShouldEnd(s)
}
