// Package phase tracks where a phone-screen conversation is in its scripted
// flow and which questions the agent has already asked.
package phase

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"
)

// Phase is a position in the phone-screen flow. Phases are ordered.
type Phase int

const (
	Opening Phase = iota
	CompanyIntro
	JobOverview
	Screening
	QAndA
	Closing
)

var phaseNames = [...]string{
	Opening:      "opening",
	CompanyIntro: "company_intro",
	JobOverview:  "job_overview",
	Screening:    "screening",
	QAndA:        "q_and_a",
	Closing:      "closing",
}

func (p Phase) String() string {
	if p < Opening || p > Closing {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Parse returns the phase with the given wire name.
func Parse(s string) (Phase, error) {
	for p, name := range phaseNames {
		if name == s {
			return Phase(p), nil
		}
	}
	return 0, fmt.Errorf("phase: unknown phase %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	if p < Opening || p > Closing {
		return nil, fmt.Errorf("phase: invalid phase %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Controller is the phone-screen state machine. Transitions only move
// forward. It is safe for concurrent use.
type Controller struct {
	questions QuestionDetector
	inferrer  Inferrer

	mu      sync.Mutex
	phase   Phase
	history []Phase
	asked   []string
}

// Option configures a Controller.
type Option func(*Controller)

// WithQuestionDetector replaces the question heuristic.
func WithQuestionDetector(d QuestionDetector) Option {
	return func(c *Controller) { c.questions = d }
}

// WithInferrer replaces the phase inference heuristic.
func WithInferrer(i Inferrer) Option {
	return func(c *Controller) { c.inferrer = i }
}

// New returns a Controller in the Opening phase.
func New(opts ...Option) *Controller {
	c := &Controller{
		questions: KeywordQuestions{},
		inferrer:  KeywordInferrer{},
		phase:     Opening,
		history:   []Phase{Opening},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// History returns every phase the controller has been in, in order.
func (c *Controller) History() []Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Phase(nil), c.history...)
}

// Advance moves to p if p is later than the current phase. It reports
// whether the phase changed.
func (c *Controller) Advance(p Phase) bool {
	if p < Opening || p > Closing {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p <= c.phase {
		return false
	}
	c.phase = p
	c.history = append(c.history, p)
	return true
}

// Observe feeds a finalized agent utterance from the streaming path: it
// advances the phase when the text implies a later one and records the
// text when it reads as a new question.
func (c *Controller) Observe(agentText string) (advanced, asked bool) {
	if p, ok := c.inferrer.Infer(agentText, c.Phase()); ok {
		advanced = c.Advance(p)
	}
	asked = c.RecordQuestion(agentText)
	return advanced, asked
}

// RecordQuestion adds text to AskedQuestions if it reads as a question and
// is not a duplicate of one already asked. It reports whether it was added.
func (c *Controller) RecordQuestion(text string) bool {
	if !c.questions.IsQuestion(text) {
		return false
	}
	norm := Normalize(text)
	if norm == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range c.asked {
		if Duplicate(Normalize(q), norm) {
			return false
		}
	}
	c.asked = append(c.asked, strings.TrimSpace(text))
	return true
}

// AskedQuestions returns the recorded questions in order.
func (c *Controller) AskedQuestions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.asked...)
}

// Normalize lowercases text and collapses whitespace.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Duplicate reports whether two normalized questions are the same: their
// first 50 characters match exactly, or both are longer than 30 characters
// and their first 30 characters match.
func Duplicate(a, b string) bool {
	if prefix(a, 50) == prefix(b, 50) {
		return true
	}
	return utf8.RuneCountInString(a) > 30 && utf8.RuneCountInString(b) > 30 &&
		prefix(a, 30) == prefix(b, 30)
}

func prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
