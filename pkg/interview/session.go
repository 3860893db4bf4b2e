package interview

import (
	"fmt"
	"time"
)

// Stage is an interview round.
type Stage string

const (
	StagePhoneScreen   Stage = "phone_screen"
	StageHiringManager Stage = "hiring_manager"
	StageCultureFit    Stage = "culture_fit"
	StageFinal         Stage = "final"
)

// Stages lists every stage in interview order.
var Stages = []Stage{StagePhoneScreen, StageHiringManager, StageCultureFit, StageFinal}

// ParseStage validates s as a Stage.
func ParseStage(s string) (Stage, error) {
	for _, st := range Stages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("interview: unknown stage %q", s)
}

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Speaker identifies who produced an Utterance.
type Speaker string

const (
	SpeakerCandidate Speaker = "candidate"
	SpeakerAgent     Speaker = "agent"
)

// Utterance is one finalized line of the transcript.
type Utterance struct {
	Speaker Speaker `json:"speaker" yaml:"speaker" msgpack:"speaker"`
	Text    string  `json:"text" yaml:"text" msgpack:"text"`
	// Offset is the approximate time since the session began.
	Offset time.Duration `json:"offset" yaml:"offset" msgpack:"offset"`
}

// Session is the persisted record of one interview attempt.
type Session struct {
	ID              string      `json:"id" yaml:"id" msgpack:"id"`
	User            string      `json:"user,omitempty" yaml:"user,omitempty" msgpack:"user"`
	Stage           Stage       `json:"stage" yaml:"stage" msgpack:"stage"`
	Status          Status      `json:"status" yaml:"status" msgpack:"status"`
	Transcript      []Utterance `json:"transcript,omitempty" yaml:"transcript,omitempty" msgpack:"transcript"`
	CreatedAt       time.Time   `json:"created_at" yaml:"created_at" msgpack:"created_at"`
	CompletedAt     time.Time   `json:"completed_at,omitzero" yaml:"completed_at,omitempty" msgpack:"completed_at"`
	DurationSeconds int         `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty" msgpack:"duration_seconds"`
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	c := *s
	c.Transcript = append([]Utterance(nil), s.Transcript...)
	return &c
}

// Update is a partial session update. Nil fields are left unchanged.
type Update struct {
	Status          *Status
	Transcript      []Utterance
	DurationSeconds *int
	CompletedAt     *time.Time
}

// ApplyUpdate applies u to s. A stored transcript is never replaced by an
// empty or shorter one, so successive writes can only extend it.
func ApplyUpdate(s *Session, u Update) {
	if u.Status != nil {
		s.Status = *u.Status
	}
	if len(u.Transcript) > 0 && len(u.Transcript) >= len(s.Transcript) {
		s.Transcript = append([]Utterance(nil), u.Transcript...)
	}
	if u.DurationSeconds != nil {
		s.DurationSeconds = *u.DurationSeconds
	}
	if u.CompletedAt != nil {
		s.CompletedAt = *u.CompletedAt
	}
}

// Filter selects sessions in ListSessions. Zero fields match anything.
type Filter struct {
	User   string
	Stage  Stage
	Status Status
}

// Match reports whether s satisfies f.
func (f Filter) Match(s *Session) bool {
	if f.User != "" && s.User != f.User {
		return false
	}
	if f.Stage != "" && s.Stage != f.Stage {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}
