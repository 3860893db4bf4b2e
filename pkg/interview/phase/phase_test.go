package phase

import (
	"slices"
	"testing"
)

func TestAdvanceIsMonotonic(t *testing.T) {
	c := New()
	if c.Phase() != Opening {
		t.Fatalf("initial phase = %v, want opening", c.Phase())
	}
	if !c.Advance(Screening) {
		t.Fatal("Advance(screening) = false")
	}
	if c.Advance(CompanyIntro) {
		t.Error("backward Advance accepted")
	}
	if c.Advance(Screening) {
		t.Error("same-phase Advance reported a change")
	}
	if c.Advance(Phase(42)) {
		t.Error("out-of-range Advance accepted")
	}
	c.Advance(Closing)

	want := []Phase{Opening, Screening, Closing}
	if got := c.History(); !slices.Equal(got, want) {
		t.Errorf("History() = %v, want %v", got, want)
	}
}

func TestObserveInfersForwardOnly(t *testing.T) {
	c := New()
	c.Observe("Hi Jordan, thanks for joining. Let me tell you a bit about our company.")
	if c.Phase() != CompanyIntro {
		t.Fatalf("phase = %v, want company_intro", c.Phase())
	}
	c.Observe("Great. Can you walk me through your experience with distributed systems?")
	if c.Phase() != Screening {
		t.Fatalf("phase = %v, want screening", c.Phase())
	}
	// A cue from an earlier phase does not move the phase back.
	c.Observe("To recap, this role sits on the platform team.")
	if c.Phase() != Screening {
		t.Fatalf("phase = %v, want screening", c.Phase())
	}
	c.Observe("Do you have any questions for me?")
	c.Observe("Thanks for your time, the next steps will come by email.")
	if c.Phase() != Closing {
		t.Fatalf("phase = %v, want closing", c.Phase())
	}

	h := c.History()
	for i := 1; i < len(h); i++ {
		if h[i] <= h[i-1] {
			t.Fatalf("history not increasing: %v", h)
		}
	}
}

func TestRecordQuestionDeduplicates(t *testing.T) {
	c := New()
	first := "Tell me about a challenging project you led at your last company."
	second := "Tell me about a challenging project you led at your prior company."

	if !c.RecordQuestion(first) {
		t.Fatal("first question not recorded")
	}
	if c.RecordQuestion(second) {
		t.Error("near-duplicate question recorded")
	}
	if got := c.AskedQuestions(); len(got) != 1 || got[0] != first {
		t.Errorf("AskedQuestions() = %q", got)
	}
}

func TestRecordQuestionIgnoresStatements(t *testing.T) {
	c := New()
	if c.RecordQuestion("That sounds great.") {
		t.Error("statement recorded as question")
	}
	if !c.RecordQuestion("Why are you interested in this role?") {
		t.Error("question not recorded")
	}
	if !c.RecordQuestion("Describe your ideal team.") {
		t.Error("interrogative opening not recorded")
	}
	if n := len(c.AskedQuestions()); n != 2 {
		t.Errorf("len(AskedQuestions) = %d, want 2", n)
	}
}

func TestDuplicate(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"what is your name?", "what is your name?", true},
		{"what is your name?", "what is your age?", false},
		{"short one?", "short two?", false},
		// Both longer than 30 with the same first 30 characters.
		{"how would you describe your leadership style?", "how would you describe your leadership approach?", true},
		// First 30 match but one side is not longer than 30.
		{"how would you describe your le", "how would you describe your leadership style?", false},
	}
	for _, tt := range tests {
		if got := Duplicate(Normalize(tt.a), Normalize(tt.b)); got != tt.want {
			t.Errorf("Duplicate(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

type alwaysQuestion struct{}

func (alwaysQuestion) IsQuestion(string) bool { return true }

func TestCustomQuestionDetector(t *testing.T) {
	c := New(WithQuestionDetector(alwaysQuestion{}))
	if !c.RecordQuestion("Nice to meet you.") {
		t.Error("custom detector ignored")
	}
}

func TestParseAndText(t *testing.T) {
	for p := Opening; p <= Closing; p++ {
		got, err := Parse(p.String())
		if err != nil || got != p {
			t.Errorf("Parse(%q) = %v, %v", p.String(), got, err)
		}
	}
	if _, err := Parse("smalltalk"); err == nil {
		t.Error("Parse(smalltalk) succeeded")
	}
	var p Phase
	if err := p.UnmarshalText([]byte("q_and_a")); err != nil || p != QAndA {
		t.Errorf("UnmarshalText = %v, %v", p, err)
	}
}
