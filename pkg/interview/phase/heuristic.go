package phase

import "strings"

// QuestionDetector decides whether an agent utterance is a question.
type QuestionDetector interface {
	IsQuestion(text string) bool
}

// Inferrer guesses the phase implied by an agent utterance.
type Inferrer interface {
	Infer(text string, current Phase) (Phase, bool)
}

var interrogatives = []string{
	"what", "why", "how", "when", "where", "who", "which",
	"can you", "could you", "would you", "will you",
	"do you", "did you", "have you", "are you", "is there",
	"tell me", "describe", "walk me through",
}

// KeywordQuestions treats text as a question when it contains a question
// mark or opens with an interrogative phrase.
type KeywordQuestions struct{}

func (KeywordQuestions) IsQuestion(text string) bool {
	if strings.Contains(text, "?") {
		return true
	}
	norm := Normalize(text)
	for _, w := range interrogatives {
		if norm == w || strings.HasPrefix(norm, w+" ") {
			return true
		}
	}
	return false
}

var phaseCues = []struct {
	phase Phase
	cues  []string
}{
	{CompanyIntro, []string{"about our company", "about the company", "our mission", "we are a", "we're a", "founded in"}},
	{JobOverview, []string{"the role", "this role", "this position", "the position", "responsibilities", "day-to-day"}},
	{Screening, []string{"your experience", "tell me about yourself", "your background", "walk me through", "salary expectations", "why are you interested"}},
	{QAndA, []string{"any questions", "questions for me", "questions about the role", "anything you'd like to ask"}},
	{Closing, []string{"thanks for your time", "thank you for your time", "next steps", "we'll be in touch", "scheduled", "hiring manager"}},
}

// KeywordInferrer maps cue phrases to phases and picks the latest phase
// whose cue appears in the text.
type KeywordInferrer struct{}

func (KeywordInferrer) Infer(text string, current Phase) (Phase, bool) {
	norm := Normalize(text)
	best, found := current, false
	for _, pc := range phaseCues {
		if pc.phase <= best {
			continue
		}
		for _, cue := range pc.cues {
			if strings.Contains(norm, cue) {
				best, found = pc.phase, true
				break
			}
		}
	}
	return best, found
}
