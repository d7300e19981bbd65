package domain

import "time"

// Mode selects how a quiz session behaves.
type Mode string

const (
	ModeExam     Mode = "exam"
	ModePractice Mode = "practice"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeExam || m == ModePractice
}

// Option represents a possible answer for a question.
type Option struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Question is a single bank entry together with the answers picked in the
// current session. ID is session-relative and reassigned whenever the
// question enters a session; it is never used to address the question.
type Question struct {
	ID              int      `json:"id"`
	Question        string   `json:"question"`
	Options         []Option `json:"options"`
	SelectedAnswers []int    `json:"selectedAnswers"`
}

// CorrectIndices returns the indices of the options marked correct.
func (q Question) CorrectIndices() []int {
	indices := make([]int, 0, len(q.Options))
	for i, opt := range q.Options {
		if opt.IsCorrect {
			indices = append(indices, i)
		}
	}
	return indices
}

// IsMultiSelect reports whether the question asks to select all that apply.
func (q Question) IsMultiSelect() bool {
	return len(q.CorrectIndices()) != 1
}

// Clone returns a deep copy so callers cannot mutate session state.
func (q Question) Clone() Question {
	out := q
	out.Options = append([]Option(nil), q.Options...)
	out.SelectedAnswers = append([]int{}, q.SelectedAnswers...)
	return out
}

// CloneQuestions deep-copies a question list.
func CloneQuestions(questions []Question) []Question {
	out := make([]Question, len(questions))
	for i, q := range questions {
		out[i] = q.Clone()
	}
	return out
}

// ExamSession is the persisted state of one in-flight timed exam.
type ExamSession struct {
	StartTime    time.Time
	Questions    []Question
	CurrentIndex int
}

// QuestionRange is an inclusive band of bank positions offered for practice.
type QuestionRange struct {
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// RangeAll selects the whole bank.
const RangeAll = "all"

// Result summarises a scored attempt.
type Result struct {
	Correct    int  `json:"correct"`
	Total      int  `json:"total"`
	Percentage int  `json:"percentage"`
	Passed     bool `json:"passed"`
}

// Label renders the verdict the way the results screen shows it.
func (r Result) Label() string {
	if r.Passed {
		return "PASSED"
	}
	return "FAILED"
}

// OptionFeedback classifies an option once the answer has been checked.
type OptionFeedback string

const (
	FeedbackNeutral       OptionFeedback = "neutral"
	FeedbackCorrect       OptionFeedback = "correct"
	FeedbackWrongSelected OptionFeedback = "wrong"
)

// AnswerFeedback is the immediate verdict shown in practice mode.
type AnswerFeedback struct {
	Correct bool             `json:"correct"`
	Options []OptionFeedback `json:"options"`
}
