package domain

// Screen is a top-level application screen.
type Screen string

const (
	ScreenLanding        Screen = "landing"
	ScreenRangeSelection Screen = "range-selection"
	ScreenQuiz           Screen = "quiz"
	ScreenResults        Screen = "results"
	ScreenAbout          Screen = "about"
)

// TimerState is the externally visible state of the exam countdown.
type TimerState struct {
	Active           bool   `json:"active"`
	RemainingSeconds int    `json:"remainingSeconds"`
	Formatted        string `json:"formatted"`
	Warning          bool   `json:"warning"`
	Expired          bool   `json:"expired"`
}

// QuestionView is a question as shown to the client. Correctness is only
// revealed through Feedback.
type QuestionView struct {
	ID              int      `json:"id"`
	Question        string   `json:"question"`
	Options         []string `json:"options"`
	SelectedAnswers []int    `json:"selectedAnswers"`
	MultiSelect     bool     `json:"multiSelect"`
}

// Snapshot is the complete view state broadcast to clients.
type Snapshot struct {
	Screen         Screen          `json:"screen"`
	Mode           Mode            `json:"mode"`
	BankSize       int             `json:"bankSize"`
	Ranges         []QuestionRange `json:"ranges,omitempty"`
	CurrentIndex   int             `json:"currentIndex"`
	Total          int             `json:"total"`
	Question       *QuestionView   `json:"question,omitempty"`
	CanGoPrevious  bool            `json:"canGoPrevious"`
	IsLastQuestion bool            `json:"isLastQuestion"`
	Feedback       *AnswerFeedback `json:"feedback,omitempty"`
	Timer          *TimerState     `json:"timer,omitempty"`
	Result         *Result         `json:"result,omitempty"`
}
