package domain

import "errors"

var (
	// ErrNoQuestions is returned when a quiz would start with an empty question list.
	ErrNoQuestions = errors.New("no questions found")
	// ErrNoActiveQuiz is returned when an answer arrives with no question on screen.
	ErrNoActiveQuiz = errors.New("no active quiz")
	// ErrOptionOutOfRange indicates a selected answer index the question does not have.
	ErrOptionOutOfRange = errors.New("option index out of range")
	// ErrUnknownRange indicates a practice range label that is not offered.
	ErrUnknownRange = errors.New("unknown question range")
	// ErrEmptySelection indicates a practice range that holds no questions of the bank.
	ErrEmptySelection = errors.New("question range is empty")
	// ErrInvalidMode indicates an unsupported quiz mode.
	ErrInvalidMode = errors.New("invalid quiz mode")
	// ErrNotPracticeMode is returned for practice-only actions during an exam.
	ErrNotPracticeMode = errors.New("only available in practice mode")
	// ErrBankNotFound indicates the question bank could not be loaded.
	ErrBankNotFound = errors.New("question bank not found")
	// ErrInvalidScreen indicates a navigation target that cannot be reached directly.
	ErrInvalidScreen = errors.New("invalid screen")
)
