package app

import "psd-quiz-service/internal/domain"

// NavAction names a screen transition.
type NavAction string

const (
	ActionGoToLanding        NavAction = "GO_TO_LANDING"
	ActionGoToRangeSelection NavAction = "GO_TO_RANGE_SELECTION"
	ActionStartQuiz          NavAction = "START_QUIZ"
	ActionShowResults        NavAction = "SHOW_RESULTS"
	ActionGoToAbout          NavAction = "GO_TO_ABOUT"
)

var actionTargets = map[NavAction]domain.Screen{
	ActionGoToLanding:        domain.ScreenLanding,
	ActionGoToRangeSelection: domain.ScreenRangeSelection,
	ActionStartQuiz:          domain.ScreenQuiz,
	ActionShowResults:        domain.ScreenResults,
	ActionGoToAbout:          domain.ScreenAbout,
}

// Navigator tracks the top-level screen. Every transition is allowed; callers
// are responsible for not showing the quiz screen without questions.
type Navigator struct {
	current domain.Screen
	history []domain.Screen
}

func NewNavigator() *Navigator {
	return &Navigator{
		current: domain.ScreenLanding,
		history: []domain.Screen{domain.ScreenLanding},
	}
}

// Dispatch applies an action and returns the resulting screen. Unknown
// actions leave the state unchanged.
func (n *Navigator) Dispatch(action NavAction) domain.Screen {
	target, ok := actionTargets[action]
	if !ok {
		return n.current
	}
	n.current = target
	n.history = append(n.history, target)
	return n.current
}

func (n *Navigator) GoToLanding() domain.Screen        { return n.Dispatch(ActionGoToLanding) }
func (n *Navigator) GoToRangeSelection() domain.Screen { return n.Dispatch(ActionGoToRangeSelection) }
func (n *Navigator) StartQuiz() domain.Screen          { return n.Dispatch(ActionStartQuiz) }
func (n *Navigator) ShowResults() domain.Screen        { return n.Dispatch(ActionShowResults) }
func (n *Navigator) GoToAbout() domain.Screen          { return n.Dispatch(ActionGoToAbout) }

// Current returns the active screen.
func (n *Navigator) Current() domain.Screen {
	return n.current
}

// History returns the visited screens, oldest first.
func (n *Navigator) History() []domain.Screen {
	return append([]domain.Screen(nil), n.history...)
}
