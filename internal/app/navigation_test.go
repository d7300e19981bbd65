package app

import (
	"testing"

	"psd-quiz-service/internal/domain"
)

func TestNavigatorStartsOnLanding(t *testing.T) {
	nav := NewNavigator()
	if nav.Current() != domain.ScreenLanding {
		t.Fatalf("expected landing, got %s", nav.Current())
	}
	if h := nav.History(); len(h) != 1 || h[0] != domain.ScreenLanding {
		t.Fatalf("unexpected history %v", h)
	}
}

func TestNavigatorTransitions(t *testing.T) {
	nav := NewNavigator()

	steps := []struct {
		do   func() domain.Screen
		want domain.Screen
	}{
		{nav.GoToRangeSelection, domain.ScreenRangeSelection},
		{nav.StartQuiz, domain.ScreenQuiz},
		{nav.ShowResults, domain.ScreenResults},
		{nav.GoToAbout, domain.ScreenAbout},
		{nav.GoToLanding, domain.ScreenLanding},
		// no guards: results straight from landing is allowed
		{nav.ShowResults, domain.ScreenResults},
	}
	for i, step := range steps {
		if got := step.do(); got != step.want {
			t.Fatalf("step %d: expected %s, got %s", i, step.want, got)
		}
	}
	if h := nav.History(); len(h) != len(steps)+1 {
		t.Fatalf("expected %d history entries, got %d", len(steps)+1, len(h))
	}
}

func TestNavigatorIgnoresUnknownAction(t *testing.T) {
	nav := NewNavigator()
	nav.StartQuiz()

	if got := nav.Dispatch(NavAction("GO_SOMEWHERE")); got != domain.ScreenQuiz {
		t.Fatalf("expected quiz to stay, got %s", got)
	}
	if h := nav.History(); len(h) != 2 {
		t.Fatalf("unknown action should not grow history, got %v", h)
	}
}
