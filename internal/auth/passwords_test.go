package auth

import (
	"strings"
	"testing"
)

func TestPasswordProblemsAcceptsStrongPassword(t *testing.T) {
	if problems := passwordProblems("alice", "Xy9!aabb"); len(problems) != 0 {
		t.Errorf("expected no problems, got %v", problems)
	}
}

func TestPasswordProblemsReportsEveryRule(t *testing.T) {
	problems := passwordProblems("1234", "1234")
	joined := strings.Join(problems, " ")
	for _, want := range []string{"too short", "too similar", "entirely numeric"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %q in %q", want, joined)
		}
	}
}

func TestPasswordProblemsRejectsOverlongPassword(t *testing.T) {
	if problems := passwordProblems("alice", strings.Repeat("Xy9!", 18)); len(problems) != 0 {
		t.Errorf("72 bytes should be accepted, got %v", problems)
	}
	problems := passwordProblems("alice", strings.Repeat("Xy9!", 21))
	if len(problems) != 1 || !strings.Contains(problems[0], "too long") {
		t.Errorf("expected a single too long problem, got %v", problems)
	}
}
