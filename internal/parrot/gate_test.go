package parrot

import (
	"strings"
	"testing"
	"time"
)

func TestEvaluateChecksInOrder(t *testing.T) {
	base := LearnInput{Self: "polly", Source: "alice", Text: "  crackers please  ", Now: at(10)}

	tests := []struct {
		name    string
		learner *Learner
		mutate  func(in *LearnInput)
		want    Reason
	}{
		{"no memory", nil, func(in *LearnInput) {}, NoMemory},
		{"incapacitated", &Learner{Chance: 1, MaxLength: 100}, func(in *LearnInput) { in.Incapacitated = true }, Incapacitated},
		{"cooldown", &Learner{Chance: 1, MaxLength: 100, NextLearn: at(11)}, func(in *LearnInput) {}, OnCooldown},
		{"self", &Learner{Chance: 1, MaxLength: 100}, func(in *LearnInput) { in.Source = "polly" }, SelfSource},
		{"ignored parrot", &Learner{Chance: 1, MaxLength: 100}, func(in *LearnInput) {
			in.IgnoreParrots = true
			in.SourceIsParrot = true
		}, IgnoredSource},
		{"parrot allowed", &Learner{Chance: 1, MaxLength: 100}, func(in *LearnInput) { in.SourceIsParrot = true }, Accepted},
		{"out of range", &Learner{Chance: 1, MaxLength: 100}, func(in *LearnInput) { in.Text = "cra~ckers" }, OutOfRange},
		{"empty", &Learner{Chance: 1, MaxLength: 100}, func(in *LearnInput) { in.Text = " \t\n" }, Empty},
		{"too long", &Learner{Chance: 1, MaxLength: 5}, func(in *LearnInput) {}, LengthOutOfBounds},
		{"too short", &Learner{Chance: 1, MinLength: 50, MaxLength: 100}, func(in *LearnInput) {}, LengthOutOfBounds},
		{"probability", &Learner{Chance: 0, MaxLength: 100}, func(in *LearnInput) {}, ProbabilityMiss},
		{"accepted", &Learner{Chance: 1, MaxLength: 100}, func(in *LearnInput) {}, Accepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			phrase, got := Evaluate(tt.learner, in, &scriptedRand{floats: []float64{0.5}})
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			if got == Accepted && phrase != strings.TrimSpace(in.Text) {
				t.Errorf("got phrase %q, want trimmed %q", phrase, strings.TrimSpace(in.Text))
			}
			if got != Accepted && phrase != "" {
				t.Errorf("rejected verdict returned phrase %q", phrase)
			}
		})
	}
}

func TestCooldownGating(t *testing.T) {
	l := &Learner{Cooldown: 5 * time.Second, Chance: 1, MinLength: 1, MaxLength: 100}
	in := LearnInput{Self: "polly", Source: "alice", Text: "hello"}

	in.Now = at(0)
	if _, r := Evaluate(l, in, &scriptedRand{}); r != Accepted {
		t.Fatalf("t=0: got %v, want accepted", r)
	}
	in.Now = at(3)
	if _, r := Evaluate(l, in, &scriptedRand{}); r != OnCooldown {
		t.Fatalf("t=3: got %v, want on_cooldown", r)
	}
	in.Now = at(6)
	if _, r := Evaluate(l, in, &scriptedRand{}); r == OnCooldown {
		t.Fatalf("t=6: still on cooldown")
	}
}

func TestCooldownRestartsOnProbabilityMiss(t *testing.T) {
	l := &Learner{Cooldown: 5 * time.Second, Chance: 0.5, MinLength: 1, MaxLength: 100}
	in := LearnInput{Self: "polly", Source: "alice", Text: "hello", Now: at(0)}

	if _, r := Evaluate(l, in, &scriptedRand{floats: []float64{0.9}}); r != ProbabilityMiss {
		t.Fatalf("got %v, want probability_miss", r)
	}
	if !l.NextLearn.Equal(at(5)) {
		t.Errorf("next learn %v, want %v", l.NextLearn, at(5))
	}
}

func TestCooldownUntouchedByStructuralRejection(t *testing.T) {
	l := &Learner{Cooldown: 5 * time.Second, Chance: 1, MinLength: 3, MaxLength: 100}
	in := LearnInput{Self: "polly", Source: "alice", Text: "hi", Now: at(0)}

	if _, r := Evaluate(l, in, &scriptedRand{}); r != LengthOutOfBounds {
		t.Fatalf("got %v, want length_out_of_bounds", r)
	}
	if !l.NextLearn.IsZero() {
		t.Errorf("cooldown started on structural rejection: %v", l.NextLearn)
	}
}

func TestLengthBounds(t *testing.T) {
	l := &Learner{Chance: 1, MinLength: 5, MaxLength: 10}
	in := LearnInput{Self: "polly", Source: "alice", Now: at(0)}

	for i := 0; i < 100; i++ {
		in.Text = "abcd"
		if _, r := Evaluate(l, in, NewRand(uint64(i+1))); r != LengthOutOfBounds {
			t.Fatalf("length min-1 got %v", r)
		}
	}
	in.Text = "abcde"
	if _, r := Evaluate(l, in, NewRand(1)); r != Accepted {
		t.Fatalf("length min got %v, want accepted", r)
	}
	in.Text = "ééééé"
	if _, r := Evaluate(l, in, NewRand(1)); r != Accepted {
		t.Fatalf("length counts runes, got %v", r)
	}
}

func TestProbabilityConvergence(t *testing.T) {
	const trials = 100000
	l := &Learner{Chance: 0.3, MinLength: 1, MaxLength: 100}
	in := LearnInput{Self: "polly", Source: "alice", Text: "hello", Now: at(0)}
	rng := NewRand(2024)

	accepted := 0
	for i := 0; i < trials; i++ {
		if _, r := Evaluate(l, in, rng); r == Accepted {
			accepted++
		}
	}
	rate := float64(accepted) / trials
	if rate < 0.29 || rate > 0.31 {
		t.Errorf("acceptance rate %.4f, want 0.30±0.01", rate)
	}
}

func TestReasonString(t *testing.T) {
	if Accepted.String() != "accepted" || ProbabilityMiss.String() != "probability_miss" {
		t.Errorf("unexpected names %q %q", Accepted, ProbabilityMiss)
	}
	if Reason(99).String() != "unknown" {
		t.Errorf("got %q for out of range reason", Reason(99))
	}
}
