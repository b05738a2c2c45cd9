package parrot

import (
	"strings"
	"time"
	"unicode/utf8"
)

// outOfRangeMarker shows up in speech heard from too far away to make out.
const outOfRangeMarker = "~"

// Reason is the verdict of the learning gate.
type Reason int

const (
	Accepted Reason = iota
	NoMemory
	Incapacitated
	OnCooldown
	SelfSource
	IgnoredSource
	OutOfRange
	Empty
	LengthOutOfBounds
	ProbabilityMiss
	// NotListening means the parrot could not hear the phrase at all: local
	// speech without a listener, or a radio channel it is not tuned to.
	NotListening
)

var reasonNames = [...]string{
	Accepted:          "accepted",
	NoMemory:          "no_memory",
	Incapacitated:     "incapacitated",
	OnCooldown:        "on_cooldown",
	SelfSource:        "self_source",
	IgnoredSource:     "ignored_source",
	OutOfRange:        "out_of_range",
	Empty:             "empty",
	LengthOutOfBounds: "length_out_of_bounds",
	ProbabilityMiss:   "probability_miss",
	NotListening:      "not_listening",
}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return "unknown"
	}
	return reasonNames[r]
}

// Learner holds the learning gate configuration and cooldown state of a
// parrot's memory.
type Learner struct {
	Cooldown  time.Duration `json:"cooldown"`
	Chance    float64       `json:"chance"`
	MinLength int           `json:"min_length"`
	MaxLength int           `json:"max_length"`
	NextLearn time.Time     `json:"next_learn"`
}

// LearnInput is everything the gate needs to know about one heard phrase.
type LearnInput struct {
	Self           string
	Source         string
	SourceIsParrot bool
	IgnoreParrots  bool
	Incapacitated  bool
	Text           string
	Now            time.Time
}

// Evaluate runs the learning gate. A nil learner means the parrot has no
// memory. Once a phrase passes structural validation the cooldown is
// restarted whatever the probability roll says, so chatter cannot be used
// to queue up learning attempts.
func Evaluate(l *Learner, in LearnInput, rng Rand) (string, Reason) {
	if l == nil {
		return "", NoMemory
	}
	if in.Incapacitated {
		return "", Incapacitated
	}
	if in.Now.Before(l.NextLearn) {
		return "", OnCooldown
	}
	if in.Source == in.Self {
		return "", SelfSource
	}
	if in.IgnoreParrots && in.SourceIsParrot {
		return "", IgnoredSource
	}

	phrase := strings.TrimSpace(in.Text)
	if strings.Contains(phrase, outOfRangeMarker) {
		return "", OutOfRange
	}
	if phrase == "" {
		return "", Empty
	}
	if n := utf8.RuneCountInString(phrase); n < l.MinLength || n > l.MaxLength {
		return "", LengthOutOfBounds
	}

	l.NextLearn = in.Now.Add(l.Cooldown)

	if !prob(rng, l.Chance) {
		return "", ProbabilityMiss
	}
	return phrase, Accepted
}
