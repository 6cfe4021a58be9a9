package relevance

import "fmt"

type Verdict int

const (
	// Indeterminate means no similarity could be computed. It passes the gate.
	Indeterminate Verdict = iota
	Relevant
	NotRelevant
)

func (v Verdict) String() string {
	switch v {
	case Relevant:
		return "relevant"
	case NotRelevant:
		return "not_relevant"
	default:
		return "indeterminate"
	}
}

// Outcome is the tagged result of a classification. Only Relevant and
// NotRelevant carry a score.
type Outcome struct {
	Verdict Verdict
	// Reason explains an Indeterminate outcome.
	Reason     string
	score      int
	similarity float64
}

// NewRelevant builds a scored outcome that passed the threshold.
func NewRelevant(score int, similarity float64) Outcome {
	return Outcome{Verdict: Relevant, score: score, similarity: similarity}
}

func NewNotRelevant(score int, similarity float64) Outcome {
	return Outcome{Verdict: NotRelevant, score: score, similarity: similarity}
}

// NewIndeterminate builds an outcome without a score.
func NewIndeterminate(reason string) Outcome {
	return Outcome{Verdict: Indeterminate, Reason: reason}
}

// Score returns the 0..100 score and false for Indeterminate outcomes.
func (o Outcome) Score() (int, bool) {
	if o.Verdict == Indeterminate {
		return 0, false
	}
	return o.score, true
}

// Passes reports whether the candidate continues down the pipeline. Only a
// computed score below the threshold stops it.
func (o Outcome) Passes() bool {
	return o.Verdict != NotRelevant
}

func (o Outcome) String() string {
	if o.Verdict == Indeterminate {
		return fmt.Sprintf("%s (%s)", o.Verdict, o.Reason)
	}
	return fmt.Sprintf("%s (score %d)", o.Verdict, o.score)
}
