package domain

import "time"

// QuestionKind tags the shape of a question's options, answer key and submitted answers.
type QuestionKind string

const (
	KindMultipleChoice QuestionKind = "multiple_choice"
	KindMultipleAnswer QuestionKind = "multiple_answer"
	KindTrueFalse      QuestionKind = "true_false"
	KindFreeText       QuestionKind = "free_text"
)

// Valid reports whether k is one of the supported kinds.
func (k QuestionKind) Valid() bool {
	switch k {
	case KindMultipleChoice, KindMultipleAnswer, KindTrueFalse, KindFreeText:
		return true
	}
	return false
}

// AnswerKey holds the kind-specific correct answer. Only the field matching the
// question's kind is meaningful.
type AnswerKey struct {
	Index   int    `json:"index,omitempty"`
	Indexes []int  `json:"indexes,omitempty"`
	Bool    bool   `json:"bool,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Question is a catalog question definition, answer key included.
type Question struct {
	ID          string       `json:"id"`
	Kind        QuestionKind `json:"kind"`
	Prompt      string       `json:"prompt"`
	Options     []string     `json:"options,omitempty"`
	Points      int          `json:"points"` // defaults to 1 if zero
	TimeLimitMs int          `json:"timeLimitMs"`
	Key         AnswerKey    `json:"key"`
}

// PointValue returns the configured points, defaulting to 1.
func (q Question) PointValue() int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// TimeBudget returns the question's time limit or fallback when unset.
func (q Question) TimeBudget(fallback time.Duration) time.Duration {
	if q.TimeLimitMs <= 0 {
		return fallback
	}
	return time.Duration(q.TimeLimitMs) * time.Millisecond
}

// HasOption reports whether i addresses one of the question's options.
func (q Question) HasOption(i int) bool {
	return i >= 0 && i < len(q.Options)
}

// RevealKey returns the correct answer in the same shape a participant submits it:
// an index, a list of indexes, a bool or a string. Zero values are kept.
func (q Question) RevealKey() any {
	switch q.Kind {
	case KindMultipleChoice:
		return q.Key.Index
	case KindMultipleAnswer:
		indexes := make([]int, len(q.Key.Indexes))
		copy(indexes, q.Key.Indexes)
		return indexes
	case KindTrueFalse:
		return q.Key.Bool
	case KindFreeText:
		return q.Key.Text
	}
	return nil
}

// Public strips the answer key.
func (q Question) Public(index int) *PublicQuestion {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return &PublicQuestion{
		Index:       index,
		ID:          q.ID,
		Kind:        q.Kind,
		Prompt:      q.Prompt,
		Options:     options,
		Points:      q.PointValue(),
		TimeLimitMs: q.TimeLimitMs,
	}
}

// PublicQuestion is the participant-facing question. It has no answer key field.
type PublicQuestion struct {
	Index       int          `json:"index"`
	ID          string       `json:"id"`
	Kind        QuestionKind `json:"kind"`
	Prompt      string       `json:"prompt"`
	Options     []string     `json:"options,omitempty"`
	Points      int          `json:"points"`
	TimeLimitMs int          `json:"timeLimitMs"`
}

// AnswerValue is a decoded submitted answer. Only the field matching the kind is set.
type AnswerValue struct {
	Index   int
	Indexes []int
	Bool    bool
	Text    string
}

// Submission is what a participant sends for the current question.
type Submission struct {
	QuestionIndex int
	Answer        []byte
	Declined      bool
}
