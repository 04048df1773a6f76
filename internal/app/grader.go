package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"live-quiz-service/internal/domain"
)

// Grade is the outcome of scoring one answer.
type Grade struct {
	Points   int
	Correct  bool
	Declined bool
}

// DecodeAnswer validates the raw answer against the question's kind and options.
// A JSON null is not an answer; declining is a separate flag on the submission.
func DecodeAnswer(question domain.Question, raw json.RawMessage) (domain.AnswerValue, error) {
	var v domain.AnswerValue
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return v, fmt.Errorf("%w: missing answer", domain.ErrInvalidPayload)
	}

	var err error
	switch question.Kind {
	case domain.KindMultipleChoice:
		err = json.Unmarshal(trimmed, &v.Index)
		if err == nil && !question.HasOption(v.Index) {
			return v, fmt.Errorf("%w: option %d out of range", domain.ErrInvalidPayload, v.Index)
		}
	case domain.KindMultipleAnswer:
		err = json.Unmarshal(trimmed, &v.Indexes)
		if err == nil {
			if bad, found := lo.Find(v.Indexes, func(i int) bool { return !question.HasOption(i) }); found {
				return v, fmt.Errorf("%w: option %d out of range", domain.ErrInvalidPayload, bad)
			}
		}
	case domain.KindTrueFalse:
		err = json.Unmarshal(trimmed, &v.Bool)
	case domain.KindFreeText:
		err = json.Unmarshal(trimmed, &v.Text)
	default:
		return v, fmt.Errorf("%w: unknown question kind %q", domain.ErrInvalidPayload, question.Kind)
	}
	if err != nil {
		return v, fmt.Errorf("%w: answer does not fit a %s question", domain.ErrInvalidPayload, question.Kind)
	}
	return v, nil
}

// GradeAnswer scores answer against question. It is pure and deterministic.
func GradeAnswer(question domain.Question, answer domain.AnswerValue) Grade {
	var correct bool
	switch question.Kind {
	case domain.KindMultipleChoice:
		correct = gradeMultipleChoice(question.Key, answer)
	case domain.KindMultipleAnswer:
		correct = gradeMultipleAnswer(question.Key, answer)
	case domain.KindTrueFalse:
		correct = gradeTrueFalse(question.Key, answer)
	case domain.KindFreeText:
		correct = gradeFreeText(question.Key, answer)
	default:
		return Grade{}
	}
	if !correct {
		return Grade{}
	}
	return Grade{Points: question.PointValue(), Correct: true}
}

// DeclinedGrade is recorded for a participant that gave no answer.
func DeclinedGrade() Grade {
	return Grade{Declined: true}
}

func gradeMultipleChoice(key domain.AnswerKey, answer domain.AnswerValue) bool {
	return answer.Index == key.Index
}

// Exact set equality; no partial credit.
func gradeMultipleAnswer(key domain.AnswerKey, answer domain.AnswerValue) bool {
	want := lo.Uniq(key.Indexes)
	got := lo.Uniq(answer.Indexes)
	if len(want) != len(got) {
		return false
	}
	return lo.Every(want, got)
}

func gradeTrueFalse(key domain.AnswerKey, answer domain.AnswerValue) bool {
	return answer.Bool == key.Bool
}

func gradeFreeText(key domain.AnswerKey, answer domain.AnswerValue) bool {
	return strings.EqualFold(strings.TrimSpace(answer.Text), strings.TrimSpace(key.Text))
}
