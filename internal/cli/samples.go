package cli

import "live-quiz-service/internal/domain"

// sampleQuizzes backs the service when no database is configured and seeds one when asked.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warm-up",
			Questions: []domain.Question{
				{
					ID:          "q1",
					Kind:        domain.KindMultipleChoice,
					Prompt:      "What is 2 + 2?",
					Options:     []string{"3", "4", "5"},
					Points:      10,
					TimeLimitMs: 20000,
					Key:         domain.AnswerKey{Index: 1},
				},
				{
					ID:      "q2",
					Kind:    domain.KindMultipleAnswer,
					Prompt:  "Which of these are prime?",
					Options: []string{"2", "4", "7", "9"},
					Points:  20,
					Key:     domain.AnswerKey{Indexes: []int{0, 2}},
				},
				{
					ID:     "q3",
					Kind:   domain.KindTrueFalse,
					Prompt: "The Pacific is the largest ocean.",
					Points: 5,
					Key:    domain.AnswerKey{Bool: true},
				},
				{
					ID:     "q4",
					Kind:   domain.KindFreeText,
					Prompt: "Capital of France?",
					Points: 15,
					Key:    domain.AnswerKey{Text: "Paris"},
				},
			},
		},
	}
}
