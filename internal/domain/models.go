package domain

import "time"

// Status is the lifecycle state of a live session.
type Status string

const (
	StatusLobby          Status = "lobby"
	StatusInProgress     Status = "in_progress"
	StatusQuestionActive Status = "question_active"
	StatusQuestionReview Status = "question_review"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Quiz is the catalog entry a session is created from.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Participant represents a quiz participant and their accumulated score.
type Participant struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
	Score       int       `json:"score"`
	Answered    bool      `json:"answered"`
	Active      bool      `json:"active"`
}

// AnswerRecord is the single recorded answer for a (participant, question index) pair.
type AnswerRecord struct {
	UserID        string    `json:"userId"`
	QuestionIndex int       `json:"questionIndex"`
	Raw           []byte    `json:"raw,omitempty"`
	SubmittedAt   time.Time `json:"submittedAt"`
	Points        int       `json:"points"`
	Correct       bool      `json:"correct"`
	Declined      bool      `json:"declined"`
}

// ParticipantSummary is the roster entry broadcast to clients.
type ParticipantSummary struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	Answered    bool   `json:"answered"`
}

// GameState is the redacted snapshot of a session. Only Answered varies per recipient.
type GameState struct {
	SessionID         string               `json:"sessionId"`
	QuizID            string               `json:"quizId"`
	Status            Status               `json:"status"`
	QuestionIndex     int                  `json:"questionIndex"`
	TotalQuestions    int                  `json:"totalQuestions"`
	Question          *PublicQuestion      `json:"question,omitempty"`
	QuestionStartedAt *time.Time           `json:"questionStartedAt,omitempty"`
	Deadline          *time.Time           `json:"deadline,omitempty"`
	Participants      []ParticipantSummary `json:"participants"`
	AnsweredCount     int                  `json:"answeredCount"`
	Answered          bool                 `json:"answered"`

	answeredBy map[string]bool
}

// WithAnsweredBy attaches the set of users that answered the current question.
func (g GameState) WithAnsweredBy(users map[string]bool) GameState {
	g.answeredBy = users
	return g
}

// For returns the variant of the snapshot addressed to userID.
func (g GameState) For(userID string) GameState {
	g.Answered = g.answeredBy[userID]
	return g
}

// SessionInfo is the lightweight, lock-free view of a room used by lookups.
type SessionInfo struct {
	SessionID     string    `json:"sessionId"`
	QuizID        string    `json:"quizId"`
	AdminID       string    `json:"adminId"`
	Status        Status    `json:"status"`
	QuestionIndex int       `json:"questionIndex"`
	Participants  int       `json:"participants"`
	CreatedAt     time.Time `json:"createdAt"`
}

// FinalScore is one participant's line in the session results.
type FinalScore struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	Correct     int    `json:"correct"`
	Wrong       int    `json:"wrong"`
	Declined    int    `json:"declined"`
	Left        bool   `json:"left"`
}

// SessionResult is handed to the results sinks once a session completes.
type SessionResult struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"sessionId"`
	QuizID         string         `json:"quizId"`
	AdminID        string         `json:"adminId"`
	TotalQuestions int            `json:"totalQuestions"`
	StartedAt      time.Time      `json:"startedAt"`
	FinishedAt     time.Time      `json:"finishedAt"`
	Scores         []FinalScore   `json:"scores"`
	Answers        []AnswerRecord `json:"answers"`
}

// QuestionResult is one participant's outcome for a closed question.
type QuestionResult struct {
	UserID   string `json:"userId"`
	Points   int    `json:"points"`
	Correct  bool   `json:"correct"`
	Declined bool   `json:"declined"`
}
