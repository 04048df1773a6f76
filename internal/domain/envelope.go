package domain

// Message types on the push channel.
const (
	MsgJoin         = "join"
	MsgLeave        = "leave"
	MsgStart        = "start"
	MsgSubmitAnswer = "submit_answer"
	MsgCancel       = "cancel"
	MsgNextQuestion = "next_question"

	MsgGameState         = "game_state"
	MsgParticipantJoined = "participant_joined"
	MsgParticipantLeft   = "participant_left"
	MsgSessionEnded      = "session_ended"
	MsgQuestionClosed    = "question_closed"
	MsgAnswerAccepted    = "answer_accepted"
	MsgError             = "error"
)

// Session end reasons.
const (
	EndCompleted = "completed"
	EndCancelled = "cancelled"
)

// Envelope is the outbound wire message.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ErrorPayload is sent to the originating connection only.
type ErrorPayload struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// ParticipantEvent announces roster changes.
type ParticipantEvent struct {
	UserID           string `json:"userId"`
	DisplayName      string `json:"displayName"`
	ParticipantCount int    `json:"participantCount"`
}

// SessionEnded carries the final per-participant scores.
type SessionEnded struct {
	SessionID string       `json:"sessionId"`
	Reason    string       `json:"reason"`
	Scores    []FinalScore `json:"scores"`
}

// QuestionClosed reveals the answer key and per-question outcomes once a question closes.
type QuestionClosed struct {
	QuestionIndex int              `json:"questionIndex"`
	Kind          QuestionKind     `json:"kind"`
	AnswerKey     any              `json:"answerKey"`
	Results       []QuestionResult `json:"results"`
}

// AnswerAccepted acknowledges a recorded submission to its sender.
type AnswerAccepted struct {
	QuestionIndex int  `json:"questionIndex"`
	Declined      bool `json:"declined"`
}

// ErrorEnvelope builds the error message for err.
func ErrorEnvelope(err error) Envelope {
	return Envelope{Type: MsgError, Payload: ErrorPayload{Kind: KindOf(err), Message: err.Error()}}
}
