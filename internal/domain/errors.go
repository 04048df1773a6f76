package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no live session has the given id.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionClosed is returned for events against a completed or cancelled session.
	ErrSessionClosed = errors.New("quiz session closed")
	// ErrInvalidState indicates the transition is not legal from the current status.
	ErrInvalidState = errors.New("invalid session state")
	// ErrNotParticipant is returned when a user tries to act before joining.
	ErrNotParticipant = errors.New("not a participant in this session")
	// ErrAlreadyAnswered rejects a second answer for the same question.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrWrongQuestion rejects answers addressed to a question that is not current.
	ErrWrongQuestion = errors.New("answer for a question that is not current")
	// ErrUnauthorized is returned when a non-admin attempts an admin-only action.
	ErrUnauthorized = errors.New("only the session admin can do this")
	// ErrInvalidPayload indicates a malformed message or answer shape.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrEmptyQuiz is returned when a quiz has no questions to play.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrSessionActive is returned when another session is already live.
	ErrSessionActive = errors.New("another quiz session is already active")
	// ErrInternal wraps unexpected failures inside the engine.
	ErrInternal = errors.New("internal error")
)

// ErrorKind is the wire name of an error category.
type ErrorKind string

const (
	KindInvalidState    ErrorKind = "InvalidState"
	KindNotParticipant  ErrorKind = "NotParticipant"
	KindAlreadyAnswered ErrorKind = "AlreadyAnswered"
	KindWrongQuestion   ErrorKind = "WrongQuestion"
	KindSessionClosed   ErrorKind = "SessionClosed"
	KindSessionNotFound ErrorKind = "SessionNotFound"
	KindUnauthorized    ErrorKind = "Unauthorized"
	KindInvalidPayload  ErrorKind = "InvalidPayload"
	KindQuizNotFound    ErrorKind = "QuizNotFound"
	KindInternal        ErrorKind = "Internal"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrSessionNotFound, KindSessionNotFound},
	{ErrSessionClosed, KindSessionClosed},
	{ErrInvalidState, KindInvalidState},
	{ErrNotParticipant, KindNotParticipant},
	{ErrAlreadyAnswered, KindAlreadyAnswered},
	{ErrWrongQuestion, KindWrongQuestion},
	{ErrUnauthorized, KindUnauthorized},
	{ErrInvalidPayload, KindInvalidPayload},
	{ErrQuizNotFound, KindQuizNotFound},
	{ErrEmptyQuiz, KindInvalidState},
	{ErrSessionActive, KindInvalidState},
}

// KindOf maps an engine error to its wire kind.
func KindOf(err error) ErrorKind {
	for _, ek := range errorKinds {
		if errors.Is(err, ek.err) {
			return ek.kind
		}
	}
	return KindInternal
}
