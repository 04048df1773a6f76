package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/domain"
)

const adminID = "host"

var errChannelBroken = errors.New("channel broken")

// recorder is an in-memory Channel capturing everything it is sent.
type recorder struct {
	mu     sync.Mutex
	msgs   []domain.Envelope
	fail   bool
	closed bool
}

func (r *recorder) Send(msg domain.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail || r.closed {
		return errChannelBroken
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recorder) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *recorder) byType(typ string) []domain.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Envelope
	for _, m := range r.msgs {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) lastState(t *testing.T) domain.GameState {
	t.Helper()
	states := r.byType(domain.MsgGameState)
	require.NotEmpty(t, states, "no game_state received")
	return states[len(states)-1].Payload.(domain.GameState)
}

func (r *recorder) states() []domain.GameState {
	var out []domain.GameState
	for _, m := range r.byType(domain.MsgGameState) {
		out = append(out, m.Payload.(domain.GameState))
	}
	return out
}

// staticQuizzes satisfies QuizRepository.
type staticQuizzes map[string]domain.Quiz

func (s staticQuizzes) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	quiz, ok := s[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

// mapRooms satisfies RoomRepository.
type mapRooms struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func newMapRooms() *mapRooms { return &mapRooms{rooms: make(map[string]*Room)} }

func (m *mapRooms) Put(room *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID()] = room
}

func (m *mapRooms) Get(id string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	return room, ok
}

func (m *mapRooms) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, id)
}

func (m *mapRooms) List() []*Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		out = append(out, room)
	}
	return out
}

// handoff records published results.
type handoff struct {
	mu      sync.Mutex
	results []domain.SessionResult
}

func (h *handoff) Publish(result domain.SessionResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, result)
}

func (h *handoff) all() []domain.SessionResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.SessionResult(nil), h.results...)
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	manager  *Manager
	registry *Registry
	results  *handoff
	session  string
	channels map[string]*recorder
}

func mcQuestion(id string, correct, points, limitMs int) domain.Question {
	return domain.Question{
		ID:          id,
		Kind:        domain.KindMultipleChoice,
		Prompt:      "pick one",
		Options:     []string{"a", "b", "c"},
		Points:      points,
		TimeLimitMs: limitMs,
		Key:         domain.AnswerKey{Index: correct},
	}
}

func newFixture(t *testing.T, cfg EngineConfig, questions ...domain.Question) *fixture {
	t.Helper()
	if cfg.Room.DefaultTimeLimit == 0 {
		cfg.Room.DefaultTimeLimit = 10 * time.Second
	}
	if cfg.SessionGrace == 0 {
		cfg.SessionGrace = time.Minute
	}
	registry := NewRegistry()
	results := &handoff{}
	quizzes := staticQuizzes{"quiz-1": {ID: "quiz-1", Title: "Test", Questions: questions}}
	manager := NewManager(newMapRooms(), quizzes, registry, results, cfg, nil)
	t.Cleanup(manager.Shutdown)

	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		manager:  manager,
		registry: registry,
		results:  results,
		channels: make(map[string]*recorder),
	}
	info, err := manager.CreateSession(f.ctx, "quiz-1", adminID)
	require.NoError(t, err)
	f.session = info.SessionID
	f.join(adminID)
	return f
}

func (f *fixture) join(userID string) *recorder {
	f.t.Helper()
	ch := &recorder{}
	require.NoError(f.t, f.manager.Join(f.ctx, f.session, userID, "name-"+userID, ch))
	f.channels[userID] = ch
	return ch
}

func (f *fixture) start() {
	f.t.Helper()
	require.NoError(f.t, f.manager.Start(f.ctx, f.session, adminID))
}

func (f *fixture) next() {
	f.t.Helper()
	require.NoError(f.t, f.manager.NextQuestion(f.ctx, f.session, adminID))
}

func (f *fixture) submit(userID string, index int, answer string) error {
	return f.manager.SubmitAnswer(f.ctx, f.session, userID, domain.Submission{QuestionIndex: index, Answer: []byte(answer)})
}

func (f *fixture) snapshot() domain.GameState {
	f.t.Helper()
	state, err := f.manager.Snapshot(f.ctx, f.session)
	require.NoError(f.t, err)
	return state
}

func (f *fixture) eventuallyStatus(status domain.Status, index int) {
	f.t.Helper()
	require.Eventually(f.t, func() bool {
		state := f.snapshot()
		return state.Status == status && state.QuestionIndex == index
	}, 2*time.Second, 5*time.Millisecond, "want %s at %d", status, index)
}

func scoresByUser(scores []domain.FinalScore) map[string]int {
	out := make(map[string]int, len(scores))
	for _, s := range scores {
		out[s.UserID] = s.Score
	}
	return out
}
