package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
)

// RoomRepository abstracts where live rooms are tracked (in-memory, Redis-mirrored, etc).
type RoomRepository interface {
	Put(room *Room)
	Get(sessionID string) (*Room, bool)
	Delete(sessionID string)
	List() []*Room
}

// SessionObserver is told when a room's summary changes. RoomRepository
// implementations that mirror sessions elsewhere implement it.
type SessionObserver interface {
	SessionChanged(info domain.SessionInfo)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// EngineConfig controls session lifecycle across all rooms.
type EngineConfig struct {
	Room RoomConfig
	// SessionGrace keeps a finished room around so late readers can fetch its final state.
	SessionGrace time.Duration
	// MultiSession allows several live sessions at once.
	MultiSession bool
}

// Manager contains the live-session use cases and owns room lifetimes.
type Manager struct {
	rooms      RoomRepository
	quizzes    QuizRepository
	registry   *Registry
	dispatcher *Dispatcher
	results    ResultsHandoff
	cfg        EngineConfig
	logger     *zap.Logger
	now        func() time.Time

	createMu sync.Mutex

	mu       sync.Mutex
	removals map[string]*time.Timer
}

func NewManager(rooms RoomRepository, quizzes QuizRepository, registry *Registry, results ResultsHandoff, cfg EngineConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		rooms:      rooms,
		quizzes:    quizzes,
		registry:   registry,
		dispatcher: NewDispatcher(registry, logger),
		results:    results,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		removals:   make(map[string]*time.Timer),
	}
}

// WithClock is test-only for deterministic timestamps.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// CreateSession opens a lobby for quizID owned by adminID.
func (m *Manager) CreateSession(ctx context.Context, quizID, adminID string) (domain.SessionInfo, error) {
	quiz, err := m.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SessionInfo{}, err
	}
	if len(quiz.Questions) == 0 {
		return domain.SessionInfo{}, domain.ErrEmptyQuiz
	}
	for i, q := range quiz.Questions {
		if !q.Kind.Valid() {
			return domain.SessionInfo{}, fmt.Errorf("%w: question %d has unknown kind %q", domain.ErrInvalidPayload, i, q.Kind)
		}
	}

	m.createMu.Lock()
	defer m.createMu.Unlock()

	if !m.cfg.MultiSession && len(m.live("")) > 0 {
		return domain.SessionInfo{}, domain.ErrSessionActive
	}

	var onChange func(domain.SessionInfo)
	if observer, ok := m.rooms.(SessionObserver); ok {
		onChange = observer.SessionChanged
	}
	room := NewRoom(RoomParams{
		ID:         uuid.NewString(),
		AdminID:    adminID,
		Quiz:       quiz,
		Config:     m.cfg.Room,
		Registry:   m.registry,
		Dispatcher: m.dispatcher,
		Results:    m.results,
		Logger:     m.logger,
		Now:        m.now,
		OnTerminal: m.scheduleRemoval,
		OnChange:   onChange,
	})
	m.rooms.Put(room)

	m.logger.Info("session created",
		zap.String("session_id", room.ID()),
		zap.String("quiz_id", quizID),
		zap.String("admin_id", adminID))
	return room.Info(), nil
}

// ActiveSession finds the live session, optionally narrowed to one quiz. With several
// live sessions and no quiz given, the caller must disambiguate.
func (m *Manager) ActiveSession(_ context.Context, quizID string) (domain.SessionInfo, error) {
	live := m.live(quizID)
	switch {
	case len(live) == 0:
		return domain.SessionInfo{}, domain.ErrSessionNotFound
	case len(live) > 1 && quizID == "":
		return domain.SessionInfo{}, fmt.Errorf("%w: %d sessions are live, pass a quiz id", domain.ErrInvalidPayload, len(live))
	}
	newest := lo.MaxBy(live, func(a, b domain.SessionInfo) bool { return a.CreatedAt.After(b.CreatedAt) })
	return newest, nil
}

// Session returns the summary of one session, terminal ones included until removed.
func (m *Manager) Session(_ context.Context, sessionID string) (domain.SessionInfo, error) {
	room, err := m.room(sessionID)
	if err != nil {
		return domain.SessionInfo{}, err
	}
	return room.Info(), nil
}

// Sessions lists every tracked session.
func (m *Manager) Sessions(_ context.Context) []domain.SessionInfo {
	return lo.Map(m.rooms.List(), func(r *Room, _ int) domain.SessionInfo { return r.Info() })
}

func (m *Manager) Join(ctx context.Context, sessionID, userID, displayName string, ch Channel) error {
	room, err := m.room(sessionID)
	if err != nil {
		return err
	}
	return room.Join(ctx, userID, displayName, ch)
}

func (m *Manager) Leave(ctx context.Context, sessionID, userID string) error {
	room, err := m.room(sessionID)
	if err != nil {
		return err
	}
	return room.Leave(ctx, userID)
}

func (m *Manager) Start(ctx context.Context, sessionID, userID string) error {
	room, err := m.room(sessionID)
	if err != nil {
		return err
	}
	return room.Start(ctx, userID)
}

func (m *Manager) SubmitAnswer(ctx context.Context, sessionID, userID string, sub domain.Submission) error {
	room, err := m.room(sessionID)
	if err != nil {
		return err
	}
	return room.Submit(ctx, userID, sub)
}

func (m *Manager) Cancel(ctx context.Context, sessionID, userID string) error {
	room, err := m.room(sessionID)
	if err != nil {
		return err
	}
	return room.Cancel(ctx, userID)
}

func (m *Manager) NextQuestion(ctx context.Context, sessionID, userID string) error {
	room, err := m.room(sessionID)
	if err != nil {
		return err
	}
	return room.Next(ctx, userID)
}

func (m *Manager) Snapshot(ctx context.Context, sessionID string) (domain.GameState, error) {
	room, err := m.room(sessionID)
	if err != nil {
		return domain.GameState{}, err
	}
	return room.Snapshot(ctx)
}

// Disconnect forgets a dropped connection without touching the roster, so the user
// may reconnect and rejoin.
func (m *Manager) Disconnect(sessionID, userID string, ch Channel) {
	if m.registry.UnregisterChannel(sessionID, userID, ch) {
		m.logger.Debug("channel disconnected", zap.String("session_id", sessionID), zap.String("user_id", userID))
	}
}

// Teardown cancels a live session if needed and removes it immediately.
func (m *Manager) Teardown(ctx context.Context, sessionID, userID string) error {
	room, err := m.room(sessionID)
	if err != nil {
		return err
	}
	if room.AdminID() != userID {
		return domain.ErrUnauthorized
	}
	if err := room.Cancel(ctx, userID); err != nil && !errors.Is(err, domain.ErrSessionClosed) {
		return err
	}
	m.remove(sessionID)
	return nil
}

// Shutdown stops every room and closes all channels.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for id, t := range m.removals {
		t.Stop()
		delete(m.removals, id)
	}
	m.mu.Unlock()

	for _, room := range m.rooms.List() {
		m.remove(room.ID())
	}
}

func (m *Manager) room(sessionID string) (*Room, error) {
	room, ok := m.rooms.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return room, nil
}

func (m *Manager) live(quizID string) []domain.SessionInfo {
	infos := lo.Map(m.rooms.List(), func(r *Room, _ int) domain.SessionInfo { return r.Info() })
	return lo.Filter(infos, func(info domain.SessionInfo, _ int) bool {
		return !info.Status.Terminal() && (quizID == "" || info.QuizID == quizID)
	})
}

// scheduleRemoval runs on the room goroutine, so removal always happens elsewhere.
func (m *Manager) scheduleRemoval(sessionID string) {
	if m.cfg.SessionGrace <= 0 {
		go m.remove(sessionID)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, pending := m.removals[sessionID]; pending {
		return
	}
	m.removals[sessionID] = time.AfterFunc(m.cfg.SessionGrace, func() { m.remove(sessionID) })
}

func (m *Manager) remove(sessionID string) {
	m.mu.Lock()
	if t, ok := m.removals[sessionID]; ok {
		t.Stop()
		delete(m.removals, sessionID)
	}
	m.mu.Unlock()

	room, ok := m.rooms.Get(sessionID)
	if !ok {
		return
	}
	// Lookups keep finding the room until its goroutine and channels are gone.
	room.Stop()
	for _, ch := range m.registry.DropSession(sessionID) {
		_ = ch.Close()
	}
	m.rooms.Delete(sessionID)
	m.logger.Info("session removed", zap.String("session_id", sessionID), zap.String("status", string(room.Info().Status)))
}
