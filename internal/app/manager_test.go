package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/domain"
)

func newManager(t *testing.T, cfg EngineConfig, quizzes staticQuizzes) (*Manager, *Registry) {
	t.Helper()
	registry := NewRegistry()
	m := NewManager(newMapRooms(), quizzes, registry, &handoff{}, cfg, nil)
	t.Cleanup(m.Shutdown)
	return m, registry
}

func twoQuizzes() staticQuizzes {
	return staticQuizzes{
		"quiz-1": {ID: "quiz-1", Questions: []domain.Question{mcQuestion("q1", 0, 1, 0)}},
		"quiz-2": {ID: "quiz-2", Questions: []domain.Question{mcQuestion("q1", 0, 1, 0)}},
		"empty":  {ID: "empty"},
		"broken": {ID: "broken", Questions: []domain.Question{{ID: "q1", Kind: "essay"}}},
	}
}

func TestCreateSessionValidatesQuiz(t *testing.T) {
	m, _ := newManager(t, EngineConfig{}, twoQuizzes())
	ctx := context.Background()

	_, err := m.CreateSession(ctx, "missing", adminID)
	require.ErrorIs(t, err, domain.ErrQuizNotFound)
	_, err = m.CreateSession(ctx, "empty", adminID)
	require.ErrorIs(t, err, domain.ErrEmptyQuiz)
	_, err = m.CreateSession(ctx, "broken", adminID)
	require.ErrorIs(t, err, domain.ErrInvalidPayload)

	info, err := m.CreateSession(ctx, "quiz-1", adminID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusLobby, info.Status)
	require.Equal(t, -1, info.QuestionIndex)
	require.Equal(t, adminID, info.AdminID)
}

func TestSingleActiveSessionByDefault(t *testing.T) {
	m, _ := newManager(t, EngineConfig{}, twoQuizzes())
	ctx := context.Background()

	first, err := m.CreateSession(ctx, "quiz-1", adminID)
	require.NoError(t, err)
	_, err = m.CreateSession(ctx, "quiz-2", adminID)
	require.ErrorIs(t, err, domain.ErrSessionActive)

	active, err := m.ActiveSession(ctx, "")
	require.NoError(t, err)
	require.Equal(t, first.SessionID, active.SessionID)

	_, err = m.ActiveSession(ctx, "quiz-2")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	// A cancelled session no longer blocks a new one.
	require.NoError(t, m.Cancel(ctx, first.SessionID, adminID))
	_, err = m.CreateSession(ctx, "quiz-2", adminID)
	require.NoError(t, err)
}

func TestMultiSessionNeedsQuizToDisambiguate(t *testing.T) {
	m, _ := newManager(t, EngineConfig{MultiSession: true}, twoQuizzes())
	ctx := context.Background()

	_, err := m.CreateSession(ctx, "quiz-1", adminID)
	require.NoError(t, err)
	second, err := m.CreateSession(ctx, "quiz-2", adminID)
	require.NoError(t, err)

	_, err = m.ActiveSession(ctx, "")
	require.ErrorIs(t, err, domain.ErrInvalidPayload)

	got, err := m.ActiveSession(ctx, "quiz-2")
	require.NoError(t, err)
	require.Equal(t, second.SessionID, got.SessionID)
	require.Len(t, m.Sessions(ctx), 2)
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	m, _ := newManager(t, EngineConfig{}, twoQuizzes())
	ctx := context.Background()

	require.ErrorIs(t, m.Join(ctx, "nope", "A", "A", &recorder{}), domain.ErrSessionNotFound)
	require.ErrorIs(t, m.Start(ctx, "nope", adminID), domain.ErrSessionNotFound)
	_, err := m.Snapshot(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestTerminalSessionRemovedAfterGrace(t *testing.T) {
	m, registry := newManager(t, EngineConfig{SessionGrace: 20 * time.Millisecond}, twoQuizzes())
	ctx := context.Background()

	info, err := m.CreateSession(ctx, "quiz-1", adminID)
	require.NoError(t, err)
	ch := &recorder{}
	require.NoError(t, m.Join(ctx, info.SessionID, "A", "A", ch))
	require.NoError(t, m.Cancel(ctx, info.SessionID, adminID))

	// Still readable during the grace period.
	_, err = m.Session(ctx, info.SessionID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := m.Session(ctx, info.SessionID)
		return err != nil
	}, time.Second, 5*time.Millisecond)
	// Once the session is gone its channels are already closed.
	require.True(t, ch.isClosed())
	require.Empty(t, registry.ChannelsFor(info.SessionID))
}

func TestTeardownRequiresOwner(t *testing.T) {
	m, _ := newManager(t, EngineConfig{}, twoQuizzes())
	ctx := context.Background()

	info, err := m.CreateSession(ctx, "quiz-1", adminID)
	require.NoError(t, err)
	require.ErrorIs(t, m.Teardown(ctx, info.SessionID, "A"), domain.ErrUnauthorized)

	require.NoError(t, m.Teardown(ctx, info.SessionID, adminID))
	_, err = m.Session(ctx, info.SessionID)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRemovedSessionHasClosedChannels(t *testing.T) {
	m, _ := newManager(t, EngineConfig{}, twoQuizzes())
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		info, err := m.CreateSession(ctx, "quiz-1", adminID)
		require.NoError(t, err)
		ch := &recorder{}
		require.NoError(t, m.Join(ctx, info.SessionID, "A", "A", ch))

		seen := make(chan bool, 1)
		go func() {
			for {
				if _, err := m.Session(ctx, info.SessionID); err != nil {
					seen <- ch.isClosed()
					return
				}
			}
		}()
		require.NoError(t, m.Teardown(ctx, info.SessionID, adminID))
		require.True(t, <-seen, "session %d disappeared before its channels closed", i)
	}
}

func TestDisconnectKeepsRoster(t *testing.T) {
	m, registry := newManager(t, EngineConfig{}, twoQuizzes())
	ctx := context.Background()

	info, err := m.CreateSession(ctx, "quiz-1", adminID)
	require.NoError(t, err)
	old := &recorder{}
	require.NoError(t, m.Join(ctx, info.SessionID, "A", "A", old))
	fresh := &recorder{}
	require.NoError(t, m.Join(ctx, info.SessionID, "A", "A", fresh))

	// The stale socket going away must not evict the reconnection.
	m.Disconnect(info.SessionID, "A", old)
	ch, ok := registry.Lookup(info.SessionID, "A")
	require.True(t, ok)
	require.Same(t, fresh, ch)

	m.Disconnect(info.SessionID, "A", fresh)
	_, ok = registry.Lookup(info.SessionID, "A")
	require.False(t, ok)

	state, err := m.Snapshot(ctx, info.SessionID)
	require.NoError(t, err)
	require.Len(t, state.Participants, 1)
}
