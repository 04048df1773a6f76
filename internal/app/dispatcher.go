package app

import (
	"sync"

	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
)

// Dispatcher fans session messages out to every registered channel.
type Dispatcher struct {
	registry *Registry
	logger   *zap.Logger
}

func NewDispatcher(registry *Registry, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// Broadcast sends each recipient its own variant of state.
func (d *Dispatcher) Broadcast(state domain.GameState) {
	d.fanout(state.SessionID, func(userID string) domain.Envelope {
		return domain.Envelope{Type: domain.MsgGameState, Payload: state.For(userID)}
	})
}

// Publish sends the same message to every channel of the session.
func (d *Dispatcher) Publish(sessionID string, msg domain.Envelope) {
	d.fanout(sessionID, func(string) domain.Envelope { return msg })
}

// SendTo delivers msg to one user's channel, if registered.
func (d *Dispatcher) SendTo(sessionID, userID string, msg domain.Envelope) {
	ch, ok := d.registry.Lookup(sessionID, userID)
	if !ok {
		return
	}
	d.deliver(sessionID, Registration{UserID: userID, Channel: ch}, msg)
}

// fanout waits for every send so consecutive messages keep their order per channel.
func (d *Dispatcher) fanout(sessionID string, build func(userID string) domain.Envelope) {
	targets := d.registry.ChannelsFor(sessionID)
	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func(target Registration) {
			defer wg.Done()
			d.deliver(sessionID, target, build(target.UserID))
		}(target)
	}
	wg.Wait()
}

// deliver isolates failures: a dead channel is dropped and closed, never retried.
func (d *Dispatcher) deliver(sessionID string, target Registration, msg domain.Envelope) {
	if err := target.Channel.Send(msg); err != nil {
		d.logger.Warn("dropping unreachable channel",
			zap.String("session_id", sessionID),
			zap.String("user_id", target.UserID),
			zap.String("type", msg.Type),
			zap.Error(err))
		if d.registry.UnregisterChannel(sessionID, target.UserID, target.Channel) {
			_ = target.Channel.Close()
		}
	}
}
