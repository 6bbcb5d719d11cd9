package websocket

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrUnknownConnection = errors.New("unknown connection")

// Router fans frames out to conversation rooms.
type Router struct {
	registry *Registry
	logger   *WebSocketLogger
}

func NewRouter(registry *Registry, logger *WebSocketLogger) *Router {
	if logger == nil {
		logger = NewWebSocketLogger(nil)
	}
	return &Router{registry: registry, logger: logger}
}

func (r *Router) Registry() *Registry {
	return r.registry
}

// Broadcast hands payload to every room member except excludeConnID and
// returns how many accepted it. A failing member is logged and skipped.
func (r *Router) Broadcast(ctx context.Context, conversationID uuid.UUID, excludeConnID string, payload []byte) int {
	delivered := 0
	for _, p := range r.registry.Members(conversationID) {
		if p.ID() == excludeConnID {
			continue
		}
		if err := deliver(p, payload); err != nil {
			r.logger.Warn("broadcast_dropped", p.UserID(), p.ID(),
				zap.String("conversation_id", conversationID.String()),
				zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}

// SendTo delivers to a single connection, used for acks and errors.
func (r *Router) SendTo(connID string, payload []byte) error {
	p, ok := r.registry.Peer(connID)
	if !ok {
		return ErrUnknownConnection
	}
	return deliver(p, payload)
}

// Disconnect releases the connection's rooms and closes it.
func (r *Router) Disconnect(connID string) []uuid.UUID {
	p, ok := r.registry.Peer(connID)
	released := r.registry.OnDisconnect(connID)
	if ok {
		p.Close()
		r.logger.Info("disconnected", p.UserID(), connID, zap.Int("rooms_released", len(released)))
	}
	return released
}

// Shutdown closes every live connection.
func (r *Router) Shutdown() {
	for _, p := range r.registry.Close() {
		p.Close()
	}
}

func deliver(p Peer, payload []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("delivery panicked: %v", rec)
		}
	}()
	return p.Send(payload)
}
