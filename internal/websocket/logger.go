package websocket

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WebSocketLogger provides structured logging for WebSocket events
type WebSocketLogger struct {
	logger *zap.Logger
}

func NewWebSocketLogger(base *zap.Logger) *WebSocketLogger {
	if base == nil {
		base = zap.L()
	}
	return &WebSocketLogger{
		logger: base.With(zap.String("component", "websocket")),
	}
}

func (l *WebSocketLogger) Info(event string, userID uuid.UUID, clientID string, fields ...zap.Field) {
	l.logger.Info("websocket_event", l.fields(event, userID, clientID, fields)...)
}

func (l *WebSocketLogger) Warn(event string, userID uuid.UUID, clientID string, fields ...zap.Field) {
	l.logger.Warn("websocket_warning", l.fields(event, userID, clientID, fields)...)
}

func (l *WebSocketLogger) Error(event string, userID uuid.UUID, clientID string, err error, fields ...zap.Field) {
	l.logger.Error("websocket_error", l.fields(event, userID, clientID, append(fields, zap.Error(err)))...)
}

func (l *WebSocketLogger) fields(event string, userID uuid.UUID, clientID string, extra []zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID.String()),
		zap.String("client_id", clientID),
	}, extra...)
}
