package notify

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	apperrors "github.com/ballotwatch/ballotwatch/internal/errors"
	"github.com/ballotwatch/ballotwatch/internal/logger"
	"github.com/ballotwatch/ballotwatch/internal/models"
)

// LiveSource supplies pushed notification events
type LiveSource interface {
	// Connect opens the live channel. The returned channel is closed when
	// the connection ends.
	Connect(ctx context.Context) (<-chan models.NotificationEvent, error)
	// Close terminates the connection and unblocks the read loop
	Close() error
}

// WSLive consumes the live notification endpoint over a websocket,
// authenticating with the session token at handshake time.
type WSLive struct {
	log   logger.Logger
	url   string
	token func() string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSLive creates a live source for the given websocket URL. The token
// func is consulted at connect time so a refreshed session is picked up.
func NewWSLive(log logger.Logger, url string, token func() string) *WSLive {
	return &WSLive{log: log, url: url, token: token}
}

// Connect dials the live endpoint and starts the read loop
func (l *WSLive) Connect(ctx context.Context) (<-chan models.NotificationEvent, error) {
	header := http.Header{}
	if t := l.token(); t != "" {
		header.Set("Authorization", "Bearer "+t)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, l.url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, apperrors.Auth("live channel rejected the session token")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrTransient, "failed to connect to live channel")
	}

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()

	l.log.Debug("live channel connected", "url", l.url)

	events := make(chan models.NotificationEvent, 16)
	go l.readPump(conn, events)
	return events, nil
}

// Close terminates the live connection. Safe to call more than once.
func (l *WSLive) Close() error {
	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// readPump delivers decoded events until the connection ends. Both the
// broadcast and targeted categories land in the same channel.
func (l *WSLive) readPump(conn *websocket.Conn, events chan<- models.NotificationEvent) {
	defer close(events)
	for {
		var envelope models.Envelope
		if err := conn.ReadJSON(&envelope); err != nil {
			l.log.Debug("live channel closed", "error", err)
			return
		}

		switch envelope.Category {
		case models.CategoryBroadcast, models.CategoryTargeted:
			event := envelope.Event
			event.Source = models.SourceLive
			events <- event
		default:
			l.log.Debug("ignoring unknown live category", "category", envelope.Category)
		}
	}
}
