package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrClosed is returned when sending on a closed connection.
var ErrClosed = errors.New("realtime: connection closed")

// Conn is one streaming connection to the agent.
//
// Send methods are safe for concurrent use. Events must be consumed by a
// single reader.
type Conn struct {
	ws        *websocket.Conn
	closeCh   chan struct{}
	eventsCh  chan eventOrError
	closeOnce sync.Once

	// wmu serializes writes; Close does not take it so a stuck write
	// cannot block teardown.
	wmu sync.Mutex

	mu        sync.Mutex
	sessionID string
	closed    bool
}

type eventOrError struct {
	event Event
	err   error
	// fatal marks the terminal read error after which the stream ends.
	fatal bool
}

func newConn(ws *websocket.Conn) *Conn {
	c := &Conn{
		ws:       ws,
		closeCh:  make(chan struct{}),
		eventsCh: make(chan eventOrError, 100),
	}
	go c.readLoop()
	return c
}

// generateEventID generates a unique event ID.
func generateEventID() string {
	return "evt_" + uuid.New().String()[:12]
}

// Configure sends the one-time session configuration.
func (c *Conn) Configure(config *SessionConfig) error {
	return c.sendEvent(map[string]any{
		"event_id": generateEventID(),
		"type":     EventTypeSessionUpdate,
		"session":  config,
	})
}

// AppendAudio appends PCM audio to the agent's input buffer.
func (c *Conn) AppendAudio(audio []byte) error {
	return c.sendEvent(map[string]any{
		"event_id": generateEventID(),
		"type":     EventTypeInputAudioBufferAppend,
		"audio":    base64.StdEncoding.EncodeToString(audio),
	})
}

// CreateTextItem adds a candidate text message to the conversation.
func (c *Conn) CreateTextItem(text string) error {
	return c.sendEvent(map[string]any{
		"event_id": generateEventID(),
		"type":     EventTypeConversationItemCreate,
		"item": map[string]any{
			"type": "message",
			"role": "user",
			"content": []map[string]any{
				{
					"type": "input_text",
					"text": text,
				},
			},
		},
	})
}

// RequestResponse asks the agent to respond now.
func (c *Conn) RequestResponse() error {
	return c.sendEvent(map[string]any{
		"event_id": generateEventID(),
		"type":     EventTypeResponseCreate,
	})
}

// SessionID returns the agent session ID from the configure acknowledgement.
func (c *Conn) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Events returns an iterator over inbound events.
//
// Non-fatal errors (ErrUnknownEvent, ErrMalformedEvent) are yielded and the
// stream continues. The stream ends after the terminal read error, which is
// yielded last, or silently when Close is called.
func (c *Conn) Events() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			select {
			case <-c.closeCh:
				return
			case item, ok := <-c.eventsCh:
				if !ok {
					return
				}
				if !yield(item.event, item.err) {
					return
				}
				if item.fatal {
					return
				}
			}
		}
	}
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.closeCh)
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) sendEvent(event map[string]any) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		if jsonBytes, err := json.Marshal(event); err == nil {
			str := string(jsonBytes)
			if len(str) > 500 {
				str = str[:500] + "..."
			}
			slog.Debug("realtime: sending event", "content", str)
		}
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.ws.WriteJSON(event); err != nil {
		return fmt.Errorf("realtime: write %v: %w", event["type"], err)
	}
	return nil
}

func (c *Conn) readLoop() {
	defer close(c.eventsCh)

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			c.emit(eventOrError{err: fmt.Errorf("realtime: read: %w", err), fatal: true})
			return
		}

		if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			msgStr := string(message)
			if len(msgStr) > 1000 {
				msgStr = msgStr[:1000] + "..."
			}
			slog.Debug("realtime: received message", "len", len(message), "content", msgStr)
		}

		event, err := ParseEvent(message)
		if err != nil {
			if !c.emit(eventOrError{err: err}) {
				return
			}
			continue
		}

		if ack, ok := event.(*ConfigAcknowledged); ok && ack.SessionID != "" {
			c.mu.Lock()
			c.sessionID = ack.SessionID
			c.mu.Unlock()
		}

		if !c.emit(eventOrError{event: event}) {
			return
		}
	}
}

func (c *Conn) emit(item eventOrError) bool {
	select {
	case <-c.closeCh:
		return false
	case c.eventsCh <- item:
		return true
	}
}
