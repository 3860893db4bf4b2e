package realtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultURL is the default WebSocket endpoint.
const DefaultURL = "wss://api.openai.com/v1/realtime"

// DefaultHandshakeTimeout bounds the WebSocket handshake.
const DefaultHandshakeTimeout = 15 * time.Second

// Client dials realtime agent connections.
type Client struct {
	config *clientConfig
}

type clientConfig struct {
	apiKey           string
	url              string
	model            string
	header           http.Header
	handshakeTimeout time.Duration
}

// Option configures the Client.
type Option func(*clientConfig)

// NewClient creates a new Client. A client without an apiKey fails every
// Connect with an auth error.
func NewClient(apiKey string, opts ...Option) *Client {
	cfg := &clientConfig{
		apiKey:           apiKey,
		url:              DefaultURL,
		model:            ModelDefault,
		header:           http.Header{},
		handshakeTimeout: DefaultHandshakeTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Client{config: cfg}
}

// WithURL sets the WebSocket URL.
func WithURL(url string) Option {
	return func(c *clientConfig) {
		c.url = url
	}
}

// WithModel sets the model query parameter.
func WithModel(model string) Option {
	return func(c *clientConfig) {
		c.model = model
	}
}

// WithHeader adds a handshake header.
func WithHeader(key, value string) Option {
	return func(c *clientConfig) {
		c.header.Set(key, value)
	}
}

// WithHandshakeTimeout sets the handshake timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.handshakeTimeout = d
	}
}

// Connect dials the agent. A handshake rejected with an HTTP status returns
// an *Error carrying that status.
func (c *Client) Connect(ctx context.Context) (*Conn, error) {
	if c.config.apiKey == "" {
		return nil, &Error{
			Code:       "missing_api_key",
			Message:    "no API key configured",
			HTTPStatus: http.StatusUnauthorized,
		}
	}
	url := c.config.url
	if c.config.model != "" {
		url = fmt.Sprintf("%s?model=%s", url, c.config.model)
	}

	headers := c.config.header.Clone()
	headers.Set("Authorization", "Bearer "+c.config.apiKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.handshakeTimeout,
	}
	ws, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, &Error{
				Code:       "connection_failed",
				Message:    fmt.Sprintf("failed to connect: %v", err),
				HTTPStatus: resp.StatusCode,
			}
		}
		return nil, fmt.Errorf("realtime: failed to connect: %w", err)
	}
	return newConn(ws), nil
}
