package realtime

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// ErrUnknownEvent is returned for inbound messages whose type is not part
// of the protocol. It is not fatal to the connection.
var ErrUnknownEvent = errors.New("realtime: unknown event type")

// ErrMalformedEvent is returned for inbound messages that are not valid
// JSON or lack a type. It is not fatal to the connection.
var ErrMalformedEvent = errors.New("realtime: malformed event")

// Error represents an error reported by the agent, either as an error
// event or as a failed handshake.
type Error struct {
	// Type is the error type (e.g., "invalid_request_error").
	Type string `json:"type,omitzero"`

	// Code is the error code (e.g., "invalid_api_key").
	Code string `json:"code,omitzero"`

	// Message is the human-readable error message.
	Message string `json:"message,omitzero"`

	// Param is the parameter that caused the error, if applicable.
	Param string `json:"param,omitzero"`

	// EventID is the ID of the client event that caused the error.
	EventID string `json:"event_id,omitzero"`

	// HTTPStatus is the handshake status code, if applicable.
	HTTPStatus int `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("realtime: %s: %s", e.Code, e.Message)
	}
	if e.Type != "" {
		return fmt.Sprintf("realtime: %s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("realtime: %s", e.Message)
}

// authMarkers are substrings of error codes and messages that indicate the
// agent rejected the credentials or the connection itself.
var authMarkers = []string{
	"auth",
	"api key",
	"api_key",
	"unauthorized",
	"forbidden",
	"permission",
	"connection",
}

// IsAuth reports whether the error indicates an authentication or
// connection failure.
func (e *Error) IsAuth() bool {
	if e.HTTPStatus == http.StatusUnauthorized || e.HTTPStatus == http.StatusForbidden {
		return true
	}
	s := strings.ToLower(e.Type + " " + e.Code + " " + e.Message)
	for _, m := range authMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// IsAuthError reports whether err carries an *Error that IsAuth.
func IsAuthError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.IsAuth()
}

// IsCleanClose reports whether err is a normal websocket closure. Any other
// read error, including an abnormal close, is an unexpected drop.
func IsCleanClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
