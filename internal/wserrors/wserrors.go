// Package wserrors provides the structured error taxonomy of the realtime
// subsystem, with WebSocket close-code and HTTP status mapping. The
// containment policy: every failure is scoped to one connection, one send, or
// one bridge call; only authentication failures are fatal to a connection, and
// nothing here may become fatal to the host process.
package wserrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// Type categorizes an error for containment, metrics, and response mapping.
type Type string

const (
	// TypeAuthentication - invalid or expired credential; fatal to the
	// connection only, closed with a policy-violation code before any
	// registry mutation.
	TypeAuthentication Type = "authentication"
	// TypeProtocol - malformed or unknown inbound message; answered with an
	// error reply, the connection stays active.
	TypeProtocol Type = "protocol"
	// TypeDelivery - a send to one connection failed; triggers deregistration
	// of that connection, never aborts fanout to other targets.
	TypeDelivery Type = "delivery"
	// TypeBridge - a notification bridge call failed; logged and swallowed,
	// never rolled into the triggering business write.
	TypeBridge Type = "bridge"
)

// Error carries a category, a client-safe message, and an optional cause.
type Error struct {
	Type    Type
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// CloseCode maps the error to the WebSocket close code used when the error
// terminates the connection.
func (e *Error) CloseCode() int {
	switch e.Type {
	case TypeAuthentication:
		return websocket.ClosePolicyViolation
	default:
		return websocket.CloseInternalServerErr
	}
}

// HTTPStatus maps the error for the REST surface (admin endpoints).
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeAuthentication:
		return http.StatusUnauthorized
	case TypeProtocol:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Authentication creates an authentication error.
func Authentication(message string, cause error) *Error {
	return &Error{Type: TypeAuthentication, Message: message, Cause: cause}
}

// Protocol creates a protocol error.
func Protocol(message string, cause error) *Error {
	return &Error{Type: TypeProtocol, Message: message, Cause: cause}
}

// Delivery creates a delivery error.
func Delivery(message string, cause error) *Error {
	return &Error{Type: TypeDelivery, Message: message, Cause: cause}
}

// Bridge creates a bridge error.
func Bridge(message string, cause error) *Error {
	return &Error{Type: TypeBridge, Message: message, Cause: cause}
}

// Is reports whether err is a structured error of the given type.
func Is(err error, t Type) bool {
	var structured *Error
	return errors.As(err, &structured) && structured.Type == t
}

// ClientMessage returns the message safe to echo back to a client. Unstructured
// errors collapse to a generic message so internals never leak over the wire.
func ClientMessage(err error) string {
	var structured *Error
	if errors.As(err, &structured) {
		return structured.Message
	}
	return "internal error"
}
