// Package common defines sentinel errors shared by the chat server, its
// stores and the terminal client. Callers match them with errors.Is.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrPersistence wraps store failures that the engine degrades to
	// "not found" or "false" outcomes.
	ErrPersistence = errors.New("persistence failure")

	// Wire errors.
	ErrMalformedEnvelope  = errors.New("malformed envelope")
	ErrUnknownMessageKind = errors.New("unknown message kind")
	ErrFrameTooLarge      = errors.New("frame too large")

	// Presence errors reported back to the client in LOGIN_ACK.
	ErrAuth          = errors.New("invalid id or password")
	ErrAlreadyOnline = errors.New("account is already online")
	ErrConnBound     = errors.New("connection is already logged in")

	// ErrBroker marks pub/sub failures; they are logged and never fail
	// the enclosing business operation.
	ErrBroker = errors.New("broker failure")

	// ErrConnClosed is returned when sending on a connection that has
	// already been torn down.
	ErrConnClosed = errors.New("connection closed")
)
