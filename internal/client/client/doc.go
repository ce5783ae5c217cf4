// Package client contains client-side building blocks for the chat CLI.
//
// # Overview
//
// The package provides:
//  1. A transport contract (see the Client interface) for talking to a chat
//     server: Register, Login, fire-and-forget Send, and Close.
//  2. A TCP implementation (see StreamClient) that frames envelopes with a
//     4-byte length prefix, runs a single reader goroutine, and pairs each
//     LOGIN_ACK or REGISTER_ACK with the request that asked for it through a
//     per-request response channel. Everything else the server pushes
//     (forwarded chats) goes to the Handler given at construction.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database for chat history and applying embedded goose migrations.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrClosed.
//
// Concurrency & Contexts
//
// StreamClient is safe for concurrent use. Requests honor context
// cancellation; a reply that arrives after its caller gave up is discarded.
package client
