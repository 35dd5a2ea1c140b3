// Package session provides the concrete core.SessionStore backends: a
// volatile in-memory map for tests and demos, and a SQLite store for
// persistent sessions that survive restarts.
//
// The SessionStore interface and the Session type live in core so agents
// and the engine never depend on a specific backend; config wiring picks
// the implementation.
package session
