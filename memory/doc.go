// Package memory implements long-term memory stores: FileStore persists
// entries as JSON on disk with token-overlap search, and InMemoryStore
// keeps everything in process for tests.
//
// The core.MemoryStore interface and core.SearchResult live in core, so
// agents depend on the contract and the wiring layer picks the backend.
package memory
