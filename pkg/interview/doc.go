// Package interview holds the data model of a mock interview and the
// Session Lifecycle Manager.
//
// A Session moves pending → active → completed or cancelled. The Manager
// creates sessions (cancelling any earlier active attempt of the same user
// and stage), and each Handle is the single source of truth for whether its
// session is active. Resources acquired for a session (microphone, speaker,
// sockets, timers) are registered with Handle.Track and released by
// Handle.Cleanup, which is idempotent and safe to call from any goroutine.
//
// Persistence goes through the Store interface; see package sessionstore for
// implementations. Completed sessions are handed to a Notifier and, when
// configured, archived to a storage.FileStore.
package interview
