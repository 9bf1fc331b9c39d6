package session

import (
	"sync"
)

// Observer receives session lifecycle notifications, typically from an
// interactive console attached to the process.
type Observer interface {
	// QueryIssued is called after each statement a session executes.
	QueryIssued(sql string, durationMillis int64)
	// FlushCompleted is called after a successful flush.
	FlushCompleted(inserted, updated, deleted int)
}

var (
	consoleMu  sync.Mutex
	consoleObs Observer
)

// RegisterConsole installs the global console observer. The registration is
// one-shot: the first successful set wins and later calls report false.
func RegisterConsole(obs Observer) bool {
	if obs == nil {
		return false
	}
	consoleMu.Lock()
	defer consoleMu.Unlock()
	if consoleObs != nil {
		return false
	}
	consoleObs = obs
	return true
}

// console returns the registered observer, or nil.
func console() Observer {
	consoleMu.Lock()
	defer consoleMu.Unlock()
	return consoleObs
}
