package link

import (
	"sync"
	"time"
)

// State es el estado de conexión de un canal de telemetría.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "disconnected"
}

// Status is what the control API reports for a channel.
type Status struct {
	Channel string    `json:"channel"`
	State   string    `json:"state"`
	Remote  string    `json:"remote,omitempty"`
	Since   time.Time `json:"since"`
}

type stateBox struct {
	mu     sync.Mutex
	state  State
	remote string
	since  time.Time
}

func (b *stateBox) set(s State, remote string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
	b.remote = remote
	b.since = time.Now()
}

func (b *stateBox) status(channel string) Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{Channel: channel, State: b.state.String(), Remote: b.remote, Since: b.since}
}
