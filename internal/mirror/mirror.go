// Package mirror keeps a local copy of the remote peer's game state,
// built from messages received over a session.
package mirror

import (
	"slices"

	"github.com/dmksnnk/snakelink/internal/protocol"
)

// State is the mirrored peer state. It is not safe for concurrent use,
// it belongs to the game loop.
type State struct {
	snake     []protocol.Point
	direction protocol.Point
	score     int
	running   bool

	food      protocol.Point
	obstacles []protocol.Point
	hasLayout bool
}

// New creates a state for a peer that is assumed to be running.
func New() *State {
	return &State{running: true}
}

// Apply updates the state with a message.
// It returns false for messages it doesn't know, those are left to the caller.
func (s *State) Apply(msg protocol.Message) bool {
	switch m := msg.(type) {
	case protocol.Update:
		s.snake = slices.Clone(m.Position)
		s.direction = m.Direction
		s.score = m.Score
		s.running = m.Running
		return true
	case protocol.Extra:
		s.food = m.Food
		s.obstacles = slices.Clone(m.Obstacles)
		s.hasLayout = true
		return true
	default:
		return false
	}
}

// ApplyAll applies messages in order and returns the ones it couldn't apply.
func (s *State) ApplyAll(msgs []protocol.Message) []protocol.Message {
	var rest []protocol.Message
	for _, msg := range msgs {
		if !s.Apply(msg) {
			rest = append(rest, msg)
		}
	}

	return rest
}

// Snake returns the peer's snake, head first.
func (s *State) Snake() []protocol.Point {
	return slices.Clone(s.snake)
}

func (s *State) Direction() protocol.Point {
	return s.direction
}

func (s *State) Score() int {
	return s.score
}

// PeerRunning reports whether the peer's game is still on.
func (s *State) PeerRunning() bool {
	return s.running
}

// Layout returns the shared food position and obstacles.
// ok is false until the first layout arrives.
func (s *State) Layout() (food protocol.Point, obstacles []protocol.Point, ok bool) {
	return s.food, slices.Clone(s.obstacles), s.hasLayout
}
