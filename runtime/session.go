package runtime

import (
	"direct-chat/contract"
	"fmt"
	"sync"
)

type State int

const (
	Connecting State = iota
	Joined
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Joined:
		return "joined"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// allowed lists the legal transitions. Disconnected is terminal and a
// joined session may join again, possibly as another user.
var allowed = map[State][]State{
	Connecting: {Joined, Disconnected},
	Joined:     {Joined, Disconnected},
}

// Session is the router-side state of one live connection.
type Session struct {
	mu             sync.Mutex
	sink           contract.EventSink
	verifiedUserID string
	state          State
	userID         string
}

func newSession(sink contract.EventSink, verifiedUserID string) *Session {
	return &Session{sink: sink, verifiedUserID: verifiedUserID, state: Connecting}
}

func (s *Session) Handle() string {
	return s.sink.ID()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserID is empty until the session joined.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Session) VerifiedUserID() string {
	return s.verifiedUserID
}

// joined returns the current user when the session is Joined.
func (s *Session) joined() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.state == Joined
}

// join moves the session to Joined as userID and returns the user it was
// joined as before, if any.
func (s *Session) join(userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transition(Joined); err != nil {
		return "", err
	}
	previous := s.userID
	s.userID = userID
	return previous, nil
}

// disconnect moves the session to Disconnected and reports the state it left.
// A second call returns Disconnected.
func (s *Session) disconnect() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.state
	if previous != Disconnected {
		s.state = Disconnected
	}
	return previous
}

func (s *Session) transition(to State) error {
	for _, next := range allowed[s.state] {
		if next == to {
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("illegal session transition %s -> %s", s.state, to)
}
