package rag

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// State is the lifecycle state of a Session.
type State int

const (
	// StateEmpty means no index is loaded; questions are refused.
	StateEmpty State = iota
	// StateReady means an index is loaded and questions can be answered.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StateReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// NewConversationName is the name of a conversation that has no turns yet.
const NewConversationName = "new"

// maxTitleRunes bounds a conversation name derived from its first question.
const maxTitleRunes = 50

// Turn is one question and its answer.
type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	At       time.Time `json:"at"`
}

// Conversation is an ordered list of turns.
type Conversation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Turns     []Turn    `json:"turns"`
}

// Session holds the state of one user's interaction: whether documents are
// loaded and the conversations so far. It is safe for concurrent use.
type Session struct {
	ID string

	mu            sync.RWMutex
	state         State
	conversations []*Conversation
	current       *Conversation
}

// NewSession returns an empty session with one fresh conversation.
func NewSession() *Session {
	s := &Session{ID: uuid.NewString()}
	s.startLocked()
	return s
}

// State returns the session state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) markReady() {
	s.mu.Lock()
	s.state = StateReady
	s.mu.Unlock()
}

// StartConversation makes a fresh conversation current and returns its id.
// A current conversation with no turns is reused.
func (s *Session) StartConversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.current.Turns) == 0 {
		return s.current.ID
	}
	return s.startLocked().ID
}

func (s *Session) startLocked() *Conversation {
	c := &Conversation{ID: uuid.NewString(), Name: NewConversationName, CreatedAt: time.Now().UTC()}
	s.conversations = append(s.conversations, c)
	s.current = c
	return c
}

// SelectConversation makes the conversation with the given id current.
func (s *Session) SelectConversation(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.ID == id {
			s.current = c
			return true
		}
	}
	return false
}

// Current returns a copy of the current conversation.
func (s *Session) Current() Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyConversation(s.current)
}

// Conversations returns copies of every conversation in creation order.
func (s *Session) Conversations() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = copyConversation(c)
	}
	return out
}

// record appends a turn to the current conversation and names it after its
// first question. It returns the conversation name.
func (s *Session) record(question, answer string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.current
	if len(c.Turns) == 0 && c.Name == NewConversationName {
		c.Name = Title(question)
	}
	c.Turns = append(c.Turns, Turn{Question: question, Answer: answer, At: time.Now().UTC()})
	return c.Name
}

// Title shortens a question into a conversation name.
func Title(question string) string {
	t := strings.Join(strings.Fields(question), " ")
	if t == "" {
		return NewConversationName
	}
	if utf8.RuneCountInString(t) <= maxTitleRunes {
		return t
	}
	r := []rune(t)
	return strings.TrimSpace(string(r[:maxTitleRunes])) + "..."
}

func copyConversation(c *Conversation) Conversation {
	out := *c
	out.Turns = append([]Turn(nil), c.Turns...)
	return out
}
