package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State enumerates what the assistant last asked the visitor. Dispatching on
// an explicit code instead of re-deriving intent from the previous reply's
// wording keeps the negotiation robust against copy changes.
type State int

const (
	StateNone State = iota
	StateAwaitingMeetingConfirmation
	StateAwaitingMeetingDetails
	StateAwaitingFinalConfirmation
)

func (s State) String() string {
	switch s {
	case StateAwaitingMeetingConfirmation:
		return "awaiting_meeting_confirmation"
	case StateAwaitingMeetingDetails:
		return "awaiting_meeting_details"
	case StateAwaitingFinalConfirmation:
		return "awaiting_final_confirmation"
	default:
		return "none"
	}
}

// Turn is one message in a conversation, either side.
type Turn struct {
	Role    string    `json:"role"` // "user" or "bot"
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

// MeetingDraft accumulates scheduling fields across negotiation turns.
type MeetingDraft struct {
	OriginalQuestion string
	Title            string
	Description      string
	Date             string
	Time             string
	Duration         int
}

// Session is one visitor's conversation with one owner's twin. All meeting
// negotiation state lives here, keyed by session ID, so concurrent
// conversations cannot corrupt each other.
type Session struct {
	ID        string
	Owner     string
	Turns     []Turn
	State     State
	Draft     *MeetingDraft
	UpdatedAt time.Time
}

// LastUserMessage returns the most recent user turn before the current one,
// used to recover the original meeting request when the visitor confirms.
func (s *Session) LastUserMessage() string {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role == "user" {
			return s.Turns[i].Content
		}
	}
	return ""
}

// LastBotMessage returns the most recent assistant turn.
func (s *Session) LastBotMessage() string {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role == "bot" {
			return s.Turns[i].Content
		}
	}
	return ""
}

// FormatHistory renders the last n turns for prompt inclusion.
func (s *Session) FormatHistory(n int) string {
	turns := s.Turns
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}

	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		role := "User"
		if t.Role == "bot" {
			role = "Assistant"
		}
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(t.Content)
	}
	return sb.String()
}

// Store holds live sessions in memory. Sessions are ephemeral; everything
// worth keeping is persisted to the database at the moment it matters.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewStore creates a session store with the given idle TTL
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Get returns the session for id, creating one when id is empty or unknown.
// Expired sessions are replaced rather than resumed.
func (st *Store) Get(id, owner string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if id != "" {
		if s, ok := st.sessions[id]; ok && s.Owner == owner && time.Since(s.UpdatedAt) < st.ttl {
			return s
		}
	}

	s := &Session{
		ID:        uuid.New().String(),
		Owner:     owner,
		UpdatedAt: time.Now(),
	}
	st.sessions[s.ID] = s
	return s
}

// Touch records activity on a session
func (st *Store) Touch(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s.UpdatedAt = time.Now()
}

// Sweep drops sessions idle past the TTL and returns how many were removed
func (st *Store) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-st.ttl)
	for id, s := range st.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live sessions
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
