package llm

import (
	"context"
	"time"

	"github.com/metamate-app/metamate/internal/db"
)

// Client is the LLM surface the chat pipeline depends on. GeminiClient is the
// production implementation; tests substitute fakes.
type Client interface {
	// DetectTask classifies a visitor message as a task/meeting request and
	// produces a condensed description. An error means the caller should treat
	// the message as not a task, never surface the failure to the visitor.
	DetectTask(ctx context.Context, question, conversationContext string) (*TaskDetection, error)

	// ExtractMeetingDetails pulls structured date/time/duration out of free
	// text. It never fails: every error path degrades to a best-effort
	// (possibly empty) result.
	ExtractMeetingDetails(ctx context.Context, text string, now time.Time) *MeetingDetails

	// ExtractTopic condenses the recent conversation into a short topic line.
	// Returns "" when there is not enough context.
	ExtractTopic(ctx context.Context, history, question string) (string, error)

	// Answer generates a grounded reply as the owner's digital twin.
	Answer(ctx context.Context, req *AnswerRequest) (string, error)

	Close() error
}

// TaskDetection is the classifier output for one visitor message.
type TaskDetection struct {
	IsTask              bool
	IsMeetingRequest    bool
	TaskDescription     string
	RequireConfirmation bool
	URLs                []string
	MeetingDetails      *MeetingDetails
}

// MeetingDetails holds the structured fields extracted from free text.
// Empty string / zero duration mean "not specified".
type MeetingDetails struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"` // YYYY-MM-DD
	Time        string `json:"time"` // HH:MM, 24h
	Duration    int    `json:"duration"` // minutes
}

// Complete reports whether all three scheduling fields are known.
func (m *MeetingDetails) Complete() bool {
	return m != nil && m.Date != "" && m.Time != "" && m.Duration > 0
}

// Missing lists which of date/time/duration are still unknown, in that order.
func (m *MeetingDetails) Missing() []string {
	var missing []string
	if m == nil || m.Date == "" {
		missing = append(missing, "date")
	}
	if m == nil || m.Time == "" {
		missing = append(missing, "time")
	}
	if m == nil || m.Duration <= 0 {
		missing = append(missing, "duration")
	}
	return missing
}

// Merge fills empty fields of m from other without overwriting known values.
func (m *MeetingDetails) Merge(other *MeetingDetails) {
	if other == nil {
		return
	}
	if m.Title == "" {
		m.Title = other.Title
	}
	if m.Description == "" {
		m.Description = other.Description
	}
	if m.Date == "" {
		m.Date = other.Date
	}
	if m.Time == "" {
		m.Time = other.Time
	}
	if m.Duration <= 0 {
		m.Duration = other.Duration
	}
}

// AnswerRequest carries everything the grounded-QA prompt needs.
type AnswerRequest struct {
	Owner         *db.Owner
	Contributions []*db.Contribution
	History       string // formatted recent turns, may be empty
	Topic         string // current conversation topic, may be empty
	Question      string
}
