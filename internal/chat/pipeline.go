package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/metamate-app/metamate/internal/config"
	"github.com/metamate-app/metamate/internal/db"
	"github.com/metamate-app/metamate/internal/llm"
)

// Translator is the language surface the pipeline depends on. Both methods
// degrade instead of failing; see the translate package.
type Translator interface {
	Detect(ctx context.Context, text string) string
	Translate(ctx context.Context, text, sourceLang, targetLang string) string
}

// Pipeline runs one conversation turn end to end: language handling, intent
// classification, meeting negotiation, task persistence, answer synthesis.
type Pipeline struct {
	db         *db.DB
	llm        llm.Client
	translator Translator
	Sessions   *Store
	cfg        *config.Chat
	loc        *time.Location
	now        func() time.Time
}

// NewPipeline wires the conversation pipeline
func NewPipeline(database *db.DB, client llm.Client, translator Translator, cfg *config.Chat, loc *time.Location) *Pipeline {
	return &Pipeline{
		db:         database,
		llm:        client,
		translator: translator,
		Sessions:   NewStore(time.Duration(cfg.SessionTTLMinutes) * time.Minute),
		cfg:        cfg,
		loc:        loc,
		now:        time.Now,
	}
}

// Visitor identifies who is chatting with the twin.
type Visitor struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsGuest  bool   `json:"is_guest"`
}

// Request is one inbound chat message. Lang, when set, is the visitor's
// declared language and skips detection.
type Request struct {
	SessionID string  `json:"session_id"`
	Owner     string  `json:"owner"`
	Visitor   Visitor `json:"visitor"`
	Message   string  `json:"message"`
	Lang      string  `json:"lang,omitempty"`
}

// Reply is the pipeline's answer for one turn.
type Reply struct {
	SessionID    string `json:"session_id"`
	Text         string `json:"text"`
	State        string `json:"state"`
	DetectedLang string `json:"detected_lang"`
	TaskID       string `json:"task_id,omitempty"`
}

// Respond handles one visitor message and returns the twin's reply. Provider
// failures never escape as errors to the visitor; only unknown owners and
// empty messages are rejected outright.
func (p *Pipeline) Respond(ctx context.Context, req *Request) (*Reply, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("empty message")
	}

	owner, err := p.db.GetOwner(req.Owner)
	if err != nil {
		return nil, fmt.Errorf("unknown owner %q: %w", req.Owner, err)
	}

	session := p.Sessions.Get(req.SessionID, owner.Username)

	if err := p.db.RecordVisit(owner.Username, req.Visitor.Username, req.Visitor.Name, req.Visitor.IsGuest); err != nil {
		log.Printf("Failed to record visit: %v", err)
	}

	// Everything downstream works in English; the reply is translated back
	// at the end.
	lang := req.Lang
	if lang == "" || lang == "auto" {
		lang = p.translator.Detect(ctx, req.Message)
	}
	message := req.Message
	if lang != "en" {
		message = p.translator.Translate(ctx, req.Message, lang, "en")
	}

	history := session.FormatHistory(p.cfg.HistoryTurns)

	topic := ""
	if history != "" {
		topic, err = p.llm.ExtractTopic(ctx, history, message)
		if err != nil {
			log.Printf("Topic extraction failed: %v", err)
			topic = ""
		}
	}

	text, taskID := p.dispatch(ctx, session, owner, &req.Visitor, message, topic)

	if lang != "en" {
		text = p.translator.Translate(ctx, text, "en", lang)
	}

	session.Turns = append(session.Turns,
		Turn{Role: "user", Content: message, Time: p.now()},
		Turn{Role: "bot", Content: text, Time: p.now()},
	)
	p.Sessions.Touch(session)

	return &Reply{
		SessionID:    session.ID,
		Text:         text,
		State:        session.State.String(),
		DetectedLang: lang,
		TaskID:       taskID,
	}, nil
}

// dispatch routes the message through the meeting state machine, falling
// through to task creation or answer synthesis.
func (p *Pipeline) dispatch(ctx context.Context, session *Session, owner *db.Owner, visitor *Visitor, message, topic string) (reply, taskID string) {
	switch resolveEvent(session, message) {
	case eventDetailsProvided:
		return p.handleDetailsProvided(ctx, session, owner, message, topic), ""
	case eventFinalConfirmation:
		return p.handleFinalConfirmation(ctx, session, owner, visitor, message, topic)
	case eventMeetingConfirmed:
		return p.handleMeetingConfirmed(ctx, session, owner, message, topic), ""
	}

	// A non-confirmation reply to a pending prompt abandons the negotiation
	session.State = StateNone

	detection, err := p.llm.DetectTask(ctx, message, session.FormatHistory(p.cfg.HistoryTurns))
	if err != nil {
		log.Printf("Task detection failed, treating as question: %v", err)
		detection = &llm.TaskDetection{}
	}

	if detection.IsTask {
		if detection.IsMeetingRequest && detection.RequireConfirmation {
			return p.proposeMeeting(session, owner, detection, message, topic), ""
		}
		return p.createPlainTask(session, owner, visitor, detection, message, topic)
	}

	return p.answer(ctx, owner, session, message, topic), ""
}

// proposeMeeting seeds the draft and asks the visitor to confirm intent
func (p *Pipeline) proposeMeeting(session *Session, owner *db.Owner, detection *llm.TaskDetection, message, topic string) string {
	if topic == "" {
		topic = defaultTopic
	}

	session.Draft = &MeetingDraft{
		OriginalQuestion: message,
		Title:            topic,
		Description:      "Meeting about " + topic,
	}
	if d := detection.MeetingDetails; d != nil {
		session.Draft.Date = d.Date
		session.Draft.Time = d.Time
		session.Draft.Duration = d.Duration
	}

	session.State = StateAwaitingMeetingConfirmation
	return confirmMeetingReply(owner.Name, topic)
}

// handleMeetingConfirmed fires when the visitor says yes to the proposal.
// Details may already be sitting in the draft from the original request, or
// tucked into the confirmation message itself ("yes, tomorrow at 3pm").
func (p *Pipeline) handleMeetingConfirmed(ctx context.Context, session *Session, owner *db.Owner, message, topic string) string {
	if topic == "" {
		topic = defaultTopic
	}

	if session.Draft == nil {
		session.Draft = &MeetingDraft{
			OriginalQuestion: session.LastUserMessage(),
			Title:            topic,
			Description:      "Meeting about " + topic,
		}
	}

	draft := session.Draft
	if draft.Date == "" || draft.Time == "" || draft.Duration <= 0 {
		extracted := p.llm.ExtractMeetingDetails(ctx, draft.OriginalQuestion+"\n"+message, p.now().In(p.loc))
		mergeDraft(draft, extracted)
	}

	return p.advanceDraft(session, owner, topic)
}

// handleDetailsProvided parses the visitor's answer to the details prompt
func (p *Pipeline) handleDetailsProvided(ctx context.Context, session *Session, owner *db.Owner, message, topic string) string {
	if session.Draft == nil {
		session.Draft = &MeetingDraft{OriginalQuestion: message}
	}
	if topic == "" {
		topic = defaultTopic
	}

	extracted := p.llm.ExtractMeetingDetails(ctx, message, p.now().In(p.loc))
	mergeDraft(session.Draft, extracted)

	return p.advanceDraft(session, owner, topic)
}

// advanceDraft re-prompts for missing fields or moves to final confirmation
func (p *Pipeline) advanceDraft(session *Session, owner *db.Owner, topic string) string {
	draft := session.Draft

	// Date and time are enough to commit; the duration falls back to the
	// configured default when the visitor never gave one
	if draft.Duration <= 0 && draft.Date != "" && draft.Time != "" && p.cfg.DefaultDurationMin > 0 {
		draft.Duration = p.cfg.DefaultDurationMin
	}

	var missing []string
	if draft.Date == "" {
		missing = append(missing, "date")
	}
	if draft.Time == "" {
		missing = append(missing, "time")
	}
	if draft.Duration <= 0 {
		missing = append(missing, "duration")
	}

	if len(missing) > 0 {
		session.State = StateAwaitingMeetingDetails
		return missingDetailsReply(missing)
	}

	// An extracted date like 2025-11-31 parses as neither past nor future; a
	// task carrying it would fail calendar materialization on every pass
	if _, err := time.ParseInLocation("2006-01-02 15:04", draft.Date+" "+draft.Time, p.loc); err != nil {
		draft.Date = ""
		draft.Time = ""
		session.State = StateAwaitingMeetingDetails
		return missingDetailsReply([]string{"date", "time"})
	}

	if IsTimeInPast(draft.Date, draft.Time, p.now().In(p.loc), time.Duration(p.cfg.PastBufferMinutes)*time.Minute) {
		draft.Date = ""
		draft.Time = ""
		session.State = StateAwaitingMeetingDetails
		return pastTimeReply
	}

	if draft.Title == "" {
		draft.Title = topic
	}
	session.State = StateAwaitingFinalConfirmation
	return finalConfirmationReply(owner.Name, draft.Title, draft)
}

// handleFinalConfirmation persists the meeting task after the last yes
func (p *Pipeline) handleFinalConfirmation(ctx context.Context, session *Session, owner *db.Owner, visitor *Visitor, message, topic string) (string, string) {
	draft := session.Draft
	if draft == nil {
		session.State = StateNone
		return p.answer(ctx, owner, session, message, topic), ""
	}

	if IsTimeInPast(draft.Date, draft.Time, p.now().In(p.loc), time.Duration(p.cfg.PastBufferMinutes)*time.Minute) {
		draft.Date = ""
		draft.Time = ""
		session.State = StateAwaitingMeetingDetails
		return pastTimeFinalReply, ""
	}

	if visitor.IsGuest || visitor.Username == "" {
		return guestMeetingBlockedReply(p.cfg.RegisterURL), ""
	}

	meetingContext := draft.Title
	if meetingContext == "" {
		meetingContext = topic
	}
	if meetingContext == "" {
		meetingContext = defaultTopic
	}

	var desc strings.Builder
	fmt.Fprintf(&desc, "Meeting request about %s\n\n", meetingContext)
	fmt.Fprintf(&desc, "Date: %s\n", draft.Date)
	fmt.Fprintf(&desc, "Time: %s\n", draft.Time)
	fmt.Fprintf(&desc, "Duration: %d minutes\n", draft.Duration)
	if urls := llm.ExtractURLs(draft.OriginalQuestion); len(urls) > 0 {
		fmt.Fprintf(&desc, "\nRelevant links: %s\n", strings.Join(urls, ", "))
	}

	originalQuestion := draft.OriginalQuestion
	if originalQuestion == "" {
		originalQuestion = message
	}

	task := &db.Task{
		UniqueTaskID:    db.GenerateTaskID(p.now().In(p.loc)),
		Owner:           owner.Username,
		TaskQuestion:    originalQuestion,
		TaskDescription: desc.String(),
		Status:          "inprogress",
		TopicContext:    meetingContext,
		VisitorName:     visitor.Name,
		VisitorUsername: visitor.Username,
		VisitorEmail:    visitor.Email,
		Meeting: &db.Meeting{
			Title:       meetingContext,
			Description: draft.Description,
			Date:        draft.Date,
			Time:        draft.Time,
			Duration:    draft.Duration,
			Status:      "pending",
		},
	}

	if err := p.db.SaveTask(task); err != nil {
		log.Printf("Failed to save meeting task: %v", err)
		return meetingFailedReply, ""
	}

	date, clock, duration := draft.Date, draft.Time, draft.Duration
	session.Draft = nil
	session.State = StateNone

	return meetingScheduledReply(owner.Name, meetingContext, date, clock, duration, task.UniqueTaskID), task.UniqueTaskID
}

// createPlainTask persists a non-meeting follow-up task
func (p *Pipeline) createPlainTask(session *Session, owner *db.Owner, visitor *Visitor, detection *llm.TaskDetection, message, topic string) (string, string) {
	if visitor.IsGuest || visitor.Username == "" {
		return guestTaskBlockedReply(p.cfg.RegisterURL), ""
	}

	var desc strings.Builder
	desc.WriteString(detection.TaskDescription)
	desc.WriteString("\n\n")

	var github, deployment, other []string
	for _, u := range detection.URLs {
		switch {
		case strings.Contains(u, "github.com"):
			github = append(github, u)
		case strings.Contains(u, "leetcode.com"):
			other = append(other, u)
		default:
			deployment = append(deployment, u)
		}
	}
	if len(github) > 0 {
		fmt.Fprintf(&desc, "GitHub Repository: %s\n", strings.Join(github, ", "))
	}
	if len(deployment) > 0 {
		fmt.Fprintf(&desc, "Project Deployed Link: %s\n", strings.Join(deployment, ", "))
	}
	if len(other) > 0 {
		fmt.Fprintf(&desc, "Additional Links: %s\n", strings.Join(other, ", "))
	}
	if topic != "" {
		fmt.Fprintf(&desc, "\nContext: %s", topic)
	}

	task := &db.Task{
		UniqueTaskID:    db.GenerateTaskID(p.now().In(p.loc)),
		Owner:           owner.Username,
		TaskQuestion:    message,
		TaskDescription: desc.String(),
		Status:          "inprogress",
		TopicContext:    topic,
		VisitorName:     visitor.Name,
		VisitorUsername: visitor.Username,
		VisitorEmail:    visitor.Email,
	}

	if err := p.db.SaveTask(task); err != nil {
		log.Printf("Failed to save task: %v", err)
		return taskFailedReply, ""
	}

	session.State = StateNone
	return taskCreatedReply(owner.Name, task.UniqueTaskID), task.UniqueTaskID
}

// answer runs grounded answer synthesis for a plain question
func (p *Pipeline) answer(ctx context.Context, owner *db.Owner, session *Session, message, topic string) string {
	contributions, err := p.db.ApprovedContributions(owner.Username)
	if err != nil {
		log.Printf("Failed to load contributions for %s: %v", owner.Username, err)
	}

	text, err := p.llm.Answer(ctx, &llm.AnswerRequest{
		Owner:         owner,
		Contributions: contributions,
		History:       session.FormatHistory(p.cfg.HistoryTurns),
		Topic:         topic,
		Question:      message,
	})
	if err != nil {
		log.Printf("Answer synthesis failed: %v", err)
		return answerFailedReply
	}

	return text
}

// mergeDraft fills empty draft fields from extracted details
func mergeDraft(draft *MeetingDraft, d *llm.MeetingDetails) {
	if d == nil {
		return
	}
	if draft.Title == "" {
		draft.Title = d.Title
	}
	if draft.Description == "" {
		draft.Description = d.Description
	}
	if draft.Date == "" {
		draft.Date = d.Date
	}
	if draft.Time == "" {
		draft.Time = d.Time
	}
	if draft.Duration <= 0 {
		draft.Duration = d.Duration
	}
}
