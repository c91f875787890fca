package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metamate-app/metamate/internal/config"
	"github.com/metamate-app/metamate/internal/db"
	"github.com/metamate-app/metamate/internal/llm"
)

// fakeLLM scripts the model's behavior per test.
type fakeLLM struct {
	detection *llm.TaskDetection
	details   *llm.MeetingDetails
	topic     string
	answer    string
}

func (f *fakeLLM) DetectTask(ctx context.Context, question, conversationContext string) (*llm.TaskDetection, error) {
	if f.detection != nil {
		return f.detection, nil
	}
	return &llm.TaskDetection{}, nil
}

func (f *fakeLLM) ExtractMeetingDetails(ctx context.Context, text string, now time.Time) *llm.MeetingDetails {
	if f.details != nil {
		return f.details
	}
	return &llm.MeetingDetails{}
}

func (f *fakeLLM) ExtractTopic(ctx context.Context, history, question string) (string, error) {
	return f.topic, nil
}

func (f *fakeLLM) Answer(ctx context.Context, req *llm.AnswerRequest) (string, error) {
	return f.answer, nil
}

func (f *fakeLLM) Close() error { return nil }

// noopTranslator keeps everything in English.
type noopTranslator struct{}

func (noopTranslator) Detect(ctx context.Context, text string) string { return "en" }
func (noopTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) string {
	return text
}

var testNow = time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)

func newTestPipeline(t *testing.T, fake *fakeLLM) *Pipeline {
	t.Helper()

	database, err := db.Init(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, database.SaveOwner(&db.Owner{
		Username: "alice",
		Name:     "Alice",
		Email:    "alice@example.com",
	}))

	cfg := &config.Chat{
		HistoryTurns:       6,
		SessionTTLMinutes:  120,
		PastBufferMinutes:  10,
		RegisterURL:        "https://metamate.app/",
		DefaultDurationMin: 30,
	}

	p := NewPipeline(database, fake, noopTranslator{}, cfg, time.UTC)
	p.now = func() time.Time { return testNow }
	return p
}

var registeredVisitor = Visitor{Name: "Bob", Username: "bob", Email: "bob@example.com"}

func send(t *testing.T, p *Pipeline, sessionID, message string, v Visitor) *Reply {
	t.Helper()
	reply, err := p.Respond(context.Background(), &Request{
		SessionID: sessionID,
		Owner:     "alice",
		Visitor:   v,
		Message:   message,
	})
	require.NoError(t, err)
	return reply
}

func TestRespondPlainQuestion(t *testing.T) {
	fake := &fakeLLM{answer: "I work on distributed systems."}
	p := newTestPipeline(t, fake)

	reply := send(t, p, "", "what do you work on?", registeredVisitor)
	assert.Equal(t, "I work on distributed systems.", reply.Text)
	assert.Equal(t, "none", reply.State)
	assert.NotEmpty(t, reply.SessionID)
	assert.Empty(t, reply.TaskID)
}

func TestRespondUnknownOwner(t *testing.T) {
	p := newTestPipeline(t, &fakeLLM{})

	_, err := p.Respond(context.Background(), &Request{
		Owner: "nobody", Visitor: registeredVisitor, Message: "hi",
	})
	assert.Error(t, err)
}

func TestMeetingFlowEndToEnd(t *testing.T) {
	fake := &fakeLLM{
		detection: &llm.TaskDetection{
			IsTask:              true,
			IsMeetingRequest:    true,
			RequireConfirmation: true,
			TaskDescription:     "Discuss the deployment",
		},
		topic: "the cosmos deployment",
	}
	p := newTestPipeline(t, fake)

	// First there needs to be some history so a topic exists
	reply := send(t, p, "", "Let's have a meet on this", registeredVisitor)
	assert.Contains(t, reply.Text, "Are you sure you want to have a meeting with Alice about")
	assert.Equal(t, "awaiting_meeting_confirmation", reply.State)
	assert.Empty(t, reply.TaskID, "no task before confirmation")
	sid := reply.SessionID

	// Confirmation with no details known yet asks for all three
	fake.details = &llm.MeetingDetails{}
	reply = send(t, p, sid, "yes", registeredVisitor)
	assert.Contains(t, reply.Text, "Please provide the following details for your meeting: date, time, duration.")
	assert.Equal(t, "awaiting_meeting_details", reply.State)

	// Details arrive; fake extractor resolves them
	fake.details = &llm.MeetingDetails{Date: "2025-11-02", Time: "18:30", Duration: 30}
	reply = send(t, p, sid, "2nd of november, 2025, 6:30 pm, 30 min", registeredVisitor)
	assert.Contains(t, reply.Text, "I will be scheduling a meeting with Alice")
	assert.Contains(t, reply.Text, "2025-11-02 at 18:30 for 30 minutes")
	assert.Contains(t, reply.Text, "Press yes to confirm")
	assert.Equal(t, "awaiting_final_confirmation", reply.State)

	// Final yes persists exactly one task and reports the tracking ID
	reply = send(t, p, sid, "yes", registeredVisitor)
	assert.Contains(t, reply.Text, "Great! I've scheduled a meeting with Alice")
	assert.Contains(t, reply.Text, "Tracking ID: "+reply.TaskID)
	assert.Equal(t, "none", reply.State)
	require.NotEmpty(t, reply.TaskID)

	task, err := p.db.GetTask(reply.TaskID)
	require.NoError(t, err)
	require.NotNil(t, task.Meeting)
	assert.Equal(t, "2025-11-02", task.Meeting.Date)
	assert.Equal(t, "18:30", task.Meeting.Time)
	assert.Equal(t, 30, task.Meeting.Duration)
	assert.Equal(t, "pending", task.Meeting.Status)
	assert.Equal(t, "bob", task.VisitorUsername)

	tasks, err := p.db.GetTasks("alice", "")
	require.NoError(t, err)
	assert.Len(t, tasks, 1, "exactly one persistence call")
}

func TestMeetingFlowSkipsDetailsWhenAlreadyKnown(t *testing.T) {
	fake := &fakeLLM{
		detection: &llm.TaskDetection{
			IsTask:              true,
			IsMeetingRequest:    true,
			RequireConfirmation: true,
			MeetingDetails:      &llm.MeetingDetails{Date: "2025-11-02", Time: "18:30", Duration: 30},
		},
		topic: "the roadmap",
	}
	p := newTestPipeline(t, fake)

	reply := send(t, p, "", "Can we meet on 2nd november at 6:30pm for 30 min?", registeredVisitor)
	assert.Contains(t, reply.Text, "Are you sure you want to have a meeting")
	sid := reply.SessionID

	reply = send(t, p, sid, "yes", registeredVisitor)
	assert.Contains(t, reply.Text, "I will be scheduling a meeting with Alice")
	assert.Equal(t, "awaiting_final_confirmation", reply.State)
}

func TestMeetingPastTimeRejected(t *testing.T) {
	fake := &fakeLLM{
		detection: &llm.TaskDetection{
			IsTask: true, IsMeetingRequest: true, RequireConfirmation: true,
		},
		topic: "the demo",
	}
	p := newTestPipeline(t, fake)

	reply := send(t, p, "", "let's meet", registeredVisitor)
	sid := reply.SessionID

	fake.details = &llm.MeetingDetails{}
	send(t, p, sid, "yes", registeredVisitor)

	// Resolved time is before the pipeline's now
	fake.details = &llm.MeetingDetails{Date: "2025-10-14", Time: "09:00", Duration: 30}
	reply = send(t, p, sid, "yesterday at 9am for 30 min", registeredVisitor)
	assert.Contains(t, reply.Text, "not a time traveler")
	assert.Equal(t, "awaiting_meeting_details", reply.State)

	// Date and time were reset, duration kept
	session := p.Sessions.Get(sid, "alice")
	require.NotNil(t, session.Draft)
	assert.Empty(t, session.Draft.Date)
	assert.Empty(t, session.Draft.Time)
	assert.Equal(t, 30, session.Draft.Duration)

	tasks, err := p.db.GetTasks("alice", "")
	require.NoError(t, err)
	assert.Empty(t, tasks, "nothing persisted for a past time")
}

func TestMeetingImpossibleDateReprompted(t *testing.T) {
	fake := &fakeLLM{
		detection: &llm.TaskDetection{
			IsTask: true, IsMeetingRequest: true, RequireConfirmation: true,
		},
		topic: "the demo",
	}
	p := newTestPipeline(t, fake)

	reply := send(t, p, "", "let's meet", registeredVisitor)
	sid := reply.SessionID

	fake.details = &llm.MeetingDetails{}
	send(t, p, sid, "yes", registeredVisitor)

	// November has 30 days; the extractor took the visitor literally
	fake.details = &llm.MeetingDetails{Date: "2025-11-31", Time: "18:30", Duration: 30}
	reply = send(t, p, sid, "31st of november at 6:30pm for 30 min", registeredVisitor)
	assert.Contains(t, reply.Text, "Please provide the following details for your meeting: date, time.")
	assert.Equal(t, "awaiting_meeting_details", reply.State)

	session := p.Sessions.Get(sid, "alice")
	require.NotNil(t, session.Draft)
	assert.Empty(t, session.Draft.Date)
	assert.Empty(t, session.Draft.Time)

	tasks, err := p.db.GetTasks("alice", "")
	require.NoError(t, err)
	assert.Empty(t, tasks, "nothing persisted for a nonexistent date")
}

func TestMeetingDurationDefaultsWhenOmitted(t *testing.T) {
	fake := &fakeLLM{
		detection: &llm.TaskDetection{
			IsTask: true, IsMeetingRequest: true, RequireConfirmation: true,
		},
		topic: "the demo",
	}
	p := newTestPipeline(t, fake)

	reply := send(t, p, "", "let's meet", registeredVisitor)
	sid := reply.SessionID

	fake.details = &llm.MeetingDetails{}
	send(t, p, sid, "yes", registeredVisitor)

	// Date and time but no duration: the configured default fills in
	fake.details = &llm.MeetingDetails{Date: "2025-11-02", Time: "18:30"}
	reply = send(t, p, sid, "2nd of november at 6:30pm", registeredVisitor)
	assert.Contains(t, reply.Text, "2025-11-02 at 18:30 for 30 minutes")
	assert.Equal(t, "awaiting_final_confirmation", reply.State)

	reply = send(t, p, sid, "yes", registeredVisitor)
	require.NotEmpty(t, reply.TaskID)

	task, err := p.db.GetTask(reply.TaskID)
	require.NoError(t, err)
	require.NotNil(t, task.Meeting)
	assert.Equal(t, 30, task.Meeting.Duration)
}

func TestMeetingGuestBlockedAtFinalConfirmation(t *testing.T) {
	fake := &fakeLLM{
		detection: &llm.TaskDetection{
			IsTask: true, IsMeetingRequest: true, RequireConfirmation: true,
		},
		topic: "the demo",
	}
	p := newTestPipeline(t, fake)
	guest := Visitor{Name: "Guest", IsGuest: true}

	reply := send(t, p, "", "let's meet", guest)
	sid := reply.SessionID

	fake.details = &llm.MeetingDetails{Date: "2025-11-02", Time: "18:30", Duration: 30}
	send(t, p, sid, "yes", guest)

	reply = send(t, p, sid, "yes", guest)
	assert.Contains(t, reply.Text, "Guest User")
	assert.Contains(t, reply.Text, "https://metamate.app/")

	tasks, err := p.db.GetTasks("alice", "")
	require.NoError(t, err)
	assert.Empty(t, tasks, "guest confirmation must not persist")
}

func TestPlainTaskCreation(t *testing.T) {
	fake := &fakeLLM{
		detection: &llm.TaskDetection{
			IsTask:          true,
			TaskDescription: "Follow up about the CORS error",
			URLs:            []string{"https://github.com/bob/app", "https://app.example.com/"},
		},
		topic: "CORS error in deployment",
	}
	p := newTestPipeline(t, fake)

	reply := send(t, p, "", "ping me about the CORS error, repo: https://github.com/bob/app deployed at https://app.example.com/", registeredVisitor)
	assert.Contains(t, reply.Text, "I've added this to Alice's to-do list with tracking ID")
	require.NotEmpty(t, reply.TaskID)

	task, err := p.db.GetTask(reply.TaskID)
	require.NoError(t, err)
	assert.Nil(t, task.Meeting)
	assert.Contains(t, task.TaskDescription, "GitHub Repository: https://github.com/bob/app")
	assert.Contains(t, task.TaskDescription, "Project Deployed Link: https://app.example.com/")
}

func TestPlainTaskGuestBlocked(t *testing.T) {
	fake := &fakeLLM{
		detection: &llm.TaskDetection{IsTask: true, TaskDescription: "Follow up"},
	}
	p := newTestPipeline(t, fake)

	reply := send(t, p, "", "remind me later", Visitor{Name: "Guest", IsGuest: true})
	assert.Contains(t, reply.Text, "not a registered user")

	tasks, err := p.db.GetTasks("alice", "")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestDecliningProposalAbandonsNegotiation(t *testing.T) {
	fake := &fakeLLM{
		detection: &llm.TaskDetection{
			IsTask: true, IsMeetingRequest: true, RequireConfirmation: true,
		},
		topic:  "the demo",
		answer: "No problem.",
	}
	p := newTestPipeline(t, fake)

	reply := send(t, p, "", "let's meet", registeredVisitor)
	sid := reply.SessionID

	fake.detection = nil
	reply = send(t, p, sid, "actually never mind", registeredVisitor)
	assert.Equal(t, "No problem.", reply.Text)
	assert.Equal(t, "none", reply.State)
}

func TestVisitRecorded(t *testing.T) {
	p := newTestPipeline(t, &fakeLLM{answer: "hi"})

	send(t, p, "", "hello", registeredVisitor)
	send(t, p, "", "hello again", registeredVisitor)

	visits, err := p.db.GetVisits("alice")
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, 2, visits[0].VisitCount)
}
