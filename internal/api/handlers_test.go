package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metamate-app/metamate/internal/chat"
	"github.com/metamate-app/metamate/internal/config"
	"github.com/metamate-app/metamate/internal/db"
	"github.com/metamate-app/metamate/internal/llm"
)

type cannedLLM struct{}

func (cannedLLM) DetectTask(ctx context.Context, question, conversationContext string) (*llm.TaskDetection, error) {
	return &llm.TaskDetection{}, nil
}
func (cannedLLM) ExtractMeetingDetails(ctx context.Context, text string, now time.Time) *llm.MeetingDetails {
	return &llm.MeetingDetails{}
}
func (cannedLLM) ExtractTopic(ctx context.Context, history, question string) (string, error) {
	return "", nil
}
func (cannedLLM) Answer(ctx context.Context, req *llm.AnswerRequest) (string, error) {
	return "canned answer", nil
}
func (cannedLLM) Close() error { return nil }

type englishOnly struct{}

func (englishOnly) Detect(ctx context.Context, text string) string { return "en" }
func (englishOnly) Translate(ctx context.Context, text, sourceLang, targetLang string) string {
	return text
}

const testAuthKey = "test-key"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	database, err := db.Init(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, database.SaveOwner(&db.Owner{
		Username: "alice", Name: "Alice", Email: "alice@example.com",
	}))

	chatCfg := &config.Chat{
		HistoryTurns: 6, SessionTTLMinutes: 120, PastBufferMinutes: 10,
		RegisterURL: "https://metamate.app/", DefaultDurationMin: 30,
	}
	pipeline := chat.NewPipeline(database, cannedLLM{}, englishOnly{}, chatCfg, time.UTC)

	return NewServer(database, pipeline, &config.API{Port: 0, AuthKey: testAuthKey})
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if authed {
		req.Header.Set("Authorization", "Bearer "+testAuthKey)
	}

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestChatEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/chat", map[string]interface{}{
		"owner":   "alice",
		"message": "what do you do?",
		"visitor": map[string]interface{}{"name": "Bob", "username": "bob"},
	}, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var reply chat.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, "canned answer", reply.Text)
	assert.NotEmpty(t, reply.SessionID)
}

func TestChatEndpointValidation(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/chat", map[string]interface{}{
		"message": "hi",
	}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/chat", map[string]interface{}{
		"owner": "nobody", "message": "hi",
	}, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/tasks?owner=alice", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/tasks?owner=alice", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSelfTaskLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/tasks", map[string]interface{}{
		"owner":            "alice",
		"task_description": "Prepare quarterly review",
		"topic_context":    "planning",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	taskID := created["unique_task_id"]
	require.NotEmpty(t, taskID)

	rec = doRequest(t, s, http.MethodGet, "/api/tasks/"+taskID, nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var task db.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.True(t, task.IsSelfTask)
	assert.Equal(t, "inprogress", task.Status)

	rec = doRequest(t, s, http.MethodPut, "/api/tasks/"+taskID, map[string]string{"status": "completed"}, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodPut, "/api/tasks/"+taskID, map[string]string{"status": "bogus"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContributionFlow(t *testing.T) {
	s := newTestServer(t)

	// Visitor submits without auth
	rec := doRequest(t, s, http.MethodPost, "/api/contribute", map[string]string{
		"owner": "alice", "question": "Where did you study?", "answer": "MIT",
		"contributor_name": "Bob",
	}, false)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// Pending until reviewed
	rec = doRequest(t, s, http.MethodGet, "/api/contributions?owner=alice&status=pending", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []*db.Contribution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	require.Len(t, pending, 1)

	// Owner approves
	rec = doRequest(t, s, http.MethodPut, fmt.Sprintf("/api/contributions/%d", created.ID),
		map[string]string{"status": "approved"}, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/contributions?owner=alice&status=approved", nil, true)
	var approved []*db.Contribution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &approved))
	assert.Len(t, approved, 1)
}

func TestContributionUnknownOwnerRejected(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/contribute", map[string]string{
		"owner": "nobody", "question": "q", "answer": "a",
	}, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGroups(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/groups", map[string]interface{}{
		"owner": "alice", "name": "teammates", "members": []string{"bob", "carol"},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/groups?owner=alice", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var groups []*db.AccessGroup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"bob", "carol"}, groups[0].Members)
}

func TestRestrictedTaskAccess(t *testing.T) {
	s := newTestServer(t)

	doRequest(t, s, http.MethodPost, "/api/groups", map[string]interface{}{
		"owner": "alice", "name": "teammates", "members": []string{"bob"},
	}, true)

	rec := doRequest(t, s, http.MethodPost, "/api/tasks", map[string]interface{}{
		"owner":            "alice",
		"task_description": "Private planning meeting",
		"restricted_group": "teammates",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	taskID := created["unique_task_id"]

	rec = doRequest(t, s, http.MethodGet, "/api/tasks/"+taskID+"?requester=bob", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/tasks/"+taskID+"?requester=mallory", nil, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/tasks/"+taskID+"?requester=alice", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalytics(t *testing.T) {
	s := newTestServer(t)

	// Two chats from the same visitor, one from a guest
	for i := 0; i < 2; i++ {
		doRequest(t, s, http.MethodPost, "/api/chat", map[string]interface{}{
			"owner": "alice", "message": "hi",
			"visitor": map[string]interface{}{"name": "Bob", "username": "bob"},
		}, false)
	}
	doRequest(t, s, http.MethodPost, "/api/chat", map[string]interface{}{
		"owner": "alice", "message": "hi",
		"visitor": map[string]interface{}{"name": "Guest", "is_guest": true},
	}, false)

	rec := doRequest(t, s, http.MethodGet, "/api/analytics?owner=alice", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		TotalVisits    int `json:"total_visits"`
		GuestVisits    int `json:"guest_visits"`
		UniqueVisitors int `json:"unique_visitors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.TotalVisits)
	assert.Equal(t, 1, stats.GuestVisits)
	assert.Equal(t, 2, stats.UniqueVisitors)
}

func TestOwnerPromptUpdate(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPut, "/api/owners/prompt", map[string]string{
		"username": "alice", "prompt": "I build search infrastructure.",
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/owners?username=alice", nil, true)
	var owner db.Owner
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &owner))
	assert.Equal(t, "I build search infrastructure.", owner.ProfilePrompt)
}

func TestMeetingsEmpty(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/meetings?owner=alice", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}
