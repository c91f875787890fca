package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/metamate-app/metamate/internal/chat"
	"github.com/metamate-app/metamate/internal/db"
)

// POST /api/chat - one conversation turn with an owner's twin
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Owner == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "owner and message are required")
		return
	}

	reply, err := s.pipeline.Respond(r.Context(), &req)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, reply)
}

// POST /api/contribute - visitor submits a Q/A pair for owner review
func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var c db.Contribution
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if c.Owner == "" || c.Question == "" || c.Answer == "" {
		writeError(w, http.StatusBadRequest, "owner, question and answer are required")
		return
	}

	if _, err := s.database.GetOwner(c.Owner); err != nil {
		writeError(w, http.StatusNotFound, "Owner not found")
		return
	}

	c.Status = "pending"
	id, err := s.database.SaveContribution(&c)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id, "status": "pending"})
}

// /api/owners - GET profile by ?username=, POST register/update
func (s *Server) handleOwners(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		username := r.URL.Query().Get("username")
		if username == "" {
			writeError(w, http.StatusBadRequest, "username is required")
			return
		}
		owner, err := s.database.GetOwner(username)
		if err != nil {
			writeError(w, http.StatusNotFound, "Owner not found")
			return
		}
		writeJSON(w, http.StatusOK, owner)

	case http.MethodPost:
		var owner db.Owner
		if err := json.NewDecoder(r.Body).Decode(&owner); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if owner.Username == "" || owner.Name == "" {
			writeError(w, http.StatusBadRequest, "username and name are required")
			return
		}
		if err := s.database.SaveOwner(&owner); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// PUT /api/owners/prompt - update the twin's knowledge prompt
func (s *Server) handleOwnerPrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		Username string `json:"username"`
		Prompt   string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	if err := s.database.UpdateOwnerPrompt(req.Username, req.Prompt); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// selfTaskRequest lets the owner put items on their own list, including
// pre-scheduled meetings created outside a chat.
type selfTaskRequest struct {
	Owner           string      `json:"owner"`
	TaskQuestion    string      `json:"task_question"`
	TaskDescription string      `json:"task_description"`
	TopicContext    string      `json:"topic_context"`
	RestrictedGroup string      `json:"restricted_group"`
	Meeting         *db.Meeting `json:"meeting,omitempty"`
}

// /api/tasks - GET list by ?owner=&status=, POST create self task
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		owner := r.URL.Query().Get("owner")
		if owner == "" {
			writeError(w, http.StatusBadRequest, "owner is required")
			return
		}
		tasks, err := s.database.GetTasks(owner, r.URL.Query().Get("status"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if tasks == nil {
			tasks = []*db.Task{}
		}
		writeJSON(w, http.StatusOK, tasks)

	case http.MethodPost:
		var req selfTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Owner == "" || req.TaskDescription == "" {
			writeError(w, http.StatusBadRequest, "owner and task_description are required")
			return
		}
		if _, err := s.database.GetOwner(req.Owner); err != nil {
			writeError(w, http.StatusNotFound, "Owner not found")
			return
		}

		task := &db.Task{
			UniqueTaskID:    db.GenerateTaskID(time.Now()),
			Owner:           req.Owner,
			TaskQuestion:    req.TaskQuestion,
			TaskDescription: req.TaskDescription,
			Status:          "inprogress",
			TopicContext:    req.TopicContext,
			IsSelfTask:      true,
			RestrictedGroup: req.RestrictedGroup,
			Meeting:         req.Meeting,
		}
		if err := s.database.SaveTask(task); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"unique_task_id": task.UniqueTaskID})

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// /api/tasks/{id} - GET one task, PUT status change
func (s *Server) handleTaskAction(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "task ID is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		task, err := s.database.GetTask(taskID)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		// Restricted tasks are only visible to members of the named group
		// and to the owner themselves.
		if task.RestrictedGroup != "" {
			requester := r.URL.Query().Get("requester")
			if requester != task.Owner {
				ok, err := s.database.IsGroupMember(task.Owner, task.RestrictedGroup, requester)
				if err != nil {
					writeError(w, http.StatusInternalServerError, err.Error())
					return
				}
				if !ok {
					writeError(w, http.StatusForbidden, "Access to this task is restricted")
					return
				}
			}
		}
		writeJSON(w, http.StatusOK, task)

	case http.MethodPut:
		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		switch req.Status {
		case "inprogress", "completed", "cancelled":
		default:
			writeError(w, http.StatusBadRequest, "status must be inprogress, completed or cancelled")
			return
		}
		if err := s.database.UpdateTaskStatus(taskID, req.Status); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// GET /api/contributions?owner=&status= - list contributions for review
func (s *Server) handleContributions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner is required")
		return
	}

	contributions, err := s.database.GetContributions(owner, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if contributions == nil {
		contributions = []*db.Contribution{}
	}
	writeJSON(w, http.StatusOK, contributions)
}

// PUT /api/contributions/{id} - approve or reject a contribution
func (s *Server) handleContributionReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/api/contributions/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid contribution ID")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Status != "approved" && req.Status != "rejected" {
		writeError(w, http.StatusBadRequest, "status must be approved or rejected")
		return
	}

	if err := s.database.SetContributionStatus(id, req.Status); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

// /api/groups - GET list by ?owner=, POST create/update a group
func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		owner := r.URL.Query().Get("owner")
		if owner == "" {
			writeError(w, http.StatusBadRequest, "owner is required")
			return
		}
		groups, err := s.database.GetAccessGroups(owner)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if groups == nil {
			groups = []*db.AccessGroup{}
		}
		writeJSON(w, http.StatusOK, groups)

	case http.MethodPost:
		var group db.AccessGroup
		if err := json.NewDecoder(r.Body).Decode(&group); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if group.Owner == "" || group.Name == "" {
			writeError(w, http.StatusBadRequest, "owner and name are required")
			return
		}
		if err := s.database.SaveAccessGroup(&group); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// GET /api/analytics?owner= - visitor stats
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner is required")
		return
	}

	visits, err := s.database.GetVisits(owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if visits == nil {
		visits = []*db.Visit{}
	}

	total := 0
	guests := 0
	for _, v := range visits {
		total += v.VisitCount
		if v.IsGuest {
			guests += v.VisitCount
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_visits":    total,
		"guest_visits":    guests,
		"unique_visitors": len(visits),
		"visitors":        visits,
	})
}

// GET /api/meetings?owner= - scheduled meetings with their Meet links
func (s *Server) handleMeetings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner is required")
		return
	}

	records, err := s.database.GetMeetingRecords(owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*db.MeetingRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}
