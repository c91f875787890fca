package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Task is a follow-up item created from a chat message, optionally carrying
// a meeting to be scheduled.
type Task struct {
	UniqueTaskID    string    `json:"unique_task_id"`
	Owner           string    `json:"owner"`
	TaskQuestion    string    `json:"task_question"`
	TaskDescription string    `json:"task_description"`
	Status          string    `json:"status"` // inprogress, completed, cancelled
	TopicContext    string    `json:"topic_context"`
	IsSelfTask      bool      `json:"is_self_task"`
	VisitorName     string    `json:"visitor_name"`
	VisitorUsername string    `json:"visitor_username"`
	VisitorEmail    string    `json:"visitor_email"`
	Meeting         *Meeting  `json:"meeting,omitempty"`
	RestrictedGroup string    `json:"restricted_group,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Meeting holds the scheduling fields of a meeting task.
type Meeting struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"` // YYYY-MM-DD
	Time        string `json:"time"` // HH:MM, 24h
	Duration    int    `json:"duration"` // minutes
	Status      string `json:"status"`   // pending, scheduled, declined
}

// MeetingRecord links a scheduled task to its calendar event.
type MeetingRecord struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Owner     string    `json:"owner"`
	MeetLink  string    `json:"meet_link"`
	StartTime string    `json:"start_time"` // fixed-offset serialization, e.g. 2025-11-02T18:30:00+05:30
	EndTime   string    `json:"end_time"`
	Duration  string    `json:"duration"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerateTaskID produces the visitor-facing tracking ID, ssmmhhDDMMYYYY.
func GenerateTaskID(now time.Time) string {
	return now.Format("050415" + "02012006")
}

// SaveTask inserts or updates a task
func (db *DB) SaveTask(task *Task) error {
	if task.Status == "" {
		task.Status = "inprogress"
	}

	isMeeting := 0
	m := Meeting{}
	if task.Meeting != nil {
		isMeeting = 1
		m = *task.Meeting
		if m.Status == "" {
			m.Status = "pending"
		}
	}

	selfTask := 0
	if task.IsSelfTask {
		selfTask = 1
	}

	query := `
		INSERT INTO tasks (unique_task_id, owner, task_question, task_description, status,
			topic_context, is_self_task, visitor_name, visitor_username, visitor_email,
			is_meeting, meeting_title, meeting_description, meeting_date, meeting_time,
			meeting_duration, meeting_status, restricted_group, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(unique_task_id) DO UPDATE SET
			task_description = excluded.task_description,
			status = excluded.status,
			topic_context = excluded.topic_context,
			meeting_title = excluded.meeting_title,
			meeting_description = excluded.meeting_description,
			meeting_date = excluded.meeting_date,
			meeting_time = excluded.meeting_time,
			meeting_duration = excluded.meeting_duration,
			meeting_status = excluded.meeting_status,
			restricted_group = excluded.restricted_group,
			updated_at = excluded.updated_at
	`

	_, err := db.Exec(query,
		task.UniqueTaskID, task.Owner, task.TaskQuestion, task.TaskDescription, task.Status,
		task.TopicContext, selfTask, task.VisitorName, task.VisitorUsername, task.VisitorEmail,
		isMeeting, m.Title, m.Description, m.Date, m.Time, m.Duration, m.Status,
		task.RestrictedGroup, time.Now().Unix(),
	)
	return err
}

// GetTask retrieves a task by its tracking ID
func (db *DB) GetTask(uniqueTaskID string) (*Task, error) {
	query := taskSelect + ` WHERE unique_task_id = ?`

	row := db.QueryRow(query, uniqueTaskID)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task not found: %s", uniqueTaskID)
	} else if err != nil {
		return nil, err
	}
	return task, nil
}

// GetTasks returns an owner's tasks, newest first, optionally filtered by status
func (db *DB) GetTasks(owner, status string) ([]*Task, error) {
	query := taskSelect + ` WHERE owner = ?`
	args := []interface{}{owner}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// UpdateTaskStatus changes a task's lifecycle status
func (db *DB) UpdateTaskStatus(uniqueTaskID, status string) error {
	res, err := db.Exec(
		`UPDATE tasks SET status = ?, updated_at = ? WHERE unique_task_id = ?`,
		status, time.Now().Unix(), uniqueTaskID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("task not found: %s", uniqueTaskID)
	}
	return nil
}

// PendingMeetingTasks returns meeting tasks waiting to be materialized as calendar events
func (db *DB) PendingMeetingTasks() ([]*Task, error) {
	query := taskSelect + ` WHERE is_meeting = 1 AND meeting_status = 'pending' AND status = 'inprogress'
	                        ORDER BY created_at ASC`

	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// SetMeetingStatus moves a meeting task through pending -> scheduled/declined
func (db *DB) SetMeetingStatus(uniqueTaskID, status string) error {
	res, err := db.Exec(
		`UPDATE tasks SET meeting_status = ?, updated_at = ? WHERE unique_task_id = ? AND is_meeting = 1`,
		status, time.Now().Unix(), uniqueTaskID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("meeting task not found: %s", uniqueTaskID)
	}
	return nil
}

// SaveMeetingRecord stores the calendar outcome of a scheduled meeting
func (db *DB) SaveMeetingRecord(rec *MeetingRecord) error {
	query := `
		INSERT INTO meetings (id, task_id, owner, meet_link, start_time, end_time, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			meet_link = excluded.meet_link,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			duration = excluded.duration
	`

	_, err := db.Exec(query,
		rec.ID, rec.TaskID, rec.Owner, rec.MeetLink,
		rec.StartTime, rec.EndTime, rec.Duration,
	)
	return err
}

// GetMeetingRecords returns an owner's scheduled meetings, newest first
func (db *DB) GetMeetingRecords(owner string) ([]*MeetingRecord, error) {
	query := `SELECT id, task_id, owner, meet_link, start_time, end_time, duration, created_at
	          FROM meetings WHERE owner = ? ORDER BY created_at DESC`

	rows, err := db.Query(query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*MeetingRecord
	for rows.Next() {
		rec := &MeetingRecord{}
		var createdTS int64

		err := rows.Scan(&rec.ID, &rec.TaskID, &rec.Owner, &rec.MeetLink,
			&rec.StartTime, &rec.EndTime, &rec.Duration, &createdTS)
		if err != nil {
			return nil, err
		}

		rec.CreatedAt = time.Unix(createdTS, 0)
		records = append(records, rec)
	}

	return records, rows.Err()
}

const taskSelect = `
	SELECT unique_task_id, owner, task_question, task_description, status,
	       topic_context, is_self_task, visitor_name, visitor_username, visitor_email,
	       is_meeting, meeting_title, meeting_description, meeting_date, meeting_time,
	       meeting_duration, meeting_status, restricted_group, created_at, updated_at
	FROM tasks`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*Task, error) {
	task := &Task{}
	m := Meeting{}
	var isMeeting, selfTask int
	var createdTS, updatedTS int64

	err := row.Scan(
		&task.UniqueTaskID, &task.Owner, &task.TaskQuestion, &task.TaskDescription, &task.Status,
		&task.TopicContext, &selfTask, &task.VisitorName, &task.VisitorUsername, &task.VisitorEmail,
		&isMeeting, &m.Title, &m.Description, &m.Date, &m.Time, &m.Duration, &m.Status,
		&task.RestrictedGroup, &createdTS, &updatedTS,
	)
	if err != nil {
		return nil, err
	}

	task.IsSelfTask = selfTask != 0
	if isMeeting != 0 {
		task.Meeting = &m
	}
	task.CreatedAt = time.Unix(createdTS, 0)
	task.UpdatedAt = time.Unix(updatedTS, 0)

	return task, nil
}
