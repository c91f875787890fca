package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Owner is a registered MetaMate user who publishes a digital twin.
type Owner struct {
	Username      string    `json:"username"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	MobileNo      string    `json:"mobile_no"`
	ProfilePrompt string    `json:"profile_prompt"` // free-text knowledge the twin answers from
	StylePrompt   string    `json:"style_prompt"`   // how the owner wants responses phrased
	DailyTasks    string    `json:"daily_tasks"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Contribution is a visitor-submitted Q/A pair. Only approved contributions
// are included in the answer grounding prompt.
type Contribution struct {
	ID              int64      `json:"id"`
	Owner           string     `json:"owner"`
	Question        string     `json:"question"`
	Answer          string     `json:"answer"`
	ContributorName string     `json:"contributor_name"`
	Status          string     `json:"status"` // pending, approved, rejected
	CreatedAt       time.Time  `json:"created_at"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
}

// Visit tracks per-owner visitor activity for analytics.
type Visit struct {
	Owner           string    `json:"owner"`
	VisitorUsername string    `json:"visitor_username"`
	VisitorName     string    `json:"visitor_name"`
	IsGuest         bool      `json:"is_guest"`
	VisitCount      int       `json:"visit_count"`
	LastSeen        time.Time `json:"last_seen"`
}

// AccessGroup is a named list of usernames an owner can restrict meetings to.
type AccessGroup struct {
	ID        int64     `json:"id"`
	Owner     string    `json:"owner"`
	Name      string    `json:"name"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveOwner inserts or updates an owner profile
func (db *DB) SaveOwner(o *Owner) error {
	query := `
		INSERT INTO owners (username, name, email, mobile_no, profile_prompt, style_prompt, daily_tasks, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			mobile_no = excluded.mobile_no,
			profile_prompt = excluded.profile_prompt,
			style_prompt = excluded.style_prompt,
			daily_tasks = excluded.daily_tasks,
			updated_at = excluded.updated_at
	`

	_, err := db.Exec(query,
		o.Username, o.Name, o.Email, o.MobileNo,
		o.ProfilePrompt, o.StylePrompt, o.DailyTasks, time.Now().Unix(),
	)
	return err
}

// GetOwner retrieves an owner by username
func (db *DB) GetOwner(username string) (*Owner, error) {
	o := &Owner{}

	query := `SELECT username, name, email, mobile_no, profile_prompt, style_prompt, daily_tasks, created_at, updated_at
	          FROM owners WHERE username = ?`

	var createdTS, updatedTS int64
	err := db.QueryRow(query, username).Scan(
		&o.Username, &o.Name, &o.Email, &o.MobileNo,
		&o.ProfilePrompt, &o.StylePrompt, &o.DailyTasks, &createdTS, &updatedTS,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("owner not found: %s", username)
	} else if err != nil {
		return nil, err
	}

	o.CreatedAt = time.Unix(createdTS, 0)
	o.UpdatedAt = time.Unix(updatedTS, 0)

	return o, nil
}

// UpdateOwnerPrompt updates only the profile prompt for an owner
func (db *DB) UpdateOwnerPrompt(username, prompt string) error {
	res, err := db.Exec(
		`UPDATE owners SET profile_prompt = ?, updated_at = ? WHERE username = ?`,
		prompt, time.Now().Unix(), username,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("owner not found: %s", username)
	}
	return nil
}

// SaveContribution stores a new contribution in pending state
func (db *DB) SaveContribution(c *Contribution) (int64, error) {
	if c.Status == "" {
		c.Status = "pending"
	}

	res, err := db.Exec(
		`INSERT INTO contributions (owner, question, answer, contributor_name, status)
		 VALUES (?, ?, ?, ?, ?)`,
		c.Owner, c.Question, c.Answer, c.ContributorName, c.Status,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SetContributionStatus approves or rejects a contribution
func (db *DB) SetContributionStatus(id int64, status string) error {
	if status != "approved" && status != "rejected" && status != "pending" {
		return fmt.Errorf("invalid contribution status: %s", status)
	}

	res, err := db.Exec(
		`UPDATE contributions SET status = ?, reviewed_at = ? WHERE id = ?`,
		status, time.Now().Unix(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("contribution not found: %d", id)
	}
	return nil
}

// GetContributions returns an owner's contributions, optionally filtered by status
func (db *DB) GetContributions(owner, status string) ([]*Contribution, error) {
	query := `SELECT id, owner, question, answer, contributor_name, status, created_at, reviewed_at
	          FROM contributions WHERE owner = ?`
	args := []interface{}{owner}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contributions []*Contribution
	for rows.Next() {
		c := &Contribution{}
		var createdTS int64
		var reviewedTS sql.NullInt64

		err := rows.Scan(&c.ID, &c.Owner, &c.Question, &c.Answer,
			&c.ContributorName, &c.Status, &createdTS, &reviewedTS)
		if err != nil {
			return nil, err
		}

		c.CreatedAt = time.Unix(createdTS, 0)
		if reviewedTS.Valid {
			t := time.Unix(reviewedTS.Int64, 0)
			c.ReviewedAt = &t
		}

		contributions = append(contributions, c)
	}

	return contributions, rows.Err()
}

// ApprovedContributions returns the contributions used for answer grounding
func (db *DB) ApprovedContributions(owner string) ([]*Contribution, error) {
	return db.GetContributions(owner, "approved")
}

// RecordVisit bumps the visit counter for a visitor of an owner's twin
func (db *DB) RecordVisit(owner, visitorUsername, visitorName string, isGuest bool) error {
	query := `
		INSERT INTO visits (owner, visitor_username, visitor_name, is_guest, visit_count, last_seen)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT(owner, visitor_username) DO UPDATE SET
			visitor_name = excluded.visitor_name,
			is_guest = excluded.is_guest,
			visit_count = visits.visit_count + 1,
			last_seen = excluded.last_seen
	`

	guest := 0
	if isGuest {
		guest = 1
	}

	_, err := db.Exec(query, owner, visitorUsername, visitorName, guest, time.Now().Unix())
	return err
}

// GetVisits returns visitor analytics for an owner, most recent first
func (db *DB) GetVisits(owner string) ([]*Visit, error) {
	query := `SELECT owner, visitor_username, visitor_name, is_guest, visit_count, last_seen
	          FROM visits WHERE owner = ? ORDER BY last_seen DESC`

	rows, err := db.Query(query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []*Visit
	for rows.Next() {
		v := &Visit{}
		var guest int
		var lastSeen int64

		if err := rows.Scan(&v.Owner, &v.VisitorUsername, &v.VisitorName, &guest, &v.VisitCount, &lastSeen); err != nil {
			return nil, err
		}

		v.IsGuest = guest != 0
		v.LastSeen = time.Unix(lastSeen, 0)
		visits = append(visits, v)
	}

	return visits, rows.Err()
}

// SaveAccessGroup inserts or replaces a named access group
func (db *DB) SaveAccessGroup(g *AccessGroup) error {
	membersJSON, _ := json.Marshal(g.Members)

	query := `
		INSERT INTO access_groups (owner, name, members)
		VALUES (?, ?, ?)
		ON CONFLICT(owner, name) DO UPDATE SET
			members = excluded.members
	`

	_, err := db.Exec(query, g.Owner, g.Name, string(membersJSON))
	return err
}

// GetAccessGroups returns all access groups for an owner
func (db *DB) GetAccessGroups(owner string) ([]*AccessGroup, error) {
	query := `SELECT id, owner, name, members, created_at FROM access_groups WHERE owner = ? ORDER BY name`

	rows, err := db.Query(query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*AccessGroup
	for rows.Next() {
		g := &AccessGroup{}
		var membersJSON string
		var createdTS int64

		if err := rows.Scan(&g.ID, &g.Owner, &g.Name, &membersJSON, &createdTS); err != nil {
			return nil, err
		}

		if membersJSON != "" {
			json.Unmarshal([]byte(membersJSON), &g.Members)
		}
		g.CreatedAt = time.Unix(createdTS, 0)

		groups = append(groups, g)
	}

	return groups, rows.Err()
}

// IsGroupMember reports whether a username is in the named group of an owner.
// A missing group denies access.
func (db *DB) IsGroupMember(owner, group, username string) (bool, error) {
	var membersJSON string
	err := db.QueryRow(
		`SELECT members FROM access_groups WHERE owner = ? AND name = ?`,
		owner, group,
	).Scan(&membersJSON)

	if err == sql.ErrNoRows {
		return false, nil
	} else if err != nil {
		return false, err
	}

	var members []string
	if err := json.Unmarshal([]byte(membersJSON), &members); err != nil {
		return false, err
	}

	for _, m := range members {
		if m == username {
			return true, nil
		}
	}
	return false, nil
}
