// Package models provides data structures for the portal.
package models

import "time"

// MaxSkills is the number of positional skill columns (Skill1..Skill10) on a list row.
const MaxSkills = 10

// Post is one row of the project list, projected for display.
type Post struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`

	// Effort is optional; zero when the row leaves it blank.
	EffortHours   int `json:"effort_hours,omitempty"`
	EffortMinutes int `json:"effort_minutes,omitempty"`

	StartDate      time.Time `json:"start_date,omitempty"` // zero when unset
	EndDate        time.Time `json:"end_date,omitempty"`   // zero when unset
	ExpirationDate time.Time `json:"expiration_date"`

	Location string `json:"location"`

	PostedBy             string `json:"posted_by"`
	PostedByID           int    `json:"posted_by_id"`
	PostedByEmailAddress string `json:"posted_by_email_address"`

	Status string   `json:"status"`
	Skills []string `json:"skills"`
}

// HasEffort reports whether any effort was recorded.
func (p *Post) HasEffort() bool {
	return p.EffortHours != 0 || p.EffortMinutes != 0
}

// HasSchedule reports whether a start or end date was recorded.
func (p *Post) HasSchedule() bool {
	return !p.StartDate.IsZero() || !p.EndDate.IsZero()
}

// IsExpired reports whether the post expired before now.
func (p *Post) IsExpired(now time.Time) bool {
	return p.ExpirationDate.Before(now)
}
