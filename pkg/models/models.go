package models

import (
	"strings"
	"time"
)

// CampaignType is the tag that selects which executor a campaign dispatches to
type CampaignType string

const (
	CampaignTypeConnection CampaignType = "connection"
	CampaignTypeMessage    CampaignType = "message"
	CampaignTypeScrape     CampaignType = "scrape"
)

// Valid reports whether t is a known campaign type
func (t CampaignType) Valid() bool {
	switch t {
	case CampaignTypeConnection, CampaignTypeMessage, CampaignTypeScrape:
		return true
	}
	return false
}

// CampaignStatus is a campaign's lifecycle state
type CampaignStatus string

const (
	StatusActive    CampaignStatus = "active"
	StatusPaused    CampaignStatus = "paused"
	StatusCompleted CampaignStatus = "completed"
	StatusFailed    CampaignStatus = "failed"
)

// Terminal reports whether no transition may leave s
func (s CampaignStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ResultStatus is the outcome of one attempted action
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailure ResultStatus = "failure"
	ResultSkipped ResultStatus = "skipped"
)

// Profile holds the fields parsed from a LinkedIn profile or follower entry.
// Any field other than ProfileURL may be empty when the page did not expose it.
type Profile struct {
	ProfileURL        string `json:"profile_url"`
	Name              string `json:"name,omitempty"`
	Headline          string `json:"headline,omitempty"`
	CurrentCompany    string `json:"current_company,omitempty"`
	CurrentRole       string `json:"current_role,omitempty"`
	Location          string `json:"location,omitempty"`
	ImageURL          string `json:"image_url,omitempty"`
	ConnectionDegree  int    `json:"connection_degree,omitempty"`
	MutualConnections int    `json:"mutual_connections,omitempty"`
	ConnectionCount   int    `json:"connection_count,omitempty"`
}

// FirstName returns the first word of the profile name
func (p Profile) FirstName() string {
	fields := strings.Fields(p.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// LastName returns everything after the first word of the profile name
func (p Profile) LastName() string {
	fields := strings.Fields(p.Name)
	if len(fields) < 2 {
		return ""
	}
	return strings.Join(fields[1:], " ")
}

// ProfileRef is one campaign target. Cached holds whatever is known about the
// profile at the time it was added or last enriched.
type ProfileRef struct {
	ProfileURL string   `json:"profile_url"`
	Cached     *Profile `json:"cached,omitempty"`
	// DiscoveredFrom is set on targets appended by a scrape campaign
	DiscoveredFrom string `json:"discovered_from,omitempty"`
}

// Campaign is a unit of automated outreach work
type Campaign struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Type            CampaignType   `json:"type"`
	Status          CampaignStatus `json:"status"`
	Targets         []ProfileRef   `json:"targets"`
	MessageTemplate string         `json:"message_template,omitempty"`
	DailyLimit      int            `json:"daily_limit"`
	TotalProcessed  int            `json:"total_processed"`
	TotalSuccessful int            `json:"total_successful"`
	FailureReason   string         `json:"failure_reason,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       *time.Time     `json:"deleted_at,omitempty"`
}

// Progress returns the processed share of targets as a percentage
func (c *Campaign) Progress() float64 {
	if len(c.Targets) == 0 {
		return 0
	}
	return float64(c.TotalProcessed) / float64(len(c.Targets)) * 100
}

// SuccessRate returns the successful share of processed targets as a percentage.
// A campaign with nothing processed has a success rate of 0.
func (c *Campaign) SuccessRate() float64 {
	if c.TotalProcessed == 0 {
		return 0
	}
	return float64(c.TotalSuccessful) / float64(c.TotalProcessed) * 100
}

// Clone returns a deep copy so callers cannot mutate store-owned state
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	out := *c
	out.Targets = make([]ProfileRef, len(c.Targets))
	for i, t := range c.Targets {
		out.Targets[i] = t
		if t.Cached != nil {
			p := *t.Cached
			out.Targets[i].Cached = &p
		}
	}
	if c.DeletedAt != nil {
		d := *c.DeletedAt
		out.DeletedAt = &d
	}
	return &out
}

// ActionResult is the immutable record of one attempted action
type ActionResult struct {
	ID         string       `json:"id"`
	CampaignID string       `json:"campaign_id"`
	ProfileURL string       `json:"profile_url"`
	ActionType CampaignType `json:"action_type"`
	Status     ResultStatus `json:"status"`
	Response   string       `json:"response,omitempty"`
	ErrorKind  string       `json:"error_kind,omitempty"`
	Sequence   int          `json:"sequence"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Credential is the external session token authorizing outbound calls
type Credential struct {
	Account      string    `json:"account"`
	SessionToken string    `json:"session_token"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Account is the connected LinkedIn account registered in the result store
type Account struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsActive    bool      `json:"is_active"`
	ConnectedAt time.Time `json:"connected_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
