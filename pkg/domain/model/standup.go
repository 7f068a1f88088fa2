package model

import (
	"time"
)

const (
	UnknownProject = "Unknown Project"

	DateLayout = "2006-01-02"
	TimeLayout = "3:04 PM"
)

// StandupUpdate is one chat message parsed as a standup report
type StandupUpdate struct {
	ID                 string         `json:"id"`
	Member             *TeamMember    `json:"member"`
	Project            string         `json:"projectName"`
	Date               string         `json:"date"`
	Time               string         `json:"timestamp"`
	Accomplishments    []string       `json:"accomplishments"`
	TasksCompleted     bool           `json:"tasksCompleted"`
	CarryForward       string         `json:"carryForward,omitempty"`
	CarryForwardReason string         `json:"carryForwardReason,omitempty"`
	Plans              []string       `json:"todayPlans"`
	RawMessage         string         `json:"rawMessage"`
	Reactions          []ChatReaction `json:"reactions,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
}

// StandupDate formats t as the UTC calendar date used by StandupUpdate.Date
func StandupDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// StandupTime formats t as a 12-hour clock time in loc
func StandupTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(TimeLayout)
}

// Page is one page of parsed standup updates. An empty NextCursor marks the last page.
type Page struct {
	Updates    []*StandupUpdate `json:"updates"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

// HasNext reports whether more pages are available
func (p *Page) HasNext() bool {
	return p != nil && p.NextCursor != ""
}
