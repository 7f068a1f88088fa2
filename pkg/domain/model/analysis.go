package model

import (
	"github.com/go-playground/validator/v10"
	"github.com/m-mizutani/goerr/v2"
)

// DuplicationLevel grades how repetitive a team's updates are
type DuplicationLevel string

const (
	DuplicationHigh   DuplicationLevel = "High"
	DuplicationMedium DuplicationLevel = "Medium"
	DuplicationLow    DuplicationLevel = "Low"
)

// TaskCompletionStatus is the per-update completion answer
type TaskCompletionStatus string

const (
	TaskCompletionYes          TaskCompletionStatus = "Yes"
	TaskCompletionNo           TaskCompletionStatus = "No"
	TaskCompletionNotSpecified TaskCompletionStatus = "Not Specified"
)

type DateRange struct {
	From string `json:"from" validate:"required,datetime=2006-01-02"`
	To   string `json:"to" validate:"required,datetime=2006-01-02"`
}

type StandupAnalysisReport struct {
	AnalysisDateRange  DateRange            `json:"analysisDateRange"`
	DailyUpdateReports []*DailyUpdateReport `json:"dailyUpdateReports" validate:"dive,required"`
	DuplicationSummary DuplicationSummary   `json:"duplicationSummary"`
	Message            string               `json:"message,omitempty"`
}

type DailyUpdateReport struct {
	MessageID                 string               `json:"messageId" validate:"required"`
	EmployeeName              string               `json:"employeeName" validate:"required"`
	CreatedDate               string               `json:"createdDate" validate:"required"`
	ProjectTeam               *string              `json:"projectTeam"`
	Accomplishments           []string             `json:"accomplishments"`
	TaskCompletionStatus      TaskCompletionStatus `json:"taskCompletionStatus" validate:"required,oneof=Yes No 'Not Specified'"`
	CarriedForwardTasks       []string             `json:"carriedForwardTasks"`
	CarryForwardReason        *string              `json:"carryForwardReason"`
	PlannedTasksToday         []string             `json:"plannedTasksToday"`
	IsHighlySimilarToPrevious bool                 `json:"isHighlySimilarToPrevious"`
}

type DuplicationSummary struct {
	Overall DuplicationLevel     `json:"overall" validate:"required,oneof=High Medium Low"`
	Details []*DuplicationDetail `json:"details" validate:"dive,required"`
}

type DuplicationDetail struct {
	EmployeeName        string `json:"employeeName" validate:"required"`
	RepeatedUpdateCount int    `json:"repeatedUpdateCount" validate:"gte=0"`
	ConsecutiveRepeats  int    `json:"consecutiveRepeats" validate:"gte=0"`
}

// ChatMemberInfo is the reduced member shape returned with an analysis
type ChatMemberInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CombinedAnalysisResponse struct {
	StandupAnalysis *StandupAnalysisReport `json:"standupAnalysis"`
	AllChatMembers  []*ChatMemberInfo      `json:"allChatMembers"`
}

// AnalysisUsage counts what went into an analysis
type AnalysisUsage struct {
	MessageCount int `json:"messageCount"`
	StandupCount int `json:"standupCount"`
	MemberCount  int `json:"memberCount"`
}

var reportValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the report shape, typically one decoded from an LLM response
func (r *StandupAnalysisReport) Validate() error {
	if r == nil {
		return goerr.Wrap(ErrInvalidReport, "report is nil")
	}
	if err := reportValidator.Struct(r); err != nil {
		return goerr.Wrap(ErrInvalidReport, err.Error())
	}
	return nil
}
