package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type ReportID string

// NewReportID returns a time ordered report identifier
func NewReportID() ReportID {
	return ReportID(uuid.Must(uuid.NewV7()).String())
}

func (id ReportID) Validate() error {
	if _, err := uuid.Parse(string(id)); err != nil {
		return goerr.Wrap(err, "invalid report ID", goerr.V(ReportIDKey, id))
	}
	return nil
}

// ReportSource tells whether a report was produced by the LLM or computed locally
type ReportSource string

const (
	ReportSourceLLM   ReportSource = "llm"
	ReportSourceLocal ReportSource = "local"
)

// Report is a persisted analysis result
type Report struct {
	ID        ReportID                  `json:"id"`
	ChatID    string                    `json:"chatId"`
	From      string                    `json:"from"`
	To        string                    `json:"to"`
	Source    ReportSource              `json:"source"`
	Usage     AnalysisUsage             `json:"usage"`
	Response  *CombinedAnalysisResponse `json:"response"`
	CreatedAt time.Time                 `json:"createdAt"`
}
