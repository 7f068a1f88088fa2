package model

import "github.com/m-mizutani/goerr/v2"

// Validation errors
var (
	ErrInvalidReport    = goerr.New("invalid analysis report")
	ErrInvalidDateRange = goerr.New("invalid date range")
)

// Context keys for error values
const (
	ChatIDKey   = "chat_id"
	ReportIDKey = "report_id"
	DateKey     = "date"
)
