package usecase

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for use case layer
var (
	// Input errors
	ErrMissingToken  = goerr.New("access token is required")
	ErrMissingChatID = goerr.New("chat ID is required")
	ErrInvalidInput  = goerr.New("invalid input")

	// Not found errors
	ErrReportNotFound = goerr.New("report not found")

	// The LLM answered with something that is not a valid report
	ErrUpstreamContract = goerr.New("LLM response violates the report contract")
)

// Context keys for error values
const (
	ChatIDKey   = "chat_id"
	ReportIDKey = "report_id"
	CursorKey   = "cursor"
	UserIDKey   = "user_id"
)
