package graph

import "github.com/m-mizutani/goerr/v2"

var (
	ErrNotFound     = goerr.New("graph resource not found")
	ErrInvalidInput = goerr.New("invalid graph request")
)

// Context keys for error values
const (
	URLKey    = "url"
	ChatIDKey = "chat_id"
	UserIDKey = "user_id"
)
