package parser

import "github.com/m-mizutani/goerr/v2"

var ErrInvalidPatterns = goerr.New("invalid parser patterns")

// Context keys for error values
const (
	PathKey    = "path"
	IndexKey   = "index"
	PatternKey = "pattern"
)
