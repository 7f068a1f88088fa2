package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrInvalidConfig  = goerr.New("invalid configuration")
	ErrMissingOption  = goerr.New("required option is missing")
	ErrUnknownBackend = goerr.New("unknown backend")
)

// Context keys for error values
const (
	BackendKey  = "backend"
	FlagKey     = "flag"
	ValueKey    = "value"
	PathKey     = "path"
	LocationKey = "location"
)
