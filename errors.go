package chat

import "errors"

// Common errors for transcript store construction, stored data and request validation.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
	ErrEmptyQuery       = errors.New("Query text is required")
	ErrUnknownRole      = errors.New("unknown turn role")
	ErrMissingAPIKey    = errors.New("Anthropic API key not found. Please set the ANTHROPIC_API_KEY environment variable.")
)

// ConfigurationError reports a missing or invalid deployment setting.
// It is raised before any conversation state is touched.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string { return e.Err.Error() }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// ValidationError reports a request the caller has to fix.
// It is raised before any conversation state is touched.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// ExternalServiceError carries the failure of the model API call.
// The message is the collaborator's message, unclassified.
type ExternalServiceError struct {
	Err error
}

func (e *ExternalServiceError) Error() string { return e.Err.Error() }
func (e *ExternalServiceError) Unwrap() error { return e.Err }
