package inference

import (
	"errors"
	"fmt"
)

var (
	ErrNoAPIKey            = errors.New("inference: API key required")
	ErrNoModel             = errors.New("inference: model required")
	ErrProviderUnavailable = errors.New("inference: provider unavailable")
	ErrAllProvidersFailed  = errors.New("inference: all providers failed")
	ErrEmptyResponse       = errors.New("inference: empty response")
)

// APIError is a non-200 answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Code       string // provider error code, when given
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("inference [%s]: HTTP %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("inference [%s]: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
}

// ProviderError tags err with the provider that produced it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("inference [%s]: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// WrapError returns nil for a nil err.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// ChainError collects one error per provider of a failed Chain call.
// It matches ErrAllProvidersFailed and unwraps to every collected error.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return ErrAllProvidersFailed.Error()
	case 1:
		return fmt.Sprintf("inference chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("inference chain: %d providers failed, last: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
}

func (e *ChainError) Is(target error) bool { return target == ErrAllProvidersFailed }

func (e *ChainError) Unwrap() []error { return e.Errors }
