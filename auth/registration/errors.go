package registration

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks against the typed errors below
var (
	ErrProviderNotFound       = errors.New("oauth2 provider not found")
	ErrMalformedConfiguration = errors.New("malformed oauth2 provider configuration")
)

// ProviderNotFoundError reports an unknown or disabled provider id
type ProviderNotFoundError struct {
	RegistrationID string
}

func (e *ProviderNotFoundError) Error() string {
	return "Unsupported OAuth2 provider: " + e.RegistrationID
}

// Is matches ErrProviderNotFound
func (e *ProviderNotFoundError) Is(target error) bool {
	return target == ErrProviderNotFound
}

// MalformedConfigurationError reports a provider whose credential location
// or payload is missing or invalid
type MalformedConfigurationError struct {
	RegistrationID string
	Reason         string
	Err            error
}

func (e *MalformedConfigurationError) Error() string {
	msg := fmt.Sprintf("malformed OAuth2 provider configuration for %s: %s", e.RegistrationID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any
func (e *MalformedConfigurationError) Unwrap() error {
	return e.Err
}

// Is matches ErrMalformedConfiguration
func (e *MalformedConfigurationError) Is(target error) bool {
	return target == ErrMalformedConfiguration
}

func malformed(registrationID, reason string, err error) error {
	return &MalformedConfigurationError{RegistrationID: registrationID, Reason: reason, Err: err}
}
