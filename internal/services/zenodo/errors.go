package zenodo

import (
	"errors"
	"fmt"
	"strings"
)

const (
	tokenMissingMessage   = "No token defined for this operation; please contact your administrator"
	uploadRejectedMessage = "Problems occurred while uploading your document. Contact your administrator"
)

var (
	// ErrTokenMissing is wrapped by ConfigError when no token is configured
	// for the active environment.
	ErrTokenMissing = errors.New("zenodo: access token missing")

	// ErrNoSuchFile is returned when a file identifier resolves to no parts.
	ErrNoSuchFile = errors.New("zenodo: no such file")
)

// ConfigError reports a session that cannot talk to Zenodo because of
// missing configuration. The message is meant for end users.
type ConfigError struct {
	Environment Environment
	Message     string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Environment)
}

func (e *ConfigError) Unwrap() error {
	return ErrTokenMissing
}

func newTokenMissingError(env Environment) *ConfigError {
	return &ConfigError{Environment: env, Message: tokenMissingMessage}
}

// TransportError wraps network failures and undecodable response bodies.
// URL never contains the access token.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err or any wrapped error is a TransportError.
func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}

// APIError is a structured failure returned by the Zenodo API. Messages holds
// one "<field> - <message>" entry per reported error and may be empty.
// Message is the optional top-level message of the payload.
type APIError struct {
	Status   int
	Message  string
	Messages []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("zenodo: request failed with status %d", e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.Messages) > 0 {
		msg += ": " + strings.Join(e.Messages, "; ")
	}
	return msg
}

// UploadError reports a rejected file part. The remaining parts of the batch
// were not sent.
type UploadError struct {
	Status  int
	Message string
	File    string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("zenodo: upload of %s rejected with status %d: %s", e.File, e.Status, e.Message)
}
