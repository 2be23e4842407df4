package reolink

import (
	"fmt"
)

// ConfigError reports an unusable client configuration, such as a malformed
// device URL.  It is raised before any request is built.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// AuthError means an endpoint requires a token that is absent or expired.
// Call Client.Login and retry.
type AuthError struct {
	Cmd string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("a valid token is required for the '%s' API", e.Cmd)
}

// StatusError is a non-2xx HTTP response from the device
type StatusError struct {
	Cmd        string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("non-2xx response to '%s': %d (%s): %s", e.Cmd, e.StatusCode, e.Status, truncate(e.Body, 256))
}

// FormatError is a response that does not follow the envelope protocol
type FormatError struct {
	Cmd string
	Msg string
	Err error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response to '%s': %s: %s", e.Cmd, e.Msg, e.Err)
	}
	return fmt.Sprintf("malformed response to '%s': %s", e.Cmd, e.Msg)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// DecodeError is a payload whose shape does not match the declared type.
// Slot is one of "value", "initial" or "range".
type DecodeError struct {
	Cmd  string
	Slot string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding '%s' %s: %s", e.Cmd, e.Slot, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// APIError is returned when the device executed the request and reported a
// failure (non-zero code)
type APIError struct {
	Code int          `json:"code"`
	Err  APIErrorData `json:"error"`
}

// APIErrorData is the device's own description of a failure
type APIErrorData struct {
	RspCode int    `json:"rspCode"`
	Detail  string `json:"detail"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Err.Detail, e.Err.RspCode)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
