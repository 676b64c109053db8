package oauth2

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for missing or blank required input. It never reaches the network.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTokenExchange matches every *ServiceError.
	ErrTokenExchange = errors.New("token exchange failed")
	// ErrTimeout matches a *ServiceError of kind Timeout.
	ErrTimeout = errors.New("token exchange timed out")
	// ErrAccessDenied is returned when no identity is active or the principal has an unexpected type.
	ErrAccessDenied = errors.New("access denied")
	// ErrDecode is returned for malformed or unverifiable tokens.
	ErrDecode = errors.New("token decode failed")
)

// ErrorKind classifies a failed token exchange.
type ErrorKind int

const (
	ClientError ErrorKind = iota + 1
	ServerError
	TransportError
	ResponseError
	Timeout
)

func (k ErrorKind) String() string {
	switch k {
	case ClientError:
		return "client error"
	case ServerError:
		return "server error"
	case TransportError:
		return "transport error"
	case ResponseError:
		return "invalid response"
	case Timeout:
		return "timeout"
	}
	return "unknown"
}

// ServiceError is returned when the authorization server could not issue a token.
type ServiceError struct {
	Kind       ErrorKind
	StatusCode int
	Body       string
	URI        string
	Err        error
}

func (e *ServiceError) Error() string {
	switch e.Kind {
	case ClientError:
		return fmt.Sprintf("error retrieving token from %s: received status code %d: %s", e.URI, e.StatusCode, e.Body)
	case ServerError:
		return fmt.Sprintf("server error while obtaining token from %s (%d): %s", e.URI, e.StatusCode, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s while obtaining token from %s: %v", e.Kind, e.URI, e.Err)
	}
	return fmt.Sprintf("%s while obtaining token from %s", e.Kind, e.URI)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	switch target {
	case ErrTokenExchange:
		return true
	case ErrTimeout:
		return e.Kind == Timeout
	}
	return false
}

// decodeError satisfies both ErrAccessDenied and ErrDecode.
type decodeError struct {
	err error
}

// NewDecodeError wraps a decoder failure so callers see it as an access denial.
func NewDecodeError(err error) error {
	return &decodeError{err: err}
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrAccessDenied, ErrDecode, e.err)
}

func (e *decodeError) Unwrap() []error {
	return []error{ErrAccessDenied, ErrDecode, e.err}
}
