package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the three failure kinds of the transport
var (
	// ErrNetwork the request could not be made or timed out
	ErrNetwork = errors.New("network error")
	// ErrServer the backend answered with a non-success status
	ErrServer = errors.New("server error")
	// ErrMalformedData the response body is missing required fields
	ErrMalformedData = errors.New("malformed data")
)

// SyncError carries the operation and, for server errors, the HTTP status
type SyncError struct {
	Kind   error  // one of the sentinels above
	Op     string // transport operation, e.g. "submit"
	Status int    // HTTP status for ErrServer, 0 otherwise
	Err    error  // underlying cause
}

// Error implements the error interface (used for logs)
func (e *SyncError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is lets errors.Is match the kind sentinel
func (e *SyncError) Is(target error) bool {
	return e.Kind == target
}

// Unwrap returns the underlying cause
func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewNetworkError wraps a transport failure
func NewNetworkError(op string, err error) error {
	return &SyncError{Kind: ErrNetwork, Op: op, Err: err}
}

// NewServerError reports a non-success response
func NewServerError(op string, status int, body string) error {
	var cause error
	if body != "" {
		cause = fmt.Errorf("body: %s", body)
	}
	return &SyncError{Kind: ErrServer, Op: op, Status: status, Err: cause}
}

// NewMalformedDataError reports a response missing required fields
func NewMalformedDataError(op, detail string) error {
	return &SyncError{Kind: ErrMalformedData, Op: op, Err: errors.New(detail)}
}

// IsNetwork 判断是否为网络错误
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsServer 判断是否为服务端错误
func IsServer(err error) bool {
	return errors.Is(err, ErrServer)
}

// IsMalformedData 判断是否为数据格式错误
func IsMalformedData(err error) bool {
	return errors.Is(err, ErrMalformedData)
}

// Kind returns a short label for metrics and logs
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsNetwork(err):
		return "network"
	case IsServer(err):
		return "server"
	case IsMalformedData(err):
		return "malformed"
	default:
		return "unknown"
	}
}

// Errors of the local development backend
var (
	// ErrInvalidInput the request is missing required fields
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound the contact does not exist
	ErrNotFound = errors.New("not found")
)

// IsInvalidInput 判断是否为参数错误
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotFound 判断是否为未找到错误
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
