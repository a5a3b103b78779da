// ABOUTME: Classified sync transport errors.
// ABOUTME: Maps transport failures and HTTP statuses to kinds with user-facing messages.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind says what went wrong with a request and how a caller may react.
type Kind int

const (
	// KindConnectivity means the server could not be reached.
	KindConnectivity Kind = iota
	// KindAuth means the token was missing, invalid or expired.
	KindAuth
	// KindTimeout means the request or the sync cycle ran out of time.
	KindTimeout
	// KindServer means the server failed to handle a valid request.
	KindServer
	// KindProtocol means the response could not be understood.
	KindProtocol
	// KindCanceled means the caller gave up.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindAuth:
		return "auth"
	case KindTimeout:
		return "timeout"
	case KindServer:
		return "server"
	case KindProtocol:
		return "protocol"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Retryable reports whether trying again later can succeed without user action
// beyond waiting or reconnecting. Auth failures need a new login first.
func (k Kind) Retryable() bool {
	switch k {
	case KindAuth, KindProtocol:
		return false
	default:
		return true
	}
}

// Message is the text shown to the user for this kind of failure.
func (k Kind) Message() string {
	switch k {
	case KindConnectivity:
		return "Can't reach the sync server. Check your connection and try again."
	case KindAuth:
		return "Your session has expired. Please log in again."
	case KindTimeout:
		return "Sync timed out. Try again."
	case KindServer:
		return "The sync server couldn't save your data. Try again later."
	case KindProtocol:
		return "The sync server sent a response this version doesn't understand."
	case KindCanceled:
		return "Sync was canceled."
	default:
		return "Sync failed."
	}
}

// Error is a classified request failure.
type Error struct {
	Kind       Kind
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("sync %s error: HTTP %d: %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("sync %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a classified error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}

// Classify wraps a transport-level error. Errors that are already classified
// are returned unchanged.
func Classify(err error) *Error {
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindCanceled, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindConnectivity, Err: err}
}

// StatusError classifies a non-2xx response.
func StatusError(status int, body string) *Error {
	err := errors.New(http.StatusText(status))
	if body != "" {
		err = fmt.Errorf("%s: %s", http.StatusText(status), body)
	}

	kind := KindProtocol
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = KindTimeout
	case status == http.StatusTooManyRequests || status >= 500:
		kind = KindServer
	}
	return &Error{Kind: kind, StatusCode: status, Err: err}
}
