package sources

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies an adapter failure. Adapter failures are data from the
// coordinator's point of view: they end up in SearchResult.Errors, never
// as a raised error from Run.
type Kind string

const (
	// KindTimeout means the adapter's own deadline expired mid-call.
	KindTimeout Kind = "adapter_timeout"
	// KindNetwork covers transport failures and non-success HTTP statuses.
	KindNetwork Kind = "adapter_network_error"
	// KindParse means the response arrived but could not be interpreted.
	KindParse Kind = "adapter_parse_error"
	// KindUnknown is everything else, including recovered panics.
	KindUnknown Kind = "adapter_unknown_error"
	// KindCoordinatorTimeout is recorded by the dispatcher for adapters
	// still pending when the global deadline expired.
	KindCoordinatorTimeout Kind = "coordinator_timeout"
)

// Error is a typed adapter failure carrying the source it came from.
type Error struct {
	Source string
	Kind   Kind
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewTimeoutError reports an adapter-level deadline expiry.
func NewTimeoutError(source string, err error) *Error {
	return &Error{Source: source, Kind: KindTimeout, Msg: "search timed out", Err: err}
}

// NewNetworkError reports a transport-level failure.
func NewNetworkError(source string, err error) *Error {
	return &Error{Source: source, Kind: KindNetwork, Msg: "network request failed", Err: err}
}

// NewParseError reports an uninterpretable response.
func NewParseError(source, detail string) *Error {
	return &Error{Source: source, Kind: KindParse, Msg: detail}
}

// NewUnknownError wraps an unclassified failure.
func NewUnknownError(source string, err error) *Error {
	return &Error{Source: source, Kind: KindUnknown, Msg: "search failed", Err: err}
}

// NewCoordinatorTimeoutError marks a source abandoned at the global deadline.
func NewCoordinatorTimeoutError(source string) *Error {
	return &Error{Source: source, Kind: KindCoordinatorTimeout, Msg: "abandoned at global deadline"}
}

// Classify normalizes an arbitrary error returned by an adapter into an
// *Error. Already-typed errors pass through; context and net errors map to
// the timeout and network kinds.
func Classify(source string, err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(source, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewTimeoutError(source, err)
		}
		return NewNetworkError(source, err)
	}
	return NewUnknownError(source, err)
}
