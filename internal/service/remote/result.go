package remote

import "errors"

// ErrEndpointUnreachableOrInvalid covers every way a reply can fail to arrive:
// transport errors, non-success status codes and malformed payloads.
var ErrEndpointUnreachableOrInvalid = errors.New("endpoint unreachable or invalid")

// Result is the outcome of one endpoint round-trip. Exactly one of Reply or Err is set.
type Result struct {
	Reply string
	Err   error
}

// Success wraps a reply text.
func Success(reply string) Result {
	return Result{Reply: reply}
}

// Failure wraps the reason a reply could not be obtained.
func Failure(reason error) Result {
	if reason == nil {
		reason = ErrEndpointUnreachableOrInvalid
	}
	return Result{Err: reason}
}

// OK reports whether the result carries a reply.
func (r Result) OK() bool {
	return r.Err == nil
}
