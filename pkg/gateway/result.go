package gateway

import (
	"errors"

	"github.com/nimburion/docgate/pkg/store"
)

// FailureReason classifies why a write-style operation failed.
type FailureReason string

const (
	ReasonNone             FailureReason = "none"
	ReasonNotFound         FailureReason = "not_found"
	ReasonAlreadyExists    FailureReason = "already_exists"
	ReasonPermissionDenied FailureReason = "permission_denied"
	ReasonUnavailable      FailureReason = "unavailable"
	ReasonInvalidArgument  FailureReason = "invalid_argument"
	ReasonNotInitialized   FailureReason = "not_initialized"
	ReasonUnknown          FailureReason = "unknown"
)

// Result reports the outcome of Write, Update, Add and Delete. Callers that
// only care about success read OK; Reason and Err carry the detail.
type Result struct {
	OK     bool
	Reason FailureReason
	Err    error
}

// Succeeded is the Result of a successful operation.
func Succeeded() Result {
	return Result{OK: true, Reason: ReasonNone}
}

// Failed classifies err into a failed Result.
func Failed(err error) Result {
	if err == nil {
		return Succeeded()
	}
	return Result{Reason: reasonOf(err), Err: err}
}

func reasonOf(err error) FailureReason {
	if errors.Is(err, ErrNotInitialized) {
		return ReasonNotInitialized
	}
	switch store.Classify(err) {
	case store.KindNone:
		return ReasonNone
	case store.KindNotFound:
		return ReasonNotFound
	case store.KindAlreadyExists:
		return ReasonAlreadyExists
	case store.KindPermissionDenied:
		return ReasonPermissionDenied
	case store.KindUnavailable:
		return ReasonUnavailable
	case store.KindInvalidArgument:
		return ReasonInvalidArgument
	default:
		return ReasonUnknown
	}
}

func (r Result) String() string {
	if r.OK {
		return "ok"
	}
	if r.Err == nil {
		return string(r.Reason)
	}
	return string(r.Reason) + ": " + r.Err.Error()
}
