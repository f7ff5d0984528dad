package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error folds Firestore failures into the repository error contract
// (not-found / conflict / unavailable) so the service layer never has to
// inspect gRPC status codes.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

// Unwrap exposes the wrapped Firestore error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsNotFound reports a missing document.
func (e *Error) IsNotFound() bool {
	return e != nil && e.notFound
}

// IsConflict reports a failed write precondition or duplicate create.
func (e *Error) IsConflict() bool {
	return e != nil && e.conflict
}

// IsUnavailable reports a transient backend failure.
func (e *Error) IsUnavailable() bool {
	return e != nil && e.unavailable
}

// classify buckets a gRPC status code into the repository error contract.
// Codes outside the three buckets stay unclassified and surface as plain
// wrapped errors.
func classify(code codes.Code) (notFound, conflict, unavailable bool) {
	switch code {
	case codes.NotFound:
		notFound = true
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted, codes.OutOfRange:
		conflict = true
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		unavailable = true
	}
	return notFound, conflict, unavailable
}

// WrapError annotates a Firestore error with the operation name and the
// repository semantics derived from its status code. Context cancellations
// pass through untouched so callers can keep matching on the context
// sentinels.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}

	var repoErr *Error
	if errors.As(err, &repoErr) {
		if op != "" && repoErr.op == "" {
			repoErr.op = op
		}
		return repoErr
	}

	e := &Error{op: op, err: err}
	e.notFound, e.conflict, e.unavailable = classify(status.Code(err))
	return e
}
