package errors

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// grpcMapping maps each resilience Code to the gRPC status code a caller
// exposing a decorated operation over gRPC should surface.
var grpcMapping = map[Code]codes.Code{
	CodeCallNotPermitted:    codes.Unavailable,
	CodeRequestNotPermitted: codes.ResourceExhausted,
	CodeBulkheadFull:        codes.ResourceExhausted,
	CodeMaxRetriesExceeded:  codes.DeadlineExceeded,
}

// ToGRPCCode returns the gRPC status code for err, or codes.Unknown if err
// is not (or does not wrap) a ResilienceError.
func ToGRPCCode(err error) codes.Code {
	var re *ResilienceError
	if errors.As(err, &re) {
		if c, ok := grpcMapping[re.Code]; ok {
			return c
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return codes.DeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return codes.Canceled
	}
	return codes.Unknown
}

// ToGRPCError converts err into a *status.Status error carrying the mapped
// code and err's message, suitable for returning from a gRPC handler.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	return status.Error(ToGRPCCode(err), err.Error())
}

// FromGRPCCode maps a gRPC status code back to the nearest resilience Code,
// for clients translating a downstream rejection into a local one. Returns
// ok=false when there is no sensible resilience-kind counterpart.
func FromGRPCCode(c codes.Code) (Code, bool) {
	switch c {
	case codes.Unavailable:
		return CodeCallNotPermitted, true
	case codes.ResourceExhausted:
		return CodeRequestNotPermitted, true
	case codes.DeadlineExceeded:
		return CodeMaxRetriesExceeded, true
	default:
		return "", false
	}
}
