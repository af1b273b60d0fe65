// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	stderrors "errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jllopis/kairos-bdi/pkg/errors"
)

// toStatus converts a bridge error to a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	be := errors.AsBridgeError(err)
	return status.Error(grpcCode(be.Code), be.Message)
}

func grpcCode(code errors.ErrorCode) codes.Code {
	switch code {
	case errors.CodeInvalidInput, errors.CodeParse:
		return codes.InvalidArgument
	case errors.CodeNotFound:
		return codes.NotFound
	case errors.CodeTimeout:
		return codes.DeadlineExceeded
	case errors.CodeTransport:
		return codes.Unavailable
	case errors.CodeProtocol, errors.CodeConfiguration:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

// fromStatus converts a call error back into a bridge error. Only
// unavailability and deadlines are worth retrying.
func fromStatus(err error, peer string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) {
		return errors.New(errors.CodeTransport, "delivery canceled", err).WithContext("peer", peer).WithRecoverable(false)
	}
	st, ok := status.FromError(err)
	if !ok {
		return errors.New(errors.CodeTransport, "delivery failed", err).WithContext("peer", peer)
	}
	var code errors.ErrorCode
	recoverable := false
	switch st.Code() {
	case codes.InvalidArgument:
		code = errors.CodeInvalidInput
	case codes.NotFound:
		code = errors.CodeNotFound
	case codes.DeadlineExceeded:
		code, recoverable = errors.CodeTimeout, true
	case codes.Unavailable, codes.ResourceExhausted:
		code, recoverable = errors.CodeTransport, true
	default:
		code = errors.CodeTransport
	}
	return errors.New(code, st.Message(), err).WithContext("peer", peer).WithRecoverable(recoverable)
}
