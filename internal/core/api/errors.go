package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/routekeeper/internal/core/registry"
	"github.com/solatis/routekeeper/internal/types"
)

// toStatus maps service errors to gRPC status codes.
// Interpreter errors never reach here; they are reported in the response body.
func toStatus(err error) error {
	switch {
	case errors.Is(err, registry.ErrNoActiveProgram):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, types.ErrTooManyMetadataPairs),
		errors.Is(err, types.ErrMetadataKeyTooLong),
		errors.Is(err, types.ErrMetadataValueTooLong):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
