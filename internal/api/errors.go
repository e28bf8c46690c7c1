package api

import (
	"errors"
	"fmt"

	"familyvault/internal/auth"
	"familyvault/internal/model"
)

// NetworkError means every candidate failed at the transport level
// (DNS, connection refused, timeout) and no server ever answered.
type NetworkError struct {
	Operation string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// OperationFailed means every candidate refused the operation. Status
// and Message come from the last server response that carried them.
type OperationFailed struct {
	Operation string
	Status    int
	Message   string
	Attempts  int
}

func (e *OperationFailed) Error() string {
	return e.Message
}

// Is makes a terminal 401 match auth.ErrNotAuthenticated.
func (e *OperationFailed) Is(target error) bool {
	return target == auth.ErrNotAuthenticated && e.Status == 401
}

// UserMessage renders err for a notification.
func UserMessage(err error) string {
	var (
		failed  *OperationFailed
		network *NetworkError
		invalid *model.ValidationError
		decode  *model.DecodeError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &invalid):
		return invalid.Message
	case errors.Is(err, auth.ErrNotAuthenticated):
		return "Please log in to continue"
	case errors.As(err, &failed):
		return failed.Message
	case errors.As(err, &network):
		return "Network error: please check your connection and try again"
	case errors.As(err, &decode):
		return "Unexpected response from the server. Please try again later."
	default:
		return err.Error()
	}
}
