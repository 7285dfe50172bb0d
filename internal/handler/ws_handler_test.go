package handler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Suraj08344/examproct-backend/internal/attempt"
	"github.com/Suraj08344/examproct-backend/internal/response"
)

func TestAttemptErrMessageMapsMachineErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want response.ErrCode
	}{
		{"unsaved answer", attempt.ErrUnsavedAnswer, response.ErrUnsavedAnswer},
		{"lockdown", attempt.ErrLockdownActive, response.ErrLockdownActive},
		{"already submitted", attempt.ErrAlreadySubmitted, response.ErrAlreadySubmitted},
		{"expired", attempt.ErrSessionExpired, response.ErrSessionExpired},
		{"not in progress", attempt.ErrNotInProgress, response.ErrConflict},
		{"unknown question", attempt.ErrUnknownQuestion, response.ErrInvalidPayload},
		{"save failed", attempt.ErrSaveFailed, response.ErrSaveFailed},
		{"submit failed", attempt.ErrSubmitFailed, response.ErrSubmitFailed},
		{"unexpected", errors.New("boom"), response.ErrInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, response.GetMessage(tc.want), attemptErrMessage(tc.err))
		})
	}
}

func TestAttemptErrMessageSeesWrappedErrors(t *testing.T) {
	// The machine wraps its sentinels with cause detail; mapping must
	// still resolve them.
	saveErr := fmt.Errorf("%w: redis timeout", attempt.ErrSaveFailed)
	require.Equal(t, response.GetMessage(response.ErrSaveFailed), attemptErrMessage(saveErr))

	submitErr := fmt.Errorf("%w: backend down", attempt.ErrSubmitFailed)
	require.Equal(t, response.GetMessage(response.ErrSubmitFailed), attemptErrMessage(submitErr))
}
