package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("connection reset")
	err := Wrapf(ErrCodeOrderFailed, cause, "failed to create order for %s", "BTC/USDT")
	suite.Equal(ErrCodeOrderFailed, err.Code)
	suite.Equal("failed to create order for BTC/USDT", err.Message)
	suite.Equal(cause, err.Cause)
	suite.Equal("[500] failed to create order for BTC/USDT: connection reset", err.Error())
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeJobBusy, "a job is already running")
	suite.Equal("[1000] a job is already running", err.Error())
}

func (suite *ErrorTestSuite) TestGetCode() {
	suite.Equal(ErrCodeWorkerNotFound, GetCode(New(ErrCodeWorkerNotFound, "missing")))
	suite.Equal(ErrCodeUnknown, GetCode(errors.New("standard error")))

	wrapped := Wrap(ErrCodeExchangeUnavailable, "fetch failed", New(ErrCodeDataNotFound, "empty"))
	suite.Equal(ErrCodeExchangeUnavailable, GetCode(wrapped))
}

func (suite *ErrorTestSuite) TestHasCodeAndIs() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodePersistenceFailed, "save failed", cause)
	suite.True(HasCode(err, ErrCodePersistenceFailed))
	suite.False(HasCode(err, ErrCodeDataNotFound))
	suite.True(Is(err, cause))

	var argoErr *Error
	suite.True(As(err, &argoErr))
	suite.Equal(ErrCodePersistenceFailed, argoErr.Code)
}

func (suite *ErrorTestSuite) TestIsFatal() {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "plain error", err: errors.New("boom"), expected: false},
		{name: "transient", err: New(ErrCodeExchangeUnavailable, "timeout"), expected: false},
		{name: "invariant", err: New(ErrCodeInvariantViolation, "two pending orders"), expected: true},
		{name: "strategy panic", err: New(ErrCodeStrategyRuntimeError, "index out of range"), expected: true},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, IsFatal(tc.err))
		})
	}
}

func (suite *ErrorTestSuite) TestCodeSentinel() {
	err := fmt.Errorf("start search: %w", Wrap(ErrCodeJobBusy, "busy", errors.New("slot taken")))
	suite.True(errors.Is(err, New(ErrCodeJobBusy, "")))
	suite.False(errors.Is(err, New(ErrCodeJobClosed, "")))
	suite.False(errors.Is(errors.New("plain"), New(ErrCodeJobBusy, "")))
}

func (suite *ErrorTestSuite) TestCategory() {
	suite.Equal("validation", ErrCodeInvalidRange.Category())
	suite.Equal("worker", ErrCodeWorkerNotFound.Category())
	suite.Equal("job", ErrCodeJobBusy.Category())
	suite.Equal("risk", ErrCodeCircuitOpen.Category())
	suite.Equal("general", ErrorCode(5000).Category())
}
