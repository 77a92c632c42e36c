package errors

import (
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

func (suite *ErrorTestSuite) TestNew() {
	err := New(ErrCodeInvalidOrder, "quantity must be positive")

	suite.Equal(ErrCodeInvalidOrder, err.Code)
	suite.Equal("quantity must be positive", err.Message)
	suite.Nil(err.Cause)
	suite.Equal("[102] quantity must be positive", err.Error())
}

func (suite *ErrorTestSuite) TestNewf() {
	err := Newf(ErrCodeOrderNotFound, "no venue order with id %s", "abc")

	suite.Equal(ErrCodeOrderNotFound, err.Code)
	suite.Equal("no venue order with id abc", err.Message)
}

func (suite *ErrorTestSuite) TestWrap() {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCodeVenueUnavailable, "place order failed", cause)

	suite.Equal(cause, err.Cause)
	suite.Contains(err.Error(), "connection refused")
	suite.ErrorIs(err, cause)
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeVenueTimeout, "timed out")
	wrapped := fmt.Errorf("outer: %w", err)

	suite.Equal(ErrCodeVenueTimeout, GetCode(wrapped))
	suite.Equal(ErrCodeUnknown, GetCode(fmt.Errorf("plain")))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := Wrap(ErrCodePersistenceFlush, "flush failed", fmt.Errorf("io error"))

	suite.True(HasCode(err, ErrCodePersistenceFlush))
	suite.False(HasCode(err, ErrCodePersistenceAppend))
}

func (suite *ErrorTestSuite) TestTransitionError() {
	err := NewTransitionError("ord-1", "FILLED", "CANCELED")

	suite.True(IsTransitionError(err))
	suite.Contains(err.Error(), "FILLED -> CANCELED")

	wrapped := Wrap(ErrCodeInvalidTransition, "apply fill", err)
	suite.True(IsTransitionError(wrapped))
	suite.False(IsTransitionError(fmt.Errorf("plain")))
}
