package execution

import (
	"context"
	"testing"
	"time"

	"github.com/rxtech-lab/atlas-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type RetryPolicyTestSuite struct {
	suite.Suite
	policy RetryPolicy
}

func TestRetryPolicySuite(t *testing.T) {
	suite.Run(t, new(RetryPolicyTestSuite))
}

func (suite *RetryPolicyTestSuite) SetupTest() {
	suite.policy = RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func (suite *RetryPolicyTestSuite) TestTransientFailureIsRetriedUntilSuccess() {
	calls := 0
	err := suite.policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New(errors.ErrCodeVenueUnavailable, "connection reset")
		}

		return nil
	})

	suite.Require().NoError(err)
	suite.Equal(3, calls)
}

func (suite *RetryPolicyTestSuite) TestRejectionIsNotRetried() {
	calls := 0
	err := suite.policy.Do(context.Background(), func() error {
		calls++
		return errors.New(errors.ErrCodeVenueRejected, "insufficient margin")
	})

	suite.Require().Error(err)
	suite.Equal(1, calls)
	suite.True(errors.HasCode(err, errors.ErrCodeVenueRejected))
}

func (suite *RetryPolicyTestSuite) TestTimeoutIsNotRetried() {
	calls := 0
	err := suite.policy.Do(context.Background(), func() error {
		calls++
		return errors.New(errors.ErrCodeVenueTimeout, "deadline exceeded")
	})

	suite.Require().Error(err)
	suite.Equal(1, calls)
	suite.True(errors.HasCode(err, errors.ErrCodeVenueTimeout))
}

func (suite *RetryPolicyTestSuite) TestExhaustionIsWrapped() {
	calls := 0
	err := suite.policy.Do(context.Background(), func() error {
		calls++
		return errors.New(errors.ErrCodeVenueUnavailable, "connection reset")
	})

	suite.Require().Error(err)
	suite.Equal(3, calls)
	suite.True(errors.HasCode(err, errors.ErrCodeRetriesExhausted))
}

func (suite *RetryPolicyTestSuite) TestZeroValuePolicyMakesSingleAttempt() {
	calls := 0
	err := RetryPolicy{}.Do(context.Background(), func() error {
		calls++
		return errors.New(errors.ErrCodeVenueUnavailable, "connection reset")
	})

	suite.Require().Error(err)
	suite.Equal(1, calls)
	suite.True(errors.HasCode(err, errors.ErrCodeRetriesExhausted))
}

func (suite *RetryPolicyTestSuite) TestContextCancellationStopsRetrying() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := suite.policy.Do(ctx, func() error {
		return errors.New(errors.ErrCodeVenueUnavailable, "connection reset")
	})

	suite.Require().Error(err)
}
