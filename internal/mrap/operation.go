package mrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3control"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Request statuses reported for asynchronous operations.
const (
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// ErrOperationFailed is returned by Wait when the operation settles as failed.
var ErrOperationFailed = errors.New("access point operation failed")

// errPending keeps Wait polling.
var errPending = errors.New("operation still in progress")

// Operation is the state of an asynchronous control-plane request.
type Operation struct {
	Token     string    `json:"token"`
	Name      string    `json:"operation"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	ErrorCode string    `json:"errorCode,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Done reports whether the operation has settled.
func (o Operation) Done() bool {
	return o.Status == StatusSucceeded || o.Status == StatusFailed
}

// Describe returns the state of the request identified by token.
func (c *Client) Describe(ctx context.Context, token string) (*Operation, error) {
	if err := c.checkAccount(); err != nil {
		return nil, err
	}

	out, err := c.api.DescribeMultiRegionAccessPointOperation(ctx, &s3control.DescribeMultiRegionAccessPointOperationInput{
		AccountId:       aws.String(c.account),
		RequestTokenARN: aws.String(token),
	})
	if err != nil {
		return nil, c.fail("describe operation", token, err)
	}
	if out.AsyncOperation == nil {
		return nil, fmt.Errorf("describe operation %s: empty response", token)
	}

	op := out.AsyncOperation
	result := &Operation{
		Token:     token,
		Name:      string(op.Operation),
		Status:    aws.ToString(op.RequestStatus),
		CreatedAt: aws.ToTime(op.CreationTime),
	}
	if op.ResponseDetails != nil && op.ResponseDetails.ErrorDetails != nil {
		result.ErrorCode = aws.ToString(op.ResponseDetails.ErrorDetails.Code)
		result.Error = aws.ToString(op.ResponseDetails.ErrorDetails.Message)
	}
	return result, nil
}

// Wait polls the request identified by token with exponential backoff until
// it settles or ctx is done. A failed operation returns ErrOperationFailed
// along with its final state.
func (c *Client) Wait(ctx context.Context, token string) (*Operation, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.PollInterval
	b.MaxInterval = c.MaxPollInterval
	b.MaxElapsedTime = 0

	var last *Operation
	err := backoff.RetryNotify(
		func() error {
			op, err := c.Describe(ctx, token)
			if err != nil {
				if isTerminal(err) {
					return backoff.Permanent(err)
				}
				return err
			}
			last = op
			if !op.Done() {
				return errPending
			}
			return nil
		},
		backoff.WithContext(b, ctx),
		func(err error, next time.Duration) {
			entry := c.log.WithFields(logrus.Fields{"token": token, "next": next})
			if errors.Is(err, errPending) {
				entry.Debug("waiting for access point operation")
				return
			}
			entry.WithError(err).Warn("retrying operation status")
		},
	)
	if err != nil {
		return last, err
	}

	if last.Status == StatusFailed {
		return last, fmt.Errorf("%w: %s: %s", ErrOperationFailed, last.ErrorCode, last.Error)
	}
	return last, nil
}

// isTerminal reports errors that polling cannot fix.
func isTerminal(err error) bool {
	if errors.Is(err, ErrAccountRequired) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorFault() == smithy.FaultClient
	}
	return false
}
