package application

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ericfisherdev/stagegate/internal/domain/model"
	"github.com/ericfisherdev/stagegate/internal/domain/port/driven"
)

// errMergeableNotComputed signals that GitHub has not finished computing the
// merge commit yet and the poll should retry.
var errMergeableNotComputed = errors.New("mergeable state not computed yet")

// AwaitMergeable polls GitHub's tri-state mergeable flag for a pull request
// until it settles, at a fixed interval with a hard attempt cap. The result
// distinguishes three outcomes: mergeable, definitively not mergeable
// (false, nil error), and gave up waiting (a timeout-kind error, never to be
// confused with "not mergeable"). Cancelling the context stops the wait.
func AwaitMergeable(ctx context.Context, client driven.GitHubClient, prNumber int, interval time.Duration, maxAttempts uint64) (bool, error) {
	var state bool

	operation := func() error {
		mergeable, err := client.FetchMergeableState(ctx, prNumber)
		if err != nil {
			return backoff.Permanent(err)
		}
		if mergeable == nil {
			return errMergeableNotComputed
		}
		state = *mergeable
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), maxAttempts),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		if errors.Is(err, errMergeableNotComputed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, model.Errorf(model.ErrKindTimeout, "gave up waiting for mergeable state of pull request #%d after %d attempts", prNumber, maxAttempts+1)
		}
		return false, err
	}
	return state, nil
}
