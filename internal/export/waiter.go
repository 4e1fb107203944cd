package export

import (
	"context"
	"net/http"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
	"google.golang.org/api/googleapi"
	sqlapi "google.golang.org/api/sqladmin/v1beta4"

	"github.com/arencloud/sqlexport/internal/logging"
)

const maxPollDelay = time.Minute

// PollFunc fetches the current state of one operation.
type PollFunc func(ctx context.Context) (*sqlapi.Operation, error)

// Waiter polls an export operation until Cloud SQL reports it DONE or the
// timeout elapses. A timeout is not an error; the outcome stays pending.
type Waiter struct {
	Clock   clock.Clock
	Delay   time.Duration
	Timeout time.Duration
	Logger  logging.Logger
}

var errNotDone = errors.New("operation not done")

func (w *Waiter) Wait(ctx context.Context, poll PollFunc) (Outcome, error) {
	clk := w.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	var last *sqlapi.Operation
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			op, err := poll(ctx)
			if err != nil {
				return err
			}
			if op == nil {
				return errNotDone
			}
			last = op
			if op.Status != operationDone {
				return errNotDone
			}
			return nil
		},
		IsFatalError: func(err error) bool {
			return err != errNotDone && !isTransient(err)
		},
		NotifyFunc: func(err error, attempt int) {
			if w.Logger != nil && err != errNotDone {
				w.Logger.Debug("export poll failed", "attempt", attempt, "error", err)
			}
		},
		Attempts:    -1,
		Delay:       w.Delay,
		MaxDelay:    maxPollDelay,
		MaxDuration: w.Timeout,
		BackoffFunc: retry.DoubleDelay,
		Clock:       clk,
		Stop:        ctx.Done(),
	})
	switch {
	case err == nil:
		return OutcomeFrom(last), nil
	case retry.IsDurationExceeded(err):
		return OutcomeFrom(last), nil
	case retry.IsRetryStopped(err):
		return OutcomeFrom(last), errors.Trace(ctx.Err())
	default:
		return OutcomeFrom(last), errors.Annotate(err, "polling export operation")
	}
}

// isTransient reports remote errors worth another poll.
func isTransient(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == http.StatusTooManyRequests || gErr.Code >= http.StatusInternalServerError
	}
	return false
}
