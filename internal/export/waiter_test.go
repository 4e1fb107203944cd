package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	sqlapi "google.golang.org/api/sqladmin/v1beta4"
)

func opWithStatus(status string) *sqlapi.Operation {
	return &sqlapi.Operation{Name: "op-1", Status: status}
}

// scripted returns the given results in order, repeating the last one.
func scripted(results ...func() (*sqlapi.Operation, error)) (PollFunc, *int) {
	calls := 0
	return func(context.Context) (*sqlapi.Operation, error) {
		i := calls
		if i >= len(results) {
			i = len(results) - 1
		}
		calls++
		return results[i]()
	}, &calls
}

func ok(op *sqlapi.Operation) func() (*sqlapi.Operation, error) {
	return func() (*sqlapi.Operation, error) { return op, nil }
}

func fail(err error) func() (*sqlapi.Operation, error) {
	return func() (*sqlapi.Operation, error) { return nil, err }
}

func newWaiter(timeout time.Duration) *Waiter {
	return &Waiter{Clock: clock.WallClock, Delay: time.Millisecond, Timeout: timeout}
}

func TestOutcomeFrom(t *testing.T) {
	require.Equal(t, StatePending, OutcomeFrom(nil).State)
	require.Equal(t, StatePending, OutcomeFrom(opWithStatus("RUNNING")).State)

	done := OutcomeFrom(opWithStatus("DONE"))
	require.Equal(t, StateSucceeded, done.State)
	require.Equal(t, "op-1", done.Operation)

	failed := opWithStatus("DONE")
	failed.Error = &sqlapi.OperationErrors{Errors: []*sqlapi.OperationError{
		{Code: "ERROR_RDBMS", Message: "file already exists"},
		{Message: "second"},
	}}
	out := OutcomeFrom(failed)
	require.Equal(t, StateFailed, out.State)
	require.Equal(t, "ERROR_RDBMS: file already exists; second", out.Reason)
}

func TestWaitUntilDone(t *testing.T) {
	poll, calls := scripted(ok(opWithStatus("PENDING")), ok(opWithStatus("RUNNING")), ok(opWithStatus("DONE")))
	out, err := newWaiter(time.Minute).Wait(context.Background(), poll)
	require.NoError(t, err)
	require.Equal(t, StateSucceeded, out.State)
	require.Equal(t, 3, *calls)
}

func TestWaitRetriesTransientErrors(t *testing.T) {
	unavailable := &googleapi.Error{Code: 503, Message: "backend unavailable"}
	poll, calls := scripted(fail(unavailable), ok(opWithStatus("DONE")))
	out, err := newWaiter(time.Minute).Wait(context.Background(), poll)
	require.NoError(t, err)
	require.Equal(t, StateSucceeded, out.State)
	require.Equal(t, 2, *calls)
}

func TestWaitStopsOnFatalError(t *testing.T) {
	forbidden := &googleapi.Error{Code: 403, Message: "forbidden"}
	poll, calls := scripted(ok(opWithStatus("RUNNING")), fail(forbidden))
	out, err := newWaiter(time.Minute).Wait(context.Background(), poll)
	require.Error(t, err)
	var gErr *googleapi.Error
	require.True(t, errors.As(err, &gErr))
	require.Equal(t, 2, *calls)
	require.Equal(t, StatePending, out.State)
	require.Equal(t, "op-1", out.Operation)
}

func TestWaitTimeoutLeavesPending(t *testing.T) {
	poll, _ := scripted(ok(opWithStatus("RUNNING")))
	out, err := newWaiter(20*time.Millisecond).Wait(context.Background(), poll)
	require.NoError(t, err)
	require.Equal(t, StatePending, out.State)
	require.Equal(t, "RUNNING", out.Status)
}

func TestWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	poll, _ := scripted(func() (*sqlapi.Operation, error) {
		cancel()
		return opWithStatus("RUNNING"), nil
	})
	w := &Waiter{Clock: clock.WallClock, Delay: time.Second, Timeout: time.Minute}
	out, err := w.Wait(ctx, poll)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, StatePending, out.State)
}
