package client

import (
	"context"
	"errors"
	"time"

	"github.com/felipemchdev/policyforge-core/model"
)

// State is the poller's position in its lifecycle.
type State string

const (
	StatePolling   State = "polling"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Events are the poller's observer callbacks. All fields are optional.
type Events struct {
	// OnStatus fires for every successfully fetched status.
	OnStatus func(status string)
	// OnResult fires once, with the result of a completed request.
	OnResult func(result *model.EngineResult)
	// OnError fires for poll errors; unless terminal, polling continues.
	OnError func(err error)
	// OnSlow fires once when the wall-clock budget is exceeded. The loop
	// keeps going: the budget is a warning, not a cancellation.
	OnSlow func()
}

func (e Events) status(s string) {
	if e.OnStatus != nil {
		e.OnStatus(s)
	}
}

func (e Events) result(r *model.EngineResult) {
	if e.OnResult != nil {
		e.OnResult(r)
	}
}

func (e Events) error(err error) {
	if e.OnError != nil {
		e.OnError(err)
	}
}

func (e Events) slow() {
	if e.OnSlow != nil {
		e.OnSlow()
	}
}

// Poller drives a submitted request to a terminal state: it polls the status
// endpoint on a fixed interval and fetches the result after the first
// completed observation. Transient failures are surfaced and polling
// continues, including a retryable result fetch, which is retried on the
// next completed poll; only engine-reported terminal statuses, a
// non-retryable error or context cancellation stop the loop.
type Poller struct {
	client   *Client
	interval time.Duration
	budget   time.Duration
	now      func() time.Time
}

func NewPoller(client *Client, interval, budget time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if budget <= 0 {
		budget = 60 * time.Second
	}
	return &Poller{
		client:   client,
		interval: interval,
		budget:   budget,
		now:      time.Now,
	}
}

// Run polls requestID until a terminal state and returns how the loop ended.
// Cancelling ctx stops the loop before the next continuation; a response
// already in flight when ctx is cancelled is never applied.
func (p *Poller) Run(ctx context.Context, requestID string, events Events) State {
	startedAt := p.now()
	slowWarned := false

	for {
		if ctx.Err() != nil {
			return StateCancelled
		}

		status, err := p.client.GetStatus(ctx, requestID)
		if ctx.Err() != nil {
			return StateCancelled
		}

		if err != nil {
			events.error(err)
			if isTerminalError(err) {
				return StateFailed
			}
		} else {
			events.status(status.Status)

			switch {
			case model.IsCompleted(status.Status):
				result, err := p.client.GetResult(ctx, requestID)
				if ctx.Err() != nil {
					return StateCancelled
				}
				if err != nil {
					events.error(err)
					if !isRetryable(err) {
						return StateFailed
					}
					// Retried on the next completed observation.
					break
				}
				events.result(result)
				return StateSucceeded
			case model.IsFailed(status.Status):
				return StateFailed
			}
		}

		if !slowWarned && p.now().Sub(startedAt) >= p.budget {
			slowWarned = true
			events.slow()
		}

		select {
		case <-ctx.Done():
			return StateCancelled
		case <-time.After(p.interval):
		}
	}
}

// isTerminalError reports whether retrying cannot help: a gateway that is
// not configured stays that way until an operator intervenes.
func isTerminalError(err error) bool {
	var gatewayErr *Error
	return errors.As(err, &gatewayErr) && gatewayErr.Category == CategoryNotConfigured
}

// isRetryable reports whether the condition may clear on a later attempt.
// Anything that is not a classified retryable gateway error is terminal.
func isRetryable(err error) bool {
	var gatewayErr *Error
	return errors.As(err, &gatewayErr) && gatewayErr.Retryable()
}
