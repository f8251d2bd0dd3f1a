package claim

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// DefaultStubLatency mimics a slow collaborator.
const DefaultStubLatency = 500 * time.Millisecond

// errStubFailure is returned by injected stub failures.
var errStubFailure = errors.New("stub collaborator unavailable")

// StubClient is an in-process collaborator that accepts every claim after a
// simulated latency. Every FailEvery-th call fails when FailEvery > 0.
type StubClient struct {
	Latency   time.Duration
	FailEvery int
	Sleep     Sleeper

	calls atomic.Int64
}

// NewStubClient returns a stub with the default latency.
func NewStubClient() *StubClient {
	return &StubClient{Latency: DefaultStubLatency}
}

// Calls returns how many attempts the stub has seen.
func (c *StubClient) Calls() int {
	return int(c.calls.Load())
}

// Claim implements Client.
func (c *StubClient) Claim(ctx context.Context, req Request) (string, error) {
	n := c.calls.Add(1)
	if c.Latency > 0 {
		sleep := c.Sleep
		if sleep == nil {
			sleep = Sleep
		}
		if err := sleep(ctx, c.Latency); err != nil {
			return "", err
		}
	}
	if c.FailEvery > 0 && n%int64(c.FailEvery) == 0 {
		return "", errStubFailure
	}
	if req.ID == "" {
		return NewID(time.Now()), nil
	}
	return req.ID, nil
}
