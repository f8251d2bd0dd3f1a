// Package claim reports correct selections to the claim collaborator.
package claim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 5 * time.Second
	// DefaultRetryAttempts is the number of retries after the first attempt.
	DefaultRetryAttempts = 3

	maxBackoffShift = 16
)

// Outcome labels stored with claim records.
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeReceived = "received"
)

// ErrRejected is returned when the collaborator answers but refuses the claim.
var ErrRejected = errors.New("claim rejected")

// Request is one claim as sent to the collaborator.
type Request struct {
	ID           string
	Timestamp    time.Time
	EnergyPoints int
	StageID      string
}

// Client performs a single claim attempt.
type Client interface {
	Claim(ctx context.Context, req Request) (string, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-time Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff returns the wait after the zero-based attempt failed: 2^attempt seconds.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxBackoffShift {
		attempt = maxBackoffShift
	}
	return time.Duration(1<<attempt) * time.Second
}

// NewID builds a claim identifier of the form claim_<unixms>_<suffix>.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("claim_%d_%s", now.UnixMilli(), suffix)
}

// Config tunes a Submitter. Zero values fall back to defaults.
type Config struct {
	Timeout       time.Duration
	RetryAttempts int
	Sleep         Sleeper
	Now           func() time.Time
}

// Result is what Submit always returns; it never fails past its boundary.
type Result struct {
	Request  Request
	Success  bool
	ClaimID  string
	Err      error
	Attempts int
}

// Outcome returns the record label for the result.
func (r Result) Outcome() string {
	if r.Success {
		return OutcomeSuccess
	}
	return OutcomeFailed
}

// Submitter wraps a Client with per-attempt timeouts and retry/backoff.
type Submitter struct {
	client  Client
	timeout time.Duration
	retries int
	sleep   Sleeper
	now     func() time.Time
}

// NewSubmitter returns a Submitter for client.
func NewSubmitter(client Client, cfg Config) *Submitter {
	s := &Submitter{
		client:  client,
		timeout: cfg.Timeout,
		retries: cfg.RetryAttempts,
		sleep:   cfg.Sleep,
		now:     cfg.Now,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.retries < 0 {
		s.retries = 0
	}
	if s.sleep == nil {
		s.sleep = Sleep
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Submit reports energyPoints earned at stageID, retrying failed attempts.
func (s *Submitter) Submit(ctx context.Context, energyPoints int, stageID string) Result {
	now := s.now()
	req := Request{
		ID:           NewID(now),
		Timestamp:    now,
		EnergyPoints: energyPoints,
		StageID:      stageID,
	}
	return s.submit(ctx, req)
}

func (s *Submitter) submit(ctx context.Context, req Request) Result {
	res := Result{Request: req}
	total := s.retries + 1
	for attempt := 0; attempt < total; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, Backoff(attempt-1)); err != nil {
				res.Err = fmt.Errorf("claim retry aborted after %d attempts: %w", res.Attempts, errors.Join(res.Err, err))
				return res
			}
		}
		res.Attempts++
		id, err := s.attempt(ctx, req)
		if err == nil {
			res.Success = true
			res.ClaimID = id
			res.Err = nil
			return res
		}
		res.Err = err
		if ctx.Err() != nil {
			return res
		}
	}
	return res
}

func (s *Submitter) attempt(ctx context.Context, req Request) (id string, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("claim client panicked: %v", r)
		}
	}()
	id, err = s.client.Claim(attemptCtx, req)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("%w: empty claim id", ErrRejected)
	}
	return id, nil
}

// Async runs submissions in the background and lets callers wait for them.
type Async struct {
	sub *Submitter
	wg  sync.WaitGroup
}

// NewAsync wraps sub for fire-and-forget use.
func NewAsync(sub *Submitter) *Async {
	return &Async{sub: sub}
}

// Go submits in a new goroutine and hands the result to done, if non-nil.
func (a *Async) Go(ctx context.Context, energyPoints int, stageID string, done func(Result)) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		res := a.sub.Submit(ctx, energyPoints, stageID)
		if done != nil {
			done(res)
		}
	}()
}

// Wait blocks until every started submission has finished.
func (a *Async) Wait() {
	a.wg.Wait()
}
