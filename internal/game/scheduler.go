package game

import "time"

// TimerName identifies one periodic task.
type TimerName string

const (
	TimerCountdown TimerName = "countdown"
	TimerStage     TimerName = "stage-timer"
	TimerDecay     TimerName = "decay"
	TimerRotation  TimerName = "rotation"
)

// Ties between timers due at the same instant fire in this order.
var timerOrder = []TimerName{TimerCountdown, TimerStage, TimerDecay, TimerRotation}

type timer struct {
	interval time.Duration
	next     time.Time
}

// Scheduler owns the named periodic timers of one engine. Time only moves when
// the owner asks for due timers, so it runs equally well on a wall clock or a
// virtual one.
type Scheduler struct {
	timers map[TimerName]*timer
}

// NewScheduler returns a scheduler with nothing armed.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: map[TimerName]*timer{}}
}

// Arm (re)starts name so it first fires at now+interval. Non-positive
// intervals cancel the timer instead.
func (s *Scheduler) Arm(name TimerName, interval time.Duration, now time.Time) {
	if interval <= 0 {
		s.Cancel(name)
		return
	}
	s.timers[name] = &timer{interval: interval, next: now.Add(interval)}
}

// Cancel stops name if it is armed.
func (s *Scheduler) Cancel(name TimerName) {
	delete(s.timers, name)
}

// CancelAll stops every timer at once.
func (s *Scheduler) CancelAll() {
	clear(s.timers)
}

// Active returns the number of armed timers.
func (s *Scheduler) Active() int {
	return len(s.timers)
}

// NextDeadline returns the earliest pending fire time.
func (s *Scheduler) NextDeadline() (time.Time, bool) {
	var best time.Time
	found := false
	for _, t := range s.timers {
		if !found || t.next.Before(best) {
			best = t.next
			found = true
		}
	}
	return best, found
}

// Due pops the earliest timer scheduled at or before now, rescheduling it one
// interval later, and returns the instant it was due.
func (s *Scheduler) Due(now time.Time) (TimerName, time.Time, bool) {
	var (
		best   TimerName
		bestAt time.Time
		found  bool
	)
	for _, name := range timerOrder {
		t, ok := s.timers[name]
		if !ok || t.next.After(now) {
			continue
		}
		if !found || t.next.Before(bestAt) {
			best, bestAt, found = name, t.next, true
		}
	}
	if !found {
		return "", time.Time{}, false
	}
	t := s.timers[best]
	t.next = t.next.Add(t.interval)
	return best, bestAt, true
}
