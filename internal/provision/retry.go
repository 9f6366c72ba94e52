package provision

import "time"

// Policy drives the attempt → backoff → retry-or-stop machine used for the
// artifact normalization copy. Keeping it a standalone value keeps the max
// attempts, backoff shape and stop conditions testable without a filesystem.
type Policy struct {
	MaxAttempts int
	// Delay is the backoff unit; attempt N sleeps N × Delay before the next
	// attempt (linear backoff).
	Delay time.Duration
	// Sleep defaults to time.Sleep.
	Sleep func(time.Duration)
	// OnAttempt, when set, observes each failed attempt.
	OnAttempt func(attempt int, err error)
}

// Run attempts op up to MaxAttempts times. After a failed attempt whose error
// is transient, it backs off and retries; a non-transient error stops the
// machine immediately. Returns nil on success, else the last error seen.
func (p Policy) Run(op func() error, transient func(error) bool) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if p.OnAttempt != nil {
			p.OnAttempt(attempt, err)
		}
		if !transient(err) {
			return err
		}
		if attempt < p.MaxAttempts {
			sleep(time.Duration(attempt) * p.Delay)
		}
	}
	return err
}
