// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package retry runs an operation a bounded number of times with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Config configures retry behavior
type Config struct {
	MaxAttempts     int           // Total attempts, including the first
	InitialInterval time.Duration // Wait after the first failure
	MaxInterval     time.Duration // Upper bound on any single wait
	Multiplier      float64       // Backoff multiplier
	Jitter          float64       // Jitter factor (0-1)
	// OnRetry, if set, is called after a failed attempt and before its wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultConfig returns the connection retry policy: 5 attempts, 2s doubling, capped at 60s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     5,
		InitialInterval: 2 * time.Second,
		MaxInterval:     60 * time.Second,
		Multiplier:      2.0,
	}
}

// Error indicates all attempts failed
type Error struct {
	Err      error
	Attempts int
}

func (e *Error) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PermanentError wraps an error that must not be retried
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent checks if an error is marked as non-retryable
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// Do calls fn until it succeeds, returns a permanent error, ctx is done, or
// MaxAttempts is reached. attempt starts at 1. Exhaustion is reported as *Error.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = cfg.InitialInterval
	}

	backoff := NewBackoff(cfg.InitialInterval, cfg.MaxInterval, cfg.Multiplier, cfg.Jitter)

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				return err
			}
			return &Error{Err: lastErr, Attempts: attempt - 1}
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsPermanent(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := backoff.Next()
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &Error{Err: lastErr, Attempts: attempt}
		case <-timer.C:
		}
	}

	return &Error{Err: lastErr, Attempts: cfg.MaxAttempts}
}

// Backoff calculates exponential backoff with optional jitter
type Backoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          float64
	attempt         int
}

// NewBackoff creates a new backoff calculator
func NewBackoff(initial, max time.Duration, multiplier, jitter float64) *Backoff {
	return &Backoff{
		InitialInterval: initial,
		MaxInterval:     max,
		Multiplier:      multiplier,
		Jitter:          jitter,
	}
}

// Next returns the next backoff duration
func (b *Backoff) Next() time.Duration {
	interval := float64(b.InitialInterval) * math.Pow(b.Multiplier, float64(b.attempt))
	b.attempt++
	if interval > float64(b.MaxInterval) {
		interval = float64(b.MaxInterval)
	}

	if b.Jitter > 0 {
		interval += interval * b.Jitter * (rand.Float64()*2 - 1)
	}

	return time.Duration(interval)
}
