// Package card controls a payment card's block/unblock state and the
// time-boxed disclosure of its CVV.
package card

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Dan9191/ledger-engine/internal/models"
)

// ErrSecretUnavailable signals that the secure store could not serve the
// CVV. The manager never retries; retry, if any, is caller policy.
var ErrSecretUnavailable = errors.New("card: secret unavailable")

// DefaultRevealWindow bounds how long a disclosed CVV stays visible.
const DefaultRevealWindow = 5 * time.Second

// Toggle flips the block/unblock state unconditionally. There is no
// multi-party authorization here; blocking is a plain user switch.
func Toggle(s models.CardStatus) models.CardStatus {
	if s == models.CardBlocked {
		return models.CardActive
	}
	return models.CardBlocked
}

// SecretFetcher serves the current CVV from the external secure store. The
// value is never cached beyond the reveal window.
type SecretFetcher interface {
	FetchCVV(ctx context.Context, cardID int64) (string, error)
}

// Reveal is a disclosed secret and the instant it stops being served.
type Reveal struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Manager runs the reveal window for a single card. The window is the one
// stateful, time-sensitive piece of the engine: expiry is enforced both by a
// single-shot timer and by a lazy check on access, and the secret is dropped
// from the manager's memory the moment the window closes or is dismissed.
type Manager struct {
	fetcher SecretFetcher
	window  time.Duration
	now     func() time.Time

	mu     sync.Mutex
	reveal *Reveal
	timer  *time.Timer
}

// NewManager builds a manager for one card. A non-positive window falls back
// to DefaultRevealWindow.
func NewManager(fetcher SecretFetcher, window time.Duration) *Manager {
	if window <= 0 {
		window = DefaultRevealWindow
	}
	return &Manager{fetcher: fetcher, window: window, now: time.Now}
}

// Reveal starts a disclosure, or dismisses the active one. While a reveal is
// still live a second call hides it and returns (nil, nil) without touching
// the secure store; otherwise the CVV is fetched fresh and a new window
// opens. A canceled context guarantees the fetched value never reaches the
// window. Fetch failures surface as ErrSecretUnavailable.
func (m *Manager) Reveal(ctx context.Context, cardID int64) (*Reveal, error) {
	m.mu.Lock()
	if m.liveLocked() != nil {
		m.clearLocked()
		m.mu.Unlock()
		return nil, nil
	}
	m.mu.Unlock()

	value, err := m.fetcher.FetchCVV(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSecretUnavailable, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSecretUnavailable, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
	m.reveal = &Reveal{Value: value, ExpiresAt: m.now().Add(m.window)}
	m.timer = time.AfterFunc(m.window, m.expire)
	cp := *m.reveal
	return &cp, nil
}

// Current returns the live reveal, if any. An expired reveal is discarded on
// access even if the timer has not fired yet.
func (m *Manager) Current() (*Reveal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.liveLocked()
	if r == nil {
		return nil, false
	}
	cp := *r
	return &cp, true
}

// liveLocked returns the active reveal, dropping it if the window closed.
// mu must be held.
func (m *Manager) liveLocked() *Reveal {
	if m.reveal == nil {
		return nil
	}
	if !m.now().Before(m.reveal.ExpiresAt) {
		m.clearLocked()
		return nil
	}
	return m.reveal
}

// expire is the timer callback; the lazy check keeps it honest if the
// reveal was replaced since the timer was armed.
func (m *Manager) expire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reveal != nil && !m.now().Before(m.reveal.ExpiresAt) {
		m.clearLocked()
	}
}

// clearLocked zeroes the secret and disarms the timer. mu must be held.
func (m *Manager) clearLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.reveal != nil {
		m.reveal.Value = ""
		m.reveal = nil
	}
}
