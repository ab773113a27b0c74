package card

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dan9191/ledger-engine/internal/models"
)

type fakeFetcher struct {
	value string
	err   error
	calls int
}

func (f *fakeFetcher) FetchCVV(ctx context.Context, cardID int64) (string, error) {
	f.calls++
	return f.value, f.err
}

func TestToggle(t *testing.T) {
	if got := Toggle(models.CardActive); got != models.CardBlocked {
		t.Fatalf("Toggle(active)=%s want blocked", got)
	}
	if got := Toggle(models.CardBlocked); got != models.CardActive {
		t.Fatalf("Toggle(blocked)=%s want active", got)
	}
	// Twice in a row returns to the original status.
	if got := Toggle(Toggle(models.CardActive)); got != models.CardActive {
		t.Fatalf("double toggle=%s want active", got)
	}
}

func TestRevealThenDismiss(t *testing.T) {
	fetcher := &fakeFetcher{value: "123"}
	m := NewManager(fetcher, time.Minute)

	reveal, err := m.Reveal(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if reveal == nil || reveal.Value != "123" {
		t.Fatalf("reveal=%+v want value 123", reveal)
	}
	if _, ok := m.Current(); !ok {
		t.Fatal("reveal should be live")
	}

	// A second call inside the window dismisses instead of re-fetching.
	reveal, err = m.Reveal(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if reveal != nil {
		t.Fatalf("second reveal=%+v want dismissal", reveal)
	}
	if fetcher.calls != 1 {
		t.Fatalf("fetch calls=%d want 1", fetcher.calls)
	}
	if _, ok := m.Current(); ok {
		t.Fatal("dismissed reveal should not be live")
	}

	// After a dismissal the next call fetches fresh.
	if _, err := m.Reveal(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("fetch calls=%d want 2", fetcher.calls)
	}
}

func TestRevealExpiresLazily(t *testing.T) {
	fetcher := &fakeFetcher{value: "123"}
	m := NewManager(fetcher, 5*time.Second)

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	reveal, err := m.Reveal(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if want := current.Add(5 * time.Second); !reveal.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt=%v want %v", reveal.ExpiresAt, want)
	}

	current = current.Add(4 * time.Second)
	if _, ok := m.Current(); !ok {
		t.Fatal("reveal should still be live before expiry")
	}

	// At the boundary the value is gone even though the timer is fake-free.
	current = current.Add(time.Second)
	if _, ok := m.Current(); ok {
		t.Fatal("reveal should be discarded at expiry")
	}

	// A call after expiry re-fetches rather than dismissing.
	if _, err := m.Reveal(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("fetch calls=%d want 2", fetcher.calls)
	}
}

func TestRevealFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("store down")}
	m := NewManager(fetcher, time.Minute)

	_, err := m.Reveal(context.Background(), 1)
	if !errors.Is(err, ErrSecretUnavailable) {
		t.Fatalf("want ErrSecretUnavailable, got %v", err)
	}
	if _, ok := m.Current(); ok {
		t.Fatal("failed fetch must not open a window")
	}
}

func TestRevealCanceledContext(t *testing.T) {
	fetcher := &fakeFetcher{value: "123"}
	m := NewManager(fetcher, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Reveal(ctx, 1)
	if !errors.Is(err, ErrSecretUnavailable) {
		t.Fatalf("want ErrSecretUnavailable, got %v", err)
	}
	// The fetched value must never reach the window after cancellation.
	if _, ok := m.Current(); ok {
		t.Fatal("canceled fetch must not open a window")
	}
}

func TestDefaultWindow(t *testing.T) {
	m := NewManager(&fakeFetcher{value: "123"}, 0)
	if m.window != DefaultRevealWindow {
		t.Fatalf("window=%v want %v", m.window, DefaultRevealWindow)
	}
}
