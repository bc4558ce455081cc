// Package circuitbreaker protects the matching flow against anomalous inventory snapshots,
// such as an emptied catalog or runaway prices from a vendor feed.
package circuitbreaker

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/yourorg/tradeline-engine/internal/model"
)

// ErrOpen is returned while the guard is open.
var ErrOpen = errors.New("circuit breaker open: inventory protection engaged")

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, snapshots are rejected
	StateHalfOpen              // Testing if the feed has recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Thresholds defines the limits that will trigger the guard
type Thresholds struct {
	// Minimum number of listings for a usable snapshot
	MinItems int `json:"min_items"`

	// Maximum allowed listing price
	MaxPrice float64 `json:"max_price"`

	// Maximum change in snapshot size against the last good one (e.g. 0.8 for 80%)
	MaxSizeChange float64 `json:"max_size_change"`

	// Maximum standard deviation of prices as multiple of mean
	MaxStdDevMultiple float64 `json:"max_std_dev_multiple,omitempty"`
}

// Guard implements the circuit breaker pattern over inventory snapshots.
type Guard struct {
	thresholds Thresholds

	state    State
	lastTrip time.Time
	reason   string

	// Duration before auto-reset attempt
	resetDelay time.Duration

	mu sync.RWMutex

	// Last snapshot that passed every check, served as fallback
	lastGood   []model.Tradeline
	lastGoodAt time.Time

	// Count of consecutive good snapshots in HalfOpen state
	successCount     int
	successThreshold int

	onTripCallback func(reason string, inventory []model.Tradeline)

	now func() time.Time
}

// New creates a new Guard with the provided thresholds
func New(t Thresholds) *Guard {
	return &Guard{
		thresholds:       t,
		state:            StateClosed,
		resetDelay:       5 * time.Minute,
		successThreshold: 3,
		now:              time.Now,
	}
}

// WithResetDelay sets a custom reset delay and returns the guard
func (g *Guard) WithResetDelay(delay time.Duration) *Guard {
	g.resetDelay = delay
	return g
}

// WithSuccessThreshold sets the number of good snapshots needed to close the circuit
func (g *Guard) WithSuccessThreshold(threshold int) *Guard {
	g.successThreshold = threshold
	return g
}

// WithTripCallback sets a callback function that is called when the circuit trips
func (g *Guard) WithTripCallback(callback func(reason string, inventory []model.Tradeline)) *Guard {
	g.onTripCallback = callback
	return g
}

// Check evaluates a snapshot against the thresholds. A good snapshot becomes the new
// last good one. While open it returns ErrOpen; a bad snapshot trips the guard.
func (g *Guard) Check(inventory []model.Tradeline) error {
	g.mu.RLock()
	state := g.state
	lastTrip := g.lastTrip
	g.mu.RUnlock()

	if state == StateOpen {
		if g.now().Sub(lastTrip) > g.resetDelay {
			g.transitionToHalfOpen()
		} else {
			return ErrOpen
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if reason := g.violation(inventory); reason != "" {
		g.trip(reason, inventory)
		return fmt.Errorf("%w: %s", ErrOpen, reason)
	}

	logrus.WithField("items", len(inventory)).Debug("Inventory guard checks passed")

	g.lastGood = append([]model.Tradeline(nil), inventory...)
	g.lastGoodAt = g.now()

	if g.state == StateHalfOpen {
		g.successCount++
		if g.successCount >= g.successThreshold {
			g.state = StateClosed
			g.successCount = 0
			g.reason = ""
			logrus.Info("Circuit breaker closed: inventory feed has recovered")
		}
	}
	return nil
}

// violation returns why the snapshot is rejected, or "".
func (g *Guard) violation(inventory []model.Tradeline) string {
	t := g.thresholds

	if len(inventory) < t.MinItems {
		return fmt.Sprintf("insufficient listings: got %d, need %d", len(inventory), t.MinItems)
	}

	for _, tl := range inventory {
		if t.MaxPrice > 0 && tl.Price > t.MaxPrice {
			return fmt.Sprintf("price exceeds maximum threshold: %s at %.2f > %.2f", tl.ID, tl.Price, t.MaxPrice)
		}
	}

	if t.MaxSizeChange > 0 && len(g.lastGood) > 0 {
		last := float64(len(g.lastGood))
		change := math.Abs(float64(len(inventory))-last) / last
		if change > t.MaxSizeChange {
			return fmt.Sprintf("inventory size change too drastic: %.2f%% (threshold: %.2f%%)",
				change*100, t.MaxSizeChange*100)
		}
	}

	if t.MaxStdDevMultiple > 0 && len(inventory) > 1 {
		prices := make([]float64, 0, len(inventory))
		for _, tl := range inventory {
			if tl.Price > 0 {
				prices = append(prices, tl.Price)
			}
		}
		if len(prices) > 1 {
			mean, std := stat.MeanStdDev(prices, nil)
			if mean > 0 && std/mean > t.MaxStdDevMultiple {
				return fmt.Sprintf("price dispersion too high: %.2f x mean (threshold: %.2f)",
					std/mean, t.MaxStdDevMultiple)
			}
		}
	}

	return ""
}

// GetState returns the current state of the guard
func (g *Guard) GetState() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Reason returns why the guard last tripped, empty once closed again.
func (g *Guard) Reason() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.reason
}

// Reset forcibly resets the guard to closed state
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = StateClosed
	g.successCount = 0
	g.reason = ""
	logrus.Info("Circuit breaker manually reset to closed state")
}

// LastGood returns a copy of the most recent snapshot that passed every check and when
// it was taken. It returns nil before the first good snapshot.
func (g *Guard) LastGood() ([]model.Tradeline, time.Time) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.lastGood == nil {
		return nil, time.Time{}
	}
	return append([]model.Tradeline(nil), g.lastGood...), g.lastGoodAt
}

func (g *Guard) transitionToHalfOpen() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateOpen {
		g.state = StateHalfOpen
		g.successCount = 0
		logrus.Info("Circuit breaker half-open: testing inventory recovery")
	}
}

// trip must be called with the lock held
func (g *Guard) trip(reason string, inventory []model.Tradeline) {
	g.state = StateOpen
	g.lastTrip = g.now()
	g.reason = reason
	logrus.Warnf("Circuit breaker tripped: %s", reason)

	if g.onTripCallback != nil {
		go g.onTripCallback(reason, inventory)
	}
}
