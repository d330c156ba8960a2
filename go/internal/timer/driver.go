package timer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TickInterval is the period of every clock driver.
const TickInterval = time.Second

// TickFunc receives the epoch of the arming that produced the tick.
type TickFunc func(epoch uint64)

// Driver fires a callback once per interval until stopped. Each Start opens a
// new epoch; Stop closes it synchronously, so a tick already in flight from a
// closed epoch can be recognised with Live and dropped.
type Driver struct {
	clock    clockwork.Clock
	interval time.Duration

	mu      sync.Mutex
	ticker  clockwork.Ticker
	done    chan struct{}
	epoch   uint64
	running bool
}

// NewDriver creates a stopped driver.
func NewDriver(clock clockwork.Clock, interval time.Duration) *Driver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Driver{clock: clock, interval: interval}
}

// Start arms the driver. Starting an armed driver restarts it in a new epoch.
func (d *Driver) Start(onTick TickFunc) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()

	d.epoch++
	d.running = true
	d.ticker = d.clock.NewTicker(d.interval)
	d.done = make(chan struct{})

	go run(d.ticker, d.done, d.epoch, onTick)
	return d.epoch
}

func run(t clockwork.Ticker, done <-chan struct{}, epoch uint64, onTick TickFunc) {
	for {
		select {
		case <-done:
			return
		case <-t.Chan():
			select {
			case <-done:
				return
			default:
			}
			onTick(epoch)
		}
	}
}

// Stop disarms the driver. Safe to call when not running.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *Driver) stopLocked() {
	if !d.running {
		return
	}
	d.ticker.Stop()
	close(d.done)
	d.running = false
	// Any tick delivered after this point carries a stale epoch.
	d.epoch++
}

// Running reports whether the driver is armed.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Live reports whether a tick from epoch still belongs to the current arming.
func (d *Driver) Live(epoch uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running && d.epoch == epoch
}
